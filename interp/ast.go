// interp/ast.go
package interp

// Pos is the source line a node starts on, with that line's text for error reports.
type Pos struct {
	Line int
	Text string
}

func (p Pos) Position() Pos { return p }

// Node is any top-level item or statement.
type Node interface {
	Position() Pos
}

// Stmt is an executable statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression kept both as source tokens (for printing) and as
// compiled postfix code.
type Expr struct {
	Tokens []Token
	Code   RPN
}

// StructDecl is a top-level `struct Name { auto a, b; }` layout.
type StructDecl struct {
	Pos
	Name   string
	Fields []string
}

// Function is a top-level user function definition.
type Function struct {
	Pos
	Name   string
	Params []string
	Body   []Stmt
}

// Program is a parsed source file.
type Program struct {
	Structs map[string]*StructDecl
	Funcs   map[string]*Function
	Body    []Stmt
	Decls   []Node // every top-level item in source order
	Lines   []string
}

type ReturnStmt struct {
	Pos
	Value *Expr // nil returns 0
}

type ExternStmt struct {
	Pos
	Names []string
}

// AutoVar is one name in an auto declaration: `x`, `x = expr` or `v[n]`.
type AutoVar struct {
	Name string
	Init *Expr
	Size *Expr
}

type AutoStmt struct {
	Pos
	Vars []AutoVar
}

// StructVarStmt declares instances of a struct layout: `struct Point p, q;`.
type StructVarStmt struct {
	Pos
	Layout string
	Names  []string
}

type CondBranch struct {
	Pos
	Cond *Expr
	Body []Stmt
}

type IfStmt struct {
	Pos
	Branches []CondBranch // if, then each else if
	Else     []Stmt
	HasElse  bool
}

type ForStmt struct {
	Pos
	Init Stmt  // may be nil
	Cond *Expr // nil is always true
	Post Stmt  // may be nil
	Body []Stmt
}

type WhileStmt struct {
	Pos
	Cond *Expr
	Body []Stmt
}

// Selector is one `.field` or `[index]` step of an assignment target.
type Selector struct {
	Field string
	Index *Expr
}

// AssignStmt stores Value into Name, or into the aggregate reached by Path.
type AssignStmt struct {
	Pos
	Name  string
	Path  []Selector
	Value *Expr
}

type CallStmt struct {
	Pos
	Name string
	Args []*Expr
}

func (*ReturnStmt) stmtNode()    {}
func (*ExternStmt) stmtNode()    {}
func (*AutoStmt) stmtNode()      {}
func (*StructVarStmt) stmtNode() {}
func (*IfStmt) stmtNode()        {}
func (*ForStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()    {}
func (*CallStmt) stmtNode()      {}

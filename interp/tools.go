// interp/tools.go
package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatSource parses src and prints it back in canonical layout: tab
// indentation, one statement per line, explicit semicolons. Comments are
// not preserved. It returns (original, error) if the source cannot be parsed.
func FormatSource(src string) (string, error) {
	prog, err := Parse(src)
	if err != nil {
		return src, err
	}
	var pr printer
	for i, d := range prog.Decls {
		_, isStmt := d.(Stmt)
		if i > 0 {
			// blank line around definitions, not between statements
			if _, prevStmt := prog.Decls[i-1].(Stmt); !isStmt || !prevStmt {
				pr.b.WriteByte('\n')
			}
		}
		switch d := d.(type) {
		case *StructDecl:
			pr.line(0, "struct %s {", d.Name)
			if len(d.Fields) > 0 {
				pr.line(1, "auto %s;", strings.Join(d.Fields, ", "))
			}
			pr.line(0, "}")
		case *Function:
			pr.line(0, "%s(%s) {", d.Name, strings.Join(d.Params, ", "))
			pr.stmts(1, d.Body)
			pr.line(0, "}")
		case Stmt:
			pr.stmt(0, d)
		}
	}
	return pr.b.String(), nil
}

type printer struct {
	b strings.Builder
}

func (pr *printer) line(indent int, format string, args ...any) {
	pr.b.WriteString(strings.Repeat("\t", indent))
	fmt.Fprintf(&pr.b, format, args...)
	pr.b.WriteByte('\n')
}

func (pr *printer) stmts(indent int, body []Stmt) {
	for _, st := range body {
		pr.stmt(indent, st)
	}
}

func (pr *printer) stmt(indent int, st Stmt) {
	switch st := st.(type) {
	case *IfStmt:
		for i, br := range st.Branches {
			kw := "if"
			if i > 0 {
				kw = "} else if"
			}
			pr.line(indent, "%s (%s) {", kw, formatExpr(br.Cond))
			pr.stmts(indent+1, br.Body)
		}
		if st.HasElse {
			pr.line(indent, "} else {")
			pr.stmts(indent+1, st.Else)
		}
		pr.line(indent, "}")
	case *ForStmt:
		pr.line(indent, "for (%s; %s; %s) {", simpleText(st.Init), formatExpr(st.Cond), simpleText(st.Post))
		pr.stmts(indent+1, st.Body)
		pr.line(indent, "}")
	case *WhileStmt:
		pr.line(indent, "while (%s) {", formatExpr(st.Cond))
		pr.stmts(indent+1, st.Body)
		pr.line(indent, "}")
	default:
		pr.line(indent, "%s;", simpleText(st))
	}
}

// simpleText renders a single-line statement without its terminator.
func simpleText(st Stmt) string {
	switch st := st.(type) {
	case nil:
		return ""
	case *ReturnStmt:
		if st.Value == nil {
			return "return"
		}
		return "return " + formatExpr(st.Value)
	case *ExternStmt:
		return "extrn " + strings.Join(st.Names, ", ")
	case *AutoStmt:
		parts := make([]string, len(st.Vars))
		for i, v := range st.Vars {
			switch {
			case v.Size != nil:
				parts[i] = v.Name + "[" + formatExpr(v.Size) + "]"
			case v.Init != nil:
				parts[i] = v.Name + " = " + formatExpr(v.Init)
			default:
				parts[i] = v.Name
			}
		}
		return "auto " + strings.Join(parts, ", ")
	case *StructVarStmt:
		return "struct " + st.Layout + " " + strings.Join(st.Names, ", ")
	case *AssignStmt:
		target := st.Name
		for _, sel := range st.Path {
			if sel.Index != nil {
				target += "[" + formatExpr(sel.Index) + "]"
			} else {
				target += "." + sel.Field
			}
		}
		return target + " = " + formatExpr(st.Value)
	case *CallStmt:
		args := make([]string, len(st.Args))
		for i, a := range st.Args {
			args[i] = formatExpr(a)
		}
		return st.Name + "(" + strings.Join(args, ", ") + ")"
	}
	return ""
}

// formatExpr joins expression tokens with normalized spacing: binary
// operators are padded, prefix operators and brackets are tight.
func formatExpr(e *Expr) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	operand := false // whether the previous token completed an operand
	for i, tok := range e.Tokens {
		switch tok.Kind {
		case TokOperator:
			if operand {
				b.WriteString(" " + tok.Text + " ")
				operand = false
			} else {
				b.WriteString(tok.Text)
			}
			continue
		case TokComma:
			b.WriteString(", ")
			operand = false
			continue
		case TokCloseParen, TokCloseIndex:
			b.WriteString(tok.Text)
			operand = true
			continue
		case TokOpenParen, TokOpenIndex:
			b.WriteString(tok.Text)
			operand = false
			continue
		case TokDot:
			b.WriteString(".")
			operand = false
			continue
		}
		if i > 0 && operand {
			b.WriteByte(' ')
		}
		b.WriteString(tokenText(tok))
		operand = true
	}
	return b.String()
}

func tokenText(tok Token) string {
	if tok.Kind == TokString {
		return quoteString(tok.Text)
	}
	return tok.Text
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// VetIssue describes a potential problem found by VetSource.
type VetIssue struct {
	Line    int
	Message string
}

func (v VetIssue) String() string {
	return strconv.Itoa(v.Line) + ": " + v.Message
}

// VetSource performs basic static analysis: unreachable statements after
// return, self-assignments, calls to names that are neither defined
// functions nor externs in x, argument count mismatches, extrn
// declarations of unknown routines and undefined struct layouts.
// A nil x only knows the program's own functions.
func VetSource(src string, x *Externs) ([]VetIssue, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	v := &vetter{prog: prog, externs: x}
	v.block(prog.Body)
	for _, d := range prog.Decls {
		if fn, ok := d.(*Function); ok {
			v.block(fn.Body)
		}
	}
	sortIssues(v.issues)
	return v.issues, nil
}

type vetter struct {
	prog    *Program
	externs *Externs
	issues  []VetIssue
}

func (v *vetter) report(line int, format string, args ...any) {
	v.issues = append(v.issues, VetIssue{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (v *vetter) known(name string) bool {
	if _, ok := v.prog.Funcs[name]; ok {
		return true
	}
	_, ok := v.externs.Lookup(name)
	return ok
}

func (v *vetter) block(body []Stmt) {
	for i, st := range body {
		if _, ok := st.(*ReturnStmt); ok && i < len(body)-1 {
			v.report(body[i+1].Position().Line, "unreachable code")
			// only the first unreachable statement per block
			v.stmt(st)
			return
		}
		v.stmt(st)
	}
}

func (v *vetter) stmt(st Stmt) {
	switch st := st.(type) {
	case *ReturnStmt:
		v.expr(st.Line, st.Value)
	case *ExternStmt:
		for _, n := range st.Names {
			if _, ok := v.externs.Lookup(n); !ok {
				v.report(st.Line, "extrn %s: no such extern", n)
			}
		}
	case *AutoStmt:
		for _, av := range st.Vars {
			v.expr(st.Line, av.Init)
			v.expr(st.Line, av.Size)
		}
	case *StructVarStmt:
		if _, ok := v.prog.Structs[st.Layout]; !ok {
			v.report(st.Line, "struct %s is not defined", st.Layout)
		}
	case *IfStmt:
		for _, br := range st.Branches {
			v.expr(br.Line, br.Cond)
			v.block(br.Body)
		}
		v.block(st.Else)
	case *ForStmt:
		if st.Init != nil {
			v.stmt(st.Init)
		}
		v.expr(st.Line, st.Cond)
		if st.Post != nil {
			v.stmt(st.Post)
		}
		v.block(st.Body)
	case *WhileStmt:
		v.expr(st.Line, st.Cond)
		v.block(st.Body)
	case *AssignStmt:
		if len(st.Path) == 0 && len(st.Value.Tokens) == 1 {
			if t := st.Value.Tokens[0]; t.Kind == TokIdent && t.Text == st.Name {
				v.report(st.Line, "self-assignment: %s = %s has no effect", st.Name, t.Text)
			}
		}
		for _, sel := range st.Path {
			v.expr(st.Line, sel.Index)
		}
		v.expr(st.Line, st.Value)
	case *CallStmt:
		v.call(st.Line, st.Name, len(st.Args))
		for _, a := range st.Args {
			v.expr(st.Line, a)
		}
	}
}

func (v *vetter) expr(line int, e *Expr) {
	if e == nil {
		return
	}
	for _, in := range e.Code {
		if in.Op == OpCall {
			v.call(line, in.Name, in.Argc)
		}
	}
}

// call checks that name resolves and, for user functions, that the
// argument count matches the parameter list.
func (v *vetter) call(line int, name string, argc int) {
	if !v.known(name) {
		v.report(line, "call of undefined function %s", name)
		return
	}
	if _, ok := v.externs.Lookup(name); ok {
		return
	}
	if fn := v.prog.Funcs[name]; len(fn.Params) != argc {
		v.report(line, "%s called with %d arguments, want %d", name, argc, len(fn.Params))
	}
}

func sortIssues(issues []VetIssue) {
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Line < issues[j].Line })
}

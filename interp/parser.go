// interp/parser.go
package interp

import (
	"fmt"
	"strings"
)

var keywords = map[string]bool{
	"auto": true, "extrn": true, "return": true, "struct": true,
	"if": true, "else": true, "for": true, "while": true,
}

// Parse reads a whole source file: struct layouts and function definitions
// at top level, everything else into the program body. Statements end at
// ';' or at the end of a line once they are complete.
func Parse(src string) (*Program, error) {
	s := &scanner{src: src, line: 1}
	var toks []Token
	for {
		tok, err := s.next()
		if err != nil {
			return nil, annotateLine(err, s.line, src)
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	p := &parser{toks: toks, lines: strings.Split(src, "\n")}
	prog := &Program{
		Structs: map[string]*StructDecl{},
		Funcs:   map[string]*Function{},
		Lines:   p.lines,
	}
	if err := p.parseProgram(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func annotateLine(err error, line int, src string) error {
	lines := strings.Split(src, "\n")
	text := ""
	if line-1 < len(lines) {
		text = strings.TrimSpace(lines[line-1])
	}
	return annotate(err, Pos{Line: line, Text: text})
}

type parser struct {
	toks  []Token
	pos   int
	prev  Token
	lines []string
}

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Kind != TokEOF {
		p.pos++
	}
	p.prev = tok
	return tok
}

func (p *parser) posOf(tok Token) Pos {
	text := ""
	if tok.Line-1 < len(p.lines) && tok.Line > 0 {
		text = strings.TrimSpace(p.lines[tok.Line-1])
	}
	return Pos{Line: tok.Line, Text: text}
}

func (p *parser) errorf(tok Token, kind error, format string, args ...any) error {
	at := p.posOf(tok)
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...), Line: at.Line, Text: at.Text}
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(tok, ErrSyntax, "expected %s, found %s", kind, describe(tok))
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (Token, error) {
	tok, err := p.expect(TokIdent)
	if err != nil {
		return tok, err
	}
	if keywords[tok.Text] {
		return tok, p.errorf(tok, ErrSyntax, "unexpected keyword %q", tok.Text)
	}
	return tok, nil
}

func isKeyword(tok Token, kw string) bool { return tok.Kind == TokIdent && tok.Text == kw }

func describe(tok Token) string {
	switch tok.Kind {
	case TokEOF:
		return "end of input"
	case TokIdent, TokNumber, TokOperator:
		return fmt.Sprintf("%q", tok.Text)
	case TokString:
		return "string literal"
	}
	return tok.Kind.String()
}

func (p *parser) parseProgram(prog *Program) error {
	for p.peek().Kind != TokEOF {
		tok := p.peek()
		switch {
		case tok.Kind == TokSemicolon:
			p.advance()
		case isKeyword(tok, "struct") && p.peekAt(2).Kind == TokLBrace:
			sd, err := p.parseStructDecl()
			if err != nil {
				return err
			}
			prog.Structs[sd.Name] = sd
			prog.Decls = append(prog.Decls, sd)
		case tok.Kind == TokIdent && !keywords[tok.Text] && p.isFuncDef():
			fn, err := p.parseFunction()
			if err != nil {
				return err
			}
			prog.Funcs[fn.Name] = fn
			prog.Decls = append(prog.Decls, fn)
		case tok.Kind == TokRBrace:
			return p.errorf(tok, ErrSyntax, "unexpected '}'")
		default:
			st, err := p.parseStmt()
			if err != nil {
				return err
			}
			prog.Body = append(prog.Body, st)
			prog.Decls = append(prog.Decls, st)
		}
	}
	return nil
}

// isFuncDef reports whether the tokens at the cursor read `name(...) {`.
func (p *parser) isFuncDef() bool {
	if p.peekAt(1).Kind != TokOpenParen {
		return false
	}
	depth := 0
	for i := p.pos + 1; i < len(p.toks); i++ {
		switch p.toks[i].Kind {
		case TokOpenParen:
			depth++
		case TokCloseParen:
			depth--
			if depth == 0 {
				return i+1 < len(p.toks) && p.toks[i+1].Kind == TokLBrace
			}
		case TokEOF, TokSemicolon, TokLBrace, TokRBrace:
			return false
		}
	}
	return false
}

func (p *parser) parseStructDecl() (*StructDecl, error) {
	start := p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	sd := &StructDecl{Pos: p.posOf(start), Name: name.Text}
	for {
		tok := p.peek()
		switch {
		case tok.Kind == TokEOF:
			return nil, p.errorf(start, ErrUnclosedBlock, "unclosed struct %s", name.Text)
		case tok.Kind == TokRBrace:
			p.advance()
			if p.peek().Kind == TokSemicolon {
				p.advance()
			}
			return sd, nil
		case tok.Kind == TokSemicolon:
			p.advance()
		case isKeyword(tok, "auto"):
			p.advance()
			names, err := p.parseNameList()
			if err != nil {
				return nil, err
			}
			sd.Fields = append(sd.Fields, names...)
			if err := p.endStmt(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(tok, ErrSyntax, "expected field declaration in struct %s, found %s", name.Text, describe(tok))
		}
	}
}

func (p *parser) parseFunction() (*Function, error) {
	name := p.advance()
	fn := &Function{Pos: p.posOf(name), Name: name.Text}
	if _, err := p.expect(TokOpenParen); err != nil {
		return nil, err
	}
	if p.peek().Kind != TokCloseParen {
		params, err := p.parseNameList()
		if err != nil {
			return nil, err
		}
		fn.Params = params
	}
	if _, err := p.expect(TokCloseParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *parser) parseNameList() ([]string, error) {
	var names []string
	for {
		tok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Text)
		if p.peek().Kind != TokComma {
			return names, nil
		}
		p.advance()
	}
}

func (p *parser) parseBlock() ([]Stmt, error) {
	open, err := p.expect(TokLBrace)
	if err != nil {
		return nil, err
	}
	var body []Stmt
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokEOF:
			return nil, p.errorf(open, ErrUnclosedBlock, "unclosed block")
		case TokRBrace:
			p.advance()
			return body, nil
		case TokSemicolon:
			p.advance()
			continue
		}
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, st)
	}
}

// endStmt consumes a ';' or accepts a line break, '}' or end of input.
func (p *parser) endStmt() error {
	tok := p.peek()
	switch {
	case tok.Kind == TokSemicolon:
		p.advance()
		return nil
	case tok.Kind == TokRBrace || tok.Kind == TokEOF:
		return nil
	case tok.Line > p.prev.Line:
		return nil
	}
	return p.errorf(tok, ErrSyntax, "expected ';', found %s", describe(tok))
}

func (p *parser) parseStmt() (Stmt, error) {
	tok := p.peek()
	at := p.posOf(tok)
	if tok.Kind != TokIdent {
		return nil, p.errorf(tok, ErrSyntax, "unexpected %s", describe(tok))
	}
	switch tok.Text {
	case "return":
		p.advance()
		st := &ReturnStmt{Pos: at}
		next := p.peek()
		if next.Kind != TokSemicolon && next.Kind != TokRBrace && next.Kind != TokEOF && next.Line == tok.Line {
			e, err := p.parseExpr(at, false)
			if err != nil {
				return nil, err
			}
			st.Value = e
		}
		return st, p.endStmt()
	case "extrn":
		p.advance()
		names, err := p.parseNameList()
		if err != nil {
			return nil, err
		}
		return &ExternStmt{Pos: at, Names: names}, p.endStmt()
	case "struct":
		p.advance()
		layout, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind == TokLBrace {
			return nil, p.errorf(tok, ErrSyntax, "struct %s must be defined at top level", layout.Text)
		}
		names, err := p.parseNameList()
		if err != nil {
			return nil, err
		}
		return &StructVarStmt{Pos: at, Layout: layout.Text, Names: names}, p.endStmt()
	case "if":
		return p.parseIf()
	case "for":
		return p.parseFor()
	case "while":
		p.advance()
		cond, err := p.parseParenExpr(at)
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Pos: at, Cond: cond, Body: body}, nil
	case "else":
		return nil, p.errorf(tok, ErrSyntax, "else without if")
	}
	st, err := p.parseSimple()
	if err != nil {
		return nil, err
	}
	return st, p.endStmt()
}

func (p *parser) parseIf() (Stmt, error) {
	start := p.advance()
	st := &IfStmt{Pos: p.posOf(start)}
	cond, err := p.parseParenExpr(st.Pos)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	st.Branches = append(st.Branches, CondBranch{Pos: st.Pos, Cond: cond, Body: body})
	for isKeyword(p.peek(), "else") {
		elseTok := p.advance()
		if isKeyword(p.peek(), "if") {
			p.advance()
			at := p.posOf(elseTok)
			cond, err := p.parseParenExpr(at)
			if err != nil {
				return nil, err
			}
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			st.Branches = append(st.Branches, CondBranch{Pos: at, Cond: cond, Body: body})
			continue
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		st.Else, st.HasElse = body, true
		break
	}
	return st, nil
}

func (p *parser) parseFor() (Stmt, error) {
	start := p.advance()
	st := &ForStmt{Pos: p.posOf(start)}
	if _, err := p.expect(TokOpenParen); err != nil {
		return nil, err
	}
	if p.peek().Kind != TokSemicolon {
		init, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		st.Init = init
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	if p.peek().Kind != TokSemicolon {
		cond, err := p.parseExpr(st.Pos, false)
		if err != nil {
			return nil, err
		}
		st.Cond = cond
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	if p.peek().Kind != TokCloseParen {
		post, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		st.Post = post
	}
	if _, err := p.expect(TokCloseParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	st.Body = body
	return st, nil
}

// parseSimple parses an auto declaration, an assignment or a bare call.
func (p *parser) parseSimple() (Stmt, error) {
	tok := p.peek()
	at := p.posOf(tok)
	if isKeyword(tok, "auto") {
		return p.parseAuto()
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == TokOpenParen {
		args, err := p.parseArgs(at)
		if err != nil {
			return nil, err
		}
		return &CallStmt{Pos: at, Name: name.Text, Args: args}, nil
	}
	st := &AssignStmt{Pos: at, Name: name.Text}
	for {
		switch p.peek().Kind {
		case TokDot:
			p.advance()
			field, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			st.Path = append(st.Path, Selector{Field: field.Text})
			continue
		case TokOpenIndex:
			p.advance()
			idx, err := p.parseExpr(at, false)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokCloseIndex); err != nil {
				return nil, err
			}
			st.Path = append(st.Path, Selector{Index: idx})
			continue
		}
		break
	}
	if next := p.peek(); next.Kind != TokAssign {
		return nil, p.errorf(next, ErrSyntax, "expected '=' or '(' after %s, found %s", name.Text, describe(next))
	}
	p.advance()
	val, err := p.parseExpr(at, false)
	if err != nil {
		return nil, err
	}
	st.Value = val
	return st, nil
}

func (p *parser) parseAuto() (Stmt, error) {
	start := p.advance()
	st := &AutoStmt{Pos: p.posOf(start)}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		v := AutoVar{Name: name.Text}
		switch p.peek().Kind {
		case TokOpenIndex:
			p.advance()
			size, err := p.parseExpr(st.Pos, false)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokCloseIndex); err != nil {
				return nil, err
			}
			v.Size = size
		case TokAssign:
			p.advance()
			init, err := p.parseExpr(st.Pos, true)
			if err != nil {
				return nil, err
			}
			v.Init = init
		}
		st.Vars = append(st.Vars, v)
		if p.peek().Kind != TokComma {
			return st, nil
		}
		p.advance()
	}
}

func (p *parser) parseArgs(at Pos) ([]*Expr, error) {
	if _, err := p.expect(TokOpenParen); err != nil {
		return nil, err
	}
	var args []*Expr
	if p.peek().Kind == TokCloseParen {
		p.advance()
		return args, nil
	}
	for {
		e, err := p.parseExpr(at, true)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.peek().Kind != TokComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokCloseParen); err != nil {
		return nil, err
	}
	return args, nil
}

// parseParenExpr parses `( expr )`, allowing the expression to span lines.
func (p *parser) parseParenExpr(at Pos) (*Expr, error) {
	open, err := p.expect(TokOpenParen)
	if err != nil {
		return nil, err
	}
	var toks []Token
	depth := 1
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokEOF, TokLBrace, TokRBrace, TokSemicolon:
			return nil, p.errorf(open, ErrSyntax, "unclosed '(' in condition")
		case TokOpenParen:
			depth++
		case TokCloseParen:
			depth--
		}
		p.advance()
		if depth == 0 {
			break
		}
		toks = append(toks, tok)
	}
	return p.compile(at, toks)
}

// parseExpr collects the tokens of one expression. Collection stops at
// ';', braces, an unbalanced closing bracket, a top-level ',' when
// stopAtComma is set, or a line break after a complete operand.
func (p *parser) parseExpr(at Pos, stopAtComma bool) (*Expr, error) {
	var toks []Token
	depth := 0
loop:
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokEOF, TokSemicolon, TokLBrace, TokRBrace:
			break loop
		case TokOpenParen, TokOpenIndex:
			depth++
		case TokCloseParen, TokCloseIndex:
			if depth == 0 {
				break loop
			}
			depth--
		case TokComma:
			if depth == 0 && stopAtComma {
				break loop
			}
		}
		if depth == 0 && len(toks) > 0 {
			last := toks[len(toks)-1]
			if tok.Line > last.Line && !continuesLine(last) && tok.Kind != TokCloseParen && tok.Kind != TokCloseIndex {
				break
			}
		}
		toks = append(toks, p.advance())
	}
	if len(toks) == 0 {
		return nil, p.errorf(p.peek(), ErrSyntax, "expected expression, found %s", describe(p.peek()))
	}
	return p.compile(at, toks)
}

func continuesLine(tok Token) bool {
	switch tok.Kind {
	case TokOperator, TokComma, TokOpenParen, TokOpenIndex, TokDot, TokAssign:
		return true
	}
	return false
}

func (p *parser) compile(at Pos, toks []Token) (*Expr, error) {
	code, err := ParseExpr(toks)
	if err != nil {
		return nil, annotate(err, at)
	}
	return &Expr{Tokens: toks, Code: code}, nil
}

// interp/expr.go
package interp

// operator is one row of the binary operator table.
type operator struct {
	prec  int
	apply func(a, b int64) int64
}

var operators = map[string]operator{
	"||": {1, func(a, b int64) int64 { return boolInt(a != 0 || b != 0) }},
	"&&": {2, func(a, b int64) int64 { return boolInt(a != 0 && b != 0) }},
	"==": {3, func(a, b int64) int64 { return boolInt(a == b) }},
	"!=": {3, func(a, b int64) int64 { return boolInt(a != b) }},
	"<":  {4, func(a, b int64) int64 { return boolInt(a < b) }},
	"<=": {4, func(a, b int64) int64 { return boolInt(a <= b) }},
	">":  {4, func(a, b int64) int64 { return boolInt(a > b) }},
	">=": {4, func(a, b int64) int64 { return boolInt(a >= b) }},
	"+":  {5, func(a, b int64) int64 { return a + b }},
	"-":  {5, func(a, b int64) int64 { return a - b }},
	"*":  {6, func(a, b int64) int64 { return a * b }},
	"/":  {6, floorDiv},
	"%":  {6, floorMod},
}

// Prefix operators bind tighter than any binary operator.
const unaryPrec = 7

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// floorDiv rounds toward negative infinity; division by zero yields 0.
func floorDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// floorMod takes the sign of the divisor; modulo by zero yields 0.
func floorMod(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// OpCode selects what an RPN instruction does.
type OpCode int

const (
	OpPush   OpCode = iota // push Val
	OpLoad                 // push variable Name
	OpBinary               // pop b, a; push a Name b
	OpNeg                  // pop a; push -a
	OpNot                  // pop a; push !a
	OpIndex                // pop index, base; push base[index]
	OpField                // pop base; push base.Name
	OpCall                 // pop Argc values; push Name(args...)
)

// Instr is one postfix instruction.
type Instr struct {
	Op   OpCode
	Val  Value
	Name string
	Argc int
}

// RPN is a compiled expression in postfix order.
type RPN []Instr

// CompileExpr tokenizes and parses one expression.
func CompileExpr(text string) (RPN, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return ParseExpr(toks)
}

type stackOp struct {
	sym   string
	unary bool
}

// ParseExpr converts infix tokens to postfix with the shunting-yard
// algorithm. Subscripts, field selectors and call arguments are parsed
// recursively as independent expressions.
func ParseExpr(toks []Token) (RPN, error) {
	var (
		out   RPN
		stack []stackOp
	)
	expectOperand := true
	flush := func(limit int) {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.sym == "(" || precOf(top) < limit {
				return
			}
			out = append(out, opInstr(top))
			stack = stack[:len(stack)-1]
		}
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.Kind {
		case TokNumber, TokIdent, TokString:
			if !expectOperand {
				return nil, NewRuntimeError(ErrMalformedExpression, "missing operator before %q", tok.Text)
			}
			if tok.Kind == TokIdent && i+1 < len(toks) && toks[i+1].Kind == TokOpenParen {
				end, args, err := parseCallArgs(toks, i+1)
				if err != nil {
					return nil, err
				}
				for _, a := range args {
					out = append(out, a...)
				}
				out = append(out, Instr{Op: OpCall, Name: tok.Text, Argc: len(args)})
				i = end
			} else {
				out = append(out, operandInstr(tok))
			}
			next, err := parsePostfix(toks, i+1, &out)
			if err != nil {
				return nil, err
			}
			i = next - 1
			expectOperand = false

		case TokOperator:
			if expectOperand {
				switch tok.Text {
				case "-", "!":
					stack = append(stack, stackOp{sym: tok.Text, unary: true})
				case "+":
				default:
					return nil, NewRuntimeError(ErrMalformedExpression, "unexpected operator %q", tok.Text)
				}
				continue
			}
			op, ok := operators[tok.Text]
			if !ok {
				return nil, NewRuntimeError(ErrSyntax, "unknown operator %q", tok.Text)
			}
			flush(op.prec)
			stack = append(stack, stackOp{sym: tok.Text})
			expectOperand = true

		case TokOpenParen:
			if !expectOperand {
				return nil, NewRuntimeError(ErrMalformedExpression, "unexpected '('")
			}
			stack = append(stack, stackOp{sym: "("})

		case TokCloseParen:
			if expectOperand {
				return nil, NewRuntimeError(ErrMalformedExpression, "unexpected ')'")
			}
			flush(0)
			if len(stack) == 0 {
				return nil, NewRuntimeError(ErrMalformedExpression, "unbalanced ')'")
			}
			stack = stack[:len(stack)-1]
			next, err := parsePostfix(toks, i+1, &out)
			if err != nil {
				return nil, err
			}
			i = next - 1

		default:
			return nil, NewRuntimeError(ErrSyntax, "unexpected %s in expression", tok.Kind)
		}
	}
	if expectOperand && (len(out) > 0 || len(stack) > 0) {
		return nil, NewRuntimeError(ErrMalformedExpression, "expression ends with an operator")
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.sym == "(" {
			return nil, NewRuntimeError(ErrMalformedExpression, "unbalanced '('")
		}
		out = append(out, opInstr(top))
		stack = stack[:len(stack)-1]
	}
	return out, nil
}

// parsePostfix appends any chain of [index] and .field selectors starting
// at toks[i] and returns the position after the chain.
func parsePostfix(toks []Token, i int, out *RPN) (int, error) {
	for i < len(toks) {
		switch toks[i].Kind {
		case TokOpenIndex:
			end, err := matchIndex(toks, i)
			if err != nil {
				return 0, err
			}
			sub, err := ParseExpr(toks[i+1 : end])
			if err != nil {
				return 0, err
			}
			if len(sub) == 0 {
				return 0, NewRuntimeError(ErrMalformedExpression, "empty subscript")
			}
			*out = append(*out, sub...)
			*out = append(*out, Instr{Op: OpIndex, Name: "index"})
			i = end + 1
		case TokDot:
			if i+1 >= len(toks) || toks[i+1].Kind != TokIdent {
				return 0, NewRuntimeError(ErrSyntax, "expected field name after '.'")
			}
			*out = append(*out, Instr{Op: OpField, Name: toks[i+1].Text})
			i += 2
		default:
			return i, nil
		}
	}
	return i, nil
}

// matchIndex finds the ']' closing the '[' at toks[open].
func matchIndex(toks []Token, open int) (int, error) {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch toks[j].Kind {
		case TokOpenIndex:
			depth++
		case TokCloseIndex:
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, NewRuntimeError(ErrMalformedExpression, "unclosed '['")
}

// parseCallArgs parses the parenthesised argument list opening at toks[open]
// and returns the index of the closing ')'.
func parseCallArgs(toks []Token, open int) (int, []RPN, error) {
	end, groups, err := splitArgs(toks, open)
	if err != nil {
		return 0, nil, err
	}
	args := make([]RPN, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			return 0, nil, NewRuntimeError(ErrMalformedExpression, "empty call argument")
		}
		code, err := ParseExpr(g)
		if err != nil {
			return 0, nil, err
		}
		args = append(args, code)
	}
	return end, args, nil
}

// splitArgs splits the tokens inside a balanced (...) at top-level commas.
// An empty list yields no groups.
func splitArgs(toks []Token, open int) (int, [][]Token, error) {
	var (
		groups [][]Token
		cur    []Token
	)
	depth := 0
	for j := open; j < len(toks); j++ {
		tok := toks[j]
		switch tok.Kind {
		case TokOpenParen, TokOpenIndex:
			depth++
			if depth == 1 {
				continue
			}
		case TokCloseParen, TokCloseIndex:
			depth--
			if depth == 0 {
				if len(cur) > 0 || len(groups) > 0 {
					groups = append(groups, cur)
				}
				return j, groups, nil
			}
		case TokComma:
			if depth == 1 {
				groups = append(groups, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, tok)
	}
	return 0, nil, NewRuntimeError(ErrMalformedExpression, "unclosed '('")
}

func precOf(op stackOp) int {
	if op.unary {
		return unaryPrec
	}
	return operators[op.sym].prec
}

func opInstr(op stackOp) Instr {
	if op.unary {
		if op.sym == "!" {
			return Instr{Op: OpNot, Name: "!"}
		}
		return Instr{Op: OpNeg, Name: "-"}
	}
	return Instr{Op: OpBinary, Name: op.sym}
}

func operandInstr(tok Token) Instr {
	switch tok.Kind {
	case TokNumber:
		return Instr{Op: OpPush, Val: Int(tok.Num)}
	case TokString:
		return Instr{Op: OpPush, Val: NewString(tok.Text)}
	}
	return Instr{Op: OpLoad, Name: tok.Text}
}

// interp/eval.go
package interp

import "context"

// EvalExpr compiles and evaluates one expression in the root scope.
func (vm *Interpreter) EvalExpr(ctx context.Context, text string) (Value, error) {
	code, err := CompileExpr(text)
	if err != nil {
		return nil, err
	}
	return vm.Evaluate(ctx, code, vm.global)
}

// Evaluate runs postfix code against scope s and returns the single
// value left on the stack.
func (vm *Interpreter) Evaluate(ctx context.Context, code RPN, s Scope) (Value, error) {
	stack := make([]Value, 0, len(code))
	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	for _, in := range code {
		switch in.Op {
		case OpPush:
			if arr, ok := in.Val.(*Array); ok {
				// literals are fresh on every evaluation
				in.Val = &Array{Elems: append([]Value(nil), arr.Elems...)}
			}
			stack = append(stack, in.Val)

		case OpLoad:
			v, ok := vm.lookup(s, in.Name)
			if !ok {
				return nil, NewRuntimeError(ErrUnknownVariable, "unknown variable %q", in.Name)
			}
			stack = append(stack, v)

		case OpIndex:
			if len(stack) < 2 {
				return nil, NewRuntimeError(ErrMalformedExpression, "index needs a base and an index")
			}
			idx := pop()
			base := pop()
			v, err := indexValue(base, idx)
			if err != nil {
				return nil, err
			}
			stack = append(stack, v)

		case OpField:
			if len(stack) < 1 {
				return nil, NewRuntimeError(ErrMalformedExpression, "field access needs a value")
			}
			base := pop()
			st, ok := base.(*Struct)
			if !ok {
				return nil, NewRuntimeError(ErrNotAStruct, "cannot read field %q of %s", in.Name, typeName(base))
			}
			v, ok := st.Fields[in.Name]
			if !ok {
				return nil, NewRuntimeError(ErrNotAStruct, "struct %s has no field %q", st.Layout, in.Name)
			}
			stack = append(stack, v)

		case OpNeg, OpNot:
			if len(stack) < 1 {
				return nil, NewRuntimeError(ErrMalformedExpression, "operator %q needs an operand", in.Name)
			}
			a, err := intOperand(in.Name, pop())
			if err != nil {
				return nil, err
			}
			if in.Op == OpNeg {
				stack = append(stack, Int(-a))
			} else {
				stack = append(stack, Int(boolInt(a == 0)))
			}

		case OpBinary:
			if in.Name == "-" && len(stack) == 1 {
				a, err := intOperand("-", pop())
				if err != nil {
					return nil, err
				}
				stack = append(stack, Int(-a))
				continue
			}
			op, ok := operators[in.Name]
			if !ok {
				return nil, NewRuntimeError(ErrSyntax, "unknown operator %q", in.Name)
			}
			if len(stack) < 2 {
				return nil, NewRuntimeError(ErrMalformedExpression, "operator %q needs two operands", in.Name)
			}
			bv, av := pop(), pop()
			a, err := intOperand(in.Name, av)
			if err != nil {
				return nil, err
			}
			b, err := intOperand(in.Name, bv)
			if err != nil {
				return nil, err
			}
			stack = append(stack, Int(op.apply(a, b)))

		case OpCall:
			if len(stack) < in.Argc {
				return nil, NewRuntimeError(ErrMalformedExpression, "call %s needs %d arguments", in.Name, in.Argc)
			}
			args := append([]Value(nil), stack[len(stack)-in.Argc:]...)
			stack = stack[:len(stack)-in.Argc]
			v, err := vm.callExpr(ctx, in.Name, args, s)
			if err != nil {
				return nil, err
			}
			stack = append(stack, v)
		}
	}
	if len(stack) != 1 {
		return nil, NewRuntimeError(ErrMalformedExpression, "malformed expression: %d values left on stack", len(stack))
	}
	return stack[0], nil
}

func indexValue(base, idx Value) (Value, error) {
	arr, ok := base.(*Array)
	if !ok {
		return nil, NewRuntimeError(ErrNotIndexable, "cannot index %s", typeName(base))
	}
	i, ok := idx.(Int)
	if !ok {
		return nil, NewRuntimeError(ErrTypeMismatch, "index is %s, want int", typeName(idx))
	}
	if i < 0 || int64(i) >= int64(len(arr.Elems)) {
		return nil, NewRuntimeError(ErrIndexOutOfRange, "index %d out of range [0:%d)", i, len(arr.Elems))
	}
	return arr.Elems[i], nil
}

func intOperand(op string, v Value) (int64, error) {
	n, ok := v.(Int)
	if !ok {
		return 0, NewRuntimeError(ErrTypeMismatch, "operator %q needs int, got %s", op, typeName(v))
	}
	return int64(n), nil
}

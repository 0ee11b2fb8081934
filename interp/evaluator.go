// interp/evaluator.go
package interp

import (
	"context"
	"fmt"
	"log/slog"
)

// RunSource parses src and runs it.
func (vm *Interpreter) RunSource(ctx context.Context, src string) (Value, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return vm.Run(ctx, prog)
}

// Run loads the program's definitions and executes its top-level body in
// the root scope. A top-level return ends the run with its value. When the
// body is empty and main() is defined, main is called instead.
func (vm *Interpreter) Run(ctx context.Context, prog *Program) (Value, error) {
	vm.Load(prog)
	if len(prog.Body) == 0 {
		if fn, ok := vm.funcs["main"]; ok {
			return vm.callFunction(ctx, fn, nil, vm.global)
		}
	}
	return vm.Exec(ctx, prog)
}

// Exec loads definitions and executes only the top-level body. The REPL
// uses it so that defining main() does not run it.
func (vm *Interpreter) Exec(ctx context.Context, prog *Program) (Value, error) {
	vm.Load(prog)
	cf, err := vm.execBlock(ctx, prog.Body, vm.global)
	if err != nil {
		return nil, err
	}
	return cf.value(), nil
}

// ---------------- Statement evaluation ----------------------------

type controlKind int

const (
	controlNone controlKind = iota
	controlReturn
)

// controlFlow is the result of executing a block: it either ran to
// completion or hit a return, which unwinds to the nearest call site.
type controlFlow struct {
	kind controlKind
	val  Value
}

func (c controlFlow) value() Value {
	if c.val == nil {
		return Int(0)
	}
	return c.val
}

// execBlock runs stmts in s. The first statement to fail tags the error
// with its line; enclosing blocks pass it through untouched.
func (vm *Interpreter) execBlock(ctx context.Context, stmts []Stmt, s Scope) (controlFlow, error) {
	for _, st := range stmts {
		if vm.logger.Enabled(ctx, slog.LevelDebug) {
			at := st.Position()
			vm.logger.DebugContext(ctx, "exec", "line", at.Line, "stmt", stmtKind(st), "depth", vm.depth)
		}
		c, err := vm.execStmt(ctx, st, s)
		if err != nil {
			return controlFlow{}, annotate(err, st.Position())
		}
		if c.kind == controlReturn {
			return c, nil
		}
	}
	return controlFlow{}, nil
}

// execChild runs stmts in a fresh child scope of parent.
func (vm *Interpreter) execChild(ctx context.Context, stmts []Stmt, parent Scope) (controlFlow, error) {
	child := vm.pushScope(parent)
	defer vm.popScope(child)
	return vm.execBlock(ctx, stmts, child)
}

func (vm *Interpreter) execStmt(ctx context.Context, st Stmt, s Scope) (controlFlow, error) {
	switch st := st.(type) {
	case *ReturnStmt:
		if st.Value == nil {
			return controlFlow{kind: controlReturn, val: Int(0)}, nil
		}
		v, err := vm.eval(ctx, st.Value, s)
		if err != nil {
			return controlFlow{}, err
		}
		return controlFlow{kind: controlReturn, val: v}, nil

	case *ExternStmt:
		for _, name := range st.Names {
			if _, ok := vm.externs.Lookup(name); !ok {
				return controlFlow{}, NewRuntimeError(ErrUnknownExtern, "unknown extern %q", name)
			}
		}
		return controlFlow{}, nil

	case *AutoStmt:
		for _, av := range st.Vars {
			var v Value = Int(0)
			switch {
			case av.Size != nil:
				n, err := vm.eval(ctx, av.Size, s)
				if err != nil {
					return controlFlow{}, err
				}
				size, ok := n.(Int)
				if !ok || size < 0 {
					return controlFlow{}, NewRuntimeError(ErrTypeMismatch, "vector size of %s must be a non-negative int", av.Name)
				}
				v = NewArray(int(size))
			case av.Init != nil:
				init, err := vm.eval(ctx, av.Init, s)
				if err != nil {
					return controlFlow{}, err
				}
				v = init
			}
			vm.declare(s, av.Name, v)
		}
		return controlFlow{}, nil

	case *StructVarStmt:
		fields, ok := vm.structs[st.Layout]
		if !ok {
			return controlFlow{}, NewRuntimeError(ErrNotAStruct, "unknown struct %q", st.Layout)
		}
		for _, name := range st.Names {
			vm.declare(s, name, NewStruct(st.Layout, fields))
		}
		return controlFlow{}, nil

	case *IfStmt:
		for _, br := range st.Branches {
			ok, err := vm.cond(ctx, br.Cond, s)
			if err != nil {
				return controlFlow{}, annotate(err, br.Pos)
			}
			if ok {
				return vm.execChild(ctx, br.Body, s)
			}
		}
		if st.HasElse {
			return vm.execChild(ctx, st.Else, s)
		}
		return controlFlow{}, nil

	case *ForStmt:
		if st.Init != nil {
			if _, err := vm.execStmt(ctx, st.Init, s); err != nil {
				return controlFlow{}, err
			}
		}
		for {
			if err := ctx.Err(); err != nil {
				return controlFlow{}, canceled(err)
			}
			if st.Cond != nil {
				ok, err := vm.cond(ctx, st.Cond, s)
				if err != nil {
					return controlFlow{}, err
				}
				if !ok {
					return controlFlow{}, nil
				}
			}
			c, err := vm.execChild(ctx, st.Body, s)
			if err != nil || c.kind == controlReturn {
				return c, err
			}
			if st.Post != nil {
				if _, err := vm.execStmt(ctx, st.Post, s); err != nil {
					return controlFlow{}, err
				}
			}
		}

	case *WhileStmt:
		for {
			if err := ctx.Err(); err != nil {
				return controlFlow{}, canceled(err)
			}
			ok, err := vm.cond(ctx, st.Cond, s)
			if err != nil {
				return controlFlow{}, err
			}
			if !ok {
				return controlFlow{}, nil
			}
			c, err := vm.execChild(ctx, st.Body, s)
			if err != nil || c.kind == controlReturn {
				return c, err
			}
		}

	case *AssignStmt:
		v, err := vm.eval(ctx, st.Value, s)
		if err != nil {
			return controlFlow{}, err
		}
		if len(st.Path) == 0 {
			vm.assign(s, st.Name, v)
			return controlFlow{}, nil
		}
		return controlFlow{}, vm.store(ctx, st, v, s)

	case *CallStmt:
		args, err := vm.evalArgs(ctx, st.Args, s)
		if err != nil {
			return controlFlow{}, err
		}
		if ext, ok := vm.externs.Lookup(st.Name); ok {
			_, err := callExtern(st.Name, ext, args)
			return controlFlow{}, err
		}
		if fn, ok := vm.funcs[st.Name]; ok {
			_, err := vm.callFunction(ctx, fn, args, s)
			return controlFlow{}, err
		}
		return controlFlow{}, NewRuntimeError(ErrUnknownFunction, "unknown function %q", st.Name)

	default:
		return controlFlow{}, NewRuntimeError(ErrSyntax, "unsupported statement %T", st)
	}
}

// store writes v through a field/index path. The aggregate is found with
// the ordinary read walk and mutated in place; no binding is created.
func (vm *Interpreter) store(ctx context.Context, st *AssignStmt, v Value, s Scope) error {
	cur, ok := vm.lookup(s, st.Name)
	if !ok {
		if st.Path[0].Index == nil {
			return NewRuntimeError(ErrNotAStruct, "%s is not a struct instance", st.Name)
		}
		return NewRuntimeError(ErrUnknownVariable, "unknown variable %q", st.Name)
	}
	for i, sel := range st.Path {
		last := i == len(st.Path)-1
		if sel.Index == nil {
			obj, ok := cur.(*Struct)
			if !ok {
				return NewRuntimeError(ErrNotAStruct, "%s is not a struct instance", describePath(st.Name, st.Path[:i]))
			}
			if last {
				obj.Fields[sel.Field] = v
				return nil
			}
			next, ok := obj.Fields[sel.Field]
			if !ok {
				return NewRuntimeError(ErrNotAStruct, "struct %s has no field %q", obj.Layout, sel.Field)
			}
			cur = next
			continue
		}
		idx, err := vm.eval(ctx, sel.Index, s)
		if err != nil {
			return err
		}
		if last {
			arr, ok := cur.(*Array)
			if !ok {
				return NewRuntimeError(ErrNotIndexable, "cannot index %s", typeName(cur))
			}
			if _, err := indexValue(arr, idx); err != nil {
				return err
			}
			arr.Elems[idx.(Int)] = v
			return nil
		}
		if cur, err = indexValue(cur, idx); err != nil {
			return err
		}
	}
	return nil
}

func describePath(name string, path []Selector) string {
	out := name
	for _, p := range path {
		if p.Index != nil {
			out += "[...]"
		} else {
			out += "." + p.Field
		}
	}
	return out
}

func (vm *Interpreter) eval(ctx context.Context, e *Expr, s Scope) (Value, error) {
	return vm.Evaluate(ctx, e.Code, s)
}

func (vm *Interpreter) cond(ctx context.Context, e *Expr, s Scope) (bool, error) {
	v, err := vm.eval(ctx, e, s)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func (vm *Interpreter) evalArgs(ctx context.Context, args []*Expr, s Scope) ([]Value, error) {
	out := make([]Value, 0, len(args))
	for _, a := range args {
		v, err := vm.eval(ctx, a, s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// callExpr resolves a call inside an expression: user functions first,
// then externs.
func (vm *Interpreter) callExpr(ctx context.Context, name string, args []Value, s Scope) (Value, error) {
	if fn, ok := vm.funcs[name]; ok {
		return vm.callFunction(ctx, fn, args, s)
	}
	if ext, ok := vm.externs.Lookup(name); ok {
		return callExtern(name, ext, args)
	}
	return nil, NewRuntimeError(ErrUnknownFunction, "unknown function %q", name)
}

// callFunction binds params positionally in a child of the caller's scope
// (extra or missing arguments are dropped) and runs the body. A return
// stops here; falling off the end yields 0.
func (vm *Interpreter) callFunction(ctx context.Context, fn *Function, args []Value, caller Scope) (Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	if vm.depth >= vm.maxDepth {
		return nil, NewRuntimeError(ErrRecursionLimit, "call depth exceeds %d in %s", vm.maxDepth, fn.Name)
	}
	vm.depth++
	defer func() { vm.depth-- }()
	vm.logger.DebugContext(ctx, "call", "func", fn.Name, "argc", len(args), "depth", vm.depth)

	frame := vm.pushScope(caller)
	defer vm.popScope(frame)
	for i, p := range fn.Params {
		if i >= len(args) {
			break
		}
		vm.declare(frame, p, args[i])
	}
	c, err := vm.execBlock(ctx, fn.Body, frame)
	if err != nil {
		return nil, err
	}
	return c.value(), nil
}

func callExtern(name string, ext Extern, args []Value) (Value, error) {
	v, err := ext(args)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return Int(0), nil
	}
	return v, nil
}

func canceled(err error) error {
	return &RuntimeError{Kind: ErrCanceled, Msg: fmt.Sprintf("execution canceled: %v", err), Cause: err}
}

func stmtKind(st Stmt) string {
	switch st.(type) {
	case *ReturnStmt:
		return "return"
	case *ExternStmt:
		return "extrn"
	case *AutoStmt:
		return "auto"
	case *StructVarStmt:
		return "struct"
	case *IfStmt:
		return "if"
	case *ForStmt:
		return "for"
	case *WhileStmt:
		return "while"
	case *AssignStmt:
		return "assign"
	case *CallStmt:
		return "call"
	}
	return fmt.Sprintf("%T", st)
}

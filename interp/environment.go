// interp/environment.go
package interp

import (
	"log/slog"
	"maps"
)

// Scope identifies an environment record in the interpreter's arena.
type Scope int32

const noScope Scope = -1

// env is one lexical frame. Variables live only here; reads fall back to
// the parent chain, writes never do.
type env struct {
	vars   map[string]Value
	parent Scope
}

// DefaultMaxDepth bounds nested function calls.
const DefaultMaxDepth = 10000

// Interpreter holds the program tables (functions, struct layouts, externs)
// and the scope arena. Scopes are strictly nested, so the arena is used as
// a stack: a child is always the last record and is dropped on exit.
type Interpreter struct {
	scopes  []env
	global  Scope
	funcs   map[string]*Function
	structs map[string][]string
	externs *Externs

	depth    int
	maxDepth int
	logger   *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithExterns installs the native routine table. The table is shared, not copied.
func WithExterns(x *Externs) Option { return func(vm *Interpreter) { vm.externs = x } }

// WithLogger sets the trace logger. Statements and calls are logged at debug level.
func WithLogger(l *slog.Logger) Option { return func(vm *Interpreter) { vm.logger = l } }

// WithMaxDepth limits function call nesting.
func WithMaxDepth(n int) Option { return func(vm *Interpreter) { vm.maxDepth = n } }

func NewInterpreter(opts ...Option) *Interpreter {
	vm := &Interpreter{
		funcs:    map[string]*Function{},
		structs:  map[string][]string{},
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(vm)
	}
	if vm.externs == nil {
		vm.externs = NewExterns()
	}
	vm.global = vm.pushScope(noScope)
	return vm
}

// SetArgv binds argv in the root scope as an array of strings.
func (vm *Interpreter) SetArgv(args []string) {
	argv := &Array{Elems: make([]Value, len(args))}
	for i, a := range args {
		argv.Elems[i] = NewString(a)
	}
	vm.declare(vm.global, "argv", argv)
}

// Globals returns a copy of the root scope's bindings.
func (vm *Interpreter) Globals() map[string]Value {
	return maps.Clone(vm.scopes[vm.global].vars)
}

// Externs returns the installed native routine table.
func (vm *Interpreter) Externs() *Externs { return vm.externs }

// Load merges a program's function and struct definitions into the
// interpreter's tables. Later definitions replace earlier ones.
func (vm *Interpreter) Load(prog *Program) {
	for name, fn := range prog.Funcs {
		vm.funcs[name] = fn
	}
	for name, sd := range prog.Structs {
		vm.structs[name] = sd.Fields
	}
}

func (vm *Interpreter) pushScope(parent Scope) Scope {
	vm.scopes = append(vm.scopes, env{vars: map[string]Value{}, parent: parent})
	return Scope(len(vm.scopes) - 1)
}

// popScope discards s and anything opened after it.
func (vm *Interpreter) popScope(s Scope) {
	clear(vm.scopes[s:])
	vm.scopes = vm.scopes[:s]
}

func (vm *Interpreter) lookup(s Scope, name string) (Value, bool) {
	for e := s; e != noScope; e = vm.scopes[e].parent {
		if v, ok := vm.scopes[e].vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// assign always binds in s itself, shadowing any outer binding.
func (vm *Interpreter) assign(s Scope, name string, v Value) { vm.scopes[s].vars[name] = v }

func (vm *Interpreter) declare(s Scope, name string, v Value) { vm.scopes[s].vars[name] = v }

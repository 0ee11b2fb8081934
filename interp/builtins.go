// interp/builtins.go
package interp

import "sort"

// Extern is a native routine callable by name from interpreted code.
// A nil result is treated as 0.
type Extern func(args []Value) (Value, error)

// Externs is the name -> routine table. Build it once at startup and hand
// the same pointer to every interpreter.
type Externs struct {
	table map[string]Extern
}

func NewExterns() *Externs { return &Externs{table: map[string]Extern{}} }

// Register adds or replaces a routine. It returns x for chaining.
func (x *Externs) Register(name string, fn Extern) *Externs {
	x.table[name] = fn
	return x
}

func (x *Externs) Lookup(name string) (Extern, bool) {
	if x == nil {
		return nil, false
	}
	fn, ok := x.table[name]
	return fn, ok
}

// Names lists the registered routines in sorted order.
func (x *Externs) Names() []string {
	if x == nil {
		return nil
	}
	names := make([]string, 0, len(x.table))
	for n := range x.table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ArgInt returns args[i] as an integer.
func ArgInt(name string, args []Value, i int) (int64, error) {
	if i >= len(args) {
		return 0, NewRuntimeError(ErrExtern, "%s: missing argument %d", name, i+1)
	}
	n, ok := args[i].(Int)
	if !ok {
		return 0, NewRuntimeError(ErrTypeMismatch, "%s: argument %d is %s, want int", name, i+1, typeName(args[i]))
	}
	return int64(n), nil
}

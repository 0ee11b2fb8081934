// interp/types.go
package interp

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Error kinds. Every *RuntimeError unwraps to exactly one of these.
var (
	ErrSyntax              = errors.New("syntax error")
	ErrUnknownVariable     = errors.New("unknown variable")
	ErrUnknownFunction     = errors.New("unknown function")
	ErrUnknownExtern       = errors.New("unknown extern")
	ErrNotIndexable        = errors.New("not indexable")
	ErrNotAStruct          = errors.New("not a struct")
	ErrMalformedExpression = errors.New("malformed expression")
	ErrUnclosedBlock       = errors.New("unclosed block")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrRecursionLimit      = errors.New("recursion limit exceeded")
	ErrCanceled            = errors.New("execution canceled")
	ErrExtern              = errors.New("extern failed")
)

// RuntimeError is the error type for every lexing, parsing and execution
// fault. Line and Text are filled in by the first statement that sees it.
type RuntimeError struct {
	Kind  error
	Msg   string
	Line  int
	Text  string
	Cause error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Text, e.Msg)
	}
	return e.Msg
}

func (e *RuntimeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// NewRuntimeError builds an unannotated error of the given kind.
func NewRuntimeError(kind error, format string, args ...any) error {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// annotate tags err with a source position unless something deeper already did.
func annotate(err error, at Pos) error {
	var re *RuntimeError
	if !errors.As(err, &re) {
		re = &RuntimeError{Kind: ErrExtern, Msg: err.Error(), Cause: err}
		err = re
	}
	if re.Line == 0 {
		re.Line, re.Text = at.Line, at.Text
	}
	return err
}

// Value is a runtime value: Int, *Array or *Struct.
type Value interface {
	value()
}

// Int is the single scalar type.
type Int int64

// Array is an ordered, indexable aggregate (vectors, strings, argv).
type Array struct {
	Elems []Value
}

// Struct is a field-mapping aggregate created from a struct layout.
type Struct struct {
	Layout string
	Fields map[string]Value
}

func (Int) value()     {}
func (*Array) value()  {}
func (*Struct) value() {}

// NewArray returns an array of n zeros.
func NewArray(n int) *Array {
	a := &Array{Elems: make([]Value, n)}
	for i := range a.Elems {
		a.Elems[i] = Int(0)
	}
	return a
}

// NewString encodes s as an array of byte codes.
func NewString(s string) *Array {
	a := &Array{Elems: make([]Value, len(s))}
	for i := 0; i < len(s); i++ {
		a.Elems[i] = Int(s[i])
	}
	return a
}

// NewStruct instantiates a layout with every field set to 0.
func NewStruct(layout string, fields []string) *Struct {
	s := &Struct{Layout: layout, Fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		s.Fields[f] = Int(0)
	}
	return s
}

// Truthy reports C-style truth: nonzero integers and any aggregate.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case Int:
		return x != 0
	case nil:
		return false
	}
	return true
}

// ToText renders a value for the string-printing externs: arrays are decoded
// as byte strings, everything else is formatted.
func ToText(v Value) string {
	arr, ok := v.(*Array)
	if !ok {
		return FormatValue(v)
	}
	var b strings.Builder
	for _, e := range arr.Elems {
		if n, ok := e.(Int); ok {
			b.WriteRune(rune(n))
		}
	}
	return b.String()
}

// FormatValue renders a value the way the REPL echoes it.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case *Array:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *Struct:
		names := make([]string, 0, len(x.Fields))
		for k := range x.Fields {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, k := range names {
			parts[i] = k + ": " + FormatValue(x.Fields[k])
		}
		return x.Layout + "{" + strings.Join(parts, ", ") + "}"
	case nil:
		return "0"
	}
	return fmt.Sprintf("%v", v)
}

func typeName(v Value) string {
	switch x := v.(type) {
	case Int:
		return "int"
	case *Array:
		return "array"
	case *Struct:
		return "struct " + x.Layout
	}
	return fmt.Sprintf("%T", v)
}

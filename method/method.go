// Package method resolves methods and functions through reflection so they can be invoked
// without a compile-time reference to their names.
package method

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotFound indicates no method or function has the requested name.
	ErrNotFound = errors.New("not found")
	// ErrSignature indicates the name resolved but its type is not the requested signature.
	ErrSignature = errors.New("signature mismatch")
)

// Table maps names to function values. Go cannot look up package level functions by name,
// so static operations are published through a Table.
type Table map[string]any

// Method is a method on a value that matched a signature.
type Method struct {
	Name string
	// Value is the method bound to the value it was found on.
	Value reflect.Value
}

// MatchesSignature returns all methods on obj whose bound type is assignable to sig.
// sig must be reflect.Kind == reflect.Func. obj can be an object or an interface.
// Only exported methods are returned, in lexicographic order.
//
// Example:
//
//	type sig func() float64
//
//	for _, m := range MatchesSignature(reflect.ValueOf(subject), reflect.ValueOf(sig(nil))) {
//		fmt.Println(m.Name, Call(m.Value)[0].Float())
//	}
func MatchesSignature(obj reflect.Value, sig reflect.Value) []Method {
	if sig.Kind() != reflect.Func {
		panic(fmt.Sprintf("MatchesSignature(): sig must be kind == Func, not %s", sig.Kind()))
	}

	var out []Method
	t := obj.Type()
	for i := 0; i < obj.NumMethod(); i++ {
		if obj.Method(i).Type().AssignableTo(sig.Type()) {
			out = append(out, Method{Name: t.Method(i).Name, Value: obj.Method(i)})
		}
	}
	return out
}

// ByName finds the exported method name on typ and returns it in unbound form: the
// receiver is the first argument. The unbound type must be identical to sig.
func ByName(typ reflect.Type, name string, sig reflect.Type) (reflect.Value, error) {
	m, ok := typ.MethodByName(name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("method %s.%s: %w", typ, name, ErrNotFound)
	}
	if m.Type != sig {
		return reflect.Value{}, fmt.Errorf("method %s.%s has type %s, want %s: %w", typ, name, m.Type, sig, ErrSignature)
	}
	return m.Func, nil
}

// Func finds name in t. The function's type must be identical to sig.
func Func(t Table, name string, sig reflect.Type) (reflect.Value, error) {
	fn, ok := t[name]
	if !ok || fn == nil {
		return reflect.Value{}, fmt.Errorf("func %s: %w", name, ErrNotFound)
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("func %s is a %s, want %s: %w", name, v.Kind(), sig, ErrSignature)
	}
	if v.Type() != sig {
		return reflect.Value{}, fmt.Errorf("func %s has type %s, want %s: %w", name, v.Type(), sig, ErrSignature)
	}
	return v, nil
}

// Call invokes fn with args. Each argument is wrapped in a reflect.Value on every call.
// Call panics if fn is not a function or the arguments do not fit its signature.
func Call(fn reflect.Value, args ...any) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	return fn.Call(in)
}

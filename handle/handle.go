/*
Package handle provides resolved, directly invocable function handles.

A Handle is resolved once, usually from a reflect.Value found by the method package, and can
then be invoked two ways:

  - Invoke is the generic convention. Arguments and the result travel as `any`, and the handle
    adapts them to the target's real signature on every call, failing with an Error when the
    arity or argument types do not fit.
  - Invoke0 and Invoke1 are the exact convention. The caller states the full signature as type
    parameters; it must be identical to the handle's resolved signature. Nothing is boxed.

BindTo attaches a receiver (or any leading argument) to a handle, producing a handle that takes
one argument fewer.

Example:

	fn, err := method.ByName(reflect.TypeOf(&T{}), "Get", reflect.TypeOf(func(*T) int { return 0 }))
	if err != nil {
		panic(err)
	}
	h, err := handle.Unreflect[*T, int]("T.Get", fn)
	if err != nil {
		panic(err)
	}

	v, err := h.Invoke(t)                  // generic: v is an `any` holding an int
	n, err := handle.Invoke1[*T, int](h, t) // exact

	bound, err := h.BindTo(t)
	n, err = handle.Invoke0[int](bound)
*/
package handle

import (
	"fmt"
	"reflect"
)

// ErrType is the type of error that is being returned.
type ErrType uint8

const (
	ETUnknown ErrType = iota
	// ETNotFunc indicates a handle was requested for something that is not a function.
	ETNotFunc
	// ETSignature indicates the caller's signature is not the handle's signature.
	ETSignature
	// ETArity indicates Invoke received the wrong number of arguments.
	ETArity
	// ETArgument indicates Invoke received an argument of the wrong type.
	ETArgument
	// ETBind indicates BindTo could not attach the receiver.
	ETBind
)

func (e ErrType) String() string {
	switch e {
	case ETNotFunc:
		return "ETNotFunc"
	case ETSignature:
		return "ETSignature"
	case ETArity:
		return "ETArity"
	case ETArgument:
		return "ETArgument"
	case ETBind:
		return "ETBind"
	}
	return "ETUnknown"
}

// Error provides errors for this package.
type Error struct {
	// Type is the type of error.
	Type ErrType
	// Message is the errors message.
	Message string

	wrapped error
}

func (e Error) Unwrap() error {
	return e.wrapped
}

func (e Error) Wrap(err error) Error {
	e.wrapped = err
	return e
}

func (e Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func errorf(t ErrType, s string, i ...any) Error {
	return Error{Type: t, Message: fmt.Sprintf(s, i...)}
}

// Handle is a resolved function. The zero value is not usable.
// Handles are immutable and safe for concurrent use.
type Handle struct {
	name string
	typ  reflect.Type
	fn   any

	invoke func(args []any) (any, error)
	bind   func(recv any) (Handle, error)
}

// Of0 makes a Handle for a function without parameters.
func Of0[R any](name string, fn func() R) Handle {
	h := Handle{name: name, typ: reflect.TypeOf(fn), fn: fn}
	h.invoke = func(args []any) (any, error) {
		if len(args) != 0 {
			return nil, errorf(ETArity, "%s: got %d arguments, want 0", name, len(args))
		}
		return fn(), nil
	}
	h.bind = func(any) (Handle, error) {
		return Handle{}, errorf(ETBind, "%s: no parameter to bind", name)
	}
	return h
}

// Of1 makes a Handle for a function with a single parameter.
func Of1[A, R any](name string, fn func(A) R) Handle {
	h := Handle{name: name, typ: reflect.TypeOf(fn), fn: fn}
	h.invoke = func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, errorf(ETArity, "%s: got %d arguments, want 1", name, len(args))
		}
		a, ok := args[0].(A)
		if !ok {
			return nil, errorf(ETArgument, "%s: argument 0 is %T, want %s", name, args[0], h.typ.In(0))
		}
		return fn(a), nil
	}
	h.bind = func(recv any) (Handle, error) {
		a, ok := recv.(A)
		if !ok {
			return Handle{}, errorf(ETBind, "%s: cannot bind %T to parameter of type %s", name, recv, h.typ.In(0))
		}
		return Of0(name, func() R { return fn(a) }), nil
	}
	return h
}

// Unreflect makes a Handle from v, which must be a function of type func(A) R.
// v is usually the Func of a reflect.Method, making the receiver the argument.
func Unreflect[A, R any](name string, v reflect.Value) (Handle, error) {
	if !v.IsValid() || v.Kind() != reflect.Func {
		return Handle{}, errorf(ETNotFunc, "%s: cannot make a handle from %v", name, v.Kind())
	}
	fn, ok := v.Interface().(func(A) R)
	if !ok {
		var want func(A) R
		return Handle{}, errorf(ETSignature, "%s: has type %s, want %T", name, v.Type(), want)
	}
	return Of1(name, fn), nil
}

// Name returns the name the handle was resolved under.
func (h Handle) Name() string {
	return h.name
}

// Type returns the handle's resolved signature.
func (h Handle) Type() reflect.Type {
	return h.typ
}

// Invoke calls the handle with args, adapting them to its signature. The result is boxed.
func (h Handle) Invoke(args ...any) (any, error) {
	if h.invoke == nil {
		return nil, errorf(ETNotFunc, "invoke on an unresolved handle")
	}
	return h.invoke(args)
}

// BindTo returns a handle with recv attached as the first argument.
func (h Handle) BindTo(recv any) (Handle, error) {
	if h.bind == nil {
		return Handle{}, errorf(ETNotFunc, "bind on an unresolved handle")
	}
	return h.bind(recv)
}

// Exact returns the handle's function as type F. F must be exactly the resolved signature.
func Exact[F any](h Handle) (F, error) {
	fn, ok := h.fn.(F)
	if !ok {
		var want F
		return want, errorf(ETSignature, "%s: has type %v, want %T", h.name, h.typ, want)
	}
	return fn, nil
}

// Invoke0 calls h, which must be a func() R, without boxing.
func Invoke0[R any](h Handle) (R, error) {
	fn, ok := h.fn.(func() R)
	if !ok {
		var zero R
		return zero, errorf(ETSignature, "%s: has type %v, want func() %T", h.name, h.typ, zero)
	}
	return fn(), nil
}

// Invoke1 calls h, which must be a func(A) R, without boxing.
func Invoke1[A, R any](h Handle, a A) (R, error) {
	fn, ok := h.fn.(func(A) R)
	if !ok {
		var zero R
		var want func(A) R
		return zero, errorf(ETSignature, "%s: has type %v, want %T", h.name, h.typ, want)
	}
	return fn(a), nil
}

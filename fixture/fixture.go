// Package fixture holds the per-trial state that every invocation strategy is measured against.
//
// A Fixture owns a Subject with two random operands and the call artifacts each strategy uses
// to reach the Subject's two operations: Difference (an instance method) and Sum (a static
// function). All artifacts are resolved eagerly by Setup so that resolution is never charged
// to a timed call.
package fixture

import (
	"fmt"
	"math/rand/v2"
	"reflect"

	"github.com/johnsiilver/dispatchcost/handle"
	"github.com/johnsiilver/dispatchcost/method"
)

const (
	// DifferenceName is the name the instance operation is resolved under.
	DifferenceName = "Difference"
	// SumName is the name the static operation is resolved under.
	SumName = "Sum"
)

// Subject is the object every strategy invokes.
type Subject struct {
	I int32
	D float64
}

// Difference is the instance operation.
func (s *Subject) Difference() float64 {
	return float64(s.I) - s.D
}

// Sum is the static operation.
func Sum(s *Subject) float64 {
	return float64(s.I) + s.D
}

// Symbols returns the table static operations are resolved from.
func Symbols() method.Table {
	return method.Table{SumName: Sum}
}

var (
	unarySig = reflect.TypeOf(func(*Subject) float64 { return 0 })
	subjectT = reflect.TypeOf(&Subject{})
)

// Fixture is the state for one trial. It must not be modified after Setup or New returns,
// and is owned by a single fork.
type Fixture struct {
	Subject *Subject

	// Method is Subject.Difference in unbound form, receiver first.
	Method reflect.Value
	// StaticMethod is Sum.
	StaticMethod reflect.Value

	// Handle and StaticHandle take the *Subject as their only argument.
	Handle       handle.Handle
	StaticHandle handle.Handle

	// BoundHandle and StaticBoundHandle have Subject attached and take no arguments.
	BoundHandle       handle.Handle
	StaticBoundHandle handle.Handle
}

// Setup builds a Fixture with operands drawn from r. If r is nil, a fresh source seeded from
// the runtime's random source is used. I covers the full int32 range, D is in [0, 1).
func Setup(r *rand.Rand) (*Fixture, error) {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return New(int32(r.Uint32()), r.Float64())
}

// New builds a Fixture with the given operands. An error means an operation could not be
// resolved, which is a configuration error.
func New(i int32, d float64) (*Fixture, error) {
	f := &Fixture{Subject: &Subject{I: i, D: d}}

	var err error
	f.Method, err = method.ByName(subjectT, DifferenceName, unarySig)
	if err != nil {
		return nil, fmt.Errorf("fixture: resolving instance operation: %w", err)
	}
	f.StaticMethod, err = method.Func(Symbols(), SumName, unarySig)
	if err != nil {
		return nil, fmt.Errorf("fixture: resolving static operation: %w", err)
	}

	if f.Handle, f.BoundHandle, err = handles(DifferenceName, f.Method, f.Subject); err != nil {
		return nil, err
	}
	if f.StaticHandle, f.StaticBoundHandle, err = handles(SumName, f.StaticMethod, f.Subject); err != nil {
		return nil, err
	}
	return f, nil
}

// handles unreflects fn and binds it to s, checking both results against the exact signatures
// the strategies invoke them with.
func handles(name string, fn reflect.Value, s *Subject) (unbound, bound handle.Handle, err error) {
	unbound, err = handle.Unreflect[*Subject, float64](name, fn)
	if err != nil {
		return handle.Handle{}, handle.Handle{}, fmt.Errorf("fixture: %w", err)
	}
	bound, err = unbound.BindTo(s)
	if err != nil {
		return handle.Handle{}, handle.Handle{}, fmt.Errorf("fixture: %w", err)
	}

	if _, err := handle.Exact[func(*Subject) float64](unbound); err != nil {
		return handle.Handle{}, handle.Handle{}, fmt.Errorf("fixture: %w", err)
	}
	if _, err := handle.Exact[func() float64](bound); err != nil {
		return handle.Handle{}, handle.Handle{}, fmt.Errorf("fixture: %w", err)
	}
	return unbound, bound, nil
}

// Shared holds handles resolved once per process and used by every fork.
// Resolve it at startup with ResolveShared and pass it to whoever needs it.
type Shared struct {
	Difference handle.Handle
	Sum        handle.Handle
}

// ResolveShared resolves the process wide handles.
func ResolveShared() (Shared, error) {
	m, err := method.ByName(subjectT, DifferenceName, unarySig)
	if err != nil {
		return Shared{}, fmt.Errorf("fixture: resolving shared instance operation: %w", err)
	}
	fn, err := method.Func(Symbols(), SumName, unarySig)
	if err != nil {
		return Shared{}, fmt.Errorf("fixture: resolving shared static operation: %w", err)
	}

	var s Shared
	if s.Difference, err = handle.Unreflect[*Subject, float64](DifferenceName, m); err != nil {
		return Shared{}, fmt.Errorf("fixture: %w", err)
	}
	if s.Sum, err = handle.Unreflect[*Subject, float64](SumName, fn); err != nil {
		return Shared{}, fmt.Errorf("fixture: %w", err)
	}
	return s, nil
}

// Want returns the value the instance and static operations produce for f.
func (f *Fixture) Want() (instance, static float64) {
	return f.Subject.Difference(), Sum(f.Subject)
}

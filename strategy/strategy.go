// Package strategy defines the fixed set of invocation mechanisms being compared.
//
// Every Strategy reaches one of the two fixture operations through a different call path.
// Strategies in the Instance family compute Subject.Difference, strategies in the Static
// family compute fixture.Sum, so results can be checked against each other as well as timed.
package strategy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/johnsiilver/dispatchcost/fixture"
	"github.com/johnsiilver/dispatchcost/handle"
	"github.com/johnsiilver/dispatchcost/method"
)

// Family groups strategies by the operation they reach.
type Family uint8

const (
	// Instance strategies call Subject.Difference.
	Instance Family = iota
	// Static strategies call fixture.Sum.
	Static
)

func (f Family) String() string {
	switch f {
	case Instance:
		return "instance"
	case Static:
		return "static"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// Mechanism is the call path a strategy uses.
type Mechanism uint8

const (
	// Baseline is a direct call.
	Baseline Mechanism = iota
	// Reflect calls through reflect.Value.Call and unboxes the result.
	Reflect
	// Handle uses the generic handle convention: boxed arguments and result.
	Handle
	// HandleExact uses the exact handle convention.
	HandleExact
	// SharedHandleExact is HandleExact through handles resolved once per process.
	SharedHandleExact
	// BoundHandle is Handle with the receiver already attached.
	BoundHandle
	// BoundHandleExact is HandleExact with the receiver already attached.
	BoundHandleExact
)

var mechanismNames = [...]string{
	Baseline:          "Baseline",
	Reflect:           "Reflect",
	Handle:            "Handle",
	HandleExact:       "HandleExact",
	SharedHandleExact: "SharedHandleExact",
	BoundHandle:       "BoundHandle",
	BoundHandleExact:  "BoundHandleExact",
}

func (m Mechanism) String() string {
	if int(m) < len(mechanismNames) {
		return mechanismNames[m]
	}
	return fmt.Sprintf("Mechanism(%d)", uint8(m))
}

// Strategy is one named way of invoking a fixture operation.
type Strategy struct {
	Name      string
	Family    Family
	Mechanism Mechanism
	// Call computes the family's operation on f. It only reads f. A failed dynamic
	// invocation panics.
	Call func(f *fixture.Fixture) float64
}

// Set is an ordered collection of strategies.
type Set []Strategy

// NewSet returns all strategies, instance family first. shared supplies the handles used by
// the SharedHandleExact strategies.
func NewSet(shared fixture.Shared) Set {
	return Set{
		{
			Name: "BaselineInstance", Family: Instance, Mechanism: Baseline,
			Call: func(f *fixture.Fixture) float64 {
				return f.Subject.Difference()
			},
		},
		{
			Name: "ReflectInstance", Family: Instance, Mechanism: Reflect,
			Call: func(f *fixture.Fixture) float64 {
				return method.Call(f.Method, f.Subject)[0].Interface().(float64)
			},
		},
		{
			Name: "HandleInstance", Family: Instance, Mechanism: Handle,
			Call: func(f *fixture.Fixture) float64 {
				return must(f.Handle.Invoke(f.Subject)).(float64)
			},
		},
		{
			Name: "HandleInstanceExact", Family: Instance, Mechanism: HandleExact,
			Call: func(f *fixture.Fixture) float64 {
				return must(handle.Invoke1[*fixture.Subject, float64](f.Handle, f.Subject))
			},
		},
		{
			Name: "SharedHandleInstanceExact", Family: Instance, Mechanism: SharedHandleExact,
			Call: func(f *fixture.Fixture) float64 {
				return must(handle.Invoke1[*fixture.Subject, float64](shared.Difference, f.Subject))
			},
		},
		{
			Name: "BoundHandleInstance", Family: Instance, Mechanism: BoundHandle,
			Call: func(f *fixture.Fixture) float64 {
				return must(f.BoundHandle.Invoke()).(float64)
			},
		},
		{
			Name: "BoundHandleInstanceExact", Family: Instance, Mechanism: BoundHandleExact,
			Call: func(f *fixture.Fixture) float64 {
				return must(handle.Invoke0[float64](f.BoundHandle))
			},
		},
		{
			Name: "BaselineStatic", Family: Static, Mechanism: Baseline,
			Call: func(f *fixture.Fixture) float64 {
				return fixture.Sum(f.Subject)
			},
		},
		{
			Name: "ReflectStatic", Family: Static, Mechanism: Reflect,
			Call: func(f *fixture.Fixture) float64 {
				return method.Call(f.StaticMethod, f.Subject)[0].Interface().(float64)
			},
		},
		{
			Name: "HandleStatic", Family: Static, Mechanism: Handle,
			Call: func(f *fixture.Fixture) float64 {
				return must(f.StaticHandle.Invoke(f.Subject)).(float64)
			},
		},
		{
			Name: "HandleStaticExact", Family: Static, Mechanism: HandleExact,
			Call: func(f *fixture.Fixture) float64 {
				return must(handle.Invoke1[*fixture.Subject, float64](f.StaticHandle, f.Subject))
			},
		},
		{
			Name: "SharedHandleStaticExact", Family: Static, Mechanism: SharedHandleExact,
			Call: func(f *fixture.Fixture) float64 {
				return must(handle.Invoke1[*fixture.Subject, float64](shared.Sum, f.Subject))
			},
		},
		{
			Name: "BoundHandleStatic", Family: Static, Mechanism: BoundHandle,
			Call: func(f *fixture.Fixture) float64 {
				return must(f.StaticBoundHandle.Invoke()).(float64)
			},
		},
		{
			Name: "BoundHandleStaticExact", Family: Static, Mechanism: BoundHandleExact,
			Call: func(f *fixture.Fixture) float64 {
				return must(handle.Invoke0[float64](f.StaticBoundHandle))
			},
		},
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Names returns the strategy names in order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, st := range s {
		names[i] = st.Name
	}
	return names
}

// Lookup returns the strategy called name.
func (s Set) Lookup(name string) (Strategy, bool) {
	for _, st := range s {
		if st.Name == name {
			return st, true
		}
	}
	return Strategy{}, false
}

// Filter returns the strategies whose names match the regular expression pattern, keeping
// their order. An empty pattern keeps everything. A pattern that matches nothing is an error.
func (s Set) Filter(pattern string) (Set, error) {
	if pattern == "" {
		return s, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("strategy: bad include pattern: %w", err)
	}

	var out Set
	for _, st := range s {
		if re.MatchString(st.Name) {
			out = append(out, st)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("strategy: include pattern %q matches none of %s", pattern, strings.Join(s.Names(), ", "))
	}
	return out, nil
}

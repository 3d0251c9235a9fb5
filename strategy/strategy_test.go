package strategy

import (
	"testing"

	"github.com/johnsiilver/dispatchcost/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSet(t testing.TB) Set {
	t.Helper()
	shared, err := fixture.ResolveShared()
	require.NoError(t, err)
	return NewSet(shared)
}

func TestSetIsComplete(t *testing.T) {
	s := newSet(t)
	require.Len(t, s, 14)

	seen := map[string]bool{}
	perFamily := map[Family]map[Mechanism]bool{Instance: {}, Static: {}}
	for _, st := range s {
		assert.False(t, seen[st.Name], "duplicate name %s", st.Name)
		seen[st.Name] = true
		perFamily[st.Family][st.Mechanism] = true
		assert.NotNil(t, st.Call, st.Name)
	}
	for fam, mechs := range perFamily {
		assert.Len(t, mechs, 7, "family %s", fam)
	}
	assert.Equal(t, "BaselineInstance", s[0].Name)
	assert.Equal(t, "BaselineStatic", s[7].Name)
}

func TestFamilyResults(t *testing.T) {
	tests := []struct {
		desc         string
		i            int32
		d            float64
		wantInstance float64
		wantStatic   float64
	}{
		{desc: "zero fraction", i: -7, d: 0, wantInstance: -7, wantStatic: -7},
		{desc: "quarter", i: 100, d: 0.25, wantInstance: 99.75, wantStatic: 100.25},
	}

	s := newSet(t)
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			f, err := fixture.New(test.i, test.d)
			require.NoError(t, err)

			for _, st := range s {
				want := test.wantInstance
				if st.Family == Static {
					want = test.wantStatic
				}
				assert.Equal(t, want, st.Call(f), st.Name)
			}
		})
	}
}

func TestCrossFamilyDifference(t *testing.T) {
	s := newSet(t)
	for n := 0; n < 20; n++ {
		f, err := fixture.Setup(nil)
		require.NoError(t, err)

		first := map[Family]float64{}
		for _, st := range s {
			got := st.Call(f)
			if v, ok := first[st.Family]; ok {
				assert.Equal(t, v, got, "%s disagrees with its family", st.Name)
				continue
			}
			first[st.Family] = got
		}
		// Operands up to 2^31 leave about 2^-21 of precision after the fraction.
		assert.InDelta(t, 2*f.Subject.D, first[Static]-first[Instance], 1e-5)
	}

	f, err := fixture.New(100, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s[7].Call(f)-s[0].Call(f))
}

func TestVerify(t *testing.T) {
	s := newSet(t)
	f, err := fixture.New(100, 0.25)
	require.NoError(t, err)
	require.NoError(t, Verify(s, f))

	wrong := append(Set{}, s...)
	wrong = append(wrong, Strategy{
		Name: "Wrong", Family: Instance,
		Call: func(f *fixture.Fixture) float64 { return 0 },
	})
	assert.ErrorContains(t, Verify(wrong, f), "Wrong")

	panics := Set{{
		Name: "Panics", Family: Static,
		Call: func(f *fixture.Fixture) float64 { panic("boom") },
	}}
	assert.ErrorContains(t, Verify(panics, f), "panicked: boom")

	calls := 0
	drifting := Set{{
		Name: "Drifting", Family: Instance,
		Call: func(f *fixture.Fixture) float64 {
			calls++
			if calls > 1 {
				return f.Subject.Difference() + 1
			}
			return f.Subject.Difference()
		},
	}}
	assert.ErrorContains(t, Verify(drifting, f), "repeated call")
}

func TestFilter(t *testing.T) {
	s := newSet(t)

	tests := []struct {
		desc    string
		pattern string
		want    []string
		wantErr bool
	}{
		{desc: "empty keeps all", pattern: "", want: s.Names()},
		{desc: "baselines", pattern: "^Baseline", want: []string{"BaselineInstance", "BaselineStatic"}},
		{desc: "exact static", pattern: "Static.*Exact$", want: []string{"HandleStaticExact", "SharedHandleStaticExact", "BoundHandleStaticExact"}},
		{desc: "no match", pattern: "Nope", wantErr: true},
		{desc: "bad regexp", pattern: "(", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got, err := s.Filter(test.pattern)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got.Names())
		})
	}
}

func TestLookup(t *testing.T) {
	s := newSet(t)

	st, ok := s.Lookup("ReflectStatic")
	require.True(t, ok)
	assert.Equal(t, Static, st.Family)
	assert.Equal(t, Reflect, st.Mechanism)

	_, ok = s.Lookup("Missing")
	assert.False(t, ok)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "instance", Instance.String())
	assert.Equal(t, "static", Static.String())
	assert.Equal(t, "Family(9)", Family(9).String())
	assert.Equal(t, "SharedHandleExact", SharedHandleExact.String())
	assert.Equal(t, "Mechanism(42)", Mechanism(42).String())
}

package strategy

import (
	"fmt"

	"github.com/johnsiilver/dispatchcost/fixture"
)

// Verify calls every strategy in s twice on f. Each result must equal the direct result of its
// family's operation and the second call must equal the first. A strategy that panics is
// reported as an error rather than propagated.
func Verify(s Set, f *fixture.Fixture) error {
	instance, static := f.Want()
	for _, st := range s {
		want := instance
		if st.Family == Static {
			want = static
		}

		first, err := safeCall(st, f)
		if err != nil {
			return err
		}
		if first != want {
			return fmt.Errorf("strategy %s: got %v, want %v", st.Name, first, want)
		}
		second, err := safeCall(st, f)
		if err != nil {
			return err
		}
		if second != first {
			return fmt.Errorf("strategy %s: repeated call got %v, first call got %v", st.Name, second, first)
		}
	}
	return nil
}

func safeCall(st Strategy, f *fixture.Fixture) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s: panicked: %v", st.Name, r)
		}
	}()
	return st.Call(f), nil
}

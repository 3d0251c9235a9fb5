package measure

import "fmt"

// ErrType is the type of error that is being returned.
type ErrType uint8

const (
	ETUnknown ErrType = iota
	// ETConfig indicates an invalid Config or a fixture that could not be set up.
	// These end the run.
	ETConfig
	// ETForkPanic indicates a strategy panicked during a fork.
	ETForkPanic
	// ETForkTimeout indicates a fork exceeded Config.ForkTimeout or the run exceeded
	// Config.Timeout.
	ETForkTimeout
	// ETCanceled indicates the run's context was canceled before a fork finished.
	ETCanceled
	// ETPool indicates a fork could not be scheduled.
	ETPool
)

func (e ErrType) String() string {
	switch e {
	case ETConfig:
		return "ETConfig"
	case ETForkPanic:
		return "ETForkPanic"
	case ETForkTimeout:
		return "ETForkTimeout"
	case ETCanceled:
		return "ETCanceled"
	case ETPool:
		return "ETPool"
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

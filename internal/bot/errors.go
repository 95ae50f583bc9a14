package bot

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrActionFailed     = errors.New("action failed")
	ErrResolutionFailed = errors.New("resolution failed")
)

// Failure is a classified error. Reason is safe to show to the invoker; Err is
// the underlying cause, if any, and is only logged.
type Failure struct {
	Kind   error
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%v: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("%v: %s", f.Kind, f.Reason)
}

func (f *Failure) Unwrap() []error {
	if f.Err != nil {
		return []error{f.Kind, f.Err}
	}
	return []error{f.Kind}
}

func Denied(reason string) error {
	return &Failure{Kind: ErrPermissionDenied, Reason: reason}
}

func Invalid(reason string) error {
	return &Failure{Kind: ErrInvalidArgument, Reason: reason}
}

func Failed(reason string, err error) error {
	return &Failure{Kind: ErrActionFailed, Reason: reason, Err: err}
}

func Unresolved(reason string, err error) error {
	return &Failure{Kind: ErrResolutionFailed, Reason: reason, Err: err}
}

// KindOf returns the taxonomy sentinel for err, or nil if err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{ErrPermissionDenied, ErrInvalidArgument, ErrActionFailed, ErrResolutionFailed} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ReasonOf returns the user-facing reason of a Failure, or fallback.
func ReasonOf(err error, fallback string) string {
	var f *Failure
	if errors.As(err, &f) && f.Reason != "" {
		return f.Reason
	}
	return fallback
}

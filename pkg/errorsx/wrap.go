package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError tags an error with the reason code reported in logs and
// metrics.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Reason)
}

func (e ReasonedError) Unwrap() error { return e.Err }

// Errorf formats an error like fmt.Errorf and tags it with reason. Reasons
// already present in wrapped operands are replaced by reason.
func Errorf(reason ReasonCode, format string, args ...any) error {
	return ReasonedError{Err: fmt.Errorf(format, args...), Reason: reason}
}

// Wrap tags err with reason. The first tag applied to an error chain wins,
// so callers can wrap generically without hiding a more precise reason.
func Wrap(err error, reason ReasonCode) error {
	switch {
	case err == nil:
		return nil
	case Reason(err) != ReasonUnknown:
		return err
	default:
		return ReasonedError{Err: err, Reason: reason}
	}
}

// Reason returns the outermost reason in err's chain, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var re ReasonedError
	if err != nil && errors.As(err, &re) && re.Reason != "" {
		return re.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool { return Reason(err) == reason }

package mapbatch

import "github.com/pkg/errors"

// Code is a closed set of status kinds, matching spec §7's error taxonomy.
type Code int

const (
	OK Code = iota
	InvalidArgument
	Unimplemented
	Unknown // opaque upstream or transform error
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case InvalidArgument:
		return "InvalidArgument"
	case Unimplemented:
		return "Unimplemented"
	case Unknown:
		return "Unknown"
	default:
		return "Code(?)"
	}
}

// Status is the operator's aggregated error type: a code plus an optional
// wrapped error carrying the message. The zero Status is OK.
type Status struct {
	Code Code
	Err  error
}

func (s Status) Ok() bool { return s.Code == OK }

func (s Status) Error() string {
	if s.Ok() {
		return "OK"
	}
	if s.Err == nil {
		return s.Code.String()
	}
	return s.Code.String() + ": " + s.Err.Error()
}

// InvalidArgumentf builds an InvalidArgument status, following the
// teacher's errors.Errorf usage in textio.go/statemgr.go.
func InvalidArgumentf(format string, args ...any) Status {
	return Status{Code: InvalidArgument, Err: errors.Errorf(format, args...)}
}

// Unimplementedf builds an Unimplemented status.
func Unimplementedf(format string, args ...any) Status {
	return Status{Code: Unimplemented, Err: errors.Errorf(format, args...)}
}

// FromError wraps an opaque error (from Upstream.Next or Transform.RunAsync)
// as an Unknown status. A nil error yields OK.
func FromError(err error) Status {
	if err == nil {
		return Status{}
	}
	return Status{Code: Unknown, Err: err}
}

// mergeStatus implements spec §4.1's first-error-wins rule: if dst is
// already an error, incoming is discarded; otherwise incoming replaces dst.
func mergeStatus(dst *Status, incoming Status) {
	if !dst.Ok() {
		return
	}
	*dst = incoming
}

package worker

import "fmt"

type Kind int

const (
	KIND_SUCCESS Kind = iota
	KIND_LOOPBACK
	KIND_ERROR
)

// Dispatch is what one invocation of a Feature asks the loop to do next.
type Dispatch struct {
	Kind    Kind
	Message string
}

var (
	Success  = Dispatch{Kind: KIND_SUCCESS}
	Loopback = Dispatch{Kind: KIND_LOOPBACK}
)

func Failure(msg string) Dispatch {
	return Dispatch{Kind: KIND_ERROR, Message: msg}
}

func Failuref(format string, args ...any) Dispatch {
	return Failure(fmt.Sprintf(format, args...))
}

func (d Dispatch) String() string {
	switch d.Kind {
	case KIND_SUCCESS:
		return "success"
	case KIND_LOOPBACK:
		return "loopback"
	case KIND_ERROR:
		return "error: " + d.Message
	}
	return fmt.Sprintf("dispatch(%d)", d.Kind)
}

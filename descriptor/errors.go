package descriptor

import "fmt"

// OffsetError reports an offset whose value is not a hexadecimal integer.
type OffsetError struct {
	Key   string
	Value string
	Err   error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("offset %q does not have a valid hexadecimal value %q", e.Key, e.Value)
}

func (e *OffsetError) Unwrap() error {
	return e.Err
}

// TypeError reports an unknown type token in a function signature. Field is
// the argument name, or "return" for the result type.
type TypeError struct {
	Signature string
	Field     string
	Token     string
}

func (e *TypeError) Error() string {
	if e.Field == "return" {
		return fmt.Sprintf("invalid return type %q for %q", e.Token, e.Signature)
	}
	return fmt.Sprintf("invalid type %q for %q in %q", e.Token, e.Field, e.Signature)
}

// NameError reports a descriptor key or argument name that cannot become a
// Go identifier, or that is declared twice.
type NameError struct {
	Table  string
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Table, e.Name, e.Reason)
}

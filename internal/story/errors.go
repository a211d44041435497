package story

import (
	"errors"
	"fmt"
)

// ErrEmptySynopsis means the synopsis stage produced nothing to plan from
var ErrEmptySynopsis = errors.New("synopsis is empty")

// MalformedError reports generated output that does not have the expected shape
type MalformedError struct {
	Stage  string
	Reason string
	Raw    string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s output: %s", e.Stage, e.Reason)
}

// IsMalformed reports whether err is a *MalformedError
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

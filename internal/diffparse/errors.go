package diffparse

import "fmt"

// InvalidStatusError reports an included record whose status is disallowed for its diff list.
type InvalidStatusError struct {
	Status string
	PathA  string
	PathB  string
}

func (e *InvalidStatusError) Error() string {
	if e.PathB != "" {
		return fmt.Sprintf("invalid status %s for paths %s %s", e.Status, e.PathA, e.PathB)
	}
	return fmt.Sprintf("invalid status %s for path %s", e.Status, e.PathA)
}

// MalformedRecordError reports a diff line that does not carry a status and a path.
type MalformedRecordError struct {
	Line string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed diff record %q", e.Line)
}

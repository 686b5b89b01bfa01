package models

// Status is a single-letter git name-status code.
type Status byte

// Git name-status codes plus the synthetic NoChange status.
const (
	StatusAdded          Status = 'A'
	StatusCopied         Status = 'C'
	StatusDeleted        Status = 'D'
	StatusModified       Status = 'M'
	StatusRenamed        Status = 'R'
	StatusFileTypeChange Status = 'T'
	StatusUnmerged       Status = 'U'
	StatusUnknown        Status = 'X'
	// StatusNoChange is never emitted by git. It is attributed to files missing from a diff list.
	StatusNoChange Status = 'N'
)

// KnownStatuses lists every status the classifier can observe, in table order.
var KnownStatuses = []Status{
	StatusAdded,
	StatusCopied,
	StatusDeleted,
	StatusModified,
	StatusNoChange,
	StatusRenamed,
	StatusFileTypeChange,
	StatusUnmerged,
	StatusUnknown,
}

// String returns the status letter.
func (s Status) String() string {
	return string(rune(s))
}

// StatusOf returns the status letter of a raw code such as "M" or "R086".
func StatusOf(raw string) Status {
	if raw == "" {
		return StatusNoChange
	}
	return Status(raw[0])
}

// StatusPair is the two-letter scenario key: target status followed by source status.
type StatusPair string

// PairOf builds the scenario key for a target and source status.
func PairOf(target, source Status) StatusPair {
	return StatusPair([]byte{byte(target), byte(source)})
}

// Target returns the target half of the pair.
func (p StatusPair) Target() Status {
	if len(p) != 2 {
		return StatusUnknown
	}
	return Status(p[0])
}

// Source returns the source half of the pair.
func (p StatusPair) Source() Status {
	if len(p) != 2 {
		return StatusUnknown
	}
	return Status(p[1])
}

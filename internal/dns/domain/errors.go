package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat marks a malformed datagram. The packet is dropped.
	ErrFormat = errors.New("format error")

	// ErrMessageTooLarge is returned when an encoded message would not fit the
	// fixed 512 byte UDP buffer.
	ErrMessageTooLarge = errors.New("message exceeds 512 bytes")

	// ErrUnsupportedRecordType is returned when building a record from text
	// with a type other than A or CNAME.
	ErrUnsupportedRecordType = errors.New("unsupported record type")

	// ErrUnsupportedClass is returned when building a record from text with a
	// class other than IN.
	ErrUnsupportedClass = errors.New("unsupported record class")

	// ErrZoneFile marks every zone loading failure.
	ErrZoneFile = errors.New("zone file error")
)

// ZoneFileError locates a zone loading failure. Line is 0 when the error is
// not tied to a line (missing file, unreadable file).
type ZoneFileError struct {
	Path string
	Line int
	Err  error
}

func (e *ZoneFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("zone file %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("zone file %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrZoneFile and the underlying cause to errors.Is.
func (e *ZoneFileError) Unwrap() []error {
	return []error{ErrZoneFile, e.Err}
}

// FormatErrorf wraps ErrFormat with positional detail.
func FormatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

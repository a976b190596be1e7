package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrCanceled reports that the consumer went away (client disconnect or
	// Stream.Close) before the archive was finished.
	ErrCanceled = errors.New("archive: canceled by consumer")

	// ErrTooLarge is returned when an entry, the archive or the entry count
	// would need ZIP64 fields.
	ErrTooLarge = errors.New("archive: exceeds 32-bit zip limits")

	ErrWriterClosed = errors.New("archive: writer closed")
	ErrEmptyName    = errors.New("archive: empty entry name")
)

// SourceError wraps a failure to open or read one entry's source.
type SourceError struct {
	Index int
	Name  string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("archive: source %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err is a consumer-side cancellation rather than
// a real failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func canceled(cause error) error {
	if cause == nil || errors.Is(cause, ErrCanceled) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

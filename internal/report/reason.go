package report

import (
	"errors"
	"io/fs"

	"kitchensync/internal/ks"
)

// Reason classifies a failure for the error list. Unclassified failures are
// described by their underlying cause.
func Reason(err error) string {
	switch {
	case errors.Is(err, ks.ErrStalled):
		return "Stalled"
	case errors.Is(err, fs.ErrPermission):
		return "AccessDenied"
	case errors.Is(err, fs.ErrNotExist):
		return "FileNotFound"
	case isDiskFull(err):
		return "DiskFull"
	}

	var failure ks.EntryFailure
	if errors.As(err, &failure) {
		if cause := errors.Unwrap(failure); cause != nil {
			return cause.Error()
		}
	}
	return err.Error()
}

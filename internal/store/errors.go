package store

import (
	"errors"
	"fmt"

	"depot/internal/format"
)

var (
	// ErrNotFound reports a missing row (or one not owned by the caller,
	// which is indistinguishable on owner-scoped lookups).
	ErrNotFound = errors.New("not found")

	// ErrDependentDuplicates refuses deletion of a quota-charged original
	// while the same owner still holds duplicate copies of the content.
	ErrDependentDuplicates = errors.New("delete duplicate copies of this file first")

	// ErrUserExists reports a username collision at provisioning.
	ErrUserExists = errors.New("username already exists")

	// ErrFolderExists reports a folder name collision for one owner.
	ErrFolderExists = errors.New("folder already exists")
)

// QuotaError reports a rejected quota charge. The message is surfaced
// verbatim to the end user.
type QuotaError struct {
	UsedBytes    int64
	QuotaBytes   int64
	RequestBytes int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded: you have %s / %s used",
		format.MB(e.UsedBytes), format.MB(e.QuotaBytes))
}

// IsQuotaExceeded reports whether err is a quota rejection.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes a retry can clear.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"

	classConnectionException   = "08"
	classInsufficientResources = "53"
)

// IsTransient reports whether err came from a database condition that may
// succeed on another attempt: contention, deadlocks, lost connections or a
// temporarily exhausted server.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
			return true
		}

		return strings.HasPrefix(pgErr.Code, classConnectionException) ||
			strings.HasPrefix(pgErr.Code, classInsufficientResources)
	}

	// network level failures before the server answered
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	return pgconn.SafeToRetry(err)
}

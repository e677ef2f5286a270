package search

import (
	"github.com/logcar/logcar/internal/logcar/errorutil"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
)

func wrapErr(op, rid string, cause error) error {
	return logcarerr.Wrap(op, logcarerr.ErrSearchBackendError, errorutil.RIDCoords(rid), cause)
}

func wrapTimeoutErr(op, rid string, cause error) error {
	return logcarerr.Wrap(op, logcarerr.ErrTimeout, errorutil.RIDCoords(rid), cause)
}

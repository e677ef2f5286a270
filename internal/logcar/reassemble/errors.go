package reassemble

import (
	"github.com/logcar/logcar/internal/logcar/errorutil"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
)

func wrapErr(op string, sentinel error, rid string, cause error) error {
	return logcarerr.Wrap(op, sentinel, errorutil.RIDCoords(rid), cause)
}

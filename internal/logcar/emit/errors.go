package emit

import (
	"github.com/logcar/logcar/internal/logcar/errorutil"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
)

func wrapErr(op string, sentinel error, rid, fragOp string, idx int, cause error) error {
	return logcarerr.Wrap(op, sentinel, errorutil.RIDOpIdxCoords(rid, fragOp, idx), cause)
}

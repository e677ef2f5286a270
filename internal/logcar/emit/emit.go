// Package emit fans a write group's fragments out to the append-only log
// stream as tagged JSON lines.
package emit

import (
	"sync/atomic"
	"time"

	"github.com/julianstephens/go-utils/jsonutil"

	"github.com/logcar/logcar/internal/logcar/fragment"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
	"github.com/logcar/logcar/internal/logger"
)

// LogLine is the on-the-wire shape of one emitted log line: a fragment plus
// the log envelope fields (timestamp/level/message) the deployment
// platform's own log viewer expects every line to carry.
type LogLine struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	fragment.Fragment
}

// Emitter writes a write group's fragments to a Sink in idx order, assigning
// each a process-wide monotonic Seq as it goes.
type Emitter struct {
	sink   Sink
	logger logger.Logger
}

// processSeq is the process-wide counter every Emitter draws Seq values from.
var processSeq uint64

// NewEmitter creates an Emitter over sink. A nil logger is replaced with a
// no-op logger.
func NewEmitter(sink Sink, lg logger.Logger) *Emitter {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Emitter{sink: sink, logger: lg}
}

// Emit writes every fragment in frags as one log line, in slice order. On
// the first failure it stops and returns; fragments already written stay
// written, since the underlying sink is append-only and offers no rollback.
func (e *Emitter) Emit(frags []fragment.Fragment) error {
	if len(frags) == 0 {
		return nil
	}
	rid := frags[0].RID
	op := string(frags[0].Op)

	for i := range frags {
		f := frags[i]
		f.Seq = atomic.AddUint64(&processSeq, 1)

		line := LogLine{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Level:     levelFor(f.Op),
			Message:   string(f.Op),
			Fragment:  f,
		}

		b, err := jsonutil.Marshal(line)
		if err != nil {
			e.logger.Error("failed to marshal fragment", err, "rid", rid, "op", op, "idx", f.Idx)
			return wrapErr("emit", logcarerr.ErrEmitFailed, rid, op, f.Idx, err)
		}
		if err := e.sink.Emit(b); err != nil {
			e.logger.Error("failed to write fragment", err, "rid", rid, "op", op, "idx", f.Idx)
			return wrapErr("emit", logcarerr.ErrEmitFailed, rid, op, f.Idx, err)
		}
		e.logger.Debug("emitted fragment", "rid", rid, "op", op, "idx", f.Idx, "total", f.Total)
	}

	if err := e.sink.Flush(); err != nil {
		e.logger.Error("failed to flush emit sink", err, "rid", rid, "op", op)
		return wrapErr("emit", logcarerr.ErrEmitFailed, rid, op, len(frags)-1, err)
	}

	e.logger.Info("write group emitted", "rid", rid, "op", op, "count", len(frags))
	return nil
}

func levelFor(op fragment.Op) string {
	if op == fragment.OpDelete {
		return "warn"
	}
	return "info"
}

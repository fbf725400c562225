package transfer

import (
	"context"

	"github.com/rs/zerolog"
)

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

// undoLog records how to reverse each completed accept step on a store that
// cannot roll back. Replay runs the steps newest first and keeps going past
// failures.
type undoLog struct {
	steps []undoStep
}

func (l *undoLog) push(name string, fn func(ctx context.Context) error) {
	l.steps = append(l.steps, undoStep{name: name, fn: fn})
}

func (l *undoLog) replay(ctx context.Context, logger zerolog.Logger) int {
	failed := 0
	for i := len(l.steps) - 1; i >= 0; i-- {
		s := l.steps[i]
		if err := s.fn(ctx); err != nil {
			failed++
			logger.Error().Err(err).Str("step", s.name).Msg("transfer compensation failed")
		}
	}
	return failed
}

package state

import (
	"context"
	"errors"

	"PairSentinel/internal/model"
)

// ErrNoState is returned by Load when nothing has been persisted yet.
var ErrNoState = errors.New("no persisted state")

// Store persists the settings and statistics snapshot.
type Store interface {
	Load(ctx context.Context) (*model.State, error)
	Save(ctx context.Context, st *model.State) error
	Close() error
}

package tracker

import (
	"context"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// Registry is the consumer interface into the spool registry.
type Registry interface {
	Selector() domain.Selector
	Mutate(ctx context.Context, id int, fn func(domspool.Spool) (domspool.Spool, error)) (domspool.Spool, error)
}

// CounterStore persists the last observed raw counter across restarts.
type CounterStore interface {
	SaveCounter(ctx context.Context, raw float64) error
	LoadCounter(ctx context.Context) (raw float64, ok bool, err error)
}

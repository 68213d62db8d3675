package session

import (
	"context"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// Registry is the consumer interface into the spool registry.
type Registry interface {
	Selector() domain.Selector
	Spool(id int) (domspool.Spool, error)
	Mutate(ctx context.Context, id int, fn func(domspool.Spool) (domspool.Spool, error)) (domspool.Spool, error)
}

package registry

import (
	"context"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// Repository defines the storage contract for spools and the selector.
type Repository interface {
	SaveSpool(ctx context.Context, s domspool.Spool) error
	ListSpools(ctx context.Context, ids []int) ([]domspool.Spool, error)
	SaveSelector(ctx context.Context, sel domain.Selector) error
	GetSelector(ctx context.Context) (domain.Selector, error)
	HasState(ctx context.Context) (bool, error)
	PruneStaleSlots(ctx context.Context, slots int) ([]int, error)
}

package pipeline

import (
	"context"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

// MultiLoader fans a batch out to several loaders in order, stopping at the
// first failure.
type MultiLoader []BatchLoader

// LoadBatch passes records to each loader in turn.
func (m MultiLoader) LoadBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	for _, l := range m {
		if err := l.LoadBatch(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

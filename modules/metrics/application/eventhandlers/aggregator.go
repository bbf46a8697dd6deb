// Package eventhandlers turns created-document events into dashboard increments.
package eventhandlers

import (
	"context"
	"fmt"
	"time"

	"github.com/rai/storefront-triggers/modules/metrics/domain"
	"github.com/rai/storefront-triggers/modules/shared/transaction"
)

// Aggregator applies a domain.Plan inside one transaction.
type Aggregator struct {
	scope  transaction.Scope
	repo   domain.AggregateRepository
	dedupe bool
}

// NewAggregator creates an Aggregator. With dedupe set, each plan first claims
// its key in the same transaction and a second delivery applies nothing.
func NewAggregator(scope transaction.Scope, repo domain.AggregateRepository, dedupe bool) *Aggregator {
	return &Aggregator{scope: scope, repo: repo, dedupe: dedupe}
}

// Apply commits every increment of plan or none of them. It reports false when
// the plan was skipped as a duplicate.
func (a *Aggregator) Apply(ctx context.Context, plan domain.Plan, at time.Time) (bool, error) {
	return transaction.ExecuteWithResult(ctx, a.scope, func(ctx context.Context) (bool, error) {
		if a.dedupe {
			claimed, err := a.repo.ClaimEvent(ctx, plan.ClaimKey, at)
			if err != nil {
				return false, err
			}
			if !claimed {
				return false, nil
			}
		}

		if err := a.repo.IncrementGlobal(ctx, plan.Global, at); err != nil {
			return false, err
		}
		if err := a.repo.IncrementDaily(ctx, plan.Daily, at); err != nil {
			return false, err
		}
		for _, sale := range plan.Sales {
			if err := a.repo.RecordProductSale(ctx, sale, at); err != nil {
				return false, fmt.Errorf("product %s: %w", sale.ProductID, err)
			}
		}
		return true, nil
	})
}

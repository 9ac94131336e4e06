package cron

import (
	"context"
	"fmt"

	"github.com/tajerhq/tajer-backend/pkg/logger"
)

// cartExpirer is the slice of the cart service the sweep needs.
type cartExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// CartExpiryJob closes active carts past their deadline and releases the
// stock they were holding.
type CartExpiryJob struct {
	carts cartExpirer
	logg  *logger.Logger
}

// NewCartExpiryJob constructs the cart expiry sweep.
func NewCartExpiryJob(carts cartExpirer, logg *logger.Logger) (*CartExpiryJob, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CartExpiryJob{carts: carts, logg: logg}, nil
}

// Name identifies the job in logs and metrics.
func (j *CartExpiryJob) Name() string { return "cart_expiry" }

// Run expires stale carts until the sweep comes back empty.
func (j *CartExpiryJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.carts.ExpireStale(ctx)
		if err != nil {
			return fmt.Errorf("expire stale carts: %w", err)
		}
		total += expired
		if expired == 0 {
			break
		}
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired_carts", total), "stale carts expired")
	}
	return nil
}

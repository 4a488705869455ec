package jobs

import (
	"context"
	"time"

	"carrental-backend/internal/logger"
)

const expirePendingTimeout = 5 * time.Minute

// ExpirePendingBookings cancels pending bookings older than the configured
// pending TTL so their days stop blocking the calendar.
func (jr *JobRunner) ExpirePendingBookings() {
	_ = jr.runWithRecovery("ExpirePendingBookings", expirePendingTimeout, func(ctx context.Context) error {
		cutoff := jr.now().Add(-jr.config.PendingTTL())
		expired, err := jr.services.Booking.ExpireStalePending(ctx, cutoff)
		logger.Info("Expired stale pending bookings", "count", expired, "createdBefore", cutoff)
		return err
	})
}

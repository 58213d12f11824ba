package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	collectiondomain "github.com/kolektahq/kolekta/internal/collection/domain"
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"gorm.io/gorm"
)

// transition moves a subscription to the target status, stamping the
// matching lifecycle timestamp. Callers hold the row lock and are inside
// a transaction; guards have already been checked.
func (s *Service) transition(sub *domain.Subscription, target domain.SubscriptionStatus, now time.Time) error {
	if !domain.IsValidStatus(target) {
		return domain.ErrInvalidStatus
	}
	if !domain.IsTransitionAllowed(sub.Status, target) {
		return domain.ErrInvalidTransition
	}

	switch target {
	case domain.StatusActive:
		if sub.Status == domain.StatusSuspended || sub.Status == domain.StatusCancelled {
			sub.ReactivatedAt = &now
		}
		sub.SuspendedAt = nil
		sub.CancelledAt = nil
		sub.GracePeriodEnd = nil
	case domain.StatusSuspended:
		sub.SuspendedAt = &now
	case domain.StatusCancelled:
		sub.CancelledAt = &now
	}

	sub.Status = target
	sub.UpdatedAt = now
	return nil
}

// activateSchedule plans weekly pickups for the billing period ahead.
func (s *Service) activateSchedule(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, from time.Time, now time.Time) error {
	weeks := s.cfg.PeriodDays / 7
	if weeks < 1 {
		weeks = 1
	}

	entries := make([]collectiondomain.ScheduleEntry, 0, weeks)
	for week := 0; week < weeks; week++ {
		entries = append(entries, collectiondomain.ScheduleEntry{
			ID:             s.genID.Generate(),
			SubscriptionID: subscriptionID,
			CollectionDate: from.AddDate(0, 0, 7*week+7),
			Status:         collectiondomain.EntryStatusScheduled,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return s.scheduleRepo.InsertBatch(ctx, tx, entries)
}

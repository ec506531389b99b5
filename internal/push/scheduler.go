package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/shopspring/decimal"
)

const sentRetention = 30 * 24 * time.Hour

// Store is the push persistence the scheduler needs.
type Store interface {
	ListUserIDs() ([]int64, error)
	ListByUser(userID int64) ([]model.PushSubscription, error)
	IsPreferenceEnabled(userID int64, notifType string) (bool, error)
	WasSent(userID int64, notifType, refID string) (bool, error)
	RecordSent(userID int64, notifType, refID string) error
	DeleteByEndpoint(endpoint string) error
	CleanupSent(before time.Time) error
}

type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// Inventory loads a user's pantry.
type Inventory func(userID int64) ([]model.InventoryItem, error)

type SchedulerConfig struct {
	Interval          time.Duration
	ExpiringDays      int
	LowStockThreshold decimal.Decimal
}

// Scheduler sends at most one expiring-soon and one low-stock alert per user
// per day.
type Scheduler struct {
	sender    Sender
	push      Store
	inventory Inventory
	cfg       SchedulerConfig
	logger    *slog.Logger
	now       func() time.Time

	lastCleanup time.Time
}

func NewScheduler(sender Sender, pushStore Store, inventory Inventory, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Scheduler{
		sender:    sender,
		push:      pushStore,
		inventory: inventory,
		cfg:       cfg,
		logger:    logger.With("component", "push"),
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := s.now().UTC()

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list users", "error", err)
		return
	}
	for _, uid := range userIDs {
		s.checkUser(uid, now)
	}

	if now.Sub(s.lastCleanup) >= 24*time.Hour {
		if err := s.push.CleanupSent(now.Add(-sentRetention)); err != nil {
			s.logger.Error("cleanup sent notifications", "error", err)
		}
		s.lastCleanup = now
	}
}

func (s *Scheduler) checkUser(userID int64, now time.Time) {
	items, err := s.inventory(userID)
	if err != nil {
		s.logger.Error("load inventory", "user_id", userID, "error", err)
		return
	}

	settings := projection.DefaultSettings(now)
	settings.ExpiringDays = s.cfg.ExpiringDays
	settings.LowStockThreshold = s.cfg.LowStockThreshold
	views := projection.Compute(projection.Inventory(), projection.SnapshotOf(items), settings)

	ref := now.Format(model.DateLayout)
	if len(views.ExpiringSoon) > 0 {
		s.alert(userID, model.NotifTypeExpiringSoon, ref, Payload{
			Title: "Expiring soon",
			Body:  summary(views.ExpiringSoon, "expires soon", "expire soon"),
			URL:   "/inventory",
			Tag:   "expiring-soon",
		})
	}
	if len(views.LowStock) > 0 {
		s.alert(userID, model.NotifTypeLowStock, ref, Payload{
			Title: "Running low",
			Body:  summary(views.LowStock, "is running low", "are running low"),
			URL:   "/inventory",
			Tag:   "low-stock",
		})
	}
}

// alert sends payload to every device of the user unless this alert was
// already sent today or the user turned it off. It counts as sent once at
// least one device accepted it.
func (s *Scheduler) alert(userID int64, notifType, ref string, payload Payload) {
	sent, err := s.push.WasSent(userID, notifType, ref)
	if err != nil {
		s.logger.Error("check sent", "user_id", userID, "type", notifType, "error", err)
		return
	}
	if sent {
		return
	}
	enabled, err := s.push.IsPreferenceEnabled(userID, notifType)
	if err != nil {
		s.logger.Error("check preference", "user_id", userID, "type", notifType, "error", err)
		return
	}
	if !enabled {
		return
	}

	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return
	}
	delivered := 0
	for i := range subs {
		sub := &subs[i]
		err := s.sender.Send(sub, payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrExpired):
			if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("remove expired subscription", "user_id", userID, "subscription_id", sub.ID, "error", err)
				continue
			}
			s.logger.Info("removed expired subscription", "user_id", userID, "subscription_id", sub.ID)
		default:
			s.logger.Warn("send alert", "user_id", userID, "type", notifType, "error", err)
		}
	}

	// Nothing reached a device; try again on the next tick.
	if delivered == 0 {
		return
	}
	if err := s.push.RecordSent(userID, notifType, ref); err != nil {
		s.logger.Error("record sent", "user_id", userID, "type", notifType, "error", err)
	}
}

func summary(items []model.InventoryItem, one, many string) string {
	switch len(items) {
	case 1:
		return fmt.Sprintf("%s %s", items[0].Name, one)
	case 2:
		return fmt.Sprintf("%s and %s %s", items[0].Name, items[1].Name, many)
	default:
		names := make([]string, 0, 2)
		for _, it := range items[:2] {
			names = append(names, it.Name)
		}
		return fmt.Sprintf("%s and %d more %s", strings.Join(names, ", "), len(items)-2, many)
	}
}

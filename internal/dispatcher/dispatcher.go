// Package dispatcher polls the store for due PendingSends and turns
// them into outbound NotificationEvents: a select-then-delete cycle that
// deletes exactly the rows it selected (by id, not by a second fire-time
// predicate), so a row inserted mid-tick with the same fire time is never
// silently lost.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/store"
	"github.com/hdbg/pjatkbot-go/internal/tickloop"
)

// Dispatcher ticks store.DueSends/DeleteSends against a shared observed
// "now" and forwards each resolved send as a NotificationEvent.
type Dispatcher struct {
	store    store.Store
	outbound *bus.Topic[bus.NotificationEvent]
	logger   *slog.Logger

	// dropped counts PendingSends whose class no longer existed by the
	// time the dispatcher got to them — a cancellation raced the
	// reminder. Exposed via Dropped() so a caller can log/metric it
	// instead of the drop passing unnoticed.
	dropped int
}

// Config bundles Dispatcher's dependencies.
type Config struct {
	Store    store.Store
	Outbound *bus.Topic[bus.NotificationEvent]
	Logger   *slog.Logger
}

// New builds a Dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{store: cfg.Store, outbound: cfg.Outbound, logger: cfg.Logger}
}

// Runner returns a tickloop.Runner that drives Tick at interval.
// RunImmediately is deliberately false: an immediate tick on startup
// would race whatever delete the previous process instance was in the
// middle of committing.
func (d *Dispatcher) Runner(interval time.Duration) *tickloop.Runner {
	return &tickloop.Runner{
		Name:     "dispatcher",
		Interval: interval,
		Work:     d.Tick,
		Logger:   d.logger,
	}
}

// Tick selects every PendingSend due at a single observed instant,
// resolves and emits each as a Scheduled NotificationEvent, then deletes
// every row by id that DueSends itself returned — not a fresh predicate
// delete, so a row inserted after the select (by a concurrent
// NotificationPlanner resync with the exact same fire time) survives to
// be picked up on the next tick instead of being deleted unfired.
func (d *Dispatcher) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	due, err := d.store.DueSends(ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	ids := make([]string, 0, len(due))
	for _, ps := range due {
		ids = append(ids, ps.ID)

		class, err := d.store.ClassByID(ctx, ps.ClassID)
		if err == store.ErrNotFound {
			d.dropped++
			d.log().Info("dispatcher: pending send's class no longer exists, skipping", "class_id", ps.ClassID, "user_id", ps.UserID)
			continue
		}
		if err != nil {
			return err
		}

		d.outbound.Send(bus.NotificationEvent{
			Kind:     bus.NotificationScheduled,
			UserIDs:  []string{ps.UserID},
			Class:    class.Class,
			LeadTime: ps.LeadTime,
		})
	}

	return d.store.DeleteSends(ctx, ids)
}

// Dropped reports how many due sends were skipped because their class
// had already been cancelled.
func (d *Dispatcher) Dropped() int {
	return d.dropped
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Package notifier maintains the set of pending scheduled sends derived
// from the schedule: one PendingSend per (user, class, lead time) that
// should still fire in the future. It consumes UpdateEvents incrementally
// and additionally runs a periodic full resync as a convergence net.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/ratelimit"
	"github.com/hdbg/pjatkbot-go/internal/store"
)

// Planner is the NotificationPlanner: a single serialized consumer of
// UpdateEvents that also ticks a full resync on its own interval. Both
// are handled from the same select loop in Run so a resync can never
// interleave with — and race — an incremental update.
type Planner struct {
	store          store.Store
	updates        *bus.Topic[bus.UpdateEvent]
	outbound       *bus.Topic[bus.NotificationEvent]
	resyncInterval time.Duration
	resyncLimiter  *ratelimit.Limiter
	logger         *slog.Logger
}

// Config bundles Planner's dependencies.
type Config struct {
	Store          store.Store
	Updates        *bus.Topic[bus.UpdateEvent]
	Outbound       *bus.Topic[bus.NotificationEvent]
	ResyncInterval time.Duration
	// ResyncRateLimitPerMin throttles how many (user,class) pairs full
	// resync upserts per minute, so a resync over a large cross-product
	// can't starve the store of connections Dispatcher/ParserManager
	// also need.
	ResyncRateLimitPerMin int
	Logger                *slog.Logger
}

// New builds a Planner.
func New(cfg Config) *Planner {
	interval := cfg.ResyncInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Planner{
		store:          cfg.Store,
		updates:        cfg.Updates,
		outbound:       cfg.Outbound,
		resyncInterval: interval,
		resyncLimiter:  ratelimit.New(cfg.ResyncRateLimitPerMin),
		logger:         cfg.Logger,
	}
}

// Run consumes UpdateEvents and ticks full resync until ctx is done.
func (p *Planner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.resyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.updates.Recv():
			if !ok {
				return nil
			}
			if err := p.handle(ctx, ev); err != nil {
				p.log().Error("notifier: handling update failed", "kind", ev.Kind, "error", err)
			}
		case <-ticker.C:
			if err := p.FullResync(ctx, time.Now().UTC()); err != nil {
				p.log().Error("notifier: full resync failed", "error", err)
			}
		}
	}
}

func (p *Planner) handle(ctx context.Context, ev bus.UpdateEvent) error {
	switch ev.Kind {
	case bus.UpdateClassAdded:
		return p.ClassAdded(ctx, ev.Class)
	case bus.UpdateClassRemoved:
		return p.ClassRemoved(ctx, ev.Class)
	case bus.UpdateUserChanged:
		return p.UserUpdate(ctx, ev.User)
	}
	return nil
}

// ClassAdded upserts a PendingSend for every (user, constraint) pair
// whose lead time still leaves the class in the future, for every user
// subscribed to any of the class's groups. A user in two matching
// groups is only processed once.
func (p *Planner) ClassAdded(ctx context.Context, c model.StoredClass) error {
	now := time.Now().UTC()

	seen := map[string]struct{}{}
	var users []model.User
	for _, g := range c.Class.Groups {
		matched, err := p.store.UsersInGroup(ctx, g.Code)
		if err != nil {
			return err
		}
		for _, u := range matched {
			if _, ok := seen[u.ID]; ok {
				continue
			}
			seen[u.ID] = struct{}{}
			users = append(users, u)
		}
	}

	for _, u := range users {
		if err := p.schedulePendingSends(ctx, u, c, now); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) schedulePendingSends(ctx context.Context, u model.User, c model.StoredClass, now time.Time) error {
	for _, constraint := range u.Constraints {
		fireAt := c.Class.Range.Start.Add(-constraint.LeadTime)
		if !fireAt.After(now) {
			continue
		}
		ps := model.PendingSend{
			UserID:   u.ID,
			ClassID:  c.ID,
			LeadTime: constraint.LeadTime,
			FireAt:   fireAt,
		}
		if err := p.store.UpsertPendingSend(ctx, ps); err != nil {
			return err
		}
	}
	return nil
}

// ClassRemoved cascades the cancellation: every PendingSend referencing
// the class is deleted, and a ClassDeleted NotificationEvent is emitted
// naming every affected user so they can be told the class is gone even
// though no reminder was ever due yet.
func (p *Planner) ClassRemoved(ctx context.Context, c model.StoredClass) error {
	affected, err := p.store.DeletePendingSendsForClass(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}
	p.outbound.Send(bus.NotificationEvent{
		Kind:    bus.NotificationClassDeleted,
		UserIDs: affected,
		Class:   c.Class,
	})
	return nil
}

// UserUpdate drops every PendingSend belonging to u and recomputes them
// from scratch against its current groups and constraints — simpler
// and more obviously correct than diffing the old and new subscription
// sets, and cheap since it only touches one user's rows.
func (p *Planner) UserUpdate(ctx context.Context, u model.User) error {
	if err := p.store.DeletePendingSendsForUser(ctx, u.ID); err != nil {
		return err
	}
	if len(u.Groups) == 0 {
		return nil
	}

	now := time.Now().UTC()
	classes, err := p.store.ClassesInGroups(ctx, u.GroupCodes(), now)
	if err != nil {
		return err
	}
	for _, c := range classes {
		if err := p.schedulePendingSends(ctx, u, c, now); err != nil {
			return err
		}
	}
	return nil
}

// FullResync is the convergence net: for every (user, class) pair that
// should have PendingSends per the current schedule and subscriptions,
// ensure they exist; then sweep anything left over whose fire time has
// already passed without being picked up by Dispatcher. Rate-limited
// since the user/class cross-product can be large.
func (p *Planner) FullResync(ctx context.Context, now time.Time) error {
	pairs, err := p.store.FullResyncPairs(ctx, now)
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		if err := p.resyncLimiter.Wait(ctx); err != nil {
			return err
		}
		if err := p.schedulePendingSends(ctx, pair.User, pair.Class, now); err != nil {
			return err
		}
	}

	return p.store.DeleteStaleSends(ctx, now)
}

func (p *Planner) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

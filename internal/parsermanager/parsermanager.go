// Package parsermanager owns a single ScheduleParser/PortalClient pair
// and decides, every tick, which calendar day to (re)parse next: push
// forward into days never seen before, or cycle back through the
// already-seen window to pick up last-minute portal edits.
package parsermanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/portal"
	"github.com/hdbg/pjatkbot-go/internal/reconciler"
	"github.com/hdbg/pjatkbot-go/internal/scheduleparser"
	"github.com/hdbg/pjatkbot-go/internal/store"
	"github.com/hdbg/pjatkbot-go/internal/tickloop"
)

const cursorName = "pjatk"

// Manager ticks through the portal's calendar, forwarding each day's
// reconciled delta onto an UpdateEvent bus.Topic.
type Manager struct {
	client      *portal.Client
	parser      *scheduleparser.Parser
	reconciler  *reconciler.Reconciler
	store       store.Store
	updates     *bus.Topic[bus.UpdateEvent]
	daysAhead   int
	logger      *slog.Logger
	initialized bool
}

// Config bundles Manager's dependencies; portal connection details live
// on client, already configured by the caller.
type Config struct {
	Client     *portal.Client
	Reconciler *reconciler.Reconciler
	Store      store.Store
	Updates    *bus.Topic[bus.UpdateEvent]
	DaysAhead  int
	Logger     *slog.Logger
}

// New builds a Manager. The portal conversation (the client's hidden
// state) is not started here — the first tick calls Initial, and any
// later tick that hits a portal error re-runs Initial to recover the
// conversation rather than retrying mid-sequence.
func New(cfg Config) (*Manager, error) {
	parser, err := scheduleparser.New(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("parsermanager: building parser: %w", err)
	}
	daysAhead := cfg.DaysAhead
	if daysAhead <= 0 {
		daysAhead = 7
	}
	return &Manager{
		client:     cfg.Client,
		parser:     parser,
		reconciler: cfg.Reconciler,
		store:      cfg.Store,
		updates:    cfg.Updates,
		daysAhead:  daysAhead,
		logger:     cfg.Logger,
	}, nil
}

// Runner returns a tickloop.Runner that drives Manager.Tick at interval.
func (m *Manager) Runner(interval time.Duration) *tickloop.Runner {
	return &tickloop.Runner{
		Name:           "parsermanager",
		Interval:       interval,
		Work:           m.Tick,
		Logger:         m.logger,
		RunImmediately: true,
	}
}

// Tick performs one parse-and-reconcile cycle: load the cursor, select a
// day per the Forward/Refresh rule, parse it, reconcile the result, save
// the advanced cursor, and forward any non-empty delta onto Updates.
func (m *Manager) Tick(ctx context.Context) error {
	if !m.initialized {
		if _, err := m.client.Initial(ctx); err != nil {
			return fmt.Errorf("parsermanager: initial postback: %w", err)
		}
		m.initialized = true
	}

	cursor, err := m.store.Cursor(ctx, cursorName)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("parsermanager: loading cursor: %w", err)
	}
	if err == store.ErrNotFound {
		cursor = model.ParserCursor{Name: cursorName}
	}

	now := time.Now().UTC()
	today := truncateDay(now)

	target, mode, err := m.selectDay(ctx, cursor, today)
	if err != nil {
		return fmt.Errorf("parsermanager: selecting day: %w", err)
	}

	classes, err := m.parser.ParseDay(ctx, target)
	if err != nil {
		// The postback conversation may now be desynced; force the next
		// tick to re-run Initial instead of continuing mid-sequence.
		m.initialized = false
		return fmt.Errorf("parsermanager: parsing day %s: %w", target.Format("2006-01-02"), err)
	}

	delta, err := m.reconciler.ReconcileDay(ctx, classes)
	if err != nil {
		return fmt.Errorf("parsermanager: reconciling day %s: %w", target.Format("2006-01-02"), err)
	}

	switch mode {
	case modeForward:
		cursor.LastDayParsed = target
	case modeRefresh:
		cursor.LastDayReparsed = target
	}
	if err := m.store.SaveCursor(ctx, cursor); err != nil {
		return fmt.Errorf("parsermanager: saving cursor: %w", err)
	}

	if !delta.Empty() {
		m.emit(delta)
	}
	return nil
}

func (m *Manager) emit(delta model.ClassDelta) {
	for _, sc := range delta.Added {
		m.updates.Send(bus.UpdateEvent{Kind: bus.UpdateClassAdded, Class: sc})
	}
	for _, sc := range delta.Removed {
		m.updates.Send(bus.UpdateEvent{Kind: bus.UpdateClassRemoved, Class: sc})
	}
}

type selectMode int

const (
	modeForward selectMode = iota
	modeRefresh
)

// selectDay implements spec's Forward/Refresh day-selection rule:
// Forward mode advances one day past the furthest day ever parsed, up
// until days_ahead from today; once the window is full, Refresh mode
// cycles back through [today, today+days_ahead) to pick up late edits.
func (m *Manager) selectDay(ctx context.Context, cursor model.ParserCursor, today time.Time) (time.Time, selectMode, error) {
	max := cursor.LastDayParsed
	if max.IsZero() {
		found, err := m.maxStoredDay(ctx, today)
		if err != nil {
			return time.Time{}, 0, err
		}
		max = found
	}

	if max.IsZero() {
		return today, modeForward, nil
	}
	if daysBetween(today, max) <= m.daysAhead {
		return max.AddDate(0, 0, 1), modeForward, nil
	}

	next := cursor.LastDayReparsed.AddDate(0, 0, 1)
	if cursor.LastDayReparsed.IsZero() {
		next = today
	}
	if daysBetween(today, next) < m.daysAhead {
		return next, modeRefresh, nil
	}
	return today, modeRefresh, nil
}

// maxStoredDay falls back to scanning the next 365 days from today for
// the furthest day with any stored class, when no cursor has been saved
// yet (first run, or after a cursor-less restart).
func (m *Manager) maxStoredDay(ctx context.Context, today time.Time) (time.Time, error) {
	var max time.Time
	for i := 0; i < 365; i++ {
		day := today.AddDate(0, 0, i)
		classes, err := m.store.DayClasses(ctx, day)
		if err != nil {
			return time.Time{}, err
		}
		if len(classes) == 0 {
			continue
		}
		max = day
	}
	return max, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(today, day time.Time) int {
	return int(day.Sub(today).Hours() / 24)
}

// Package engine wires the feed subscriptions, the batching queue, the
// reconciliation dataset, the view state and the activity log into one
// runnable monitor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"pool_monitor/internal/activity"
	"pool_monitor/internal/client"
	"pool_monitor/internal/feed"
	"pool_monitor/internal/monitor"
	"pool_monitor/internal/storage"
	"pool_monitor/internal/view"
)

// DefaultActivityPoll is how often the summary is fetched for the
// activity trail.
const DefaultActivityPoll = 30 * time.Second

// DefaultSummaryPoll is how often the headline summary is refreshed.
const DefaultSummaryPoll = 5 * time.Minute

// StreamMode says how a stream's frames reconcile into the dataset.
type StreamMode int

const (
	// ModeIncremental streams carry typed change envelopes.
	ModeIncremental StreamMode = iota
	// ModeRefresh streams carry the complete place set on every frame.
	ModeRefresh
)

// StreamConfig binds one transport stream to its reconciliation rules.
type StreamConfig struct {
	Stream feed.Stream
	Mode   StreamMode
	// Kind selects the payload type for incremental streams.
	Kind monitor.PayloadKind

	Backoff     feed.Policy   // nil selects feed.DefaultPolicy.
	MaxRetries  int           // <=0 selects feed.DefaultMaxRetries.
	IdleTimeout time.Duration // <=0 selects feed.DefaultIdleTimeout.
}

// Config configures an Engine.
type Config struct {
	// Client performs the initial bulk fetch and the summary polls.
	// Optional: with no client the dataset starts empty and no summary
	// polling runs.
	Client *client.Client

	Streams []StreamConfig

	// Resolver labels places in the activity log and the projection.
	// Optional: nil selects the built-in name table.
	Resolver *monitor.NameResolver

	// Archive receives applied events and summary snapshots. Optional;
	// all writes to it are best-effort.
	Archive *storage.Archive

	ActivityLimit  int
	DebounceWindow time.Duration
	ActivityPoll   time.Duration
	SummaryPoll    time.Duration

	Logger *log.Logger
}

// Engine owns the full pipeline from transport frames to projected pages.
type Engine struct {
	client   *client.Client
	resolver *monitor.NameResolver
	archive  *storage.Archive
	logger   *log.Logger

	dataset  *monitor.Dataset
	batcher  *feed.Batcher
	log      *activity.Log
	managers []*feed.Manager
	modes    map[string]StreamConfig

	activityPoll time.Duration
	summaryPoll  time.Duration

	mu        sync.Mutex
	viewState view.State
	summary   *monitor.Summary
	statuses  map[string]feed.Status
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates an engine. Start must be called to begin processing.
func New(cfg Config) *Engine {
	e := &Engine{
		client:       cfg.Client,
		resolver:     cfg.Resolver,
		archive:      cfg.Archive,
		logger:       cfg.Logger,
		dataset:      monitor.NewDataset(),
		batcher:      feed.NewBatcher(cfg.DebounceWindow),
		log:          activity.NewLog(cfg.ActivityLimit),
		modes:        make(map[string]StreamConfig, len(cfg.Streams)),
		activityPoll: cfg.ActivityPoll,
		summaryPoll:  cfg.SummaryPoll,
		viewState:    view.DefaultState(),
		statuses:     make(map[string]feed.Status),
	}
	if e.resolver == nil {
		e.resolver = monitor.NewNameResolver(nil)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.activityPoll <= 0 {
		e.activityPoll = DefaultActivityPoll
	}
	if e.summaryPoll <= 0 {
		e.summaryPoll = DefaultSummaryPoll
	}

	for _, sc := range cfg.Streams {
		name := sc.Stream.Name()
		e.modes[name] = sc
		e.statuses[name] = feed.StatusDisconnected
		e.managers = append(e.managers, feed.NewManager(feed.ManagerConfig{
			Stream:      sc.Stream,
			Backoff:     sc.Backoff,
			MaxRetries:  sc.MaxRetries,
			IdleTimeout: sc.IdleTimeout,
			OnEvent:     e.batcher.Add,
			OnStatus:    e.onStatus,
			Logger:      e.logger,
		}))
	}

	return e
}

// Start performs the initial bulk fetch, then launches the stream
// managers, the apply loop and the summary pollers.
//
// A bulk fetch failure is returned without starting anything, so the
// caller can retry Start after a pause. Start on a running engine is a
// no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if e.client != nil {
		places, err := e.client.FetchMonitoring(ctx)
		if err != nil {
			return fmt.Errorf("initial fetch: %w", err)
		}
		e.dataset.SetPlaces(places)
		e.logger.Printf("engine: loaded %d places", len(places))
	}

	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	for _, m := range e.managers {
		m.Start(runCtx)
	}

	e.wg.Add(1)
	go e.applyLoop(runCtx)

	if e.client != nil {
		e.wg.Add(2)
		go e.pollActivity(runCtx)
		go e.pollSummary(runCtx)
	}

	return nil
}

// Stop shuts the pipeline down: managers first, then the batcher, then
// waits for the apply loop to drain what is already queued.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	for _, m := range e.managers {
		m.Stop()
	}
	e.batcher.Close()
	cancel()
	e.wg.Wait()
}

// applyLoop consumes batches and reconciles them into the dataset.
// This is the single writer; everything downstream reads snapshots.
func (e *Engine) applyLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		batch, err := e.batcher.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			e.logger.Printf("engine: batch queue: %v", err)
			return
		}
		e.applyBatch(ctx, batch)
	}
}

// applyBatch decodes one raw batch and applies it. Frames that fail to
// decode are logged and skipped; one bad frame never blocks the rest.
func (e *Engine) applyBatch(ctx context.Context, batch []feed.RawEvent) {
	var changes []monitor.Change
	var refresh []monitor.Place
	haveRefresh := false

	for _, ev := range batch {
		sc, ok := e.modes[ev.Stream]
		if !ok {
			e.logger.Printf("engine: frame from unknown stream %q", ev.Stream)
			continue
		}
		switch sc.Mode {
		case ModeRefresh:
			places, err := monitor.DecodeRefresh(ev.Data)
			if err != nil {
				e.logger.Printf("engine: stream %s: %v", ev.Stream, err)
				continue
			}
			// Later refreshes in the batch supersede earlier ones.
			refresh = places
			haveRefresh = true
		default:
			ch, err := monitor.DecodeChange(ev.Data, sc.Kind)
			if err != nil {
				e.logger.Printf("engine: stream %s: %v", ev.Stream, err)
				continue
			}
			changes = append(changes, ch)
		}
	}

	if haveRefresh {
		e.dataset.ReplacePlaces(refresh)
		e.log.Add(activity.Entry{
			Time:      time.Now(),
			Category:  activity.CategoryPlace,
			EventType: "refresh",
			Details:   fmt.Sprintf("full refresh, %d places", len(refresh)),
		})
	}

	applied := e.dataset.ApplyBatch(changes)
	for _, ch := range applied {
		e.log.Add(e.entryFor(ch))
	}

	if e.archive != nil && len(applied) > 0 {
		if err := e.archive.Events.InsertBatch(ctx, applied); err != nil {
			e.logger.Printf("engine: archive batch: %v", err)
		}
	}
}

// entryFor builds the activity record for one applied change.
func (e *Engine) entryFor(ch monitor.Change) activity.Entry {
	entry := activity.Entry{
		Time:      ch.Timestamp,
		EventType: string(ch.Type),
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	switch {
	case ch.Place != nil:
		entry.Category = activity.CategoryPlace
		entry.Location = e.resolver.Resolve(ch.Place)
		entry.Details = fmt.Sprintf("%d spaces, %d drivers", ch.Place.Total, len(ch.Place.Drivers))
	case ch.Supply != nil:
		entry.Category = activity.CategorySupply
		entry.Location = fmt.Sprintf("place %d", ch.Supply.PlaceID)
		entry.Details = fmt.Sprintf("fleet %s, driver %s", ch.Supply.FleetNumber, ch.Supply.DriverID)
	}
	return entry
}

// pollActivity fetches the summary on the short interval and records it
// in the activity trail and the snapshot history.
func (e *Engine) pollActivity(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.activityPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := e.client.FetchSummary(ctx)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Printf("engine: summary poll: %v", err)
			}
			continue
		}

		sum := snap.Summary
		e.log.Add(activity.Entry{
			Time:     time.Now(),
			Category: activity.CategorySummary,
			Details: fmt.Sprintf("%d/%d spaces occupied, %d drivers",
				sum.OccupiedSpaces, sum.OccupiedSpaces+sum.AvailableSpaces, sum.TotalDrivers),
			Summary: &sum,
		})

		if e.archive != nil {
			if err := e.archive.Summaries.Insert(ctx, snap.Timestamp, sum); err != nil {
				e.logger.Printf("engine: snapshot insert: %v", err)
			}
		}
	}
}

// pollSummary refreshes the headline summary on the long interval.
func (e *Engine) pollSummary(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.summaryPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := e.client.FetchSummary(ctx)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Printf("engine: headline poll: %v", err)
			}
			continue
		}

		sum := snap.Summary
		e.mu.Lock()
		e.summary = &sum
		e.mu.Unlock()
	}
}

func (e *Engine) onStatus(sc feed.StatusChange) {
	e.mu.Lock()
	e.statuses[sc.Stream] = sc.To
	e.mu.Unlock()

	if sc.Err != nil {
		e.logger.Printf("engine: stream %s: %s -> %s: %v", sc.Stream, sc.From, sc.To, sc.Err)
	} else {
		e.logger.Printf("engine: stream %s: %s -> %s", sc.Stream, sc.From, sc.To)
	}
}

// LoadPlaces replaces the place collection directly, bypassing the bulk
// fetch. Used when the caller already holds the data.
func (e *Engine) LoadPlaces(places []monitor.Place) {
	e.dataset.SetPlaces(places)
}

// SetSearch updates the view filter.
func (e *Engine) SetSearch(q string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewState.Search = q
}

// SetSort updates the view sort key and direction.
func (e *Engine) SetSort(key view.SortKey, ascending bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewState.SortBy = key
	e.viewState.Ascending = ascending
}

// SetPage moves the view to the given page. Out-of-range pages are
// clamped at projection time.
func (e *Engine) SetPage(page int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if page < 1 {
		page = 1
	}
	e.viewState.Page = page
}

// ViewState returns the current view state.
func (e *Engine) ViewState() view.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewState
}

// Page projects the current dataset through the stored view state.
func (e *Engine) Page() view.Page {
	return view.Project(e.dataset.Places(), e.resolver, e.ViewState())
}

// PageWith projects the current dataset through an explicit view state,
// leaving the stored state untouched.
func (e *Engine) PageWith(st view.State) view.Page {
	return view.Project(e.dataset.Places(), e.resolver, st)
}

// Places returns a snapshot of the full place collection.
func (e *Engine) Places() []monitor.Place {
	return e.dataset.Places()
}

// Supplies returns a snapshot of the tracked supplies.
func (e *Engine) Supplies() []monitor.Supply {
	return e.dataset.Supplies()
}

// Totals returns the dataset-wide aggregates.
func (e *Engine) Totals() monitor.Totals {
	return e.dataset.Totals()
}

// LastUpdated reports when the dataset last changed.
func (e *Engine) LastUpdated() time.Time {
	return e.dataset.LastUpdated()
}

// Resolver returns the place name resolver in use.
func (e *Engine) Resolver() *monitor.NameResolver {
	return e.resolver
}

// Activity returns the retained activity entries, newest first.
func (e *Engine) Activity(filter activity.Category) []activity.Entry {
	return e.log.Entries(filter)
}

// Summary returns the latest headline summary, or nil before the first
// successful poll.
func (e *Engine) Summary() *monitor.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return nil
	}
	s := *e.summary
	return &s
}

// Statuses returns the current connection state per stream.
func (e *Engine) Statuses() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.statuses))
	for name, st := range e.statuses {
		out[name] = st.String()
	}
	return out
}

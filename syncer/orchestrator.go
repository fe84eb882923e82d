// Package syncer drives the per-property sync pipeline: fetch, dedup,
// snapshot, persist, reconcile, suppress, notify, log. Properties are
// isolated from each other: one bad property never halts the batch.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"regsync/adapters"
	"regsync/database"
	"regsync/dedup"
	"regsync/events"
	"regsync/metrics"
	"regsync/models"
	"regsync/notify"
	"regsync/reconcile"
	"regsync/suppress"

	"github.com/apex/log"
)

// Options tunes one orchestrator instance.
type Options struct {
	// PropertyDelay paces the aggregate outbound request rate.
	PropertyDelay time.Duration
	// Workers bounds how many property pipelines run concurrently. 1 keeps
	// the strictly sequential behavior.
	Workers int
	// ActivityDetailCap bounds per-run new-violation detail entries so the
	// activity log cannot grow without bound.
	ActivityDetailCap int
}

// Orchestrator coordinates the sync components.
type Orchestrator struct {
	store      *database.Service
	registry   *adapters.Registry
	suppressor *suppress.Engine
	dispatcher *notify.Dispatcher
	publisher  *events.Publisher
	opts       Options
}

// New creates an orchestrator. The publisher may be nil; change events then
// stay in the database only.
func New(store *database.Service, registry *adapters.Registry, suppressor *suppress.Engine,
	dispatcher *notify.Dispatcher, publisher *events.Publisher, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ActivityDetailCap < 1 {
		opts.ActivityDetailCap = 10
	}
	return &Orchestrator{
		store:      store,
		registry:   registry,
		suppressor: suppressor,
		dispatcher: dispatcher,
		publisher:  publisher,
		opts:       opts,
	}
}

// RunOptions selects the run shape.
type RunOptions struct {
	// Quick restricts the invoked sources to the fast-moving dataset, for
	// frequent partial refreshes between full nightly runs.
	Quick bool
}

// Run iterates the property registry and syncs each entry, pacing properties
// against the upstream rate limits. Partial progress is durable; the run
// never fails for per-property errors.
func (o *Orchestrator) Run(ctx context.Context, runOpts RunOptions) (models.RunTotals, error) {
	start := time.Now()
	props, err := o.store.ListSyncableProperties(ctx)
	if err != nil {
		return models.RunTotals{}, fmt.Errorf("failed to list syncable properties: %w", err)
	}

	log.Infof("Sync run started: %d properties (quick=%v, workers=%d)", len(props), runOpts.Quick, o.opts.Workers)

	var (
		mu     sync.Mutex
		totals = models.RunTotals{PropertiesConsidered: len(props)}
		wg     sync.WaitGroup
		queue  = make(chan models.Property)
	)

	// One shared pacer bounds the aggregate rate across workers. The first
	// property starts immediately; the delay applies between properties.
	pace := func() {}
	if o.opts.PropertyDelay > 0 {
		pacer := time.NewTicker(o.opts.PropertyDelay)
		defer pacer.Stop()
		var started atomic.Bool
		pace = func() {
			if started.CompareAndSwap(false, true) {
				return
			}
			<-pacer.C
		}
	}

	for w := 0; w < o.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range queue {
				pace()
				summary := o.syncGuarded(ctx, &p, nil, runOpts.Quick)

				mu.Lock()
				if summary.Success {
					totals.Synced++
					totals.NewViolations += summary.NewViolations
					totals.ChangeEvents += summary.changeEvents
				} else {
					totals.Errors++
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range props {
		queue <- p
	}
	close(queue)
	wg.Wait()

	log.Infof("Sync run finished in %s: synced=%d errors=%d new=%d events=%d",
		time.Since(start), totals.Synced, totals.Errors, totals.NewViolations, totals.ChangeEvents)
	return totals, nil
}

// SyncProperty is the single-property entry behind the manual trigger.
func (o *Orchestrator) SyncProperty(ctx context.Context, req models.SyncRequest) (models.SyncSummary, error) {
	prop, err := o.store.GetPropertyByIdentifiers(ctx, req.BuildingID, req.ParcelID)
	if err != nil {
		return models.SyncSummary{Success: false, Error: err.Error()}, err
	}
	summary := o.syncGuarded(ctx, prop, &req, false)
	return summary.SyncSummary, nil
}

// propertySummary extends the API summary with run-internal counters.
type propertySummary struct {
	models.SyncSummary
	changeEvents int
}

// syncGuarded is the per-property error boundary: unexpected failures,
// panics included, are counted and logged, never propagated to the loop.
func (o *Orchestrator) syncGuarded(ctx context.Context, p *models.Property, req *models.SyncRequest, quick bool) (summary propertySummary) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while syncing property %d: %v", p.ID, r)
			summary = propertySummary{SyncSummary: models.SyncSummary{Success: false, Error: fmt.Sprintf("panic: %v", r)}}
			metrics.PropertiesSyncedTotal.WithLabelValues("error").Inc()
		}
	}()

	summary, err := o.syncOne(ctx, p, req, quick)
	if err != nil {
		log.WithError(err).Errorf("Failed to sync property %d", p.ID)
		summary.Success = false
		summary.Error = err.Error()
		metrics.PropertiesSyncedTotal.WithLabelValues("error").Inc()
		return summary
	}
	metrics.PropertiesSyncedTotal.WithLabelValues("ok").Inc()
	return summary
}

// syncOne runs the pipeline for a single property. Ordering is load-bearing:
// the pre-snapshot completes before any insert, and inserts complete before
// the post-snapshot, so the diff is meaningful.
func (o *Orchestrator) syncOne(ctx context.Context, p *models.Property, req *models.SyncRequest, quick bool) (propertySummary, error) {
	var summary propertySummary

	lock, err := o.store.AcquirePropertyLock(ctx, p.ID)
	if err != nil {
		return summary, err
	}
	if lock == nil {
		return summary, fmt.Errorf("another sync is running for property %d", p.ID)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.WithError(err).Warnf("Failed to release lock for property %d", p.ID)
		}
	}()

	authorities := p.Authorities
	if req != nil && len(req.Authorities) > 0 {
		authorities = req.Authorities
	}

	ids := adapters.Identifiers{
		PropertyID: p.ID,
		BuildingID: p.BuildingID,
		ParcelID:   p.ParcelID,
		Borough:    p.Borough,
	}

	// Fetching: sources fan out concurrently but land in registry order, so
	// the dedup fold's precedence is deterministic regardless of completion
	// order.
	sources := o.registry.ForAuthorities(authorities, quick)
	batches := o.fetchAll(ctx, sources, ids)
	violations := dedup.MergeViolations(batches)
	summary.TotalFound = len(violations)

	var apps []models.Application
	if !quick {
		apps = o.fetchApplications(ctx, authorities, ids)
	}

	// PreSnapshot
	preViolations, err := o.store.ViolationSnapshot(ctx, p.ID)
	if err != nil {
		return summary, err
	}
	preApps, err := o.store.ApplicationSnapshot(ctx, p.ID)
	if err != nil {
		return summary, err
	}

	// Persisting
	if err := o.store.UpsertViolations(ctx, violations); err != nil {
		return summary, err
	}
	if err := o.store.UpsertApplications(ctx, apps); err != nil {
		return summary, err
	}

	// PostSnapshot / Reconciling
	postViolations, err := o.store.ViolationSnapshot(ctx, p.ID)
	if err != nil {
		return summary, err
	}
	postApps, err := o.store.ApplicationSnapshot(ctx, p.ID)
	if err != nil {
		return summary, err
	}

	entries := reconcile.Diff(p.ID, models.EntityViolation, preViolations, postViolations)
	entries = append(entries, reconcile.Diff(p.ID, models.EntityApplication, preApps, postApps)...)
	summary.changeEvents = len(entries)

	newViolationNumbers := make(map[string]bool)
	for i := range entries {
		metrics.ChangeEventsTotal.WithLabelValues(string(entries[i].ChangeType)).Inc()
		if entries[i].EntityType == models.EntityViolation && entries[i].ChangeType == models.ChangeNew {
			newViolationNumbers[entries[i].EntityID] = true
		}
	}
	summary.NewViolations = len(newViolationNumbers)
	metrics.NewViolationsTotal.Add(float64(summary.NewViolations))

	for i := range violations {
		if newViolationNumbers[violations[i].ViolationNumber] && violations[i].IsCritical() {
			summary.CriticalCount++
		}
	}

	// Change-log insert failure is logged and does not fail the sync.
	if len(entries) > 0 {
		if err := o.store.InsertChangeLog(ctx, entries); err != nil {
			log.WithError(err).Errorf("Failed to insert change log for property %d", p.ID)
		} else if err := o.publisher.PublishChangeEvents(entries); err != nil {
			log.WithError(err).Warnf("Failed to publish change events for property %d", p.ID)
		}
	}

	// Suppressing
	suppressed, err := o.suppressor.Sweep(ctx, o.store, p.ID, time.Now())
	if err != nil {
		log.WithError(err).Errorf("Suppression sweep failed for property %d", p.ID)
	}
	metrics.SuppressedTotal.Add(float64(suppressed))

	// Notifying
	if o.shouldDispatch(req, summary) {
		outcome := notify.Outcome{
			NewViolations: summary.NewViolations,
			CriticalCount: summary.CriticalCount,
			Authorities:   authorities,
		}
		summary.NotificationSent = o.dispatcher.Dispatch(ctx, p, outcome)
		if summary.NotificationSent {
			metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		} else if notify.ShouldNotify(p, outcome) {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		}
	}

	// Logging
	o.logActivity(ctx, p, summary, violations, newViolationNumbers)

	if err := o.store.TouchLastSynced(ctx, p.ID, time.Now()); err != nil {
		log.WithError(err).Warnf("Failed to touch last_synced_at for property %d", p.ID)
	}

	summary.Success = true
	summary.AuthoritiesSynced = uniqueAuthorities(authorities)
	return summary, nil
}

// shouldDispatch applies the request-level critical restriction on top of the
// dispatcher's own gate.
func (o *Orchestrator) shouldDispatch(req *models.SyncRequest, summary propertySummary) bool {
	if req != nil && req.NotifyOnNewCritical {
		return summary.CriticalCount > 0
	}
	return true
}

// fetchAll fans the sources out and collects their batches back in registry
// order.
func (o *Orchestrator) fetchAll(ctx context.Context, sources []adapters.Source, ids adapters.Identifiers) []dedup.Batch {
	batches := make([]dedup.Batch, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src adapters.Source) {
			defer wg.Done()
			start := time.Now()
			batches[i] = dedup.Batch{Dataset: src.Dataset(), Violations: src.Fetch(ctx, ids)}
			metrics.SourceFetchDurationSeconds.WithLabelValues(src.Dataset()).Observe(time.Since(start).Seconds())
		}(i, src)
	}
	wg.Wait()
	return batches
}

func (o *Orchestrator) fetchApplications(ctx context.Context, authorities []models.Authority, ids adapters.Identifiers) []models.Application {
	applicable := make(map[models.Authority]bool, len(authorities))
	for _, a := range authorities {
		applicable[a] = true
	}

	var batches [][]models.Application
	for _, src := range o.registry.Applications {
		if !applicable[src.Authority()] {
			continue
		}
		start := time.Now()
		batches = append(batches, src.Fetch(ctx, ids))
		metrics.SourceFetchDurationSeconds.WithLabelValues(src.Dataset()).Observe(time.Since(start).Seconds())
	}
	return dedup.MergeApplications(batches)
}

// logActivity writes one outcome entry per sync plus a bounded number of
// per-violation detail entries.
func (o *Orchestrator) logActivity(ctx context.Context, p *models.Property, summary propertySummary,
	violations []models.Violation, newNumbers map[string]bool) {

	outcome := models.ActivityEntry{
		PropertyID: p.ID,
		Kind:       "sync",
		Message: fmt.Sprintf("Sync completed: %d records, %d new, %d critical, %d change events",
			summary.TotalFound, summary.NewViolations, summary.CriticalCount, summary.changeEvents),
	}
	if err := o.store.InsertActivity(ctx, outcome); err != nil {
		log.WithError(err).Errorf("Failed to log sync activity for property %d", p.ID)
		return
	}

	logged := 0
	for i := range violations {
		if !newNumbers[violations[i].ViolationNumber] {
			continue
		}
		if logged >= o.opts.ActivityDetailCap {
			break
		}
		entry := models.ActivityEntry{
			PropertyID: p.ID,
			Kind:       "violation_found",
			Message: fmt.Sprintf("%s violation %s: %s",
				violations[i].Authority, violations[i].ViolationNumber, violations[i].Description),
		}
		if err := o.store.InsertActivity(ctx, entry); err != nil {
			log.WithError(err).Errorf("Failed to log violation activity for property %d", p.ID)
			return
		}
		logged++
	}
}

func uniqueAuthorities(in []models.Authority) []models.Authority {
	seen := make(map[models.Authority]bool, len(in))
	var out []models.Authority
	for _, a := range in {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

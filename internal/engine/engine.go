// package engine implements one migration pass between two directory endpoints.
//
// The core abstraction is [Engine], which walks the source account's
// collections, maps each one to a destination collection by display name,
// applies the skip policy, uploads items verbatim and aggregates statistics.
// Per-item and per-collection failures are recorded and processing continues;
// only endpoint-level connectivity failures abort a run. Pause and cancel are
// observed cooperatively at checkpoints between adapter calls.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"davsync/internal/dav"
	"davsync/internal/shared"
)

// Engine performs migration runs for one validated configuration.
// It is stateless between runs except for the statistics each run returns.
type Engine struct {
	cfg     Config
	logger  *log.Logger
	limiter *rate.Limiter
}

// New creates an Engine after validating the configuration.
func New(cfg Config, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	uploadRate := cfg.UploadRate
	if uploadRate <= 0 {
		uploadRate = 5.0
	}

	return &Engine{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(uploadRate), 1),
	}, nil
}

// Run performs one migration pass and returns the accumulated statistics.
//
// The returned stats are valid even when err is non-nil: they reflect the
// work completed up to the failure or cancellation point. Cancellation is
// reported as an error wrapping shared.ErrCancelled with Partial set on the
// statistics.
func (e *Engine) Run(ctx context.Context, ctl *Control, sink Sink) (*Stats, error) {
	if sink == nil {
		sink = NopSink{}
	}
	stats := NewStats()

	sink.Progress(connectUpdate(e.cfg.Source.Name()))
	sink.Log(LogInfo, fmt.Sprintf("Connecting to source: %s", e.cfg.Source.Name()))
	if err := e.cfg.Source.Authenticate(ctx); err != nil {
		return stats, fmt.Errorf("source: %w", err)
	}

	sink.Progress(connectUpdate(e.cfg.Destination.Name()))
	sink.Log(LogInfo, fmt.Sprintf("Connecting to destination: %s", e.cfg.Destination.Name()))
	if err := e.cfg.Destination.Authenticate(ctx); err != nil {
		return stats, fmt.Errorf("destination: %w", err)
	}

	if e.cfg.DryRun {
		sink.Log(LogInfo, "DRY RUN MODE - no changes will be made")
	}

	for _, kind := range e.cfg.kinds() {
		if err := e.migrateKind(ctx, kind, ctl, stats, sink); err != nil {
			if errors.Is(err, shared.ErrCancelled) {
				stats.Partial = true
			}
			return stats, err
		}
	}

	sink.Progress(runDoneUpdate())
	return stats, nil
}

// collectionPlan pairs a source collection with its pre-enumerated items.
// Total unit counts for progress reporting need the full item inventory of a
// kind before the first collection is processed.
type collectionPlan struct {
	col     dav.CollectionRef
	items   []dav.ItemRef
	listErr error
}

// migrateKind runs the migration loop for one collection kind.
func (e *Engine) migrateKind(ctx context.Context, kind dav.Kind, ctl *Control, stats *Stats, sink Sink) error {
	ks := stats.Kind(kind)
	logger := shared.WithLogger(e.logger, "kind", kind.String())

	cols, err := e.cfg.Source.ListCollections(ctx, kind)
	if err != nil {
		return fmt.Errorf("source: enumerating %ss: %w", kind.CollectionName(), err)
	}
	if len(cols) == 0 {
		msg := fmt.Sprintf("No %ss found on source server", kind.CollectionName())
		logger.Warn(msg)
		sink.Log(LogWarning, msg)
		sink.Progress(kindDoneUpdate(kind, 0, 0, 0))
		return nil
	}

	destCols, err := e.cfg.Destination.ListCollections(ctx, kind)
	if err != nil {
		return fmt.Errorf("destination: enumerating %ss: %w", kind.CollectionName(), err)
	}
	byName := make(map[string]dav.CollectionRef, len(destCols))
	for _, col := range destCols {
		byName[col.DisplayName] = col
	}

	// Item inventory is taken up front so the total unit count is fixed for
	// the whole kind. A collection whose enumeration fails contributes one
	// unit and is marked failed when its turn comes.
	plans := make([]collectionPlan, 0, len(cols))
	total := 0
	for _, col := range cols {
		items, listErr := e.cfg.Source.ListItems(ctx, col)
		if listErr != nil {
			logger.Warn("failed to enumerate items", "collection", col.DisplayName, "err", listErr)
		}
		plans = append(plans, collectionPlan{col: col, items: items, listErr: listErr})
		total += 1 + len(items)
	}

	processed := 0
	report := func() {
		pct := processed * 100 / total
		if pct > 99 {
			pct = 99
		}
		sink.Progress(unitUpdate(kind, processed, total, ks.ItemsSkipped, pct))
	}

	for _, plan := range plans {
		if err := ctl.Checkpoint(ctx); err != nil {
			return err
		}

		name := plan.col.DisplayName
		logger.Info("processing collection", "name", name)

		if plan.listErr != nil {
			ks.CollectionsFailed++
			sink.Log(LogWarning, fmt.Sprintf("Failed to list items in %s '%s': %v", kind.CollectionName(), name, plan.listErr))
			processed++
			report()
			continue
		}

		target, ok := byName[name]
		created := false
		if !ok {
			if !e.cfg.CreateMissing {
				ks.CollectionsFailed++
				msg := fmt.Sprintf("%s '%s' not found on destination (skipping)", kind.CollectionName(), name)
				logger.Warn(msg)
				sink.Log(LogWarning, msg)
				processed += 1 + len(plan.items)
				report()
				continue
			}

			if e.cfg.DryRun {
				sink.Log(LogInfo, fmt.Sprintf("[DRY RUN] Would create %s: '%s'", kind.CollectionName(), name))
			} else {
				target, err = e.cfg.Destination.CreateCollection(ctx, name, kind)
				if err != nil {
					ks.CollectionsFailed++
					msg := fmt.Sprintf("Failed to create %s '%s': %v", kind.CollectionName(), name, err)
					logger.Error(msg)
					sink.Log(LogError, msg)
					processed += 1 + len(plan.items)
					report()
					continue
				}
				byName[name] = target
				created = true
				sink.Log(LogInfo, fmt.Sprintf("Created %s: '%s'", kind.CollectionName(), name))
			}
		}

		var colErr error
		if e.cfg.DryRun {
			colErr = e.dryRunCollection(ctx, kind, ctl, plan, stats, sink, &processed, report)
		} else {
			colErr = e.migrateCollection(ctx, kind, ctl, plan, target, created, ks, sink, &processed, report)
		}
		if colErr != nil {
			return colErr
		}

		ks.CollectionsMigrated++
		processed++
		report()
	}

	sink.Progress(kindDoneUpdate(kind, processed, total, ks.ItemsSkipped))
	sink.Log(LogInfo, fmt.Sprintf("%s migration summary: %d migrated, %d failed, %d items migrated, %d failed, %d skipped",
		kind.CollectionName(), ks.CollectionsMigrated, ks.CollectionsFailed, ks.ItemsMigrated, ks.ItemsFailed, ks.ItemsSkipped))
	return nil
}

// dryRunCollection counts a collection's items without writing anything,
// recording a detail entry for the statistics listing.
func (e *Engine) dryRunCollection(ctx context.Context, kind dav.Kind, ctl *Control, plan collectionPlan, stats *Stats, sink Sink, processed *int, report func()) error {
	ks := stats.Kind(kind)
	skipped := 0

	for _, ref := range plan.items {
		if err := ctl.Checkpoint(ctx); err != nil {
			return err
		}

		if kind == dav.KindEvent && e.cfg.SkipDummyEvents {
			payload, err := e.itemPayload(ctx, plan.col, ref)
			if err == nil {
				if meta, err := dav.ParseEventMeta(payload); err == nil && dav.IsDummySummary(meta.Summary) {
					skipped++
				}
			}
		}

		*processed++
		report()
	}

	ks.ItemsSkipped += skipped
	ks.ItemsMigrated += len(plan.items) - skipped

	stats.addDetail(kind, CollectionDetail{
		Name:         plan.col.DisplayName,
		ItemCount:    len(plan.items),
		SkippedCount: skipped,
	})

	if skipped > 0 {
		sink.Log(LogInfo, fmt.Sprintf("[DRY RUN] '%s': %d item(s), %d 'Dummy' event(s) would be skipped", plan.col.DisplayName, len(plan.items), skipped))
	} else {
		sink.Log(LogInfo, fmt.Sprintf("[DRY RUN] '%s': would migrate %d item(s)", plan.col.DisplayName, len(plan.items)))
	}
	return nil
}

// migrateCollection transfers a collection's items into the resolved target.
func (e *Engine) migrateCollection(ctx context.Context, kind dav.Kind, ctl *Control, plan collectionPlan, target dav.CollectionRef, created bool, ks *KindStats, sink Sink, processed *int, report func()) error {
	logger := shared.WithLogger(e.logger, "kind", kind.String(), "collection", plan.col.DisplayName)
	logger.Info("found items", "count", len(plan.items))

	// Existing destination UIDs suppress duplicate uploads. A freshly
	// created collection is empty, so the lookup is skipped.
	existing := map[string]struct{}{}
	if !created {
		existing = e.destinationUIDs(ctx, kind, target)
		logger.Debug("existing items in destination", "count", len(existing))
	}

	migrated := 0
	for _, ref := range plan.items {
		if err := ctl.Checkpoint(ctx); err != nil {
			return err
		}

		payload, err := e.itemPayload(ctx, plan.col, ref)
		if err != nil {
			ks.ItemsFailed++
			sink.Log(LogWarning, fmt.Sprintf("Failed to fetch item %s: %v", ref.ID, err))
			*processed++
			report()
			continue
		}

		// Identity is the UID parsed from the payload. Items without one are
		// treated as always-new: no duplicate suppression.
		meta, metaErr := dav.ParseItemMeta(kind, payload)
		if metaErr != nil {
			logger.Debug("unparseable payload, treating as new", "item", ref.ID, "err", metaErr)
		}

		if kind == dav.KindEvent && e.cfg.SkipDummyEvents && metaErr == nil && dav.IsDummySummary(meta.Summary) {
			ks.ItemsSkipped++
			logger.Debug("skipping dummy event", "item", ref.ID)
			*processed++
			report()
			continue
		}

		if meta.UID != "" {
			if _, dup := existing[meta.UID]; dup {
				ks.ItemsSkipped++
				logger.Debug("skipping duplicate", "uid", meta.UID)
				*processed++
				report()
				continue
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}

		if err := e.cfg.Destination.CreateItem(ctx, target, payload); err != nil {
			ks.ItemsFailed++
			sink.Log(LogWarning, fmt.Sprintf("Failed to migrate item %s: %v", ref.ID, err))
		} else {
			ks.ItemsMigrated++
			migrated++
			if meta.UID != "" {
				existing[meta.UID] = struct{}{}
			}
		}

		*processed++
		report()
	}

	sink.Log(LogInfo, fmt.Sprintf("Migrated %d item(s) to '%s'", migrated, target.DisplayName))
	return nil
}

// destinationUIDs collects the UIDs already present in a destination
// collection. Failures degrade to an empty set: duplicates are then uploaded
// rather than suppressed, which the destination may reject per item.
func (e *Engine) destinationUIDs(ctx context.Context, kind dav.Kind, col dav.CollectionRef) map[string]struct{} {
	uids := make(map[string]struct{})

	items, err := e.cfg.Destination.ListItems(ctx, col)
	if err != nil {
		e.logger.Debug("could not enumerate destination items", "collection", col.DisplayName, "err", err)
		return uids
	}

	for _, ref := range items {
		payload := ref.Payload
		if len(payload) == 0 {
			if payload, err = e.cfg.Destination.FetchItem(ctx, col, ref.ID); err != nil {
				continue
			}
		}
		if meta, err := dav.ParseItemMeta(kind, payload); err == nil && meta.UID != "" {
			uids[meta.UID] = struct{}{}
		}
	}
	return uids
}

// itemPayload returns the payload carried by the enumeration response or
// fetches it from the source.
func (e *Engine) itemPayload(ctx context.Context, col dav.CollectionRef, ref dav.ItemRef) ([]byte, error) {
	if len(ref.Payload) > 0 {
		return ref.Payload, nil
	}
	return e.cfg.Source.FetchItem(ctx, col, ref.ID)
}

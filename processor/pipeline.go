package processor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
	"github.com/withobsrvr/payroll-sync-processor/server"
	"github.com/withobsrvr/payroll-sync-processor/store"
)

// ArchiveSink receives admitted timeline records for durable storage.
// pgsink.Consumer is the production implementation; a nil sink disables
// archiving.
type ArchiveSink interface {
	Archive(ctx context.Context, records []*payroll.LedgerEvent) error
}

// Pipeline enforces the backfill-before-live ordering: it runs the
// historical backfill to completion, establishes the store baseline, and
// only then starts the live watchers feeding the same store.
type Pipeline struct {
	backfiller *Backfiller
	mux        *LiveMultiplexer
	history    *store.HistoryStore
	sink       ArchiveSink
	startBlock uint64
	logger     *zap.Logger

	mu    sync.RWMutex
	phase string
}

// NewPipeline wires the ingestion pipeline. sink may be nil.
func NewPipeline(
	backfiller *Backfiller,
	mux *LiveMultiplexer,
	history *store.HistoryStore,
	sink ArchiveSink,
	startBlock uint64,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		backfiller: backfiller,
		mux:        mux,
		history:    history,
		sink:       sink,
		startBlock: startBlock,
		logger:     logger,
		phase:      "idle",
	}
}

// Run executes the pipeline until the context is cancelled. A backfill
// failure is returned to the caller, which retries the whole range; nothing
// partial reaches the store.
func (p *Pipeline) Run(ctx context.Context) error {
	p.setPhase("backfilling")

	records, maxBlock, err := p.backfiller.Run(ctx, p.startBlock, 0)
	if err != nil {
		p.setPhase("failed")
		return err
	}
	server.ObserveBackfill(len(records))

	if err := p.history.ApplyHistorical(records, maxBlock); err != nil {
		p.setPhase("failed")
		return err
	}
	p.archive(ctx, records)

	p.setPhase("live")
	ch := p.mux.Start(ctx, maxBlock+1)
	for rec := range ch {
		if !p.history.ApplyLive(rec) {
			server.ObserveDuplicate()
			continue
		}
		server.ObserveLiveRecord(string(rec.Kind))
		p.archive(ctx, []*payroll.LedgerEvent{rec})
	}

	p.setPhase("stopped")
	return ctx.Err()
}

// Stop tears down the live watchers. In-flight backfill fetches finish on
// their own and their late result is discarded by the cancelled context.
func (p *Pipeline) Stop() {
	p.mux.Stop()
}

// archive forwards records to the sink. Archiving is best-effort: a sink
// failure is logged and counted but never stalls reconciliation.
func (p *Pipeline) archive(ctx context.Context, records []*payroll.LedgerEvent) {
	if p.sink == nil || len(records) == 0 {
		return
	}
	if err := p.sink.Archive(ctx, records); err != nil {
		server.ObserveArchiveError()
		p.logger.Warn("failed to archive timeline records",
			zap.Int("records", len(records)),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) setPhase(phase string) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
	p.logger.Info("pipeline phase", zap.String("phase", phase))
}

// Phase returns the current pipeline phase for the health endpoint.
func (p *Pipeline) Phase() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

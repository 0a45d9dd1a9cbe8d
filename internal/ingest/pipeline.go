package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/lastclick/internal/metrics"
	"github.com/roach88/lastclick/internal/model"
	"github.com/roach88/lastclick/internal/store"
)

// Stage names a state of an ingestion run.
type Stage string

const (
	StageFetched    Stage = "FETCHED"
	StageMapped     Stage = "MAPPED"
	StageDeduped    Stage = "DEDUPED"
	StageReconciled Stage = "RECONCILED"
	StagePersisted  Stage = "PERSISTED"
)

// Fetcher supplies the fetched records of one run.
type Fetcher interface {
	FetchOrders(ctx context.Context) ([]model.FetchedOrder, error)
}

// Report summarizes one run. Persisted counts are zero unless the run
// committed.
type Report struct {
	Fetched        int `json:"fetched"`
	Rejected       int `json:"rejected"`
	Duplicates     int `json:"duplicates"`
	Orders         int `json:"orders"`
	Products       int `json:"products"`
	ReusedProducts int `json:"reused_products"`
	OrderProducts  int `json:"order_products"`
}

// Pipeline runs batches through mapping, de-duplication, reconciliation and
// persistence.
type Pipeline struct {
	writer  store.Writer
	mapper  *Mapper
	metrics *metrics.Registry
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIDGenerator sets the surface id source. Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(p *Pipeline) {
		p.mapper = NewMapper(ids)
	}
}

// WithMetrics records run outcomes on reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(p *Pipeline) {
		p.metrics = reg
	}
}

// New creates a Pipeline writing through w.
func New(w store.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		writer: w,
		mapper: NewMapper(UUIDv7Generator{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunFrom fetches one batch from f and runs it.
func (p *Pipeline) RunFrom(ctx context.Context, f Fetcher) (Report, error) {
	records, err := f.FetchOrders(ctx)
	if err != nil {
		err = storageError(StageFetched, "fetch orders", err)
		p.record(Report{}, err, 0)
		return Report{}, err
	}
	return p.Run(ctx, records)
}

// Run processes one batch end to end. Malformed records are skipped and
// counted; any other failure aborts the run with nothing written.
func (p *Pipeline) Run(ctx context.Context, records []model.FetchedOrder) (Report, error) {
	start := time.Now()
	report, err := p.run(ctx, records)
	p.record(report, err, time.Since(start))
	return report, err
}

func (p *Pipeline) run(ctx context.Context, records []model.FetchedOrder) (Report, error) {
	report := Report{Fetched: len(records)}
	slog.Info("ingest run starting", "stage", StageFetched, "records", len(records))

	triples := make([]model.Triple, 0, len(records))
	for i, rec := range records {
		t, err := p.mapper.Map(rec)
		if err != nil {
			if !IsMalformedFact(err) {
				return report, err
			}
			report.Rejected++
			slog.Warn("rejecting malformed record", "index", i, "error", err)
			continue
		}
		triples = append(triples, t)
	}
	slog.Debug("records mapped", "stage", StageMapped, "triples", len(triples), "rejected", report.Rejected)

	if err := ctx.Err(); err != nil {
		return report, aborted(StageMapped, err)
	}

	var written Report
	err := p.writer.WithWriter(ctx, func(tx store.Port) error {
		var err error
		written, err = p.persist(ctx, tx, triples)
		return err
	})
	if err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = storageError(StagePersisted, "write transaction", err)
		}
		return report, err
	}

	report.Duplicates = written.Duplicates
	report.Orders = written.Orders
	report.Products = written.Products
	report.ReusedProducts = written.ReusedProducts
	report.OrderProducts = written.OrderProducts

	slog.Info("ingest run complete",
		"stage", StagePersisted,
		"orders", report.Orders,
		"products", report.Products,
		"reused_products", report.ReusedProducts,
		"order_products", report.OrderProducts,
		"duplicates", report.Duplicates,
		"rejected", report.Rejected,
	)
	return report, nil
}

// persist runs the storage-dependent stages inside one writer transaction.
// Inserts go Products → Orders → OrderProducts.
func (p *Pipeline) persist(ctx context.Context, tx store.Port, triples []model.Triple) (Report, error) {
	var r Report

	existing, err := tx.FindOrderFingerprints(ctx, orderFingerprints(triples))
	if err != nil {
		return r, storageError(StageDeduped, "find order fingerprints", err)
	}
	fresh := Dedupe(existing, triples)
	r.Duplicates = len(triples) - len(fresh)
	slog.Debug("orders deduplicated", "stage", StageDeduped, "new", len(fresh), "duplicates", r.Duplicates)

	if len(fresh) == 0 {
		slog.Info("no new orders to persist")
		return r, nil
	}
	if err := ctx.Err(); err != nil {
		return r, aborted(StageDeduped, err)
	}

	stored, err := tx.FindProductsByKey(ctx, productKeys(fresh))
	if err != nil {
		return r, storageError(StageReconciled, "find products by key", err)
	}
	reconciled, err := Reconcile(ProductIndex(stored), fresh)
	if err != nil {
		return r, err
	}

	var orders []model.Order
	var products []model.Product
	var orderProducts []model.OrderProduct
	speculative := 0
	for i, t := range reconciled {
		speculative += len(fresh[i].Products)
		orders = append(orders, t.Order)
		products = append(products, t.Products...)
		orderProducts = append(orderProducts, t.OrderProducts...)
	}
	slog.Debug("products reconciled",
		"stage", StageReconciled,
		"new_products", len(products),
		"reused_products", speculative-len(products),
		"order_products", len(orderProducts),
	)

	if err := ctx.Err(); err != nil {
		return r, aborted(StageReconciled, err)
	}

	if err := tx.InsertProducts(ctx, products); err != nil {
		return r, storageError(StagePersisted, "insert products", err)
	}
	if err := tx.InsertOrders(ctx, orders); err != nil {
		return r, storageError(StagePersisted, "insert orders", err)
	}
	if err := tx.InsertOrderProducts(ctx, orderProducts); err != nil {
		return r, storageError(StagePersisted, "insert order products", err)
	}

	r.Orders = len(orders)
	r.Products = len(products)
	r.ReusedProducts = speculative - len(products)
	r.OrderProducts = len(orderProducts)
	return r, nil
}

func (p *Pipeline) record(r Report, err error, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.Fetched.Add(float64(r.Fetched))
	p.metrics.Rejected.Add(float64(r.Rejected))
	p.metrics.RunDurationSec.Observe(elapsed.Seconds())
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return
	}
	p.metrics.Duplicates.Add(float64(r.Duplicates))
	p.metrics.Orders.Add(float64(r.Orders))
	p.metrics.Products.Add(float64(r.Products))
	p.metrics.ReusedProducts.Add(float64(r.ReusedProducts))
	p.metrics.OrderProducts.Add(float64(r.OrderProducts))
}

// storageError classifies a failed storage call: constraint failures are
// integrity violations, everything else is an availability failure.
func storageError(stage Stage, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return aborted(stage, err)
	}
	code := ErrCodeStorageUnavailable
	if errors.Is(err, store.ErrConstraint) {
		code = ErrCodeIntegrityViolation
	}
	return &PipelineError{Code: code, Stage: stage, Message: op, Err: err}
}

func aborted(stage Stage, err error) error {
	return fmt.Errorf("ingest run aborted after %s: %w", stage, err)
}

// Package analysis runs the upload pipeline: sample the file's leading bytes,
// derive fingerprint and seed, generate the motion series and score it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/cache"
	"github.com/FairForge/scoutline/internal/database"
	"github.com/FairForge/scoutline/internal/fingerprint"
	"github.com/FairForge/scoutline/internal/metrics"
	"github.com/FairForge/scoutline/internal/motion"
	"github.com/FairForge/scoutline/internal/performance"
	"github.com/FairForge/scoutline/internal/predict"
	"github.com/FairForge/scoutline/internal/sampler"
	"github.com/FairForge/scoutline/internal/store"
	"github.com/FairForge/scoutline/internal/valuation"
)

// ErrNotFound is returned by Lookup when no result exists for a fingerprint.
var ErrNotFound = errors.New("analysis not found")

// MaxSampleCount bounds Options.SampleCount.
const MaxSampleCount = 1000

// Result is what the dashboard renders for one upload. Results handed out by
// the Analyzer may be shared with its cache and must be treated as read-only.
type Result struct {
	ID          string                    `json:"id"`
	Fingerprint string                    `json:"fingerprint"`
	Seed        int64                     `json:"seed"`
	File        sampler.FileInfo          `json:"file"`
	Samples     []motion.Sample           `json:"samples"`
	Scores      performance.Scores        `json:"scores"`
	Physical    performance.PhysicalStats `json:"physical"`
	Prediction  predict.Prediction        `json:"prediction"`
	Degraded    bool                      `json:"degraded"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// Options tune a single Analyze call. Zero fields take the Analyzer defaults.
type Options struct {
	SampleCount int
	HashBytes   int64
	SeedBytes   int64
	Owner       string
}

// DefaultOptions returns the production prefix lengths and series size.
func DefaultOptions() Options {
	return Options{
		SampleCount: motion.DefaultSampleCount,
		HashBytes:   fingerprint.DefaultHashBytes,
		SeedBytes:   fingerprint.DefaultSeedBytes,
	}
}

// Indexer records finished analyses for per-owner listing.
type Indexer interface {
	RecordAnalysis(ctx context.Context, rec *database.AnalysisRecord) error
}

// Config wires an Analyzer. Only Sampler is required.
type Config struct {
	Sampler  *sampler.Sampler
	Cache    cache.Cache[*Result]
	Store    *store.ResultStore
	Index    Indexer
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Defaults Options
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	sampler  *sampler.Sampler
	cache    cache.Cache[*Result]
	store    *store.ResultStore
	index    Indexer
	metrics  *metrics.Collector
	logger   *zap.Logger
	defaults Options
	now      func() time.Time
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	a := &Analyzer{
		sampler:  cfg.Sampler,
		cache:    cfg.Cache,
		store:    cfg.Store,
		index:    cfg.Index,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		defaults: mergeOptions(cfg.Defaults, DefaultOptions()),
		now:      time.Now,
	}
	if a.sampler == nil {
		a.sampler = sampler.New(0)
	}
	if a.metrics == nil {
		a.metrics = metrics.NewCollector()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// WithClock replaces the time source used for CreatedAt.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

func mergeOptions(opts, defaults Options) Options {
	if opts.SampleCount == 0 {
		opts.SampleCount = defaults.SampleCount
	}
	if opts.HashBytes <= 0 {
		opts.HashBytes = defaults.HashBytes
	}
	if opts.SeedBytes <= 0 {
		opts.SeedBytes = defaults.SeedBytes
	}
	return opts
}

func cacheKey(fp string, samples int) string {
	return fmt.Sprintf("%s#%d", fp, samples)
}

// Analyze runs the pipeline for f.
//
// A ReadError while sampling does not fail the call: the prefix is treated as
// empty, the result is marked Degraded and is neither cached nor persisted.
// Cancellation of ctx itself is returned as an error.
//
// If persisting fails the result is still returned together with the error.
func (a *Analyzer) Analyze(ctx context.Context, f sampler.RawFile, opts Options) (*Result, error) {
	start := time.Now()
	opts = mergeOptions(opts, a.defaults)
	if opts.SampleCount < 0 || opts.SampleCount > MaxSampleCount {
		return nil, fmt.Errorf("sample count %d outside 0-%d", opts.SampleCount, MaxSampleCount)
	}

	info := f.Info()
	prefix, err := a.sampler.SampleOrEmpty(ctx, f, max(opts.HashBytes, opts.SeedBytes))
	degraded := false
	if err != nil {
		var readErr *sampler.ReadError
		if !errors.As(err, &readErr) || ctx.Err() != nil {
			a.metrics.RecordAnalysis(metrics.OutcomeError, time.Since(start))
			return nil, fmt.Errorf("sample %s: %w", info.Name, err)
		}
		degraded = true
		a.metrics.RecordReadError()
		a.logger.Warn("read failed, analyzing with empty prefix",
			zap.String("file", info.Name),
			zap.Int64("size", info.Size),
			zap.Error(err))
	}

	d := fingerprint.Derive(info, head(prefix, opts.HashBytes), head(prefix, opts.SeedBytes))
	key := cacheKey(d.Fingerprint, opts.SampleCount)

	if !degraded && a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			a.metrics.RecordCacheHit()
			a.metrics.RecordAnalysis(metrics.OutcomeCached, 0)
			// The result may have been computed for another owner.
			if err := a.record(ctx, cached, uuid.NewString(), opts.Owner, a.now().UTC()); err != nil {
				return cached, err
			}
			return cached, nil
		}
		a.metrics.RecordCacheMiss()
	}

	res := a.build(info, d, opts.SampleCount, degraded)

	outcome := metrics.OutcomeOK
	if degraded {
		outcome = metrics.OutcomeDegraded
		a.metrics.RecordAnalysis(outcome, time.Since(start))
		return res, nil
	}

	if a.cache != nil {
		a.cache.Put(ctx, key, res)
	}

	persistErr := a.persist(ctx, res, opts)
	a.metrics.RecordAnalysis(outcome, time.Since(start))

	a.logger.Info("analysis complete",
		zap.String("id", res.ID),
		zap.String("fingerprint", res.Fingerprint),
		zap.Int64("seed", res.Seed),
		zap.Int("samples", len(res.Samples)),
		zap.Float64("overall", res.Scores.Overall),
		zap.Duration("took", time.Since(start)))

	if persistErr != nil {
		return res, persistErr
	}
	return res, nil
}

func (a *Analyzer) build(info sampler.FileInfo, d fingerprint.Derivation, k int, degraded bool) *Result {
	samples := motion.Generate(d.Seed, k)
	report := performance.Evaluate(samples)
	return &Result{
		ID:          uuid.NewString(),
		Fingerprint: d.Fingerprint,
		Seed:        d.Seed,
		File:        info,
		Samples:     samples,
		Scores:      report.Scores,
		Physical:    report.Physical,
		Prediction:  predict.Predict(report.Scores),
		Degraded:    degraded,
		CreatedAt:   a.now().UTC(),
	}
}

func (a *Analyzer) persist(ctx context.Context, res *Result, opts Options) error {
	if a.store != nil {
		if err := a.store.Save(ctx, cacheKey(res.Fingerprint, len(res.Samples)), res); err != nil {
			a.metrics.RecordPersistError()
			a.logger.Error("failed to persist result",
				zap.String("fingerprint", res.Fingerprint),
				zap.Error(err))
			return fmt.Errorf("persist result: %w", err)
		}
	}
	return a.record(ctx, res, res.ID, opts.Owner, res.CreatedAt)
}

// record indexes res for owner. Rows are unique per fingerprint and owner, so
// recording the same pair again only refreshes it.
func (a *Analyzer) record(ctx context.Context, res *Result, rowID, owner string, at time.Time) error {
	if a.index != nil {
		err := a.index.RecordAnalysis(ctx, &database.AnalysisRecord{
			ID:          rowID,
			Fingerprint: res.Fingerprint,
			Owner:       owner,
			Seed:        res.Seed,
			Overall:     res.Scores.Overall,
			Degraded:    res.Degraded,
			CreatedAt:   at,
		})
		if err != nil {
			a.metrics.RecordPersistError()
			a.logger.Error("failed to index result",
				zap.String("fingerprint", res.Fingerprint),
				zap.Error(err))
			return fmt.Errorf("index result: %w", err)
		}
	}
	return nil
}

// Lookup returns the default-length result for a fingerprint from the cache
// or, failing that, the store.
func (a *Analyzer) Lookup(ctx context.Context, fp string) (*Result, error) {
	key := cacheKey(fp, a.defaults.SampleCount)
	if a.cache != nil {
		if res, ok := a.cache.Get(ctx, key); ok {
			a.metrics.RecordCacheHit()
			return res, nil
		}
		a.metrics.RecordCacheMiss()
	}
	if a.store == nil {
		return nil, fmt.Errorf("%s: %w", fp, ErrNotFound)
	}

	var res Result
	if err := a.store.Load(ctx, key, &res); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", fp, ErrNotFound)
		}
		return nil, fmt.Errorf("load result: %w", err)
	}
	if a.cache != nil {
		a.cache.Put(ctx, cacheKey(fp, len(res.Samples)), &res)
	}
	return &res, nil
}

// Value projects the market value of the player in a stored analysis. The
// forecast is seeded with the analysis seed, so it is reproducible.
func (a *Analyzer) Value(ctx context.Context, fp string, p valuation.Profile, months int) (*Result, valuation.Forecast, error) {
	res, err := a.Lookup(ctx, fp)
	if err != nil {
		return nil, valuation.Forecast{}, err
	}
	if months <= 0 {
		months = valuation.DefaultMonths
	}
	f, err := valuation.Project(p, res.Scores.Overall, res.Seed, months)
	if err != nil {
		return res, valuation.Forecast{}, err
	}
	return res, f, nil
}

func head(b []byte, n int64) []byte {
	if int64(len(b)) <= n {
		return b
	}
	return b[:n]
}

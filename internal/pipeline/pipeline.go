package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/observability"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// ResultPublisher forwards completed analyses downstream.
type ResultPublisher interface {
	Publish(ctx context.Context, r domain.Result) error
}

// Stage names used in logs and metrics.
const (
	StageChangeDetection = "change_detection"
	StageExclusion       = "exclusion"
	StageHistoricalWater = "historical_water"
	StageTerrain         = "terrain"
	StageFusion          = "fusion"
	StageArea            = "area"
	StagePublish         = "publish"
)

// Pipeline runs flood analyses against a raster backend. It holds no state
// between runs; concurrent calls to Run are safe.
type Pipeline struct {
	backend     raster.Backend
	settings    Settings
	collections Collections
	catalog     ReferenceCatalog
	publisher   ResultPublisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	newID       func() string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithCollections overrides the dataset identifiers.
func WithCollections(c Collections) Option {
	return func(p *Pipeline) { p.collections = c }
}

// WithReferenceCatalog enables reference-flood overlays.
func WithReferenceCatalog(c ReferenceCatalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithPublisher forwards every completed analysis to pub.
func WithPublisher(pub ResultPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithIDGenerator replaces the random analysis IDs.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// New creates a Pipeline. Settings are validated up front so a bad
// configuration never reaches the backend.
func New(backend raster.Backend, settings Settings, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Pipeline, error) {
	if backend == nil {
		return nil, errors.New("pipeline: nil raster backend")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline settings: %w", err)
	}
	p := &Pipeline{
		backend:     backend,
		settings:    settings,
		collections: DefaultCollections(),
		logger:      logger,
		metrics:     metrics,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Settings returns the configured pipeline constants.
func (p *Pipeline) Settings() Settings { return p.settings }

// CheckReadiness reports whether the raster backend is reachable. Backends
// that cannot be pinged are assumed ready.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	pinger, ok := p.backend.(raster.Pinger)
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("raster backend not ready: %w", err)
	}
	return nil
}

// Run executes one analysis from change detection through tile
// publication. Either a complete Result is returned or an error; partial
// results are never produced. Cancellation is checked before every stage,
// and nothing externally visible happens before the tile URL is requested.
func (p *Pipeline) Run(ctx context.Context, a domain.Analysis) (domain.Result, error) {
	if a.AOI.IsZero() {
		return domain.Result{}, domain.Degenerate("aoi", "must be set")
	}

	id := p.newID()
	run := &run{
		p:      p,
		ctx:    ctx,
		logger: p.logger.With("analysis_id", id, "event_date", a.Window.EventDate(), "mode", p.settings.Mode),
	}
	start := time.Now()
	p.metrics.AnalysesInFlight.Inc()
	defer p.metrics.AnalysesInFlight.Dec()

	run.logger.Info("analysis started",
		"polarization", a.Polarization,
		"orbit", a.Orbit,
		"days_before", a.Window.DaysBefore,
		"days_after", a.Window.DaysAfter,
	)

	result, err := run.execute(id, a)
	outcome := outcomeOf(err)
	p.metrics.AnalysesTotal.WithLabelValues(p.settings.Mode, outcome).Inc()
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		run.logger.Warn("analysis failed", "outcome", outcome, "error", err)
		return domain.Result{}, err
	}

	p.metrics.FloodedHectares.Observe(result.AreaHectares)
	run.logger.Info("analysis completed",
		"area_hectares", result.AreaHectares,
		"tile_url", result.TileURL,
		"duration", time.Since(start),
	)
	p.publish(ctx, run.logger, result)
	return result, nil
}

// publish is best effort: the analysis already succeeded and its tile layer
// exists, so a downstream failure is logged and counted only.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, r domain.Result) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, r); err != nil {
		p.metrics.PublishErrors.Inc()
		logger.Error("publish result failed", "error", err)
		return
	}
	p.metrics.ResultsPublished.Inc()
}

type run struct {
	p      *Pipeline
	ctx    context.Context
	logger *slog.Logger
}

// stage checks for cancellation, then times fn.
func (r *run) stage(name string, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		r.logger.Info("analysis cancelled", "before_stage", name)
		return err
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	r.logger.Debug("stage finished", "stage", name, "duration", elapsed, "ok", err == nil)
	return err
}

func (r *run) execute(id string, a domain.Analysis) (domain.Result, error) {
	p := r.p
	s := p.settings
	c := p.collections
	res := domain.Result{ID: id, Analysis: a, Mode: s.Mode}

	var change Change
	if err := r.stage(StageChangeDetection, func() (err error) {
		change, err = DetectChange(r.ctx, p.backend, a, s, c)
		return err
	}); err != nil {
		return domain.Result{}, err
	}

	mask := binaryMask(change.FloodVariation)
	if s.Mode == domain.ModeFuzzy {
		var err error
		mask, res.Calibration, err = r.fuzzyStages(a, change)
		if err != nil {
			return domain.Result{}, err
		}
	}
	res.FloodMask = mask

	if err := r.stage(StageArea, func() (err error) {
		res.AreaHectares, err = FloodedArea(r.ctx, p.backend, mask, a, s)
		return err
	}); err != nil {
		return domain.Result{}, err
	}

	if err := r.stage(StagePublish, func() (err error) {
		res.TileURL, err = PublishTiles(r.ctx, p.backend, mask, s)
		return err
	}); err != nil {
		return domain.Result{}, err
	}

	res.CompletedAt = domain.Now()
	return res, nil
}

// fuzzyStages runs exclusion, historical water, terrain and fusion.
func (r *run) fuzzyStages(a domain.Analysis, change Change) (raster.Image, *domain.Calibration, error) {
	p := r.p
	s := p.settings
	c := p.collections

	floodVariation := change.FloodVariation
	if err := r.stage(StageExclusion, func() error {
		floodVariation = Exclude(floodVariation, BuiltUpIndex(a, s, c), EventPrecipitation(a, c), s)
		return nil
	}); err != nil {
		return raster.Image{}, nil, err
	}

	var water Water
	if err := r.stage(StageHistoricalWater, func() (err error) {
		water, err = CalibrateWater(r.ctx, p.backend, a, s, c, p.reference(a))
		return err
	}); err != nil {
		return raster.Image{}, nil, err
	}
	if water.Calibration.Fallback {
		p.metrics.CalibrationFallback.Inc()
		r.logger.Info("historical water statistics undefined, using fallback breakpoints",
			"lo", water.Calibration.Lo, "hi", water.Calibration.Hi)
	}
	if water.Calibration.Reference {
		p.metrics.ReferenceBlends.Inc()
		r.logger.Info("reference flood extent blended")
	}

	var terrain raster.Image
	if err := r.stage(StageTerrain, func() error {
		terrain = TerrainMembership(a, s, c)
		return nil
	}); err != nil {
		return raster.Image{}, nil, err
	}

	var fusion Fusion
	if err := r.stage(StageFusion, func() error {
		fusion = Fuse(floodVariation, water.Membership, terrain, s)
		return nil
	}); err != nil {
		return raster.Image{}, nil, err
	}

	calibration := water.Calibration
	return fusion.Mask, &calibration, nil
}

func (p *Pipeline) reference(a domain.Analysis) orb.MultiPolygon {
	if p.catalog == nil {
		return nil
	}
	mp, _ := p.catalog.Lookup(a.Window.EventDate())
	return mp
}

// outcomeOf maps an error to its metric label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrDataAvailability):
		return "data_unavailable"
	case errors.Is(err, domain.ErrExternalService):
		return "external_error"
	case errors.Is(err, domain.ErrDegenerateInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal_error"
	}
}

package forecast

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/immansha/renewcast/core/logger"
	"github.com/immansha/renewcast/core/model"
)

const (
	// WarmupSamples is the number of readings answered by the heuristic.
	WarmupSamples = 3
	// HistoryWindow is the number of deviations considered for anomalies.
	HistoryWindow = 6
	// MAEHistorySize bounds the MAE history ring.
	MAEHistorySize = 20
	// AnomalyThreshold is the relative deviation every window entry must
	// stay below for the site to be flagged.
	AnomalyThreshold = -0.15
	// DefaultSnapshotEvery is the per-site update period of snapshots.
	DefaultSnapshotEvery = 50

	improvingLag    = 5
	reportedMAEHist = 5
	minP50ForDev    = 1.0
)

var quantiles = [3]float64{0.1, 0.5, 0.9}

var quantileKeys = [3]string{"p10", "p50", "p90"}

// Config defines forecast engine settings.
type Config struct {
	LearningRate  float64 `json:"learning_rate"`
	SnapshotPath  string  `json:"snapshot_path"`
	SnapshotEvery int     `json:"snapshot_every"`
}

// SetDefaults applies the default learning rate and snapshot period.
func (c *Config) SetDefaults() {
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = DefaultSnapshotEvery
	}
}

// state is the per-site ModelState.
type state struct {
	models   [3]QuantileModel
	maeSum   float64
	maeCount int
	nTrained int
	maeHist  *Ring
	devHist  *Ring
}

func (s *state) mae() float64 {
	if s.maeCount == 0 {
		return 0
	}
	return s.maeSum / float64(s.maeCount)
}

// Engine owns the model state of every site.
type Engine struct {
	cfg     Config
	factory ModelFactory
	now     func() time.Time
	log     logger.Logger

	mu      sync.Mutex
	states  map[string]*state
	cursors map[string]int64
}

// Option customises an Engine.
type Option func(*Engine)

// WithModelFactory replaces the SGD quantile models.
func WithModelFactory(f ModelFactory) Option {
	return func(e *Engine) {
		if f != nil {
			e.factory = f
		}
	}
}

// WithClock sets the time source used when a reading carries no hour.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine and restores the snapshot at cfg.SnapshotPath
// if one is readable.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.SetDefaults()
	e := &Engine{
		cfg:     cfg,
		factory: SGDFactory(cfg.LearningRate),
		now:     time.Now,
		log:     logger.Nop{},
		states:  make(map[string]*state),
		cursors: make(map[string]int64),
	}
	for _, o := range opts {
		o(e)
	}
	e.load()
	return e
}

func (e *Engine) newState() *state {
	s := &state{maeHist: NewRing(MAEHistorySize), devHist: NewRing(HistoryWindow)}
	for i, a := range quantiles {
		s.models[i] = e.factory(a)
	}
	return s
}

// Update learns from one merged reading of entityID and returns the forecast
// for it. Missing or malformed fields are defaulted; Update never fails.
func (e *Engine) Update(entityID string, row model.Row) model.ForecastRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[entityID]
	if !ok {
		s = e.newState()
		e.states[entityID] = s
	}

	x := Extract(row, e.now()).Vector()
	actual := row.Float(model.KeyACPower, 0)
	capacity := row.Float(model.KeyCapacity, DefaultCapacity)

	if s.nTrained > 0 {
		pre := s.models[1].Predict(x)
		s.maeSum += math.Abs(actual - pre)
		s.maeCount++
		for _, m := range s.models {
			m.Learn(x, actual)
		}
	}

	var p10, p50, p90 float64
	if s.nTrained < WarmupSamples {
		cloud := row.Float(model.KeyCloudFraction, DefaultCloud)
		p50 = capacity * math.Max(0, 1-cloud) * 0.7
		p10 = p50 * 0.8
		p90 = math.Min(capacity, p50*1.2)
	} else {
		p10, p50, p90 = clampBand(s.models[0].Predict(x), s.models[1].Predict(x), s.models[2].Predict(x), capacity)
	}

	s.nTrained++

	rec := model.ForecastRecord{
		EntityID: entityID,
		P10:      round(p10, 2),
		P50:      round(p50, 2),
		P90:      round(p90, 2),
		ActualMW: round(actual, 2),
		NTrained: s.nTrained,
	}

	if s.nTrained > WarmupSamples {
		mae := round(s.mae(), 3)
		s.maeHist.Push(mae)
		rec.MAE = &mae
		if n := s.maeHist.Len(); n >= improvingLag {
			imp := s.maeHist.At(n-1) < s.maeHist.At(n-improvingLag)
			rec.Improving = &imp
		}
		if p50 > minP50ForDev {
			s.devHist.Push((actual - p50) / p50)
		}
	}
	rec.MAEHist = s.maeHist.Last(reportedMAEHist)
	rec.Deviation = s.devHist.Values()
	rec.Anomaly = s.devHist.Full() && s.devHist.All(func(d float64) bool { return d < AnomalyThreshold })

	if e.cfg.SnapshotPath != "" && s.nTrained%e.cfg.SnapshotEvery == 0 {
		if err := e.saveLocked(); err != nil {
			e.log.Warnf("snapshot save failed: %v", err)
		}
	}
	return rec
}

// clampBand keeps the band ordered and inside [0, capacity].
func clampBand(p10, p50, p90, capacity float64) (float64, float64, float64) {
	p50 = math.Min(math.Max(0, p50), math.Max(0, capacity))
	p10 = math.Min(math.Max(0, p10), p50)
	p90 = math.Min(math.Max(p50, p90), math.Max(p50, capacity))
	return p10, p50, p90
}

// Trained returns the training counter of entityID.
func (e *Engine) Trained(entityID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.states[entityID]; ok {
		return s.nTrained
	}
	return 0
}

// Cursor returns the input offset of stream saved with the model state.
func (e *Engine) Cursor(stream string) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	off, ok := e.cursors[stream]
	return off, ok
}

// SetCursor records how far stream has been consumed. It is persisted with
// the next snapshot.
func (e *Engine) SetCursor(stream string, off int64) {
	e.mu.Lock()
	e.cursors[stream] = off
	e.mu.Unlock()
}

// Entities lists the sites with model state, sorted.
func (e *Engine) Entities() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.states))
	for id := range e.states {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Save writes a snapshot of every site to the configured path.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked()
}

func (e *Engine) saveLocked() error {
	if e.cfg.SnapshotPath == "" {
		return nil
	}
	snap := Snapshot{SavedAt: e.now().UTC(), Entities: make(map[string]EntitySnapshot, len(e.states))}
	if len(e.cursors) > 0 {
		snap.Cursors = make(map[string]int64, len(e.cursors))
		for k, v := range e.cursors {
			snap.Cursors[k] = v
		}
	}
	for id, s := range e.states {
		es := EntitySnapshot{
			NTrained:   s.nTrained,
			MAESum:     s.maeSum,
			MAECount:   s.maeCount,
			MAEHistory: s.maeHist.Values(),
			Deviations: s.devHist.Values(),
			Regressors: make(map[string]json.RawMessage, len(s.models)),
		}
		for i, m := range s.models {
			raw, err := json.Marshal(m)
			if err != nil {
				return err
			}
			es.Regressors[quantileKeys[i]] = raw
		}
		snap.Entities[id] = es
	}
	return WriteSnapshot(e.cfg.SnapshotPath, snap)
}

func (e *Engine) load() {
	if e.cfg.SnapshotPath == "" {
		return
	}
	snap, err := ReadSnapshot(e.cfg.SnapshotPath)
	if err != nil {
		e.log.Debugf("no usable snapshot at %s: %v", e.cfg.SnapshotPath, err)
		return
	}
	for id, es := range snap.Entities {
		s := e.newState()
		s.nTrained = es.NTrained
		s.maeSum = es.MAESum
		s.maeCount = es.MAECount
		s.maeHist.restore(es.MAEHistory)
		s.devHist.restore(es.Deviations)
		for i, key := range quantileKeys {
			raw, ok := es.Regressors[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, s.models[i]); err != nil {
				s.models[i] = e.factory(quantiles[i])
			}
		}
		e.states[id] = s
	}
	for k, v := range snap.Cursors {
		e.cursors[k] = v
	}
	e.log.Infof("restored model state for %d plants", len(snap.Entities))
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

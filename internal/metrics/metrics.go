// Package metrics exposes Prometheus metrics for the recommender.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kwrec/internal/models"
	"kwrec/internal/registry"
)

var (
	contextLookupDesc = prometheus.NewDesc(
		"kwrec_context_lookups_total",
		"Total recommend lookups by last context keyword and outcome",
		[]string{"keyword", "outcome"},
		nil,
	)
	modelLoadedDesc = prometheus.NewDesc(
		"kwrec_model_loaded",
		"1 when a model is being served",
		nil, nil,
	)
	modelGenerationDesc = prometheus.NewDesc(
		"kwrec_model_generation",
		"Generation of the active model",
		nil, nil,
	)
	modelVocabularyDesc = prometheus.NewDesc(
		"kwrec_model_vocabulary_size",
		"Distinct keywords in the active model",
		nil, nil,
	)
	modelEventsDesc = prometheus.NewDesc(
		"kwrec_model_events",
		"Keyword events counted into the active model",
		nil, nil,
	)
	modelContextsDesc = prometheus.NewDesc(
		"kwrec_model_contexts",
		"Distinct contexts with successors, by order",
		[]string{"order"},
		nil,
	)
)

// LookupStore counts recommend lookups by outcome.
type LookupStore interface {
	IncrementContextLookup(ctx context.Context, keyword, outcome string) error
	GetAllContextLookups(ctx context.Context) ([]models.ContextLookup, error)
}

// LookupCollector is a custom Prometheus collector that reads lookup
// counts from its store on each scrape.
type LookupCollector struct {
	store LookupStore
}

// Describe sends the metric descriptor to the channel.
func (c *LookupCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- contextLookupDesc
}

// Collect reads all lookups and emits them as counters.
func (c *LookupCollector) Collect(ch chan<- prometheus.Metric) {
	lookups, err := c.store.GetAllContextLookups(context.Background())
	if err != nil {
		slog.Error("failed to collect context lookup metrics", "error", err)
		return
	}
	for _, l := range lookups {
		ch <- prometheus.MustNewConstMetric(
			contextLookupDesc,
			prometheus.CounterValue,
			float64(l.Count),
			l.Keyword,
			l.Outcome,
		)
	}
}

// ModelCollector reports the registry's active model on each scrape.
type ModelCollector struct {
	registry *registry.Registry
}

// Describe implements prometheus.Collector.
func (c *ModelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- modelLoadedDesc
	ch <- modelGenerationDesc
	ch <- modelVocabularyDesc
	ch <- modelEventsDesc
	ch <- modelContextsDesc
}

// Collect implements prometheus.Collector.
func (c *ModelCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.registry.Current()
	if s == nil {
		ch <- prometheus.MustNewConstMetric(modelLoadedDesc, prometheus.GaugeValue, 0)
		return
	}
	m := s.Model
	ch <- prometheus.MustNewConstMetric(modelLoadedDesc, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(modelGenerationDesc, prometheus.GaugeValue, float64(s.Generation))
	ch <- prometheus.MustNewConstMetric(modelVocabularyDesc, prometheus.GaugeValue, float64(m.Size()))
	ch <- prometheus.MustNewConstMetric(modelEventsDesc, prometheus.GaugeValue, float64(m.Events()))
	for k := 1; k <= m.Order(); k++ {
		ch <- prometheus.MustNewConstMetric(modelContextsDesc, prometheus.GaugeValue, float64(m.Contexts(k)), strconv.Itoa(k))
	}
}

// Metrics owns the collectors and the async lookup recorder.
type Metrics struct {
	lookups LookupStore
	wg      sync.WaitGroup

	queryDuration *prometheus.HistogramVec
	trainingRuns  *prometheus.CounterVec
	trainingFiles *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	publishes     *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer, lookups LookupStore, active *registry.Registry) *Metrics {
	m := &Metrics{
		lookups: lookups,
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kwrec_query_duration_seconds",
			Help:    "Latency of recommend and autocomplete queries",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"operation"}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwrec_training_runs_total",
			Help: "Training runs by result",
		}, []string{"result"}),
		trainingFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwrec_training_files_total",
			Help: "Trace files processed by training, by result",
		}, []string{"result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwrec_model_reloads_total",
			Help: "Model load attempts by result",
		}, []string{"result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwrec_model_publishes_total",
			Help: "Models made active, by kind of source",
		}, []string{"source"}),
	}
	reg.MustRegister(m.queryDuration, m.trainingRuns, m.trainingFiles, m.reloads, m.publishes)
	reg.MustRegister(&LookupCollector{store: lookups})
	reg.MustRegister(&ModelCollector{registry: active})
	if active != nil {
		active.OnPublish(func(s *registry.Snapshot) {
			m.publishes.WithLabelValues(sourceKind(s.Source)).Inc()
		})
	}
	return m
}

// sourceKind drops the path from sources like "file:/x/model.kwm".
func sourceKind(source string) string {
	kind, _, _ := strings.Cut(source, ":")
	if kind == "" {
		return "unknown"
	}
	return kind
}

// ObserveQuery records how long one query took.
func (m *Metrics) ObserveQuery(operation string, d time.Duration) {
	m.queryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordTraining counts a training run and its files.
func (m *Metrics) RecordTraining(ok bool, filesOK, filesFailed int) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.trainingRuns.WithLabelValues(result).Inc()
	m.trainingFiles.WithLabelValues("ok").Add(float64(filesOK))
	m.trainingFiles.WithLabelValues("failed").Add(float64(filesFailed))
}

// RecordReload counts a model load attempt.
func (m *Metrics) RecordReload(err error) {
	if err != nil {
		m.reloads.WithLabelValues("failure").Inc()
		return
	}
	m.reloads.WithLabelValues("success").Inc()
}

// RecordContextLookup asynchronously records a recommend lookup outcome.
func (m *Metrics) RecordContextLookup(keyword, outcome string) {
	if m == nil || m.lookups == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.lookups.IncrementContextLookup(context.Background(), keyword, outcome); err != nil {
			slog.Error("failed to record context lookup", "keyword", keyword, "outcome", outcome, "error", err)
		}
	}()
}

// Wait blocks until pending lookup writes finish.
func (m *Metrics) Wait() {
	m.wg.Wait()
}

// MemoryLookups counts lookups in process when no database is configured.
type MemoryLookups struct {
	mu     sync.Mutex
	counts map[[2]string]*models.ContextLookup
}

// NewMemoryLookups returns an empty in-process lookup store.
func NewMemoryLookups() *MemoryLookups {
	return &MemoryLookups{counts: make(map[[2]string]*models.ContextLookup)}
}

// IncrementContextLookup implements LookupStore.
func (s *MemoryLookups) IncrementContextLookup(_ context.Context, keyword, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{keyword, outcome}
	l, ok := s.counts[key]
	if !ok {
		l = &models.ContextLookup{Keyword: keyword, Outcome: outcome}
		s.counts[key] = l
	}
	l.Count++
	l.LastSeenAt = time.Now().UTC()
	return nil
}

// GetAllContextLookups implements LookupStore.
func (s *MemoryLookups) GetAllContextLookups(_ context.Context) ([]models.ContextLookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContextLookup, 0, len(s.counts))
	for _, l := range s.counts {
		out = append(out, *l)
	}
	return out, nil
}

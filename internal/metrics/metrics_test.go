package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"kwrec/internal/model"
	"kwrec/internal/models"
	"kwrec/internal/registry"
)

func sampleModel() *model.Model {
	events := []models.KeywordEvent{
		{Name: "Open", SequenceIndex: 1},
		{Name: "Click", SequenceIndex: 2},
		{Name: "Close", SequenceIndex: 3},
	}
	return model.Build([][]models.KeywordEvent{events}, model.DefaultBuildOptions())
}

func TestModelCollector(t *testing.T) {
	reg := registry.New(nil)
	c := &ModelCollector{registry: reg}

	expected := `
# HELP kwrec_model_loaded 1 when a model is being served
# TYPE kwrec_model_loaded gauge
kwrec_model_loaded 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "kwrec_model_loaded"); err != nil {
		t.Errorf("unloaded registry: %v", err)
	}

	reg.Publish(sampleModel(), "test")
	expected = `
# HELP kwrec_model_contexts Distinct contexts with successors, by order
# TYPE kwrec_model_contexts gauge
kwrec_model_contexts{order="1"} 2
kwrec_model_contexts{order="2"} 1
# HELP kwrec_model_vocabulary_size Distinct keywords in the active model
# TYPE kwrec_model_vocabulary_size gauge
kwrec_model_vocabulary_size 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "kwrec_model_contexts", "kwrec_model_vocabulary_size"); err != nil {
		t.Errorf("loaded registry: %v", err)
	}
}

func TestRecordContextLookup(t *testing.T) {
	lookups := NewMemoryLookups()
	m := New(prometheus.NewRegistry(), lookups, registry.New(nil))

	m.RecordContextLookup("Open", "order_1")
	m.RecordContextLookup("Open", "order_1")
	m.RecordContextLookup("Open", models.OutcomeUnigram)
	m.Wait()

	expected := `
# HELP kwrec_context_lookups_total Total recommend lookups by last context keyword and outcome
# TYPE kwrec_context_lookups_total counter
kwrec_context_lookups_total{keyword="Open",outcome="order_1"} 2
kwrec_context_lookups_total{keyword="Open",outcome="unigram"} 1
`
	if err := testutil.CollectAndCompare(&LookupCollector{store: lookups}, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestRecordTrainingAndReload(t *testing.T) {
	m := New(prometheus.NewRegistry(), NewMemoryLookups(), registry.New(nil))

	m.RecordTraining(true, 3, 1)
	m.RecordTraining(false, 0, 2)
	m.RecordReload(nil)
	m.RecordReload(errors.New("corrupt"))
	m.ObserveQuery("recommend", time.Millisecond)

	if got := testutil.ToFloat64(m.trainingRuns.WithLabelValues("success")); got != 1 {
		t.Errorf("training success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.trainingFiles.WithLabelValues("failed")); got != 3 {
		t.Errorf("failed files = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.reloads.WithLabelValues("failure")); got != 1 {
		t.Errorf("reload failures = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.queryDuration); got != 1 {
		t.Errorf("query duration series = %d, want 1", got)
	}
}

func TestRecordContextLookup_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordContextLookup("A", "empty")
}

func TestPublishesBySourceKind(t *testing.T) {
	reg := registry.New(nil)
	m := New(prometheus.NewRegistry(), NewMemoryLookups(), reg)

	reg.Publish(sampleModel(), "file:/var/lib/kwrec/model.kwm")
	reg.Publish(sampleModel(), "training:/traces")
	reg.Publish(sampleModel(), "training:/traces")
	reg.Publish(sampleModel(), "")

	tests := map[string]float64{"file": 1, "training": 2, "unknown": 1}
	for kind, want := range tests {
		if got := testutil.ToFloat64(m.publishes.WithLabelValues(kind)); got != want {
			t.Errorf("publishes{source=%q} = %v, want %v", kind, got, want)
		}
	}
}

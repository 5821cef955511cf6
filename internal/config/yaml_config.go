package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"kwrec/internal/autocomplete"
	"kwrec/internal/model"
	"kwrec/internal/recommend"
	"kwrec/internal/trace"
	"kwrec/internal/training"
)

// Tuning holds the numeric parameters of the model and the query engines.
// It is read from the YAML file named by CONFIG_FILE.
type Tuning struct {
	Model        ModelTuning        `yaml:"model"`
	Recommend    RecommendTuning    `yaml:"recommend"`
	Autocomplete AutocompleteTuning `yaml:"autocomplete"`
	Training     TrainingTuning     `yaml:"training"`
	Store        StoreTuning        `yaml:"store"`
}

// ModelTuning controls model construction.
type ModelTuning struct {
	Order                int  `yaml:"order"`
	IncludeSetupTeardown bool `yaml:"include_setup_teardown"`
	MaxDepth             int  `yaml:"max_depth"` // -1 keeps every depth
	// DefaultLibrary is credited to keywords recorded without a library,
	// e.g. "BuiltIn". Empty leaves them out of every library filter.
	DefaultLibrary string `yaml:"default_library"`
}

// RecommendTuning controls the recommend engine.
type RecommendTuning struct {
	BackoffDiscount   float64 `yaml:"backoff_discount"`
	DefaultMaxResults int     `yaml:"default_max_results"`
}

// AutocompleteTuning controls the autocomplete engine.
type AutocompleteTuning struct {
	Mode              string  `yaml:"mode"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
	MinFuzzyLength    int     `yaml:"min_fuzzy_length"`
	QualityWeight     float64 `yaml:"quality_weight"`
	FrequencyWeight   float64 `yaml:"frequency_weight"`
	DefaultMaxResults int     `yaml:"default_max_results"`
}

// TrainingTuning controls batch training.
type TrainingTuning struct {
	Concurrency int      `yaml:"concurrency"`
	Patterns    []string `yaml:"patterns"`
}

// StoreTuning controls snapshot retention.
type StoreTuning struct {
	KeepSnapshots int `yaml:"keep_snapshots"`
}

// DefaultTuning returns the built-in parameters.
func DefaultTuning() *Tuning {
	return &Tuning{
		Model: ModelTuning{
			Order:                model.DefaultOrder,
			IncludeSetupTeardown: true,
			MaxDepth:             -1,
		},
		Recommend: RecommendTuning{
			BackoffDiscount:   recommend.DefaultBackoffDiscount,
			DefaultMaxResults: recommend.DefaultMaxResults,
		},
		Autocomplete: AutocompleteTuning{
			Mode:              string(autocomplete.ModeFuzzy),
			FuzzyThreshold:    autocomplete.DefaultFuzzyThreshold,
			MinFuzzyLength:    autocomplete.DefaultMinFuzzyLength,
			QualityWeight:     autocomplete.DefaultQualityWeight,
			FrequencyWeight:   autocomplete.DefaultFrequencyWeight,
			DefaultMaxResults: autocomplete.DefaultMaxResults,
		},
		Training: TrainingTuning{
			Concurrency: training.DefaultConcurrency,
			Patterns:    training.DefaultPatterns,
		},
		Store: StoreTuning{KeepSnapshots: 5},
	}
}

// LoadTuning reads the tuning file at path over the defaults.
// A missing file yields the defaults without error.
func LoadTuning(path string) (*Tuning, error) {
	t := DefaultTuning()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return t, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate checks parameter ranges.
func (t *Tuning) Validate() error {
	switch {
	case t.Model.Order < 1 || t.Model.Order > model.MaxOrder:
		return fmt.Errorf("model.order must be between 1 and %d", model.MaxOrder)
	case t.Recommend.BackoffDiscount <= 0 || t.Recommend.BackoffDiscount > 1:
		return fmt.Errorf("recommend.backoff_discount must be in (0, 1]")
	case t.Autocomplete.FuzzyThreshold <= 0 || t.Autocomplete.FuzzyThreshold > 1:
		return fmt.Errorf("autocomplete.fuzzy_threshold must be in (0, 1]")
	case t.Autocomplete.QualityWeight < 0 || t.Autocomplete.FrequencyWeight < 0 ||
		t.Autocomplete.QualityWeight+t.Autocomplete.FrequencyWeight >= 1:
		return fmt.Errorf("autocomplete weights must be non-negative and sum to less than 1")
	case t.Training.Concurrency < 1:
		return fmt.Errorf("training.concurrency must be at least 1")
	}
	if _, err := autocomplete.ParseMode(t.Autocomplete.Mode); err != nil {
		return err
	}
	return nil
}

// BuildOptions converts the model section.
func (t *Tuning) BuildOptions() model.BuildOptions {
	return model.BuildOptions{Order: t.Model.Order, MaxDepth: t.Model.MaxDepth, DefaultLibrary: t.Model.DefaultLibrary}
}

// TrainingOptions converts the model and training sections.
func (t *Tuning) TrainingOptions() training.Options {
	return training.Options{
		Concurrency: t.Training.Concurrency,
		Patterns:    t.Training.Patterns,
		Extract:     trace.Options{IncludeSetupTeardown: t.Model.IncludeSetupTeardown},
		Build:       t.BuildOptions(),
	}
}

// RecommendOptions converts the recommend section.
func (t *Tuning) RecommendOptions() recommend.Options {
	return recommend.Options{BackoffDiscount: t.Recommend.BackoffDiscount}
}

// AutocompleteOptions converts the autocomplete section. The mode is
// assumed valid.
func (t *Tuning) AutocompleteOptions() autocomplete.Options {
	mode, _ := autocomplete.ParseMode(t.Autocomplete.Mode)
	return autocomplete.Options{
		Mode:            mode,
		FuzzyThreshold:  t.Autocomplete.FuzzyThreshold,
		MinFuzzyLength:  t.Autocomplete.MinFuzzyLength,
		QualityWeight:   t.Autocomplete.QualityWeight,
		FrequencyWeight: t.Autocomplete.FrequencyWeight,
	}
}

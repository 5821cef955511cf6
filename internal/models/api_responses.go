package models

import "time"

// RecommendResponse is returned by the recommend and context endpoints.
type RecommendResponse struct {
	Context         []string         `json:"context"`
	Library         string           `json:"library,omitempty"`
	Order           int              `json:"order"`
	Outcome         string           `json:"outcome"`
	Generation      uint64           `json:"model_generation"`
	Recommendations []Recommendation `json:"recommendations"`
}

// AutocompleteResponse is returned by the autocomplete endpoint.
type AutocompleteResponse struct {
	Query       string       `json:"query"`
	Library     string       `json:"library,omitempty"`
	Mode        string       `json:"mode"`
	Generation  uint64       `json:"model_generation"`
	Suggestions []Suggestion `json:"suggestions"`
}

// StatsResponse summarises the active model.
type StatsResponse struct {
	Model       ModelInfo        `json:"model"`
	Contexts    map[string]int   `json:"contexts"`
	TopKeywords []PopularKeyword `json:"top_keywords"`
}

// HealthResponse reports whether the server can answer queries.
type HealthResponse struct {
	Ready      bool      `json:"ready"`
	Generation uint64    `json:"model_generation,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// TrainResponse is returned by the admin train endpoint.
type TrainResponse struct {
	Run        TrainingRun `json:"run"`
	Generation uint64      `json:"model_generation"`
}

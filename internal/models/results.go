package models

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation is a ranked next-keyword candidate.
type Recommendation struct {
	Keyword      string   `json:"keyword"`
	Library      string   `json:"library,omitempty"`
	Confidence   float64  `json:"confidence"`
	UsageCount   int64    `json:"usage_count"`
	Order        int      `json:"order"` // context order the candidate came from, 0 = unigram fallback
	Context      string   `json:"context,omitempty"`
	NextKeywords []string `json:"next_keywords,omitempty"`
}

// Suggestion is a ranked autocomplete candidate.
type Suggestion struct {
	Keyword    string  `json:"keyword"`
	Library    string  `json:"library,omitempty"`
	UsageCount int64   `json:"usage_count"`
	Score      float64 `json:"score"`
	Match      string  `json:"match"`
}

// Autocomplete match kinds, best first.
const (
	MatchPrefix    = "prefix"
	MatchSubstring = "substring"
	MatchFuzzy     = "fuzzy"
)

// PopularKeyword is a keyword with its overall usage count.
type PopularKeyword struct {
	Keyword   string `json:"keyword"`
	Library   string `json:"library,omitempty"`
	Frequency int64  `json:"frequency"`
}

// KeywordCount pairs a keyword with a count.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// LibraryStats summarises one library's share of the training data.
type LibraryStats struct {
	Library      string         `json:"library"`
	KeywordCount int            `json:"keyword_count"`
	TotalUsage   int64          `json:"total_usage"`
	TopKeywords  []KeywordCount `json:"top_keywords"`
}

// ModelInfo describes the active model.
type ModelInfo struct {
	ID             uuid.UUID `json:"id"`
	Order          int       `json:"order"`
	BuiltAt        time.Time `json:"built_at"`
	Traces         int       `json:"traces"`
	Events         int64     `json:"events"`
	VocabularySize int       `json:"vocabulary_size"`
	Libraries      int       `json:"libraries"`
	Generation     uint64    `json:"generation"`
	Source         string    `json:"source"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// TrainingRun records the outcome of one batch training pass.
type TrainingRun struct {
	ID          uuid.UUID `json:"id"`
	ModelID     uuid.UUID `json:"model_id"`
	FilesOK     []string  `json:"files_ok"`
	FilesFailed []string  `json:"files_failed"`
	Events      int64     `json:"events"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// StoredSnapshot is a serialized model persisted in the database.
type StoredSnapshot struct {
	ID             uuid.UUID `json:"id"`
	Order          int       `json:"order"`
	VocabularySize int       `json:"vocabulary_size"`
	Traces         int       `json:"traces"`
	Events         int64     `json:"events"`
	Data           []byte    `json:"-"`
	BuiltAt        time.Time `json:"built_at"`
	CreatedAt      time.Time `json:"created_at"`
}

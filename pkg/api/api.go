// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

// Summary styles accepted in SubmitOptions.
const (
	SummaryStyleBullets   = "Bullets"
	SummaryStyleParagraph = "Paragraph"
)

// Bounds and default for the number of summary points.
const (
	SummaryPointsMin     = 3
	SummaryPointsMax     = 10
	SummaryPointsDefault = 5
)

// Job statuses as reported by the status endpoint.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// SubmitOptions is the JSON-encoded "options" field of a submission.
type SubmitOptions struct {
	NumSummaryPoints int    `json:"num_summary_points"`
	SummaryStyle     string `json:"summary_style"`
}

// DefaultSubmitOptions returns the options used when a client sends none.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		NumSummaryPoints: SummaryPointsDefault,
		SummaryStyle:     SummaryStyleBullets,
	}
}

// SubmitResponse is returned as soon as a job has been scheduled.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse is the snapshot returned for a job.
// The populated fields depend on Status.
type JobStatusResponse struct {
	Status   string      `json:"status"`
	Progress *int        `json:"progress,omitempty"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
	Results  *JobResults `json:"results,omitempty"`
}

// JobResults holds the artifacts of a completed job.
type JobResults struct {
	Transcript string          `json:"transcript"`
	Summary    string          `json:"summary"`
	Sentiment  SentimentReport `json:"sentiment"`
}

// SentimentReport is the structured output of the sentiment stage.
// Percentages are in the range 0-100 and sum to ~100.
type SentimentReport struct {
	Overall  string         `json:"overall_sentiment"`
	Positive float64        `json:"positive"`
	Negative float64        `json:"negative"`
	Neutral  float64        `json:"neutral"`
	Compound float64        `json:"compound_score"`
	Stats    SentimentStats `json:"stats"`
	Note     string         `json:"note,omitempty"`
}

// SentimentStats breaks the report down per sentence.
type SentimentStats struct {
	TotalSentences    int           `json:"total_sentences"`
	PositiveSentences int           `json:"positive_sentences"`
	NegativeSentences int           `json:"negative_sentences"`
	NeutralSentences  int           `json:"neutral_sentences"`
	AverageScores     AverageScores `json:"average_scores"`
}

// AverageScores are the mean VADER proportions across sentences.
type AverageScores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// SearchRequest is the body of a search query.
// JobID is optional; without it the most recently indexed transcript is searched.
type SearchRequest struct {
	Query string `json:"query"`
	JobID string `json:"job_id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResult is a single ranked sentence.
// Index is the sentence position, usable with the context endpoint.
type SearchResult struct {
	Sentence string  `json:"sentence"`
	Score    float64 `json:"score"`
	Index    int     `json:"index"`
}

// SearchResponse lists ranked sentences. Message is set when Results is empty.
type SearchResponse struct {
	JobID   string         `json:"job_id,omitempty"`
	Results []SearchResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// ContextResponse returns the sentences surrounding a search hit.
type ContextResponse struct {
	Context       string `json:"context"`
	SentenceCount int    `json:"sentence_count"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

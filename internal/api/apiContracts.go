package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id         string            `json:"id" example:"job_cz109"`
	DocumentId string            `json:"document_id,omitempty" example:"doc_550"`
	Result     Result            `json:"result"`
	Error      *JobOutgoingError `json:"error,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RankedPassage struct {
	PageIndex  int     `json:"page_index"`
	SeqIndex   int     `json:"seq_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Confidence float32 `json:"confidence" example:"87.5"`
}

type QueryResponse struct {
	Question string          `json:"question"`
	Summary  string          `json:"summary,omitempty"`
	Passages []RankedPassage `json:"passages"`
}

type IngestResponse struct {
	Fingerprint   string `json:"fingerprint"`
	PageCount     int    `json:"page_count"`
	ChunkCount    int    `json:"chunk_count"`
	EmbeddedCount int    `json:"embedded_count"`
	SkippedCount  int    `json:"skipped_count"`
	FromCache     bool   `json:"from_cache"`
}

type IngestProgress struct {
	PagesDone                 int     `json:"pages_done"`
	PagesTotal                int     `json:"pages_total"`
	ElapsedSeconds            float64 `json:"elapsed_seconds"`
	EstimatedSecondsRemaining float64 `json:"estimated_seconds_remaining"`
}

type Result struct {
	Status   string          `json:"status"`
	Step     string          `json:"step,omitempty"`
	Query    *QueryResponse  `json:"query_response,omitempty"`
	Ingest   *IngestResponse `json:"ingest_response,omitempty"`
	Progress *IngestProgress `json:"progress,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

// requests---------------------

type QueryRequest struct {
	DocumentId string  `json:"document_id" validate:"required"`
	Question   string  `json:"question" validate:"required"`
	TopK       int     `json:"top_k,omitempty"`
	MinScore   float32 `json:"min_score,omitempty"`
}

type PageInput struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// IngestPagesRequest carries pre-extracted page text, the alternative to a
// multipart file upload.
type IngestPagesRequest struct {
	DocumentId string      `json:"document_id" validate:"required"`
	Pages      []PageInput `json:"pages" validate:"required"`
}

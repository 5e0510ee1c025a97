package jobModel

import (
	"context"
	"time"

	"github.com/docuqa/docuqa/internal/domain/docModel"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	QueryInit        InternalStatus = "Init"
	QueryCacheCall   InternalStatus = "QueryCache"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	RankingCall      InternalStatus = "Ranking"
	SummarizerCall   InternalStatus = "Summarizer"

	IngestInit       InternalStatus = "IngestInit"
	IngestExtracting InternalStatus = "IngestExtracting"
	IngestChunking   InternalStatus = "IngestChunking"
	IngestEmbedding  InternalStatus = "IngestEmbedding"
	IngestCommitting InternalStatus = "IngestCommitting"

	Error    InternalStatus = "Error"
	Complete InternalStatus = "Complete"

	JobTypeQuery      JobType = "Query"
	JobTypeIngest     JobType = "Ingest"
	JobTypeInvalidate JobType = "Invalidate"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`

	//ingest progress, persisted so GET /status can expose it mid-run
	Progress docModel.Progress `json:"progress,omitempty"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	DocumentId string `json:"document_id"`

	//query jobs
	Question string  `json:"question,omitempty"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float32 `json:"min_score,omitempty"`

	Results []docModel.RankedResult `json:"results,omitempty"`
	Summary string                  `json:"summary,omitempty"`

	//ingest jobs: either a pre-extracted page list or an uploaded file
	Pages          []docModel.RawPage `json:"pages,omitempty"`
	IngestFileName string             `json:"ingest_file_name,omitempty"`
	IngestURL      string             `json:"ingest_url,omitempty"`

	Ingest *docModel.IngestResult `json:"ingest,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

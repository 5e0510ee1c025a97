package adapter

import (
	"fmt"
	"time"

	"github.com/docuqa/docuqa/internal/api"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:   string(job.Status),
		Step:     string(job.CurrentStep),
		Query:    toQueryResponse(job.JobPayload),
		Ingest:   toIngestResponse(job.JobPayload.Ingest),
		Progress: toProgress(job),
	}

	return api.JobResponse{
		Id:         job.Id,
		DocumentId: job.JobPayload.DocumentId,
		StartTime:  job.CreatedTime,
		EndTime:    job.EndTime,
		Error:      errorPtr,
		Result:     result,
	}
}

func toQueryResponse(payload jobModel.JobPayload) *api.QueryResponse {
	if payload.Question == "" {
		return nil
	}

	passages := make([]api.RankedPassage, 0, len(payload.Results))
	for _, r := range payload.Results {
		passages = append(passages, api.RankedPassage{
			PageIndex:  r.Chunk.PageIndex,
			SeqIndex:   r.Chunk.SeqIndex,
			Text:       r.Chunk.Text,
			Score:      r.Score,
			Confidence: r.Confidence,
		})
	}

	return &api.QueryResponse{
		Question: payload.Question,
		Summary:  payload.Summary,
		Passages: passages,
	}
}

func toIngestResponse(result *docModel.IngestResult) *api.IngestResponse {
	if result == nil {
		return nil
	}
	return &api.IngestResponse{
		Fingerprint:   result.Fingerprint,
		PageCount:     result.PageCount,
		ChunkCount:    result.ChunkCount,
		EmbeddedCount: result.EmbeddedCount,
		SkippedCount:  result.SkippedCount,
		FromCache:     result.FromCache,
	}
}

// toProgress only reports progress for a running ingest; a finished job's
// counts live in the ingest response instead.
func toProgress(job jobModel.Job) *api.IngestProgress {
	if job.JobType != jobModel.JobTypeIngest || job.Status != jobModel.JobStatusRunning {
		return nil
	}
	if job.Progress.PagesTotal == 0 {
		return nil
	}
	return &api.IngestProgress{
		PagesDone:                 job.Progress.PagesDone,
		PagesTotal:                job.Progress.PagesTotal,
		ElapsedSeconds:            job.Progress.ElapsedSeconds,
		EstimatedSecondsRemaining: job.Progress.EstimatedSecondsRemaining,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}

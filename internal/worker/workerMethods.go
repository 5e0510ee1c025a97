package worker

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	jobmodel "github.com/docuqa/docuqa/internal/domain/jobModel"
	"github.com/docuqa/docuqa/internal/metrics"
	"github.com/docuqa/docuqa/internal/retrieval"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/internal/retrieval/extract"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)

	timeout := config.QueryJobTimeout
	if job.JobType == jobmodel.JobTypeIngest {
		timeout = config.IngestJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctxTrace, timeout)
	defer cancel()

	log := logger.With("traceId", job.TraceId, "jobId", job.Id)
	log.Debug("Processing job", "type", job.JobType)

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job = ingestDocument(ctx, job)
	case jobmodel.JobTypeInvalidate:
		job = invalidateDocument(ctx, job)
	default:
		job = processQuery(ctx, job)
	}

	job.EndTime = time.Now()
	if job.Status != jobmodel.JobStatusError {
		job.Status = jobmodel.JobStatusComplete
		job.CurrentStep = jobmodel.Complete
	}
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		log.Error("Failed to persist finished job", "err", err)
	}
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}

func ingestDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	pages := job.JobPayload.Pages

	if len(pages) == 0 && job.JobPayload.IngestURL != "" {
		job.CurrentStep = jobmodel.IngestExtracting
		saveJobState(ctx, job, jobmodel.JobStatusRunning)

		extracted, err := extract.File(job.JobPayload.IngestURL)
		if err != nil {
			return jobError(job, err, "EXTRACTION_FAILURE", http.StatusUnprocessableEntity, false)
		}
		pages = extracted

		defer func() {
			if err := os.Remove(job.JobPayload.IngestURL); err != nil {
				logger.Error("Error removing uploaded file", "error", err)
			}
		}()
	}

	job.CurrentStep = jobmodel.IngestEmbedding
	observer := progressPersister(ctx, job)

	result, err := _retrievalService.IngestDocument(ctx, job.JobPayload.DocumentId, pages, observer)
	if err != nil {
		if errors.Is(err, retrieval.ErrNoContent) {
			logger.Warn("Ingestion produced no retrievable content", "docId", job.JobPayload.DocumentId)
			job.JobPayload.Ingest = &result
			job.JobPayload.Pages = nil
			return jobError(job, err, "NO_CONTENT", http.StatusUnprocessableEntity, false)
		}
		if errors.Is(err, embedding.ErrModelUnavailable) {
			return jobError(job, err, "MODEL_UNAVAILABLE", http.StatusServiceUnavailable, false)
		}
		return jobError(job, err, "INGESTION_FAILURE", http.StatusInternalServerError, true)
	}

	job.JobPayload.Ingest = &result
	job.JobPayload.Pages = nil //no need to persist page text with the job
	return job
}

func processQuery(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.RankingCall

	results, err := _retrievalService.AnswerQuery(ctx, job.JobPayload.DocumentId,
		job.JobPayload.Question, job.JobPayload.TopK, job.JobPayload.MinScore)
	if err != nil {
		if errors.Is(err, retrieval.ErrDocumentNotIngested) {
			return jobError(job, err, "DOCUMENT_NOT_INGESTED", http.StatusConflict, false)
		}
		if errors.Is(err, embedding.ErrModelUnavailable) {
			return jobError(job, err, "MODEL_UNAVAILABLE", http.StatusServiceUnavailable, false)
		}
		return jobError(job, err, "QUERY_FAILURE", http.StatusInternalServerError, true)
	}
	job.JobPayload.Results = results

	if _summarizer != nil && len(results) > 0 {
		job.CurrentStep = jobmodel.SummarizerCall
		summary, err := _summarizer.Summarize(ctx, job.JobPayload.Question, results)
		if err != nil {
			// ranked results stand on their own
			logger.Error("Summarizer failed", "err", err)
		} else {
			job.JobPayload.Summary = summary
		}
	}
	return job
}

func invalidateDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	if err := _retrievalService.Invalidate(ctx, job.JobPayload.DocumentId); err != nil {
		if errors.Is(err, retrieval.ErrDocumentNotIngested) {
			return jobError(job, err, "DOCUMENT_NOT_INGESTED", http.StatusNotFound, false)
		}
		return jobError(job, err, "INVALIDATION_FAILURE", http.StatusInternalServerError, true)
	}
	return job
}

// progressPersister writes ingest progress back onto the stored job so a
// status poll can see how far along a long scan is.
func progressPersister(ctx context.Context, job jobmodel.Job) docModel.ProgressObserver {
	return docModel.ProgressFunc(func(p docModel.Progress) {
		job.Progress = p
		job.Status = jobmodel.JobStatusRunning
		if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
			logger.Error("Failed to persist progress", "err", err)
		}
	})
}

func jobError(job jobmodel.Job, err error, message string, code int, canRetry bool) jobmodel.Job {
	logger.Error(message, "error", err)

	job.Error = jobmodel.JobError{
		Code:    code,
		Message: message,
		Retry:   canRetry,
	}
	job.Status = jobmodel.JobStatusError
	job.CurrentStep = jobmodel.Error
	return job
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job status", "err", err)
	}
}

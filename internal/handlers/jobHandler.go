package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/domain/jobModel"
	"github.com/docuqa/docuqa/internal/job"
	"github.com/docuqa/docuqa/internal/metrics"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
}

func CreateNewJob(newJob newJobData) {
	log := logJH.With("traceId", newJob.traceId, "job id", newJob.id)
	log.Info("To create new job", "type", newJob.jobType)
	handlerInstance.pushToJobChannel(newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {
	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued
	_job.JobType = newJob.jobType
	_job.JobPayload.DocumentId = newJob.documentId

	switch newJob.jobType {
	case jobModel.JobTypeIngest:
		_job.CurrentStep = jobModel.IngestInit
		_job.JobPayload.Pages = newJob.pages
		_job.JobPayload.IngestFileName = newJob.documentName
		_job.JobPayload.IngestURL = newJob.documentSource

	case jobModel.JobTypeInvalidate:
		_job.CurrentStep = jobModel.QueryInit

	default:
		_job.CurrentStep = jobModel.QueryInit
		_job.JobPayload.Question = newJob.question
		_job.JobPayload.TopK = newJob.topK
		_job.JobPayload.MinScore = newJob.minScore
	}

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //blocking send so the system is not overwhelmed
	logJH.Info("Created new job")

	//grow the pool every N requests, and always for ingestion: batch
	//embedding holds a worker for a while, so a dedicated one keeps the
	//query path responsive
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		metrics.StartDispatcherSignalCount() //metrics
		logJH.Debug("Worker count ", accurateCount)
		h.service.DispatcherChannel <- true
	}
}

type newJobData struct {
	id             string
	traceId        string
	jobType        jobModel.JobType
	documentId     string
	question       string
	topK           int
	minScore       float32
	pages          []docModel.RawPage
	documentName   string
	documentSource string
}

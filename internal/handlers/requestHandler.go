package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docuqa/docuqa/internal/adapter"
	"github.com/docuqa/docuqa/internal/adapter/utils"
	"github.com/docuqa/docuqa/internal/api"
	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/domain/jobModel"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var logRH *logger_i.Logger

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// QueryHandler godoc
// @Summary      Ask a question against an ingested document
// @Description  Accepts a question, initializes a background retrieval job, and returns a job ID to track status.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request  body      api.QueryRequest     true  "Document ID, question, and optional top_k / min_score"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data"
// @Router       /query [post]
func QueryHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.QueryRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !validateQueryRequest(requestData) {
		logRH.Warn("Bad Query Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.DocumentId, "Bad Request")
		return
	}

	newJob := newJobData{
		id:         utils.GetNewUUID(),
		traceId:    request.Context().Value(config.TRACE_ID_KEY).(string),
		jobType:    jobModel.JobTypeQuery,
		documentId: requestData.DocumentId,
		question:   requestData.Question,
		topK:       requestData.TopK,
		minScore:   requestData.MinScore,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID, including ingest progress while the job runs.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse  "The current status of the job"
// @Failure      404  {object}  api.JobResponse  "Job not found"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, r.Context().Value(config.TRACE_ID_KEY).(string))

	logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler godoc
// @Summary      Ingest a document
// @Description  Accepts either a multipart file upload (PDF, DOCX, TXT, RTF, ODT) or a JSON body of pre-extracted page text, and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        document_id  formData  string  false  "Document identifier"
// @Param        document     formData  file    false  "The file to upload"
// @Success      202  {object}  api.InitJobResponse  "Accepted"
// @Failure      400  {object}  api.JobResponse      "Missing fields or file too large"
// @Failure      500  {object}  api.JobResponse      "Storage or write error"
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		ingestFromUpload(w, r)
		return
	}
	ingestFromPages(w, r)
}

// DeleteDocumentHandler godoc
// @Summary      Remove an ingested document
// @Description  Queues an invalidation job that removes the document's cached content and every derived query result.
// @Tags         Ingestion
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  api.InitJobResponse  "Accepted"
// @Router       /document/{id} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	docID := utils.GetChiURLParam(r, "id")
	if docID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
		return
	}

	newJob := newJobData{
		id:         utils.GetNewUUID(),
		traceId:    r.Context().Value(config.TRACE_ID_KEY).(string),
		jobType:    jobModel.JobTypeInvalidate,
		documentId: docID,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

func ingestFromUpload(w http.ResponseWriter, r *http.Request) {
	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory :", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docID := r.FormValue("document_id")
	if docID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_id is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docID, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docID, "Storage error")
		return
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docID, "Write error")
		return
	}

	newJob := newJobData{
		id:             utils.GetNewUUID(),
		traceId:        r.Context().Value(config.TRACE_ID_KEY).(string),
		jobType:        jobModel.JobTypeIngest,
		documentId:     docID,
		documentName:   fileMetadata.Filename,
		documentSource: tempFilePath,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

func ingestFromPages(w http.ResponseWriter, r *http.Request) {
	var requestData api.IngestPagesRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil ||
		requestData.DocumentId == "" || len(requestData.Pages) == 0 {
		logRH.Warn("Bad Ingest Request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.DocumentId, "Bad Request")
		return
	}

	pages := make([]docModel.RawPage, 0, len(requestData.Pages))
	for _, p := range requestData.Pages {
		pages = append(pages, docModel.RawPage{Index: p.Index, Text: p.Text})
	}

	newJob := newJobData{
		id:         utils.GetNewUUID(),
		traceId:    r.Context().Value(config.TRACE_ID_KEY).(string),
		jobType:    jobModel.JobTypeIngest,
		documentId: requestData.DocumentId,
		pages:      pages,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

func validateQueryRequest(req api.QueryRequest) bool {
	if handlerInstance == nil {
		return false
	}
	return req.DocumentId != "" && strings.TrimSpace(req.Question) != ""
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body reader :", "err", err)
	}
}

package httptransport

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"blast-job-service/internal/entity"
	"blast-job-service/internal/service"
)

const maxBodyBytes = 16 << 20

type Handler struct {
	svc *service.BlastService
	log zerolog.Logger
}

func NewHandler(svc *service.BlastService, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "handler").Logger()}
}

type runBlastDTO struct {
	BlastType    string `json:"blast_type"`
	Database     string `json:"database"`
	Sequence     string `json:"sequence"`
	OutputFormat string `json:"output_format,omitempty"` // -outfmt code, default "6"
}

type runBlastResp struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
	ResultURL string `json:"result_url"`
}

type jobResp struct {
	JobID     string            `json:"job_id"`
	State     entity.JobState   `json:"state"`
	Mode      entity.SearchMode `json:"blast_type,omitempty"`
	Database  string            `json:"database,omitempty"`
	CreatedAt string            `json:"created_at,omitempty"`
}

type databasesResp struct {
	Databases []string `json:"databases"`
}

// ListDatabases godoc
// @Summary List searchable databases
// @Tags databases
// @Produce json
// @Success 200 {object} databasesResp
// @Failure 500 {object} apiError
// @Router /databases [get]
func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.Databases()
	if err != nil {
		h.log.Error().Err(err).Msg("list databases")
		writeErr(w, http.StatusInternalServerError, "failed to list databases")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, databasesResp{Databases: names})
}

// RunBlast godoc
// @Summary Submit a sequence search
// @Description Writes the query, stages the database and hands the job to the batch scheduler.
// @Description Accepts form fields or a JSON body.
// @Tags jobs
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Param request body runBlastDTO true "search request (blast_type: blastn|blastp|blastx|tblastn|megablast)"
// @Success 202 {object} runBlastResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /run_blast [post]
func (h *Handler) RunBlast(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var dto runBlastDTO
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
	} else {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeErr(w, http.StatusBadRequest, "invalid form")
			return
		}
		dto = runBlastDTO{
			BlastType:    r.FormValue("blast_type"),
			Database:     r.FormValue("database"),
			Sequence:     r.FormValue("sequence"),
			OutputFormat: r.FormValue("output_format"),
		}
	}

	id, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		Mode:         dto.BlastType,
		Database:     dto.Database,
		Sequence:     dto.Sequence,
		OutputFormat: dto.OutputFormat,
	})
	if err != nil {
		h.writeSubmitErr(w, err)
		return
	}

	resultURL := "/results/" + id.String()
	w.Header().Set("Location", resultURL)
	writeJSON(w, http.StatusAccepted, runBlastResp{
		JobID:     id.String(),
		StatusURL: "/jobs/" + id.String(),
		ResultURL: resultURL,
	})
}

func (h *Handler) writeSubmitErr(w http.ResponseWriter, err error) {
	var subErr *entity.SubmissionError
	switch {
	case entity.IsClientError(err):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &subErr):
		writeJSON(w, http.StatusInternalServerError, apiError{
			Message:    "job submission failed",
			Diagnostic: subErr.Diagnostic,
		})
	case errors.Is(err, entity.ErrDatasetStagingFailed):
		writeErr(w, http.StatusInternalServerError, "database staging failed")
	default:
		h.log.Error().Err(err).Msg("submit job")
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// GetResult godoc
// @Summary Get search result
// @Description Returns the raw search engine output once the job has finished.
// @Tags jobs
// @Produce plain
// @Param token path string true "job token"
// @Success 200 {string} string
// @Failure 404 {object} apiError
// @Failure 500 {object} apiError
// @Router /results/{token} [get]
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	res, err := h.svc.Poll(r.Context(), token)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", token).Msg("read result")
		writeErr(w, http.StatusInternalServerError, "failed to read result")
		return
	}

	switch res.Status {
	case entity.PollComplete:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Content)
	case entity.PollPending:
		writeErr(w, http.StatusNotFound, "result not yet available")
	case entity.PollFailed:
		writeJSON(w, http.StatusInternalServerError, apiError{
			Message:    "search failed",
			Diagnostic: res.Diagnostic,
		})
	default:
		writeErr(w, http.StatusNotFound, "job not found")
	}
}

// GetJob godoc
// @Summary Get job state
// @Tags jobs
// @Produce json
// @Param token path string true "job token"
// @Success 200 {object} jobResp
// @Failure 404 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs/{token} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	view, err := h.svc.Describe(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			writeErr(w, http.StatusNotFound, "job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", token).Msg("describe job")
		writeErr(w, http.StatusInternalServerError, "failed to read job state")
		return
	}

	resp := jobResp{
		JobID:    view.ID,
		State:    view.State,
		Mode:     view.Mode,
		Database: view.Database,
	}
	if view.CreatedAt != nil {
		resp.CreatedAt = view.CreatedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
)

type listResponse struct {
	PetID   string                `json:"pet_id"`
	Source  string                `json:"source"`
	Stale   bool                  `json:"stale"`
	Reports []entity.HealthReport `json:"reports"`
}

type mutationResponse struct {
	ID       string `json:"id"`
	Op       string `json:"op"`
	ReportID string `json:"report_id"`
	State    string `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")
	v, err := h.svc.Load(r.Context(), petID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reps := v.Reports
	if reps == nil {
		reps = []entity.HealthReport{}
	}
	writeJSON(w, http.StatusOK, listResponse{PetID: petID, Source: string(v.Source), Stale: v.Stale, Reports: reps})
}

func (h *Handler) uploadReport(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, r, common.NewAppError("BAD_REQUEST", fmt.Sprintf("invalid multipart body: %v", err), common.ErrInvalidInput))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, common.NewAppError("BAD_REQUEST", "form field 'file' is required", common.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, common.NewAppError("BAD_REQUEST", "read upload", errors.Join(common.ErrInvalidInput, err)))
		return
	}

	rep, err := h.svc.Upload(r.Context(), reports.UploadRequest{
		PetID:      petID,
		Title:      r.FormValue("title"),
		Filename:   hdr.Filename,
		MIMEType:   hdr.Header.Get("Content-Type"),
		Data:       data,
		ImageURL:   r.FormValue("image_url"),
		ReportType: r.FormValue("report_type"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (h *Handler) deleteReport(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Delete(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "reportID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{ID: m.ID, Op: m.Op, ReportID: m.ReportID, State: string(m.State)})
}

func (h *Handler) listPreviews(w http.ResponseWriter, r *http.Request) {
	previews := h.svc.Previews(chi.URLParam(r, "petID"))
	if previews == nil {
		previews = []entity.ReportPreview{}
	}
	writeJSON(w, http.StatusOK, previews)
}

func (h *Handler) exportReports(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "export is not configured"})
		return
	}
	petID := chi.URLParam(r, "petID")
	b, err := h.exporter.ExportReportsXLSX(r.Context(), petID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("reports-%s-%s.xlsx", petID, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache(chi.URLParam(r, "petID"))
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrOCRFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrFetchFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		if status < 500 {
			resp.Error = appErr.Message
		}
	}
	if status >= 500 {
		common.LoggerFromContext(r.Context(), h.logger).Error("http.error", "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

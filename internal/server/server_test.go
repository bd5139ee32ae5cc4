package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
	"github.com/joseph-ayodele/pet-health-tracker/internal/reports"
)

type fakeService struct {
	view      reports.View
	loadErr   error
	uploaded  []reports.UploadRequest
	uploadErr error
	deleteErr error
	cleared   []string
	previews  []entity.ReportPreview
}

func (f *fakeService) Load(_ context.Context, petID string) (reports.View, error) {
	if f.loadErr != nil {
		return reports.View{}, f.loadErr
	}
	v := f.view
	v.PetID = petID
	return v, nil
}

func (f *fakeService) Upload(_ context.Context, req reports.UploadRequest) (entity.HealthReport, error) {
	if f.uploadErr != nil {
		return entity.HealthReport{}, f.uploadErr
	}
	f.uploaded = append(f.uploaded, req)
	return entity.HealthReport{ID: "r-new", PetID: req.PetID, Title: req.Title, Status: constants.ReportStatusProcessing}, nil
}

func (f *fakeService) Delete(_ context.Context, petID, reportID string) (reports.Mutation, error) {
	if f.deleteErr != nil {
		return reports.Mutation{State: reports.MutationRolledBack}, f.deleteErr
	}
	return reports.Mutation{ID: "m1", Op: "delete", PetID: petID, ReportID: reportID, State: reports.MutationCommitted}, nil
}

func (f *fakeService) Previews(string) []entity.ReportPreview { return f.previews }

func (f *fakeService) ClearCache(petID string) { f.cleared = append(f.cleared, petID) }

type exporterFunc func(ctx context.Context, petID string) ([]byte, error)

func (e exporterFunc) ExportReportsXLSX(ctx context.Context, petID string) ([]byte, error) {
	return e(ctx, petID)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListReports(t *testing.T) {
	svc := &fakeService{view: reports.View{
		Source:  reports.SourceRemote,
		Reports: []entity.HealthReport{{ID: "a", Title: "Bloods", Status: constants.ReportStatusCompleted}},
	}}
	h := NewHandler(svc, nil).Routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/pets/pet1/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pet1", body.PetID)
	assert.Equal(t, "remote", body.Source)
	require.Len(t, body.Reports, 1)
	assert.Equal(t, "a", body.Reports[0].ID)
}

func TestListReports_EmptyIsArray(t *testing.T) {
	h := NewHandler(&fakeService{view: reports.View{Source: reports.SourceRemote}}, nil).Routes()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/pets/pet1/reports", nil))
	assert.Contains(t, rec.Body.String(), `"reports":[]`)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", common.NewAppError("VALIDATION_ERROR", "bad", common.ErrValidation), http.StatusBadRequest},
		{"not found", common.NewAppError("NOT_FOUND", "gone", common.ErrNotFound), http.StatusNotFound},
		{"ocr", common.OCRError(errors.New("tesseract")), http.StatusUnprocessableEntity},
		{"fetch", common.FetchError(errors.New("dial tcp")), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fakeService{loadErr: tc.err}, nil).Routes()
			rec := do(t, h, httptest.NewRequest(http.MethodGet, "/pets/pet1/reports", nil))
			assert.Equal(t, tc.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			if tc.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Error)
			}
		})
	}
}

func multipartBody(t *testing.T, filename, content, title string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadReport(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, nil).Routes()

	body, ct := multipartBody(t, "bloods.txt", "Sodium: 145 mmol/L ref 140-155", "Annual")
	req := httptest.NewRequest(http.MethodPost, "/pets/pet1/reports", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.uploaded, 1)
	assert.Equal(t, "pet1", svc.uploaded[0].PetID)
	assert.Equal(t, "bloods.txt", svc.uploaded[0].Filename)
	assert.Equal(t, "Annual", svc.uploaded[0].Title)
	assert.Equal(t, "Sodium: 145 mmol/L ref 140-155", string(svc.uploaded[0].Data))

	var rep entity.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "r-new", rep.ID)
	assert.Equal(t, constants.ReportStatusProcessing, rep.Status)
}

func TestUploadReport_MissingFile(t *testing.T) {
	h := NewHandler(&fakeService{}, nil).Routes()
	body, ct := multipartBody(t, "", "", "only a title")
	req := httptest.NewRequest(http.MethodPost, "/pets/pet1/reports", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/pets/pet1/reports", bytes.NewBufferString("not multipart"))
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)
}

func TestUploadReport_OCRFailure(t *testing.T) {
	h := NewHandler(&fakeService{uploadErr: common.OCRError(errors.New("unreadable"))}, nil).Routes()
	body, ct := multipartBody(t, "scan.png", "xx", "")
	req := httptest.NewRequest(http.MethodPost, "/pets/pet1/reports", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, req).Code)
}

func TestDeleteReport(t *testing.T) {
	h := NewHandler(&fakeService{}, nil).Routes()
	rec := do(t, h, httptest.NewRequest(http.MethodDelete, "/pets/pet1/reports/r9", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var m mutationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "r9", m.ReportID)
	assert.Equal(t, "committed", m.State)

	h = NewHandler(&fakeService{deleteErr: common.NewAppError("NOT_FOUND", "gone", common.ErrNotFound)}, nil).Routes()
	assert.Equal(t, http.StatusNotFound, do(t, h, httptest.NewRequest(http.MethodDelete, "/pets/pet1/reports/r9", nil)).Code)
}

func TestPreviewsAndClearCache(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, nil).Routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/pets/pet1/previews", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/pets/pet1/cache", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"pet1"}, svc.cleared)
}

func TestExport(t *testing.T) {
	h := NewHandler(&fakeService{}, nil, WithExporter(exporterFunc(func(_ context.Context, petID string) ([]byte, error) {
		return []byte("xlsx:" + petID), nil
	}))).Routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/pets/pet1/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx:pet1", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reports-pet1-")

	bare := NewHandler(&fakeService{}, nil).Routes()
	assert.Equal(t, http.StatusNotImplemented, do(t, bare, httptest.NewRequest(http.MethodGet, "/pets/pet1/export.xlsx", nil)).Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	m := metrics.NewCollector()
	healthy := true
	h := NewHandler(&fakeService{}, nil, WithMetrics(m), WithHealthCheck(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("db down")
	})).Routes()

	assert.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pethealth_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRequestIDPropagates(t *testing.T) {
	h := NewHandler(&fakeService{}, nil).Routes()
	req := httptest.NewRequest(http.MethodGet, "/pets/pet1/previews", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", do(t, h, req).Header().Get("X-Request-Id"))
}

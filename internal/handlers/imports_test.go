package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/models"
	"project-tracker-api/pkg/importer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	validated int
	imported  []string
}

func (s *recordingSink) Validate(*models.ProjectDTO) error {
	s.validated++
	return nil
}

func (s *recordingSink) Import(_ context.Context, dto *models.ProjectDTO, _ []string) (*models.ProjectDTO, error) {
	s.imported = append(s.imported, dto.ProjectCode)
	return dto, nil
}

type recorder struct {
	summaries []importer.Summary
}

func (r *recorder) ObserveImport(sum importer.Summary) {
	r.summaries = append(r.summaries, sum)
}

func projectWorkbook(t *testing.T, codes ...string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Projects")
	require.NoError(t, err)
	header := sh.AddRow()
	for _, h := range []string{"Name", "Code", "Start Date"} {
		header.AddCell().SetString(h)
	}
	for _, code := range codes {
		row := sh.AddRow()
		row.AddCell().SetString("Project " + code)
		row.AddCell().SetString(code)
		row.AddCell().SetString("2024-01-01")
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func newHandler(t *testing.T, sink importer.Sink) (*ImportsHandler, *recorder) {
	t.Helper()
	im, err := importer.New(sink, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	h := NewImportsHandler(im, 20<<20, zaptest.NewLogger(t))
	rec := &recorder{}
	h.Recorder = rec
	return h, rec
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		fw, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/projects/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		UserID: 1,
		Roles:  []string{auth.RoleAdmin},
	}))
}

func TestImportsHandler_UploadExcel(t *testing.T) {
	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		handler, _ := newHandler(t, &recordingSink{})
		req := httptest.NewRequest("POST", "/projects/import", nil)
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "content-type must be multipart/form-data")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		handler, _ := newHandler(t, &recordingSink{})
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "", nil, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("Rejects invalid max_errors", func(t *testing.T) {
		handler, _ := newHandler(t, &recordingSink{})
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", projectWorkbook(t), map[string]string{"max_errors": "many"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "max_errors must be a positive integer")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		handler, _ := newHandler(t, &recordingSink{})
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "projects.csv", []byte("a,b"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only .xlsx files are accepted")
	})

	t.Run("Imports valid workbook", func(t *testing.T) {
		sink := &recordingSink{}
		handler, rec := newHandler(t, sink)
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", projectWorkbook(t, "P-1", "P-2"), nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Data importer.Summary `json:"data"`
			Meta map[string]any   `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Imported)
		assert.False(t, resp.Data.DryRun)
		assert.Equal(t, "1.0.0", resp.Meta["version"])
		assert.Equal(t, []string{"P-1", "P-2"}, sink.imported)
		require.Len(t, rec.summaries, 1)
		assert.Equal(t, 2, rec.summaries[0].Imported)
	})

	t.Run("Dry run writes nothing", func(t *testing.T) {
		sink := &recordingSink{}
		handler, _ := newHandler(t, sink)
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", projectWorkbook(t, "P-1"), map[string]string{"dry_run": "true"}))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, sink.validated)
		assert.Empty(t, sink.imported)
	})

	t.Run("Corrupt workbook is unprocessable", func(t *testing.T) {
		handler, rec := newHandler(t, &recordingSink{})
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "projects.xlsx", []byte("fake excel content"), nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "IMPORT_FAILED")
		assert.Len(t, rec.summaries, 1)
	})
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Valid xlsx mixed case", "Test.XlSx", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"Invalid txt", "test.txt", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{
				Filename: tt.filename,
			}
			result := isXLSX(header)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Run("Writes JSON response", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]interface{}{
			"message": "test",
			"count":   42,
		}

		writeJSON(w, http.StatusOK, data)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
		assert.Equal(t, float64(42), response["count"])
	})
}

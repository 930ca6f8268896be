package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"project-tracker-api/internal/auth"
	"project-tracker-api/pkg/importer"
)

// ImportRecorder is told about every finished import
type ImportRecorder interface {
	ObserveImport(sum importer.Summary)
}

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Importer *importer.Importer
	MaxBytes int64
	Recorder ImportRecorder
	Logger   *zap.Logger
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(im *importer.Importer, maxBytes int64, logger *zap.Logger) *ImportsHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20 // 10 MB
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportsHandler{
		Importer: im,
		MaxBytes: maxBytes,
		Logger:   logger,
	}
}

// UploadExcel handles .xlsx uploads for project import
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	// Require multipart
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "content-type must be multipart/form-data", "BAD_REQUEST")
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error(), "BAD_REQUEST")
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := importer.DefaultMaxErrors
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_errors must be a positive integer", "BAD_REQUEST")
			return
		}
		maxErrors = n
	}

	// File
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required: "+err.Error(), "BAD_REQUEST")
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		writeError(w, http.StatusBadRequest, "only .xlsx files are accepted", "BAD_REQUEST")
		return
	}

	logger := h.Logger.With(
		zap.String("file", header.Filename),
		zap.Bool("dry_run", dryRun),
		zap.Int64("user_id", auth.UserIDFromContext(r.Context())),
	)

	sum, impErr := h.Importer.Import(r.Context(), file, importer.Options{
		DryRun:    dryRun,
		MaxErrors: maxErrors,
	})
	if h.Recorder != nil {
		h.Recorder.ObserveImport(sum)
	}
	if impErr != nil {
		logger.Warn("project import failed", zap.Error(impErr), zap.Int("imported", sum.Imported))
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "IMPORT_FAILED",
			"details": impErr.Error(),
			"data":    sum, // rows before the failure stay imported
		})
		return
	}

	logger.Info("project import finished", zap.Int("imported", sum.Imported), zap.Int("errors", sum.Errors))
	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, auth.ErrorResponse{Error: message, Code: code})
}

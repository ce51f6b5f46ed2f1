package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/common/middleware"
	"github.com/KashishBagga/pamm/pkg/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service  *Service
	uploader *Uploader
	reports  *ReportStore
	maxBody  int64
}

func NewHTTPHandler(service *Service, uploader *Uploader, reports *ReportStore, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, uploader: uploader, reports: reports, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	// Literal paths before the {id} route so mux does not swallow them.
	router.HandleFunc("/patients/upload", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/patients/upload/{batch_id}", h.handleUploadStatus).Methods(http.MethodGet)
	router.HandleFunc("/patients", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}", h.handleUpdate).Methods(http.MethodPatch)
}

type uploadResponse struct {
	Success        bool     `json:"success"`
	BatchID        string   `json:"batch_id,omitempty"`
	ProcessedCount int      `json:"processed_count"`
	TotalRows      int      `json:"total_rows"`
	Errors         []string `json:"errors"`
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xls", ".csv":
	default:
		http.Error(w, "invalid file format, expected .xlsx, .xls or .csv", http.StatusBadRequest)
		return
	}

	report, err := h.uploader.Upload(r.Context(), principal.ID, header.Filename, file, middleware.ClientIP(r))
	if err != nil {
		if IsParseError(err) {
			writeJSON(w, http.StatusBadRequest, uploadResponse{Success: false, Errors: []string{err.Error()}})
			return
		}
		logger.Log.WithError(err).Error("batch upload failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := uploadResponse{
		Success:        true,
		BatchID:        report.BatchID,
		ProcessedCount: report.ProcessedCount,
		TotalRows:      report.TotalRows,
		Errors:         make([]string, 0, len(report.Errors)),
	}
	for _, rowErr := range report.Errors {
		resp.Errors = append(resp.Errors, rowErr.String())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.reports == nil {
		http.Error(w, "upload reports unavailable", http.StatusNotFound)
		return
	}

	batchID := mux.Vars(r)["batch_id"]
	report, err := h.reports.Get(r.Context(), principal.ID, batchID)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			http.Error(w, "upload report not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch upload report")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type listResponse struct {
	Success   bool   `json:"success"`
	Data      []View `json:"data"`
	Total     int64  `json:"total"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Corrupted int    `json:"corrupted,omitempty"`
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1, 1, 1_000_000)
	limit := queryInt(r, "limit", 20, 1, 100)
	search := r.URL.Query().Get("search")

	result, err := h.service.List(r.Context(), principal.ID, search, page, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list patient records")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Success:   true,
		Data:      result.Records,
		Total:     result.Total,
		Page:      page,
		Limit:     limit,
		Corrupted: result.Corrupted,
	})
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	recordID := mux.Vars(r)["id"]
	if _, err := uuid.Parse(recordID); err != nil {
		http.Error(w, "invalid patient record id", http.StatusBadRequest)
		return
	}

	var patch UpdatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.service.Update(r.Context(), principal.ID, recordID, patch, middleware.ClientIP(r))
	if err != nil {
		switch {
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrNotFound):
			http.Error(w, "patient record not found", http.StatusNotFound)
		case errors.Is(err, ErrNotOwner):
			http.Error(w, "patient record belongs to another manager", http.StatusForbidden)
		case errors.Is(err, ErrDuplicatePatientID):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, crypto.ErrIntegrity):
			logger.Log.WithField("record_id", recordID).Error("record failed integrity check on edit")
			http.Error(w, "record failed integrity check", http.StatusInternalServerError)
		default:
			logger.Log.WithError(err).Error("failed to update patient record")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min {
		return def
	}
	if value > max {
		return max
	}
	return value
}

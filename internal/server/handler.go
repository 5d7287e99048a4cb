// Package server exposes the gesture pipeline and the dictionary over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/capstone/vsl/internal/apperr"
	"github.com/capstone/vsl/internal/dictionary"
	"github.com/capstone/vsl/internal/indexsync"
	"github.com/capstone/vsl/internal/inference"
	"github.com/capstone/vsl/internal/pipeline"
)

const maxVideoBytes = 64 << 20

// GestureProcessor turns gesture input into corrected text.
type GestureProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	ProcessVideo(ctx context.Context, req pipeline.VideoRequest) (pipeline.Result, error)
}

// DictionaryService writes and searches dictionary entries.
type DictionaryService interface {
	Write(ctx context.Context, entry *dictionary.Entry) error
	Search(ctx context.Context, query string) ([]dictionary.Entry, error)
	Stats() indexsync.Stats
}

type Handler struct {
	gesture    GestureProcessor
	dictionary DictionaryService
	validator  *requestValidator
}

func NewHandler(gesture GestureProcessor, dictionary DictionaryService) (*Handler, error) {
	v, err := newRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("newRequestValidator() > %w", err)
	}
	return &Handler{
		gesture:    gesture,
		dictionary: dictionary,
		validator:  v,
	}, nil
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/gesture/process", h.processGesture)
	mux.HandleFunc("POST /api/gesture/video", h.processVideo)
	mux.HandleFunc("GET /api/dictionary/search", h.searchDictionary)
	mux.HandleFunc("POST /api/dictionary", h.createEntry)
	mux.HandleFunc("PUT /api/dictionary/{id}", h.updateEntry)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

type processGestureRequest struct {
	Frames      []inference.Frame `json:"frames" validate:"dive"`
	CurrentText string            `json:"current_text"`
}

func (h *Handler) processGesture(w http.ResponseWriter, r *http.Request) {
	var req processGestureRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.gesture.Process(r.Context(), pipeline.Request{
		Frames:      req.Frames,
		CurrentText: req.CurrentText,
	})
	h.writePipelineResult(w, r, result, err)
}

func (h *Handler) processVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Video file is required", nil)
		return
	}
	defer file.Close()

	result, err := h.gesture.ProcessVideo(r.Context(), pipeline.VideoRequest{
		Video:       file,
		FileName:    header.Filename,
		CurrentText: r.FormValue("current_text"),
	})
	h.writePipelineResult(w, r, result, err)
}

func (h *Handler) writePipelineResult(w http.ResponseWriter, r *http.Request, result pipeline.Result, err error) {
	if err == nil {
		writeSuccess(w, result.Message, result)
		return
	}
	kind, ok := apperr.KindOf(err)
	switch {
	case ok && kind == apperr.InvalidInput:
		writeError(w, http.StatusBadRequest, result.Message, nil)
	case ok && kind == apperr.GestureStageFailure:
		writeError(w, http.StatusServiceUnavailable, "Gesture Recognition Model error: "+result.Message, result)
	case ok && kind == apperr.CorrectionStageFailure:
		writeError(w, http.StatusServiceUnavailable, "Accent Correction Model error: "+result.Message, result)
	case r.Context().Err() != nil:
		slog.Default().Debug("client went away before the pipeline finished", "error", err)
	default:
		slog.Default().Error("gesture processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process gesture", nil)
	}
}

type entryResponse struct {
	ID         int64  `json:"id"`
	Word       string `json:"word"`
	Definition string `json:"definition"`
	VideoURL   string `json:"video_url"`
}

func toEntryResponse(e dictionary.Entry) entryResponse {
	return entryResponse{ID: e.ID, Word: e.Word, Definition: e.Definition, VideoURL: e.MediaRef}
}

func (h *Handler) searchDictionary(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeSuccess(w, "Please provide a search query", []entryResponse{})
		return
	}

	entries, err := h.dictionary.Search(r.Context(), query)
	if err != nil {
		if apperr.Is(err, apperr.InvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		slog.Default().Error("dictionary search failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to search dictionary", nil)
		return
	}

	data := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, toEntryResponse(e))
	}
	writeSuccess(w, fmt.Sprintf("Found %d results", len(data)), data)
}

type entryRequest struct {
	Word       string `json:"word" validate:"required,max=100"`
	Definition string `json:"definition"`
	VideoURL   string `json:"video_url" validate:"required,url,max=512"`
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry := &dictionary.Entry{
		Word:       strings.TrimSpace(req.Word),
		Definition: strings.TrimSpace(req.Definition),
		MediaRef:   strings.TrimSpace(req.VideoURL),
	}
	if err := h.dictionary.Write(r.Context(), entry); err != nil {
		slog.Default().Error("failed to create dictionary entry", "word", entry.Word, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save dictionary entry", nil)
		return
	}
	writeJSON(w, http.StatusCreated, ApiResponse{Success: true, Message: "Dictionary entry created", Data: toEntryResponse(*entry)})
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer", nil)
		return
	}
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry := &dictionary.Entry{
		ID:         id,
		Word:       strings.TrimSpace(req.Word),
		Definition: strings.TrimSpace(req.Definition),
		MediaRef:   strings.TrimSpace(req.VideoURL),
	}
	if err := h.dictionary.Write(r.Context(), entry); err != nil {
		if errors.Is(err, dictionary.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Dictionary entry %d not found", id), nil)
			return
		}
		slog.Default().Error("failed to update dictionary entry", "entry_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save dictionary entry", nil)
		return
	}
	writeSuccess(w, "Dictionary entry updated", toEntryResponse(*entry))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "ok", h.dictionary.Stats())
}

// decode reads a JSON body into dst and validates it. It writes a 400
// response and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return false
	}
	return true
}

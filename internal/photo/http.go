package photo

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hamzaconcepts-eng/MMPS/internal/httputil"
	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store   *Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(store *Store, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{store: store, logger: logger, metrics: m}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/students/{studentID}/photo", h.GetPhoto)
	router.Put("/students/{studentID}/photo", h.UploadPhoto)
	router.Delete("/students/{studentID}/photo", h.DeletePhoto)
}

func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.Open(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.ErrorContext(r.Context(), "photo write failed", "error", err)
	}
}

// UploadPhoto accepts the raw image body or a multipart form with a "photo" field.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studentID")
	r.Body = http.MaxBytesReader(w, r.Body, h.store.maxBytes+1<<20)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("photo")
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.handleError(w, r, err)
			return
		}
		if err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "missing photo field")
			return
		}
		defer file.Close()
		body = file
	}

	if err := h.store.Upload(r.Context(), id, body); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.metrics.RecordPhotoUploaded(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{"student_id": id, "has_photo": true})
}

func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "studentID")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Photo not found")
	case errors.Is(err, ErrInvalidID):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnsupportedType):
		httputil.RespondWithError(w, http.StatusUnsupportedMediaType, "Photo must be JPEG, PNG or WebP")
	case errors.Is(err, ErrTooLarge), errors.As(err, &maxErr):
		httputil.RespondWithError(w, http.StatusRequestEntityTooLarge, "Photo exceeds the size limit")
	default:
		h.logger.ErrorContext(r.Context(), "photo operation failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

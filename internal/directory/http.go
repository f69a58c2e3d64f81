package directory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/confirm"
	"github.com/hamzaconcepts-eng/MMPS/internal/httputil"
	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"
	"github.com/hamzaconcepts-eng/MMPS/internal/student"

	"github.com/go-chi/chi/v5"
)

// PhotoChecker reports whether a student has a stored photo.
type PhotoChecker interface {
	Exists(ctx context.Context, studentID string) (bool, error)
}

// Confirmer guards bulk deletes with the shared confirmation password.
type Confirmer interface {
	Check(password string) error
}

type Handler struct {
	sessions *Sessions
	confirm  Confirmer
	photos   PhotoChecker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewHandler(sessions *Sessions, confirm Confirmer, photos PhotoChecker, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		sessions: sessions,
		confirm:  confirm,
		photos:   photos,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/sessions", h.CreateSession)
	router.Route("/sessions/{sid}", func(r chi.Router) {
		r.Delete("/", h.DeleteSession)
		r.Get("/view", h.GetView)
		r.Get("/lookups", h.GetLookups)
		r.Put("/search", h.SetSearch)
		r.Put("/filters", h.SetFilters)
		r.Post("/sort/{field}", h.ToggleSort)
		r.Put("/page", h.SetPage)
		r.Post("/selection/page", h.ToggleSelectPage)
		r.Post("/selection/delete", h.DeleteSelected)
		r.Post("/selection/{studentID}", h.ToggleSelect)
		r.Delete("/selection", h.ClearSelection)
		r.Get("/students/{studentID}", h.GetStudent)
		r.Put("/students/{studentID}", h.UpdateStudent)
		r.Get("/export.csv", h.ExportCSV)
	})
}

type SessionResponse struct {
	ID   string `json:"id"`
	View View   `json:"view"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Flush bool   `json:"flush"`
}

type FiltersRequest struct {
	GradeID string `json:"grade_id"`
	Status  string `json:"status"`
}

type PageRequest struct {
	Page int `json:"page"`
}

type DeleteRequest struct {
	Password string `json:"password"`
}

type DeleteResponse struct {
	Deleted int  `json:"deleted"`
	View    View `json:"view"`
}

// StudentDetail is a loaded row with its display decorations.
type StudentDetail struct {
	student.Row
	Age          *int             `json:"age"`
	Initials     string           `json:"initials"`
	HomeLocation student.Location `json:"home_location"`
	MapsURL      string           `json:"maps_url"`
	HasPhoto     bool             `json:"has_photo"`
}

func langOf(r *http.Request) Lang {
	return ParseLang(r.URL.Query().Get("lang"))
}

func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*Engine, bool) {
	engine, err := h.sessions.Get(chi.URLParam(r, "sid"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return engine, true
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, engine *Engine) {
	h.metrics.RecordDirectoryView(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, engine.View(langOf(r)))
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, engine, err := h.sessions.Create(r.Context())
	if err != nil {
		httputil.RespondWithError(w, http.StatusServiceUnavailable, "Failed to load students")
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, SessionResponse{ID: id, View: engine.View(langOf(r))})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sid")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respondView(w, r, engine)
}

func (h *Handler) GetLookups(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, engine.Lookups())
}

func (h *Handler) SetSearch(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req SearchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	engine.SetSearch(req.Query)
	if req.Flush {
		engine.FlushSearch()
	}
	h.respondView(w, r, engine)
}

func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req FiltersRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	engine.SetGradeFilter(req.GradeID)
	engine.SetStatusFilter(req.Status)
	h.respondView(w, r, engine)
}

func (h *Handler) ToggleSort(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := engine.ToggleSort(SortField(chi.URLParam(r, "field"))); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondView(w, r, engine)
}

func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req PageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	engine.SetPage(req.Page, langOf(r))
	h.respondView(w, r, engine)
}

func (h *Handler) ToggleSelect(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := engine.ToggleSelect(chi.URLParam(r, "studentID")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondView(w, r, engine)
}

func (h *Handler) ToggleSelectPage(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	engine.ToggleSelectPage(langOf(r))
	h.respondView(w, r, engine)
}

func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	engine.ClearSelection()
	h.respondView(w, r, engine)
}

func (h *Handler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req DeleteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := h.confirm.Check(req.Password); err != nil {
		h.metrics.RecordDeleteRefused(r.Context())
		h.handleServiceError(w, r, err)
		return
	}

	deleted, err := engine.DeleteSelected(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted, View: engine.View(langOf(r))})
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	row, err := engine.Student(chi.URLParam(r, "studentID"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, h.detail(r, row))
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req StudentUpdate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	id := chi.URLParam(r, "studentID")
	if err := engine.UpdateStudent(r.Context(), id, req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	row, err := engine.Student(id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, h.detail(r, row))
}

func (h *Handler) detail(r *http.Request, row student.Row) StudentDetail {
	name := row.NameEn
	if langOf(r) == LangAr {
		name = row.NameAr
	}
	home := student.HomeLocation(row.ID)

	d := StudentDetail{
		Row:          row,
		Initials:     student.Initials(name),
		HomeLocation: home,
		MapsURL:      home.MapsURL(),
	}
	if age, err := student.Age(row.DateOfBirth, h.now()); err == nil {
		d.Age = &age
	}
	if h.photos != nil {
		hasPhoto, err := h.photos.Exists(r.Context(), row.ID)
		if err != nil {
			h.logger.WarnContext(r.Context(), "failed to check student photo", "student_id", row.ID, "error", err)
		}
		d.HasPhoto = hasPhoto
	}
	return d
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	if engine.Loading() {
		h.handleServiceError(w, r, ErrLoading)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="students.csv"`)
	if err := engine.Export(w, langOf(r)); err != nil {
		h.logger.ErrorContext(r.Context(), "csv export failed", "error", err)
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	// checked first: the wrapped parent error may itself be a not-found
	case errors.Is(err, ErrPartialUpdate):
		h.logger.ErrorContext(ctx, "student saved but parent update failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadGateway, ErrPartialUpdate.Error())
	case errors.Is(err, ErrSessionNotFound):
		h.logger.InfoContext(ctx, "directory session not found")
		httputil.RespondWithError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, ErrStudentNotLoaded), errors.Is(err, student.ErrStudentNotFound), errors.Is(err, student.ErrParentNotFound):
		h.logger.InfoContext(ctx, "student not found", "error", err)
		httputil.RespondWithError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidSortField):
		h.logger.InfoContext(ctx, "invalid input", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrLoading):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, confirm.ErrMismatch):
		h.logger.WarnContext(ctx, "bulk delete refused")
		httputil.RespondWithError(w, http.StatusForbidden, "Incorrect password. Deletion cancelled.")
	default:
		h.logger.ErrorContext(ctx, "record store error", "error", err)
		httputil.RespondWithError(w, http.StatusBadGateway, "Record store request failed")
	}
}

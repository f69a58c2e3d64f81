package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"
	"github.com/hamzaconcepts-eng/MMPS/internal/student"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is the quiescence period before search text takes effect.
const DefaultDebounce = 300 * time.Millisecond

var (
	ErrLoading          = errors.New("directory is still loading")
	ErrStudentNotLoaded = errors.New("student not in the loaded directory")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPartialUpdate    = errors.New("student saved but parent update failed")
	ErrClosed           = errors.New("directory session closed")
)

// Lookups are the reference tables loaded alongside the students.
type Lookups struct {
	Grades         []student.Grade         `json:"grades"`
	Classrooms     []student.Classroom     `json:"classrooms"`
	TransportZones []student.TransportZone `json:"transport_zones"`
}

type Options struct {
	Debounce  time.Duration
	Publisher Publisher
	Metrics   *metrics.Metrics
}

// Engine holds one fully loaded student directory and its view state.
// All state transitions are serialized by mu; gateway calls run outside it
// and their results are applied afterwards, so concurrent writes resolve as
// last writer wins.
type Engine struct {
	repo      student.Repository
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate
	debounce  time.Duration

	mu        sync.Mutex
	loading   bool
	closed    bool
	rows      []student.Row
	lookups   Lookups
	version   uint64
	search    string
	query     string
	searchGen uint64
	timer     *time.Timer
	grade     string
	status    string
	field     SortField
	dir       SortDir
	page      int
	selected  map[string]struct{}

	memoKey  memoKey
	memoRows []student.Row
	memoOK   bool
}

type memoKey struct {
	version uint64
	query   Query
}

func New(repo student.Repository, logger *slog.Logger, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Engine{
		repo:      repo,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   opts.Metrics,
		validate:  validator.New(),
		debounce:  opts.Debounce,
		loading:   true,
		field:     SortName,
		dir:       SortAsc,
		page:      1,
		selected:  make(map[string]struct{}),
	}
}

// Load reads all students and the three reference tables concurrently.
// The engine leaves the loading state only when the student read succeeds;
// reference read failures are logged and leave that table empty.
func (e *Engine) Load(ctx context.Context) error {
	var (
		students   []student.Student
		grades     []student.Grade
		classrooms []student.Classroom
		zones      []student.TransportZone
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		students, err = e.repo.ListStudents(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		if grades, err = e.repo.ListGrades(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to load grades", "error", err)
			grades = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if classrooms, err = e.repo.ListClassrooms(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to load classrooms", "error", err)
			classrooms = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if zones, err = e.repo.ListTransportZones(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to load transport zones", "error", err)
			zones = nil
		}
		return nil
	})

	err := g.Wait()
	e.metrics.RecordDirectoryLoad(ctx, err)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to load students", "error", err)
		return fmt.Errorf("load students: %w", err)
	}

	rows := make([]student.Row, 0, len(students))
	for i := range students {
		rows = append(rows, student.NewRow(&students[i]))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.rows = rows
	e.lookups = Lookups{
		Grades:         nonNil(grades),
		Classrooms:     nonNil(classrooms),
		TransportZones: nonNil(zones),
	}
	e.loading = false
	e.selected = make(map[string]struct{})
	e.version++

	e.logger.InfoContext(ctx, "student directory loaded",
		"students", len(rows),
		"grades", len(grades),
		"classrooms", len(classrooms),
		"transport_zones", len(zones),
	)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

func (e *Engine) Lookups() Lookups {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookups
}

// AllStudents returns a copy of the full loaded set.
func (e *Engine) AllStudents() []student.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.rows)
}

// Student returns one loaded row by id.
func (e *Engine) Student(id string) (student.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return student.Row{}, ErrStudentNotLoaded
	}
	return e.rows[i], nil
}

func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.rows, func(r student.Row) bool { return r.ID == id })
}

// Close stops the pending search timer; results of in-flight gateway calls
// are dropped once the engine is closed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// SetSearch records the raw search text. It takes effect once it has been
// stable for the debounce period; every call restarts the timer.
func (e *Engine) SetSearch(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.search = text
	e.searchGen++
	gen := e.searchGen

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || gen != e.searchGen {
			return
		}
		e.timer = nil
		e.applySearchLocked()
	})
}

// FlushSearch applies the pending search text immediately.
func (e *Engine) FlushSearch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.searchGen++
	e.applySearchLocked()
}

func (e *Engine) applySearchLocked() {
	if e.query != e.search {
		e.query = e.search
		e.page = 1
	}
}

func (e *Engine) SetGradeFilter(gradeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grade != gradeID {
		e.grade = gradeID
		e.page = 1
	}
}

func (e *Engine) SetStatusFilter(status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != status {
		e.status = status
		e.page = 1
	}
}

// ToggleSort flips the direction of the active field, or switches to a new
// field in ascending order.
func (e *Engine) ToggleSort(field SortField) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSortField, field)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.field == field {
		if e.dir == SortAsc {
			e.dir = SortDesc
		} else {
			e.dir = SortAsc
		}
	} else {
		e.field = field
		e.dir = SortAsc
	}
	e.page = 1
	return nil
}

// SetPage moves to a 1-based page, clamped to the current page count.
func (e *Engine) SetPage(page int, lang Lang) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	filtered := e.filteredLocked(lang)
	e.page = clampPage(page, TotalPages(len(filtered), PageSize))
	return e.page
}

func (e *Engine) queryLocked(lang Lang) Query {
	return Query{
		Search: e.query,
		Grade:  e.grade,
		Status: e.status,
		Field:  e.field,
		Dir:    e.dir,
		Lang:   lang,
	}
}

// filteredLocked returns the memoized filtered and sorted list.
func (e *Engine) filteredLocked(lang Lang) []student.Row {
	key := memoKey{version: e.version, query: e.queryLocked(lang)}
	if e.memoOK && e.memoKey == key {
		return e.memoRows
	}
	e.memoRows = Derive(e.rows, key.query)
	e.memoKey = key
	e.memoOK = true
	return e.memoRows
}

// pageRowsLocked returns the visible rows and the effective page.
func (e *Engine) pageRowsLocked(lang Lang) ([]student.Row, int, []student.Row) {
	filtered := e.filteredLocked(lang)
	page := clampPage(e.page, TotalPages(len(filtered), PageSize))
	return PageSlice(filtered, page, PageSize), page, filtered
}

// ToggleSelect flips the selection of one loaded student.
func (e *Engine) ToggleSelect(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loading {
		return ErrLoading
	}
	if e.indexOf(id) < 0 {
		return ErrStudentNotLoaded
	}
	if _, ok := e.selected[id]; ok {
		delete(e.selected, id)
	} else {
		e.selected[id] = struct{}{}
	}
	return nil
}

// ToggleSelectPage deselects the current page when all of it is selected,
// otherwise selects the rest of it. Other pages are left untouched.
func (e *Engine) ToggleSelectPage(lang Lang) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, _, _ := e.pageRowsLocked(lang)
	allSelected := true
	for i := range rows {
		if _, ok := e.selected[rows[i].ID]; !ok {
			allSelected = false
			break
		}
	}
	for i := range rows {
		if allSelected {
			delete(e.selected, rows[i].ID)
		} else {
			e.selected[rows[i].ID] = struct{}{}
		}
	}
}

func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]struct{})
}

// Selected returns the selected ids in sorted order.
func (e *Engine) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedLocked()
}

func (e *Engine) selectedLocked() []string {
	ids := make([]string, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Filtered returns the full filtered and sorted list for lang.
func (e *Engine) Filtered(lang Lang) []student.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.filteredLocked(lang))
}

// View is one rendered state of the directory.
type View struct {
	Loading         bool          `json:"loading"`
	Lang            Lang          `json:"lang"`
	Students        []student.Row `json:"students"`
	Page            int           `json:"page"`
	TotalPages      int           `json:"total_pages"`
	PageSize        int           `json:"page_size"`
	PageStart       int           `json:"page_start"`
	PageEnd         int           `json:"page_end"`
	PageItems       []PageItem    `json:"page_items"`
	FilteredCount   int           `json:"filtered_count"`
	Search          string        `json:"search"`
	ActiveSearch    string        `json:"active_search"`
	GradeFilter     string        `json:"grade_filter"`
	StatusFilter    string        `json:"status_filter"`
	SortField       SortField     `json:"sort_field"`
	SortDir         SortDir       `json:"sort_dir"`
	Selected        []string      `json:"selected"`
	AllPageSelected bool          `json:"all_page_selected"`
	Stats           Stats         `json:"stats"`
}

func (e *Engine) View(lang Lang) View {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, page, filtered := e.pageRowsLocked(lang)
	totalPages := TotalPages(len(filtered), PageSize)

	v := View{
		Loading:       e.loading,
		Lang:          lang,
		Students:      slices.Clone(rows),
		Page:          page,
		TotalPages:    totalPages,
		PageSize:      PageSize,
		PageItems:     PageItems(page, totalPages),
		FilteredCount: len(filtered),
		Search:        e.search,
		ActiveSearch:  e.query,
		GradeFilter:   e.grade,
		StatusFilter:  e.status,
		SortField:     e.field,
		SortDir:       e.dir,
		Selected:      e.selectedLocked(),
		Stats:         computeStats(e.rows),
	}
	if len(rows) > 0 {
		v.PageStart = (page-1)*PageSize + 1
		v.PageEnd = min(page*PageSize, len(filtered))
	}

	v.AllPageSelected = len(rows) > 0
	for i := range rows {
		if _, ok := e.selected[rows[i].ID]; !ok {
			v.AllPageSelected = false
			break
		}
	}
	return v
}

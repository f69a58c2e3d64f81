package directory_test

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/directory"
	"github.com/hamzaconcepts-eng/MMPS/internal/logger"
	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"
	"github.com/hamzaconcepts-eng/MMPS/internal/student"

	"github.com/stretchr/testify/require"
)

const (
	gradeOne    = "a0000000-0000-0000-0000-000000000001"
	gradeTwo    = "a0000000-0000-0000-0000-000000000002"
	classOneA   = "b0000000-0000-0000-0000-000000000001"
	classTwoB   = "b0000000-0000-0000-0000-000000000002"
	zoneSeeb    = "c0000000-0000-0000-0000-000000000001"
	parentOne   = "d0000000-0000-0000-0000-000000000001"
	parentTwo   = "d0000000-0000-0000-0000-000000000002"
	parentThree = "d0000000-0000-0000-0000-000000000003"
	ahmedID     = "e0000000-0000-0000-0000-000000000001"
	fatimaID    = "e0000000-0000-0000-0000-000000000002"
	omarID      = "e0000000-0000-0000-0000-000000000003"
)

// fakeRepo is an in-memory record store that performs the same joins as the
// bun repository.
type fakeRepo struct {
	mu sync.Mutex

	grades     []student.Grade
	classrooms []student.Classroom
	zones      []student.TransportZone
	parents    map[string]student.Parent
	students   []student.Student

	listErr          error
	gradesErr        error
	classroomsErr    error
	zonesErr         error
	getErr           error
	deleteErr        error
	updateStudentErr error
	updateParentErr  error

	calls        []string
	deletedIDs   []string
	parentWrites []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		grades: []student.Grade{
			{ID: gradeOne, NameEn: "Grade 1", NameAr: "الصف الأول", Level: 1},
			{ID: gradeTwo, NameEn: "Grade 2", NameAr: "الصف الثاني", Level: 2},
		},
		classrooms: []student.Classroom{
			{ID: classOneA, GradeID: gradeOne, Section: "A", NameEn: "Grade 1 - A", NameAr: "الصف الأول - أ"},
			{ID: classTwoB, GradeID: gradeTwo, Section: "B", NameEn: "Grade 2 - B", NameAr: "الصف الثاني - ب"},
		},
		zones: []student.TransportZone{
			{ID: zoneSeeb, NameEn: "Seeb", NameAr: "السيب"},
		},
		parents: map[string]student.Parent{},
	}
}

// newScenarioRepo holds the three students used across the engine tests.
func newScenarioRepo() *fakeRepo {
	f := newFakeRepo()
	phone := "+968 9123 4567"
	f.parents[parentOne] = student.Parent{ID: parentOne, NameEn: "Salim Al-Balushi", NameAr: "سالم البلوشي", Phone: &phone, Relationship: "father"}
	f.parents[parentTwo] = student.Parent{ID: parentTwo, NameEn: "Maryam Al-Harthi", NameAr: "مريم الحارثية", Relationship: "mother"}
	f.parents[parentThree] = student.Parent{ID: parentThree, NameEn: "Khalid Al-Rawahi", NameAr: "خالد الرواحي"}

	zone := zoneSeeb
	f.students = []student.Student{
		newStudent(ahmedID, "Ahmed Al-Balushi", "أحمد البلوشي", "male", "active", classOneA, parentOne, &zone),
		newStudent(fatimaID, "Fatima Al-Harthi", "فاطمة الحارثية", "female", "active", classTwoB, parentTwo, nil),
		newStudent(omarID, "Omar Al-Rawahi", "عمر الرواحي", "male", "inactive", classOneA, parentThree, nil),
	}
	return f
}

// newBulkRepo holds n students named "Student 001".."Student n" in grade one.
func newBulkRepo(n int) *fakeRepo {
	f := newFakeRepo()
	f.parents[parentOne] = student.Parent{ID: parentOne, NameEn: "Parent", NameAr: "ولي الأمر", Relationship: "guardian"}
	for i := 1; i <= n; i++ {
		gender := "male"
		if i%2 == 0 {
			gender = "female"
		}
		f.students = append(f.students, newStudent(
			bulkID(i),
			fmt.Sprintf("Student %03d", i),
			fmt.Sprintf("طالب %03d", i),
			gender, "active", classOneA, parentOne, nil,
		))
	}
	return f
}

func bulkID(i int) string {
	return fmt.Sprintf("f0000000-0000-0000-0000-%012d", i)
}

func newStudent(id, nameEn, nameAr, gender, status, classroomID, parentID string, zoneID *string) student.Student {
	return student.Student{
		ID:              id,
		NameEn:          nameEn,
		NameAr:          nameAr,
		Gender:          gender,
		DateOfBirth:     time.Date(2015, time.March, 14, 0, 0, 0, 0, time.UTC),
		Status:          status,
		EnrollmentDate:  time.Date(2021, time.September, 1, 0, 0, 0, 0, time.UTC),
		ClassroomID:     classroomID,
		ParentID:        parentID,
		TransportZoneID: zoneID,
	}
}

func (f *fakeRepo) joined(s student.Student) student.Student {
	for _, c := range f.classrooms {
		if c.ID != s.ClassroomID {
			continue
		}
		for _, g := range f.grades {
			if g.ID == c.GradeID {
				c.Grade = &g
			}
		}
		s.Classroom = &c
	}
	if p, ok := f.parents[s.ParentID]; ok {
		s.Parent = &p
	}
	if s.TransportZoneID != nil {
		for _, z := range f.zones {
			if z.ID == *s.TransportZoneID {
				s.TransportZone = &z
			}
		}
	}
	return s
}

func (f *fakeRepo) ListStudents(ctx context.Context) ([]student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ListStudents")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]student.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, f.joined(s))
	}
	slices.SortStableFunc(out, func(a, b student.Student) int { return strings.Compare(a.NameEn, b.NameEn) })
	return out, nil
}

func (f *fakeRepo) GetStudent(ctx context.Context, id string) (*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetStudent")
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, s := range f.students {
		if s.ID == id {
			j := f.joined(s)
			return &j, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (f *fakeRepo) ListGrades(ctx context.Context) ([]student.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ListGrades")
	if f.gradesErr != nil {
		return nil, f.gradesErr
	}
	return slices.Clone(f.grades), nil
}

func (f *fakeRepo) ListClassrooms(ctx context.Context) ([]student.Classroom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ListClassrooms")
	if f.classroomsErr != nil {
		return nil, f.classroomsErr
	}
	return slices.Clone(f.classrooms), nil
}

func (f *fakeRepo) ListTransportZones(ctx context.Context) ([]student.TransportZone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ListTransportZones")
	if f.zonesErr != nil {
		return nil, f.zonesErr
	}
	return slices.Clone(f.zones), nil
}

func (f *fakeRepo) DeleteStudents(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DeleteStudents")
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, ids...)
	before := len(f.students)
	f.students = slices.DeleteFunc(f.students, func(s student.Student) bool {
		return slices.Contains(ids, s.ID)
	})
	return before - len(f.students), nil
}

func (f *fakeRepo) UpdateStudent(ctx context.Context, id string, fields student.StudentFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateStudent")
	if f.updateStudentErr != nil {
		return f.updateStudentErr
	}
	for i := range f.students {
		if f.students[i].ID != id {
			continue
		}
		s := &f.students[i]
		s.NameEn = fields.NameEn
		s.NameAr = fields.NameAr
		s.Gender = fields.Gender
		s.DateOfBirth = fields.DateOfBirth
		s.Status = fields.Status
		s.EnrollmentDate = fields.EnrollmentDate
		s.ClassroomID = fields.ClassroomID
		s.TransportZoneID = fields.TransportZoneID
		return nil
	}
	return student.ErrStudentNotFound
}

func (f *fakeRepo) UpdateParent(ctx context.Context, parentID string, fields student.ParentFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateParent")
	f.parentWrites = append(f.parentWrites, parentID)
	if f.updateParentErr != nil {
		return f.updateParentErr
	}
	p, ok := f.parents[parentID]
	if !ok {
		return student.ErrParentNotFound
	}
	p.NameEn = fields.NameEn
	p.NameAr = fields.NameAr
	p.Phone = fields.Phone
	p.Email = fields.Email
	p.Relationship = fields.Relationship
	f.parents[parentID] = p
	return nil
}

func (f *fakeRepo) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeRepo) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeRepo) Set(fn func(f *fakeRepo)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []directory.StudentEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event directory.StudentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Events() []directory.StudentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

func newEngine(t *testing.T, repo *fakeRepo, opts directory.Options) *directory.Engine {
	t.Helper()
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMock()
	}
	e := directory.New(repo, logger.Discard(), opts)
	t.Cleanup(e.Close)
	return e
}

func loadedEngine(t *testing.T, repo *fakeRepo) *directory.Engine {
	t.Helper()
	e := newEngine(t, repo, directory.Options{})
	require.NoError(t, e.Load(context.Background()))
	repo.ResetCalls()
	return e
}

func ids(rows []student.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func namesEn(rows []student.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.NameEn)
	}
	return out
}

func searchNow(e *directory.Engine, q string) {
	e.SetSearch(q)
	e.FlushSearch()
}

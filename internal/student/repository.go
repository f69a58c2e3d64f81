package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"

	"github.com/uptrace/bun"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrParentNotFound  = errors.New("parent not found")
)

// Repository is the record store gateway for the student directory.
type Repository interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	ListGrades(ctx context.Context) ([]Grade, error)
	ListClassrooms(ctx context.Context) ([]Classroom, error)
	ListTransportZones(ctx context.Context) ([]TransportZone, error)
	DeleteStudents(ctx context.Context, ids []string) (int, error)
	UpdateStudent(ctx context.Context, id string, fields StudentFields) error
	UpdateParent(ctx context.Context, parentID string, fields ParentFields) error
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) joinedSelect(students interface{}) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(students).
		Relation("Classroom").
		Relation("Classroom.Grade").
		Relation("Parent").
		Relation("TransportZone")
}

func (r *repository) ListStudents(ctx context.Context) ([]Student, error) {
	start := time.Now()
	var students []Student
	err := r.joinedSelect(&students).
		Order("s.name_en").
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "students", time.Since(start), err)

	return students, err
}

func (r *repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.joinedSelect(student).
		Where("s.id = ?", id).
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) ListGrades(ctx context.Context) ([]Grade, error) {
	start := time.Now()
	var grades []Grade
	err := r.db.NewSelect().Model(&grades).Order("level").Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "grades", time.Since(start), err)

	return grades, err
}

func (r *repository) ListClassrooms(ctx context.Context) ([]Classroom, error) {
	start := time.Now()
	var classrooms []Classroom
	err := r.db.NewSelect().Model(&classrooms).Order("name_en").Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "classrooms", time.Since(start), err)

	return classrooms, err
}

func (r *repository) ListTransportZones(ctx context.Context) ([]TransportZone, error) {
	start := time.Now()
	var zones []TransportZone
	err := r.db.NewSelect().Model(&zones).Order("name_en").Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "transport_zones", time.Since(start), err)

	return zones, err
}

// DeleteStudents removes every student in ids with a single statement.
func (r *repository) DeleteStudents(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*Student)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)

	r.metrics.RecordQuery(ctx, "delete", "students", time.Since(start), err)

	if err != nil {
		return 0, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

func (r *repository) UpdateStudent(ctx context.Context, id string, fields StudentFields) error {
	start := time.Now()
	student := &Student{
		ID:              id,
		NameEn:          fields.NameEn,
		NameAr:          fields.NameAr,
		Gender:          fields.Gender,
		DateOfBirth:     fields.DateOfBirth,
		Status:          fields.Status,
		EnrollmentDate:  fields.EnrollmentDate,
		ClassroomID:     fields.ClassroomID,
		TransportZoneID: fields.TransportZoneID,
	}
	result, err := r.db.NewUpdate().
		Model(student).
		Column("name_en", "name_ar", "gender", "date_of_birth", "status",
			"enrollment_date", "classroom_id", "transport_zone_id").
		WherePK().
		Exec(ctx)

	r.metrics.RecordQuery(ctx, "update", "students", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (r *repository) UpdateParent(ctx context.Context, parentID string, fields ParentFields) error {
	start := time.Now()
	parent := &Parent{
		ID:           parentID,
		NameEn:       fields.NameEn,
		NameAr:       fields.NameAr,
		Phone:        fields.Phone,
		Email:        fields.Email,
		Relationship: fields.Relationship,
	}
	result, err := r.db.NewUpdate().
		Model(parent).
		Column("name_en", "name_ar", "phone", "email", "relationship").
		WherePK().
		Exec(ctx)

	r.metrics.RecordQuery(ctx, "update", "parents", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrParentNotFound
	}
	return nil
}

package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/student"
)

// StudentUpdate is the full field set submitted by the edit form.
type StudentUpdate struct {
	NameEn             string `json:"name_en" validate:"required"`
	NameAr             string `json:"name_ar" validate:"required"`
	Gender             string `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth        string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Status             string `json:"status" validate:"required,oneof=active inactive"`
	EnrollmentDate     string `json:"enrollment_date" validate:"required,datetime=2006-01-02"`
	ClassroomID        string `json:"classroom_id" validate:"required"`
	TransportZoneID    string `json:"transport_zone_id"`
	ParentNameEn       string `json:"parent_name_en" validate:"required"`
	ParentNameAr       string `json:"parent_name_ar" validate:"required"`
	ParentPhone        string `json:"parent_phone"`
	ParentEmail        string `json:"parent_email" validate:"omitempty,email"`
	ParentRelationship string `json:"parent_relationship" validate:"required,oneof=father mother guardian"`
}

func (u StudentUpdate) normalized() StudentUpdate {
	u.Gender = strings.ToLower(strings.TrimSpace(u.Gender))
	u.Status = strings.ToLower(strings.TrimSpace(u.Status))
	u.ParentRelationship = strings.ToLower(strings.TrimSpace(u.ParentRelationship))
	return u
}

func (u StudentUpdate) studentFields() (student.StudentFields, error) {
	dob, err := student.ParseDate(u.DateOfBirth)
	if err != nil {
		return student.StudentFields{}, fmt.Errorf("%w: date_of_birth: %v", ErrInvalidInput, err)
	}
	enrolled, err := student.ParseDate(u.EnrollmentDate)
	if err != nil {
		return student.StudentFields{}, fmt.Errorf("%w: enrollment_date: %v", ErrInvalidInput, err)
	}
	return student.StudentFields{
		NameEn:          u.NameEn,
		NameAr:          u.NameAr,
		Gender:          u.Gender,
		DateOfBirth:     dob,
		Status:          u.Status,
		EnrollmentDate:  enrolled,
		ClassroomID:     u.ClassroomID,
		TransportZoneID: optional(u.TransportZoneID),
	}, nil
}

func (u StudentUpdate) parentFields() student.ParentFields {
	return student.ParentFields{
		NameEn:       u.ParentNameEn,
		NameAr:       u.ParentNameAr,
		Phone:        optional(u.ParentPhone),
		Email:        optional(u.ParentEmail),
		Relationship: u.ParentRelationship,
	}
}

// optional maps blank form values to NULL.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// UpdateStudent writes the student row, then the parent row of the student's
// current parent (skipped when the student has none), then re-reads the joined record and patches it into the
// loaded set. Each step runs only if the previous one succeeded; on any
// failure the loaded set is left as it was.
func (e *Engine) UpdateStudent(ctx context.Context, id string, upd StudentUpdate) error {
	upd = upd.normalized()
	if err := e.validate.Struct(upd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields, err := upd.studentFields()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrLoading
	}
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return ErrStudentNotLoaded
	}
	parentID := e.rows[i].ParentID
	e.mu.Unlock()

	if err := e.repo.UpdateStudent(ctx, id, fields); err != nil {
		e.logger.ErrorContext(ctx, "student update failed", "student_id", id, "error", err)
		return fmt.Errorf("update student %s: %w", id, err)
	}

	if parentID == "" {
		e.logger.WarnContext(ctx, "student has no parent record, parent fields not saved", "student_id", id)
	} else if err := e.repo.UpdateParent(ctx, parentID, upd.parentFields()); err != nil {
		// The student row is already persisted; the loaded row stays stale
		// until the directory is loaded again.
		e.logger.ErrorContext(ctx, "parent update failed after student update",
			"student_id", id, "parent_id", parentID, "error", err)
		return fmt.Errorf("%w: %w", ErrPartialUpdate, err)
	}

	fresh, err := e.repo.GetStudent(ctx, id)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to refresh updated student", "student_id", id, "error", err)
		e.metrics.RecordStudentUpdated(ctx)
		return nil
	}
	row := student.NewRow(fresh)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if i := e.indexOf(id); i >= 0 {
		e.rows[i] = row
		e.version++
	}
	e.mu.Unlock()

	e.metrics.RecordStudentUpdated(ctx)
	e.logger.InfoContext(ctx, "student updated", "student_id", id)
	e.publish(ctx, StudentEvent{
		Type:       EventStudentUpdated,
		StudentIDs: []string{id},
		Student:    &row,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// DeleteSelected deletes every selected student with one gateway call. On
// success the rows are removed and the whole selection is cleared; on
// failure nothing changes locally.
func (e *Engine) DeleteSelected(ctx context.Context) (int, error) {
	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return 0, ErrLoading
	}
	ids := e.selectedLocked()
	e.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := e.repo.DeleteStudents(ctx, ids); err != nil {
		e.logger.ErrorContext(ctx, "bulk delete failed", "count", len(ids), "error", err)
		return 0, fmt.Errorf("delete students: %w", err)
	}

	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return len(ids), nil
	}
	kept := e.rows[:0:0]
	for _, row := range e.rows {
		if _, ok := gone[row.ID]; !ok {
			kept = append(kept, row)
		}
	}
	e.rows = kept
	e.selected = make(map[string]struct{})
	e.version++
	e.mu.Unlock()

	e.metrics.RecordStudentsDeleted(ctx, len(ids))
	e.logger.InfoContext(ctx, "students deleted", "count", len(ids))
	e.publish(ctx, StudentEvent{
		Type:       EventStudentsDeleted,
		StudentIDs: ids,
		OccurredAt: time.Now().UTC(),
	})
	return len(ids), nil
}

func (e *Engine) publish(ctx context.Context, event StudentEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish student event", "type", event.Type, "error", err)
	}
}

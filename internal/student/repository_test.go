package student_test

import (
	"context"
	"testing"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"
	"github.com/hamzaconcepts-eng/MMPS/internal/student"
	"github.com/hamzaconcepts-eng/MMPS/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const (
	gradeOne  = "a0000000-0000-0000-0000-000000000001"
	gradeTwo  = "a0000000-0000-0000-0000-000000000002"
	classOneA = "b0000000-0000-0000-0000-000000000001"
	classTwoB = "b0000000-0000-0000-0000-000000000002"
	zoneSeeb  = "c0000000-0000-0000-0000-000000000001"
	parentOne = "d0000000-0000-0000-0000-000000000001"
	parentTwo = "d0000000-0000-0000-0000-000000000002"
	ahmedID   = "e0000000-0000-0000-0000-000000000001"
	fatimaID  = "e0000000-0000-0000-0000-000000000002"
	omarID    = "e0000000-0000-0000-0000-000000000003"
)

func seed(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()
	testdb.CleanupTables(t, db, "students", "parents", "transport_zones", "classrooms", "grades")

	// inserted out of order to exercise ORDER BY
	grades := []student.Grade{
		{ID: gradeTwo, NameEn: "Grade 2", NameAr: "الصف الثاني", Level: 2},
		{ID: gradeOne, NameEn: "Grade 1", NameAr: "الصف الأول", Level: 1},
	}
	classrooms := []student.Classroom{
		{ID: classTwoB, GradeID: gradeTwo, Section: "B", NameEn: "Grade 2 - B", NameAr: "الصف الثاني - ب"},
		{ID: classOneA, GradeID: gradeOne, Section: "A", NameEn: "Grade 1 - A", NameAr: "الصف الأول - أ"},
	}
	zones := []student.TransportZone{{ID: zoneSeeb, NameEn: "Seeb", NameAr: "السيب"}}
	phone := "+968 9123 4567"
	parents := []student.Parent{
		{ID: parentOne, NameEn: "Salim Al-Balushi", NameAr: "سالم البلوشي", Phone: &phone, Relationship: "father"},
		{ID: parentTwo, NameEn: "Maryam Al-Harthi", NameAr: "مريم الحارثية", Relationship: "mother"},
	}
	zone := zoneSeeb
	dob := time.Date(2015, time.March, 14, 0, 0, 0, 0, time.UTC)
	enrolled := time.Date(2021, time.September, 1, 0, 0, 0, 0, time.UTC)
	students := []student.Student{
		{ID: omarID, NameEn: "Omar Al-Rawahi", NameAr: "عمر الرواحي", Gender: "male", DateOfBirth: dob, EnrollmentDate: enrolled, Status: "inactive", ClassroomID: classOneA, ParentID: parentOne},
		{ID: ahmedID, NameEn: "Ahmed Al-Balushi", NameAr: "أحمد البلوشي", Gender: "male", DateOfBirth: dob, EnrollmentDate: enrolled, Status: "active", ClassroomID: classOneA, ParentID: parentOne, TransportZoneID: &zone},
		{ID: fatimaID, NameEn: "Fatima Al-Harthi", NameAr: "فاطمة الحارثية", Gender: "female", DateOfBirth: dob, EnrollmentDate: enrolled, Status: "active", ClassroomID: classTwoB, ParentID: parentTwo},
	}

	for _, model := range []interface{}{&grades, &classrooms, &zones, &parents, &students} {
		_, err := db.NewInsert().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
}

func TestRepository(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	defer pg.Cleanup(t)

	pg.RunMigrations(t, student.Models()...)
	repo := student.NewRepository(pg.DB, metrics.NewMock())
	ctx := context.Background()

	t.Run("ListStudents_JoinedAndOrdered", func(t *testing.T) {
		seed(t, pg.DB)

		students, err := repo.ListStudents(ctx)
		require.NoError(t, err)
		require.Len(t, students, 3)

		assert.Equal(t, "Ahmed Al-Balushi", students[0].NameEn)
		assert.Equal(t, "Fatima Al-Harthi", students[1].NameEn)
		assert.Equal(t, "Omar Al-Rawahi", students[2].NameEn)

		ahmed := student.NewRow(&students[0])
		assert.Equal(t, gradeOne, ahmed.GradeID)
		assert.Equal(t, "Grade 1", ahmed.GradeNameEn)
		assert.Equal(t, "A", ahmed.ClassroomSection)
		assert.Equal(t, "Salim Al-Balushi", ahmed.ParentNameEn)
		require.NotNil(t, ahmed.TransportZoneAr)
		assert.Equal(t, "السيب", *ahmed.TransportZoneAr)
		assert.Equal(t, "2015-03-14", ahmed.DateOfBirth)

		fatima := student.NewRow(&students[1])
		assert.Nil(t, fatima.TransportZoneID)
		assert.Nil(t, fatima.ParentPhone)
		assert.Equal(t, "mother", fatima.ParentRelationship)
	})

	t.Run("ListReferenceTables_Ordered", func(t *testing.T) {
		seed(t, pg.DB)

		grades, err := repo.ListGrades(ctx)
		require.NoError(t, err)
		require.Len(t, grades, 2)
		assert.Equal(t, 1, grades[0].Level)

		classrooms, err := repo.ListClassrooms(ctx)
		require.NoError(t, err)
		require.Len(t, classrooms, 2)
		assert.Equal(t, "Grade 1 - A", classrooms[0].NameEn)

		zones, err := repo.ListTransportZones(ctx)
		require.NoError(t, err)
		assert.Len(t, zones, 1)
	})

	t.Run("GetStudent", func(t *testing.T) {
		seed(t, pg.DB)

		s, err := repo.GetStudent(ctx, fatimaID)
		require.NoError(t, err)
		require.NotNil(t, s.Classroom)
		require.NotNil(t, s.Classroom.Grade)
		assert.Equal(t, "Grade 2", s.Classroom.Grade.NameEn)

		_, err = repo.GetStudent(ctx, "e0000000-0000-0000-0000-0000000000ff")
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("UpdateStudent_ChangesClassroom", func(t *testing.T) {
		seed(t, pg.DB)

		err := repo.UpdateStudent(ctx, ahmedID, student.StudentFields{
			NameEn:         "Ahmed Al-Balushi",
			NameAr:         "أحمد البلوشي",
			Gender:         "male",
			DateOfBirth:    time.Date(2014, time.June, 2, 0, 0, 0, 0, time.UTC),
			Status:         "inactive",
			EnrollmentDate: time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC),
			ClassroomID:    classTwoB,
		})
		require.NoError(t, err)

		s, err := repo.GetStudent(ctx, ahmedID)
		require.NoError(t, err)
		row := student.NewRow(s)
		assert.Equal(t, gradeTwo, row.GradeID)
		assert.Equal(t, "inactive", row.Status)
		assert.Equal(t, "2014-06-02", row.DateOfBirth)
		assert.Nil(t, row.TransportZoneID)
		assert.Nil(t, row.TransportZoneEn)
	})

	t.Run("UpdateStudent_NotFound", func(t *testing.T) {
		seed(t, pg.DB)

		err := repo.UpdateStudent(ctx, "e0000000-0000-0000-0000-0000000000ff", student.StudentFields{
			NameEn: "x", NameAr: "x", Gender: "male", Status: "active", ClassroomID: classOneA,
			DateOfBirth: time.Now(), EnrollmentDate: time.Now(),
		})
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("UpdateParent", func(t *testing.T) {
		seed(t, pg.DB)

		email := "maryam@example.com"
		err := repo.UpdateParent(ctx, parentTwo, student.ParentFields{
			NameEn:       "Maryam Al-Harthi",
			NameAr:       "مريم الحارثية",
			Email:        &email,
			Relationship: "guardian",
		})
		require.NoError(t, err)

		s, err := repo.GetStudent(ctx, fatimaID)
		require.NoError(t, err)
		row := student.NewRow(s)
		require.NotNil(t, row.ParentEmail)
		assert.Equal(t, email, *row.ParentEmail)
		assert.Equal(t, "guardian", row.ParentRelationship)

		err = repo.UpdateParent(ctx, "d0000000-0000-0000-0000-0000000000ff", student.ParentFields{NameEn: "x", NameAr: "x", Relationship: "father"})
		assert.ErrorIs(t, err, student.ErrParentNotFound)
	})

	t.Run("DeleteStudents_SingleStatement", func(t *testing.T) {
		seed(t, pg.DB)

		n, err := repo.DeleteStudents(ctx, []string{ahmedID, omarID})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		students, err := repo.ListStudents(ctx)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, fatimaID, students[0].ID)

		n, err = repo.DeleteStudents(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

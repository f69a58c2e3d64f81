package student

import (
	"time"

	"github.com/uptrace/bun"
)

type Grade struct {
	bun.BaseModel `bun:"table:grades,alias:g"`

	ID     string `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	NameEn string `bun:"name_en,notnull" json:"name_en"`
	NameAr string `bun:"name_ar,notnull" json:"name_ar"`
	Level  int    `bun:"level,notnull" json:"level"`
}

type Classroom struct {
	bun.BaseModel `bun:"table:classrooms,alias:c"`

	ID      string `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	GradeID string `bun:"grade_id,type:uuid,notnull" json:"grade_id"`
	Section string `bun:"section,notnull" json:"section"`
	NameEn  string `bun:"name_en,notnull" json:"name_en"`
	NameAr  string `bun:"name_ar,notnull" json:"name_ar"`

	Grade *Grade `bun:"rel:belongs-to,join:grade_id=id" json:"-"`
}

type TransportZone struct {
	bun.BaseModel `bun:"table:transport_zones,alias:tz"`

	ID     string `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	NameEn string `bun:"name_en,notnull" json:"name_en"`
	NameAr string `bun:"name_ar,notnull" json:"name_ar"`
}

type Parent struct {
	bun.BaseModel `bun:"table:parents,alias:p"`

	ID           string  `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	NameEn       string  `bun:"name_en,notnull" json:"name_en"`
	NameAr       string  `bun:"name_ar,notnull" json:"name_ar"`
	Phone        *string `bun:"phone" json:"phone"`
	Email        *string `bun:"email" json:"email"`
	Relationship string  `bun:"relationship,notnull,default:'father'" json:"relationship"`
}

// Student is the authoritative write model. The relations are only filled
// by the joined reads and feed NewRow.
type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID              string    `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	NameEn          string    `bun:"name_en,notnull" json:"name_en"`
	NameAr          string    `bun:"name_ar,notnull" json:"name_ar"`
	Gender          string    `bun:"gender,notnull" json:"gender"`
	DateOfBirth     time.Time `bun:"date_of_birth,type:date,notnull" json:"date_of_birth"`
	ClassroomID     string    `bun:"classroom_id,type:uuid,nullzero" json:"classroom_id"`
	ParentID        string    `bun:"parent_id,type:uuid,nullzero" json:"parent_id"`
	TransportZoneID *string   `bun:"transport_zone_id,type:uuid" json:"transport_zone_id"`
	EnrollmentDate  time.Time `bun:"enrollment_date,type:date,notnull" json:"enrollment_date"`
	Status          string    `bun:"status,notnull,default:'active'" json:"status"`

	Classroom     *Classroom     `bun:"rel:belongs-to,join:classroom_id=id" json:"-"`
	Parent        *Parent        `bun:"rel:belongs-to,join:parent_id=id" json:"-"`
	TransportZone *TransportZone `bun:"rel:belongs-to,join:transport_zone_id=id" json:"-"`
}

// StudentFields is the fixed column set written by an edit.
type StudentFields struct {
	NameEn          string
	NameAr          string
	Gender          string
	DateOfBirth     time.Time
	Status          string
	EnrollmentDate  time.Time
	ClassroomID     string
	TransportZoneID *string
}

// ParentFields is the fixed column set written to the parent of an edited student.
type ParentFields struct {
	NameEn       string
	NameAr       string
	Phone        *string
	Email        *string
	Relationship string
}

// Models lists the tables in dependency order for migrations.
func Models() []interface{} {
	return []interface{}{
		(*Grade)(nil),
		(*Classroom)(nil),
		(*TransportZone)(nil),
		(*Parent)(nil),
		(*Student)(nil),
	}
}

package student

const dateLayout = "2006-01-02"

// Row is the join-flattened read model of a student. Denormalized fields are
// only ever filled from a joined read through NewRow.
type Row struct {
	ID             string `json:"id"`
	NameEn         string `json:"name_en"`
	NameAr         string `json:"name_ar"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"date_of_birth"`
	Status         string `json:"status"`
	EnrollmentDate string `json:"enrollment_date"`

	ClassroomID      string `json:"classroom_id"`
	ClassroomNameEn  string `json:"classroom_name_en"`
	ClassroomNameAr  string `json:"classroom_name_ar"`
	ClassroomSection string `json:"classroom_section"`
	GradeID          string `json:"grade_id"`
	GradeNameEn      string `json:"grade_name_en"`
	GradeNameAr      string `json:"grade_name_ar"`

	ParentID           string  `json:"parent_id"`
	ParentNameEn       string  `json:"parent_name_en"`
	ParentNameAr       string  `json:"parent_name_ar"`
	ParentPhone        *string `json:"parent_phone"`
	ParentEmail        *string `json:"parent_email"`
	ParentRelationship string  `json:"parent_relationship"`

	TransportZoneID *string `json:"transport_zone_id"`
	TransportZoneEn *string `json:"transport_zone_en"`
	TransportZoneAr *string `json:"transport_zone_ar"`
}

// NewRow flattens a student read with its classroom->grade, parent and
// transport zone relations.
func NewRow(s *Student) Row {
	row := Row{
		ID:                 s.ID,
		NameEn:             s.NameEn,
		NameAr:             s.NameAr,
		Gender:             s.Gender,
		DateOfBirth:        formatDate(s.DateOfBirth),
		Status:             s.Status,
		EnrollmentDate:     formatDate(s.EnrollmentDate),
		ClassroomID:        s.ClassroomID,
		ParentID:           s.ParentID,
		ParentRelationship: "father",
		TransportZoneID:    nonEmpty(s.TransportZoneID),
	}

	if c := s.Classroom; c != nil {
		row.ClassroomNameEn = c.NameEn
		row.ClassroomNameAr = c.NameAr
		row.ClassroomSection = c.Section
		row.GradeID = c.GradeID
		if g := c.Grade; g != nil {
			row.GradeNameEn = g.NameEn
			row.GradeNameAr = g.NameAr
		}
	}

	if p := s.Parent; p != nil {
		row.ParentNameEn = p.NameEn
		row.ParentNameAr = p.NameAr
		row.ParentPhone = nonEmpty(p.Phone)
		row.ParentEmail = nonEmpty(p.Email)
		if p.Relationship != "" {
			row.ParentRelationship = p.Relationship
		}
	}

	// zone names follow the id: no id, no names
	if z := s.TransportZone; z != nil && row.TransportZoneID != nil {
		row.TransportZoneEn = nonEmpty(&z.NameEn)
		row.TransportZoneAr = nonEmpty(&z.NameAr)
	}

	return row
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

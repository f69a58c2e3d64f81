package directory

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hamzaconcepts-eng/MMPS/internal/student"
)

type exportLabels struct {
	header         []string
	section        string
	male           string
	female         string
	statusActive   string
	statusInactive string
}

var labels = map[Lang]exportLabels{
	LangEn: {
		header:         []string{"#", "Name", "Grade / Class", "Gender", "Parent", "Phone", "Status"},
		section:        "Section",
		male:           "Male",
		female:         "Female",
		statusActive:   "Active",
		statusInactive: "Inactive",
	},
	LangAr: {
		header:         []string{"#", "الاسم", "الصف / الشعبة", "الجنس", "ولي الأمر", "الهاتف", "الحالة"},
		section:        "شعبة",
		male:           "ذكور",
		female:         "إناث",
		statusActive:   "نشط",
		statusInactive: "غير نشط",
	},
}

const missingValue = "—"

// ExportRecords renders rows as printable records in lang, header first.
func ExportRecords(rows []student.Row, lang Lang) [][]string {
	l := labels[lang]
	records := make([][]string, 0, len(rows)+1)
	records = append(records, l.header)

	for i := range rows {
		r := &rows[i]
		name, grade, parent := r.NameEn, r.GradeNameEn, r.ParentNameEn
		if lang == LangAr {
			name, grade, parent = r.NameAr, r.GradeNameAr, r.ParentNameAr
		}

		gender := l.female
		if strings.EqualFold(r.Gender, "male") {
			gender = l.male
		}
		status := l.statusInactive
		if strings.EqualFold(r.Status, "active") {
			status = l.statusActive
		}
		phone := missingValue
		if r.ParentPhone != nil {
			phone = *r.ParentPhone
		}

		records = append(records, []string{
			strconv.Itoa(i + 1),
			name,
			fmt.Sprintf("%s — %s %s", grade, l.section, r.ClassroomSection),
			gender,
			parent,
			phone,
			status,
		})
	}
	return records
}

// Export writes the whole filtered and sorted list as CSV.
func (e *Engine) Export(w io.Writer, lang Lang) error {
	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrLoading
	}
	records := ExportRecords(e.filteredLocked(lang), lang)
	e.mu.Unlock()

	writer := csv.NewWriter(w)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

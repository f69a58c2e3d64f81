package directory

import (
	"cmp"
	"slices"
	"strings"

	"github.com/hamzaconcepts-eng/MMPS/internal/student"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PageSize is the fixed number of rows on a directory page.
const PageSize = 50

type Lang string

const (
	LangEn Lang = "en"
	LangAr Lang = "ar"
)

// ParseLang maps anything but "ar" to English.
func ParseLang(s string) Lang {
	if strings.EqualFold(strings.TrimSpace(s), string(LangAr)) {
		return LangAr
	}
	return LangEn
}

func (l Lang) tag() language.Tag {
	if l == LangAr {
		return language.Arabic
	}
	return language.English
}

type SortField string

const (
	SortName   SortField = "name"
	SortClass  SortField = "class"
	SortGender SortField = "gender"
	SortStatus SortField = "status"
)

func (f SortField) Valid() bool {
	switch f {
	case SortName, SortClass, SortGender, SortStatus:
		return true
	}
	return false
}

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Query is everything the derived list depends on besides the rows themselves.
type Query struct {
	Search string
	Grade  string
	Status string
	Field  SortField
	Dir    SortDir
	Lang   Lang
}

// searchTokens splits a query into lowercase whitespace separated tokens.
func searchTokens(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// matchesSearch reports whether every token appears in the lowercase English
// name or in the Arabic name.
func matchesSearch(row *student.Row, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	en := strings.ToLower(row.NameEn)
	for _, tok := range tokens {
		if !strings.Contains(en, tok) && !strings.Contains(row.NameAr, tok) {
			return false
		}
	}
	return true
}

// Derive filters and sorts rows for q. The input slice is never modified.
func Derive(rows []student.Row, q Query) []student.Row {
	tokens := searchTokens(q.Search)

	out := make([]student.Row, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		if !matchesSearch(row, tokens) {
			continue
		}
		if q.Grade != "" && row.GradeID != q.Grade {
			continue
		}
		if q.Status != "" && !strings.EqualFold(row.Status, q.Status) {
			continue
		}
		out = append(out, *row)
	}

	sortRows(out, q.Field, q.Dir, q.Lang)
	return out
}

func sortRows(rows []student.Row, field SortField, dir SortDir, lang Lang) {
	if field == "" {
		field = SortName
	}
	col := collate.New(lang.tag())
	key := sortKey(field, lang)

	compare := func(a, b student.Row) int {
		switch field {
		case SortGender, SortStatus:
			return cmp.Compare(key(&a), key(&b))
		default:
			return col.CompareString(key(&a), key(&b))
		}
	}

	slices.SortStableFunc(rows, func(a, b student.Row) int {
		if dir == SortDesc {
			return -compare(a, b)
		}
		return compare(a, b)
	})
}

func sortKey(field SortField, lang Lang) func(*student.Row) string {
	switch field {
	case SortClass:
		if lang == LangAr {
			return func(r *student.Row) string { return r.ClassroomNameAr }
		}
		return func(r *student.Row) string { return r.ClassroomNameEn }
	case SortGender:
		return func(r *student.Row) string { return r.Gender }
	case SortStatus:
		return func(r *student.Row) string { return r.Status }
	default:
		if lang == LangAr {
			return func(r *student.Row) string { return r.NameAr }
		}
		return func(r *student.Row) string { return r.NameEn }
	}
}

// TotalPages is never below 1, even for an empty list.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return max(1, (count+pageSize-1)/pageSize)
}

// clampPage keeps page inside [1, totalPages].
func clampPage(page, totalPages int) int {
	return min(max(page, 1), totalPages)
}

// PageSlice returns the contiguous rows of a 1-based page.
func PageSlice(rows []student.Row, page, pageSize int) []student.Row {
	start := (page - 1) * pageSize
	if start < 0 || start >= len(rows) {
		return []student.Row{}
	}
	end := min(start+pageSize, len(rows))
	return rows[start:end]
}

// PageItem is one entry of the pagination footer: a page number or a gap.
type PageItem struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// PageItems builds the footer, e.g. [1 … 4 5 6 … 10].
func PageItems(current, total int) []PageItem {
	items := []PageItem{}
	if total <= 7 {
		for i := 1; i <= total; i++ {
			items = append(items, PageItem{Page: i})
		}
		return items
	}

	items = append(items, PageItem{Page: 1})
	if current > 3 {
		items = append(items, PageItem{Ellipsis: true})
	}
	for i := max(2, current-1); i <= min(total-1, current+1); i++ {
		items = append(items, PageItem{Page: i})
	}
	if current < total-2 {
		items = append(items, PageItem{Ellipsis: true})
	}
	return append(items, PageItem{Page: total})
}

// Stats are the headline counters of the whole directory.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Male   int `json:"male"`
	Female int `json:"female"`
}

func computeStats(rows []student.Row) Stats {
	s := Stats{Total: len(rows)}
	for i := range rows {
		if strings.EqualFold(rows[i].Status, "active") {
			s.Active++
		}
		switch strings.ToLower(rows[i].Gender) {
		case "male":
			s.Male++
		case "female":
			s.Female++
		}
	}
	return s
}

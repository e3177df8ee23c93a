package models

import (
	"strings"
	"time"
)

// SubjectCategory drives scheduling priority. It is decided when the subject
// is created, not sniffed from the display name at schedule time.
type SubjectCategory string

const (
	SubjectCategoryCore     SubjectCategory = "CORE"
	SubjectCategoryElective SubjectCategory = "ELECTIVE"
)

// Subject represents an academic subject.
type Subject struct {
	ID        string          `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Category  SubjectCategory `db:"category" json:"category"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// coreKeywords is the fixed vocabulary that marks a subject as core when no
// category is supplied at data entry.
var coreKeywords = []string{"math", "science", "physics", "chemistry", "biology", "english"}

// ClassifySubjectName derives a category from a display name using the core
// keyword vocabulary. Unknown names classify as elective.
func ClassifySubjectName(name string) SubjectCategory {
	lowered := strings.ToLower(name)
	for _, keyword := range coreKeywords {
		if strings.Contains(lowered, keyword) {
			return SubjectCategoryCore
		}
	}
	return SubjectCategoryElective
}

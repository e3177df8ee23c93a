package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySubjectName(t *testing.T) {
	cases := []struct {
		name     string
		expected SubjectCategory
	}{
		{"Mathematics", SubjectCategoryCore},
		{"Advanced MATHEMATICS II", SubjectCategoryCore},
		{"Physics", SubjectCategoryCore},
		{"General Science", SubjectCategoryCore},
		{"Chemistry Lab", SubjectCategoryCore},
		{"Biology", SubjectCategoryCore},
		{"English Literature", SubjectCategoryCore},
		{"History", SubjectCategoryElective},
		{"Painting", SubjectCategoryElective},
		{"Physical Education", SubjectCategoryElective},
		{"", SubjectCategoryElective},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifySubjectName(tc.name))
		})
	}
}

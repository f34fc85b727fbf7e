package binder

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These mirror the request payloads the handlers bind.
type uploadFixture struct {
	Title    string `json:"title,omitempty" validate:"max=300"`
	Author   string `json:"author,omitempty" validate:"omitempty,min=2,max=200"`
	CoverURL string `json:"cover_url,omitempty" validate:"omitempty,url"`
}

type progressFixture struct {
	Progress *float64 `json:"progress" validate:"required,min=0,max=1"`
}

type searchFixture struct {
	Q     string `json:"q" validate:"required,max=200"`
	Limit int    `json:"limit,omitempty" validate:"min=1,max=40"`
}

type shelfFixture struct {
	Formats []string `json:"formats" validate:"max=1"`
	Format  string   `json:"format" validate:"omitempty,oneof=epub pdf cbz"`
	Rating  int      `json:"rating" validate:"gte=0,lte=5"`
	Page    int      `json:"page" validate:"omitempty,gt=0,lt=5000"`
	ISBN    string   `json:"isbn" validate:"omitempty,isbn"`
}

func float(f float64) *float64 { return &f }

func TestFormatValidationError(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	cases := []struct {
		name    string
		payload interface{}
		msg     string
	}{
		{"title too long", uploadFixture{Title: strings.Repeat("a", 301)}, `"title" length must be less than or equal to 300 characters`},
		{"author too short", uploadFixture{Author: "A"}, `"author" length must be greater than or equal to 2 characters`},
		{"cover url not http", uploadFixture{CoverURL: "ftp://covers.example.com/1.jpg"}, `"cover_url" must be an absolute http(s) URL`},
		{"progress missing", progressFixture{}, `"progress" is required`},
		{"progress past the end", progressFixture{Progress: float(1.5)}, `"progress" must be less than or equal to 1`},
		{"progress negative", progressFixture{Progress: float(-0.1)}, `"progress" must be greater than or equal to 0`},
		{"query missing", searchFixture{Limit: 20}, `"q" is required`},
		{"limit zero", searchFixture{Q: "dune"}, `"limit" must be greater than or equal to 1`},
		{"limit too large", searchFixture{Q: "dune", Limit: 41}, `"limit" must be less than or equal to 40`},
		{"too many formats", shelfFixture{Formats: []string{"epub", "pdf"}}, `"formats" length must be less than or equal to 1 element`},
		{"unknown format", shelfFixture{Format: "mobi"}, `"format" must be one of the following: "epub", "pdf", "cbz"`},
		{"rating negative", shelfFixture{Rating: -1}, `"rating" must be greater than or equal to 0`},
		{"rating too high", shelfFixture{Rating: 6}, `"rating" must be less than or equal to 5`},
		{"page negative", shelfFixture{Page: -3}, `"page" must be greater than 0`},
		{"page past the end", shelfFixture{Page: 5000}, `"page" must be less than 5000`},
		{"unhandled tag", shelfFixture{ISBN: "not-an-isbn"}, `"isbn" failed the "isbn" check`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := b.validate.Struct(tt.payload)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.msg, formatValidationError(verrs[0]))
		})
	}
}

func TestFormatValidationError_ValidPayloads(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	assert.NoError(t, b.validate.Struct(uploadFixture{Title: "Dune", Author: "Frank Herbert", CoverURL: "https://covers.example.com/dune.jpg"}))
	assert.NoError(t, b.validate.Struct(progressFixture{Progress: float(0)}))
	assert.NoError(t, b.validate.Struct(searchFixture{Q: "dune", Limit: 40}))
	assert.NoError(t, b.validate.Struct(shelfFixture{Formats: []string{"epub"}, Format: "pdf", Rating: 5, Page: 12}))
}

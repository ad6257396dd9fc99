package anonymizer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docquery/docquery/internal/models"
	"github.com/docquery/docquery/pkg/anonymizer"
)

type fakeRecognizer struct {
	ents []models.Entity
	err  error
}

func (f *fakeRecognizer) Entities(_ context.Context, _ string) ([]models.Entity, error) {
	return f.ents, f.err
}

func TestAnonymize_RegexPasses(t *testing.T) {
	a := anonymizer.New(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{
			name:     "email and phone",
			in:       "Contact me at a@b.com or 555-123-4567",
			contains: []string{"[EMAIL]", "[PHONE]"},
			excludes: []string{"a@b.com", "555-123-4567"},
		},
		{
			name:     "zip code",
			in:       "Shipped to 90210 yesterday",
			contains: []string{"[ZIP]"},
			excludes: []string{"90210"},
		},
		{
			name:     "street address",
			in:       "Meet at 221 Baker Street tomorrow",
			contains: []string{"[ADDRESS]"},
			excludes: []string{"Baker Street"},
		},
		{
			name:     "plain text untouched",
			in:       "nothing sensitive here",
			contains: []string{"nothing sensitive here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := a.Anonymize(ctx, tt.in)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, gone := range tt.excludes {
				assert.NotContains(t, out, gone)
			}
		})
	}
}

func TestAnonymize_EmptyText(t *testing.T) {
	a := anonymizer.New(nil, nil)
	assert.Equal(t, "", a.Anonymize(context.Background(), ""))
}

func TestAnonymize_IdempotentOnRedactedText(t *testing.T) {
	a := anonymizer.New(nil, nil)
	ctx := context.Background()

	first := a.Anonymize(ctx, "Contact me at a@b.com or 555-123-4567")
	second := a.Anonymize(ctx, first)
	assert.Equal(t, first, second)
}

func TestAnonymize_EntityPass(t *testing.T) {
	text := "Alice met Bob in Paris"
	rec := &fakeRecognizer{ents: []models.Entity{
		{Label: "PERSON", Start: 0, End: 5},
		{Label: "PERSON", Start: strings.Index(text, "Bob"), End: strings.Index(text, "Bob") + 3},
		{Label: "GPE", Start: strings.Index(text, "Paris"), End: strings.Index(text, "Paris") + 5},
	}}

	a := anonymizer.New(rec, nil)
	out := a.Anonymize(context.Background(), text)
	assert.Equal(t, "[PERSON] met [PERSON] in [GPE]", out)
}

func TestAnonymize_IgnoresUnknownLabelsAndBadSpans(t *testing.T) {
	rec := &fakeRecognizer{ents: []models.Entity{
		{Label: "DATE", Start: 0, End: 5},
		{Label: "PERSON", Start: 90, End: 120}, // out of range
		{Label: "PERSON", Start: 5, End: 5},    // empty span
	}}

	a := anonymizer.New(rec, nil)
	out := a.Anonymize(context.Background(), "hello world")
	assert.Equal(t, "hello world", out)
}

func TestAnonymize_RecognizerFailureFallsBackToRegex(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("model not loaded")}
	a := anonymizer.New(rec, nil)

	out := a.Anonymize(context.Background(), "mail a@b.com now")
	assert.Contains(t, out, "[EMAIL]")
	assert.NotContains(t, out, "a@b.com")
}

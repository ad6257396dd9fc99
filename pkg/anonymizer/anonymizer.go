// Package anonymizer redacts sensitive substrings from text before it is
// disclosed to the language model.
package anonymizer

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/types"
)

// The regex passes run in this order. Order matters where patterns could
// overlap (a card number with separators is also a phone-shaped digit run),
// so it must not be reordered.
var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\b(\+?\d[\d\-\s]{6,}\d)\b`)
	cardRE  = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	zipRE   = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)
	addrRE  = regexp.MustCompile(`(?i)\d{1,5}\s+[A-Za-z0-9.\-]+\s+(Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`)
)

// entityLabels are the recognizer labels that get redacted.
var entityLabels = map[string]bool{
	"PERSON": true,
	"ORG":    true,
	"GPE":    true,
	"LOC":    true,
	"FAC":    true,
}

// Anonymizer applies the regex passes and, when a recognizer is configured,
// a named-entity pass on top. A nil recognizer disables the second pass.
type Anonymizer struct {
	recognizer types.EntityRecognizer
	logger     *zap.Logger
}

func New(recognizer types.EntityRecognizer, logger *zap.Logger) *Anonymizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Anonymizer{recognizer: recognizer, logger: logger}
}

// Anonymize returns text with sensitive substrings replaced by typed
// placeholders. It never fails: a recognizer error is logged and the
// regex-only output is returned. Placeholder tokens contain no digits or
// @-signs, so re-running Anonymize on its own output is a no-op.
func (a *Anonymizer) Anonymize(ctx context.Context, text string) string {
	if text == "" {
		return text
	}

	t := emailRE.ReplaceAllString(text, "[EMAIL]")
	t = phoneRE.ReplaceAllString(t, "[PHONE]")
	t = cardRE.ReplaceAllString(t, "[CARD]")
	t = zipRE.ReplaceAllString(t, "[ZIP]")
	t = addrRE.ReplaceAllString(t, "[ADDRESS]")

	if a.recognizer == nil {
		return t
	}

	ents, err := a.recognizer.Entities(ctx, t)
	if err != nil {
		a.logger.Warn("entity recognition failed, keeping regex-only redaction", zap.Error(err))
		return t
	}

	// Replace from the highest start offset down so earlier offsets stay
	// valid while replacements change the string length.
	sort.Slice(ents, func(i, j int) bool { return ents[i].Start > ents[j].Start })
	for _, ent := range ents {
		if !entityLabels[ent.Label] {
			continue
		}
		if ent.Start < 0 || ent.End > len(t) || ent.Start >= ent.End {
			continue
		}
		t = t[:ent.Start] + fmt.Sprintf("[%s]", ent.Label) + t[ent.End:]
	}

	return t
}

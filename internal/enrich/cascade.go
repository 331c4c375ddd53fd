package enrich

import (
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/dom"
)

// Strategy is one attempt in an extraction cascade. Probe returns the
// extracted value and whether the attempt produced anything usable.
type Strategy struct {
	Name  string
	Probe func(p dom.Page) (string, bool)
}

// runCascade tries strategies in order and returns the first hit.
// Individual strategy failures are expected; only a full miss is notable
// to the caller.
func runCascade(p dom.Page, label string, strategies []Strategy) (string, bool) {
	for _, s := range strategies {
		v, ok := s.Probe(p)
		if !ok {
			continue
		}
		zap.L().Debug("cascade hit",
			zap.String("field", label),
			zap.String("strategy", s.Name),
		)
		return v, true
	}
	return "", false
}

// firstDigitText returns the text of the first element matching any of the
// selectors whose text contains a digit. Digit-less matches (section labels
// like a bare "Followers" span) are skipped so a count-bearing sibling
// still wins.
func firstDigitText(p dom.Page, selectors []string) (string, string, bool) {
	for _, sel := range selectors {
		els, err := p.Elements(sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if t := el.Text(); hasDigit(t) {
				return t, sel, true
			}
		}
	}
	return "", "", false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

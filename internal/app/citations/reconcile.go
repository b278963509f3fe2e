// Package citations post-processes grounding data returned with a model answer.
package citations

import (
	"github.com/samber/lo"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// Reconcile keeps every web citation and only the first map citation, preserving source order.
// A message embeds at most one map.
func Reconcile(raw []domain.Citation) []domain.Citation {
	if len(raw) == 0 {
		return nil
	}

	out := make([]domain.Citation, 0, len(raw))
	seenMap := false
	for _, c := range raw {
		if c.Kind == domain.CitationMap {
			if seenMap {
				continue
			}
			seenMap = true
		}
		out = append(out, c)
	}
	return out
}

// FirstMap returns the map citation to embed, if any.
func FirstMap(cs []domain.Citation) (domain.Citation, bool) {
	return lo.Find(cs, func(c domain.Citation) bool {
		return c.Kind == domain.CitationMap
	})
}

// Web returns only the web citations.
func Web(cs []domain.Citation) []domain.Citation {
	return lo.Filter(cs, func(c domain.Citation, _ int) bool {
		return c.Kind == domain.CitationWeb
	})
}

package gallery

import (
	"slices"

	"heritage-gallery-backend/internal/models"
)

// Merge tags both lists and orders them newest first by effective time.
// Equal times keep input order with processing sessions ahead of sci-fi
// sessions. The inputs are not modified.
func Merge(processing []models.ProcessingSession, scifi []models.SciFiSession) []Session {
	out := make([]Session, 0, len(processing)+len(scifi))
	for i := range processing {
		p := processing[i]
		out = append(out, ProcessingEntry(&p))
	}
	for i := range scifi {
		s := scifi[i]
		out = append(out, SciFiEntry(&s))
	}

	slices.SortStableFunc(out, func(a, b Session) int {
		return b.EffectiveTime().Compare(a.EffectiveTime())
	})
	return out
}

// OfType returns the sessions of one type, preserving order.
func OfType(list []Session, t SessionType) []Session {
	var out []Session
	for _, s := range list {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

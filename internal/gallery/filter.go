package gallery

import (
	"fmt"
	"strings"
)

type TypeFilter string

const (
	FilterAll        TypeFilter = "all"
	FilterProcessing TypeFilter = "processing"
	FilterSciFi      TypeFilter = "scifi"
)

func ParseTypeFilter(s string) (TypeFilter, error) {
	switch TypeFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterProcessing, FilterSciFi:
		return TypeFilter(s), nil
	}
	return "", fmt.Errorf("unknown session type filter %q", s)
}

func (f TypeFilter) matches(t SessionType) bool {
	return f == FilterAll || f == "" || string(f) == string(t)
}

// Filter returns the sessions of the requested type whose display name,
// description or any tag contains term, ignoring case. An empty term matches
// every session.
func Filter(list []Session, typ TypeFilter, term string) []Session {
	needle := strings.ToLower(term)
	out := make([]Session, 0, len(list))
	for _, s := range list {
		if !typ.matches(s.Type) {
			continue
		}
		if needle != "" && !s.contains(needle) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (s Session) contains(needle string) bool {
	if strings.Contains(strings.ToLower(s.DisplayName()), needle) ||
		strings.Contains(strings.ToLower(s.Description()), needle) {
		return true
	}
	for _, tag := range s.Tags() {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

package reference

import "strings"

// Author represents a paper author.
type Author struct {
	First  string `json:"first,omitempty"`  // Given name(s) and initials
	Last   string `json:"last"`             // Family name, always displayed
	Suffix string `json:"suffix,omitempty"` // Jr., Sr., III
}

// ParseAuthor splits a display name at its last space.
// "Timothy C Yu" → first="Timothy C", last="Yu"; a single word is a last name.
func ParseAuthor(name string) Author {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return Author{Last: name}
	}
	return Author{
		First: strings.TrimSpace(name[:idx]),
		Last:  name[idx+1:],
	}
}

// String formats the author as "First Last Suffix", skipping empty parts.
func (a Author) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.First, a.Last, a.Suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

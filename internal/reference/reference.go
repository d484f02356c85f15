// Package reference defines the paper types the graph engine consumes.
package reference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Paper is a locally stored paper.
type Paper struct {
	// Identity
	ID   string `json:"id"`             // Local node identifier
	S2ID string `json:"s2_id,omitempty"` // Semantic Scholar paper ID, empty if unknown
	DOI  string `json:"doi,omitempty"`

	// Metadata
	Title         string   `json:"title"`
	Authors       []Author `json:"authors,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Link          string   `json:"link,omitempty"`
	CitationCount int      `json:"citation_count,omitempty"`

	// Publication Date
	Published PublicationDate `json:"published"`

	// Raw outgoing references as external (Semantic Scholar) IDs.
	// Entries that don't resolve to a local paper are kept here verbatim.
	References []string `json:"references,omitempty"`
}

// PublicationDate represents a publication date with optional month and day.
type PublicationDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"` // 1-12, 0 if unknown
	Day   int `json:"day,omitempty"`   // 1-31, 0 if unknown
}

// Validation errors.
var (
	ErrEmptyID      = errors.New("id is required")
	ErrInvalidYear  = errors.New("published year is required")
	ErrInvalidMonth = errors.New("published month must be 0-12")
	ErrInvalidDay   = errors.New("published day must be 0-31")
	ErrDayNoMonth   = errors.New("published day requires a month")
)

// Validate checks the fields the graph engine relies on.
func (p *Paper) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	return p.Published.Validate()
}

// Validate checks that the date components are in range.
func (d PublicationDate) Validate() error {
	if d.Year == 0 {
		return ErrInvalidYear
	}
	if d.Month < 0 || d.Month > 12 {
		return ErrInvalidMonth
	}
	if d.Day < 0 || d.Day > 31 {
		return ErrInvalidDay
	}
	if d.Day != 0 && d.Month == 0 {
		return ErrDayNoMonth
	}
	return nil
}

// Before reports whether d falls on a strictly earlier calendar date than o.
// An unknown month or day counts as the first, so 2001 and 2001-01-01 are the
// same date while 2001 is before 2001-03.
func (d PublicationDate) Before(o PublicationDate) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if dm, om := orFirst(d.Month), orFirst(o.Month); dm != om {
		return dm < om
	}
	return orFirst(d.Day) < orFirst(o.Day)
}

func orFirst(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// String formats the date as YYYY, YYYY-MM, or YYYY-MM-DD.
func (d PublicationDate) String() string {
	switch {
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

// ParsePublicationDate parses YYYY, YYYY-MM, or YYYY-MM-DD.
func ParsePublicationDate(s string) (PublicationDate, error) {
	var d PublicationDate
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) == 0 || len(parts) > 3 {
		return d, fmt.Errorf("invalid date %q: want YYYY, YYYY-MM, or YYYY-MM-DD", s)
	}

	fields := []*int{&d.Year, &d.Month, &d.Day}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return d, fmt.Errorf("invalid date %q: %w", s, err)
		}
		*fields[i] = n
	}

	if err := d.Validate(); err != nil {
		return d, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

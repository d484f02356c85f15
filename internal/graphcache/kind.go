package graphcache

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects one of the cached graphs.
type Kind int

const (
	References Kind = iota
	ReducedReferences
	Mentions

	numKinds = 3
)

// ErrUnknownKind is returned by ParseKind for names it doesn't recognise.
var ErrUnknownKind = errors.New("unknown graph kind")

// Kinds lists every graph kind in a fixed order.
func Kinds() []Kind {
	return []Kind{References, ReducedReferences, Mentions}
}

func (k Kind) String() string {
	switch k {
	case References:
		return "references"
	case ReducedReferences:
		return "reduced"
	case Mentions:
		return "mentions"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a graph name as accepted on the command line.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "references", "refs":
		return References, nil
	case "reduced", "reduced_references", "reduced-references":
		return ReducedReferences, nil
	case "mentions":
		return Mentions, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) valid() bool {
	return k >= 0 && k < numKinds
}

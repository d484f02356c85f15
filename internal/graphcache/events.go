package graphcache

import "context"

// Entity is the kind of stored record an event is about.
type Entity string

const (
	EntityPaper Entity = "paper"
	EntityNote  Entity = "note"
)

// Op is the committed mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is sent by the store after a mutation has been committed.
type Event struct {
	Entity Entity `json:"entity"`
	Op     Op     `json:"op"`
	ID     string `json:"id"` // paper ID; for notes, the owning paper ID

	// Structural marks a paper update that changed its references, its
	// publication date, or its S2 ID. Other paper updates leave the
	// reference graphs alone.
	Structural bool `json:"structural,omitempty"`
}

// Handle applies the rebuild an event calls for. Events that cannot affect
// any graph are ignored.
func (c *Cache) Handle(ctx context.Context, ev Event) error {
	switch ev.Entity {
	case EntityPaper:
		switch ev.Op {
		case OpCreate, OpDelete:
			return c.RebuildReferences(ctx)
		case OpUpdate:
			if !ev.Structural {
				c.log.Debug("ignoring non-structural paper update", "id", ev.ID)
				return nil
			}
			return c.RebuildReferences(ctx)
		}

	case EntityNote:
		switch ev.Op {
		case OpCreate, OpUpdate:
			return c.RebuildNote(ctx, ev.ID)
		case OpDelete:
			c.RemoveNote(ev.ID)
			return nil
		}
	}

	c.log.Warn("ignoring unknown event", "entity", ev.Entity, "op", ev.Op, "id", ev.ID)
	return nil
}

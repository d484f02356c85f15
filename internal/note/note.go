// Package note defines the rich-text notes attached to papers.
//
// Notes are stored as rich-text delta operations. Inline paper mentions are
// embeds of the form {"insert": {"mentionLink": {"id": "<paper id>"}}}.
package note

import (
	"bytes"
	"encoding/json"
	"errors"
)

// MentionEmbed is the embed key the editor uses for inline paper mentions.
const MentionEmbed = "mentionLink"

// ErrEmptyPaperID is returned when a note has no owning paper.
var ErrEmptyPaperID = errors.New("paper_id is required")

// Note is the notes document attached to a single paper.
type Note struct {
	PaperID string `json:"paper_id"`
	Ops     []Op   `json:"ops"`
}

// Op is a single rich-text delta operation. Insert is either a string of
// text or an embed object; it is kept raw so that unknown embeds survive a
// round trip through storage.
type Op struct {
	Insert     json.RawMessage        `json:"insert,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

type mentionEmbed struct {
	MentionLink *struct {
		ID json.RawMessage `json:"id"`
	} `json:"mentionLink"`
}

// Validate checks that the note has an owner.
func (n *Note) Validate() error {
	if n.PaperID == "" {
		return ErrEmptyPaperID
	}
	return nil
}

// MentionTarget returns the paper ID mentioned by the operation.
// Text inserts, other embeds, and anything malformed report false.
func (o Op) MentionTarget() (string, bool) {
	raw := bytes.TrimSpace(o.Insert)
	if len(raw) == 0 || raw[0] != '{' {
		return "", false
	}

	var embed mentionEmbed
	if err := json.Unmarshal(raw, &embed); err != nil || embed.MentionLink == nil {
		return "", false
	}

	var id string
	if err := json.Unmarshal(embed.MentionLink.ID, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Mentions returns the mentioned paper IDs in document order.
// Repeated mentions are kept.
func (n *Note) Mentions() []string {
	mentions := []string{}
	for _, op := range n.Ops {
		if id, ok := op.MentionTarget(); ok {
			mentions = append(mentions, id)
		}
	}
	return mentions
}

// TextOp returns an operation inserting plain text.
func TextOp(text string) Op {
	data, _ := json.Marshal(text)
	return Op{Insert: data}
}

// MentionOp returns an operation embedding a mention of paperID.
func MentionOp(paperID string) Op {
	data, _ := json.Marshal(map[string]interface{}{
		MentionEmbed: map[string]string{"id": paperID},
	})
	return Op{Insert: data}
}

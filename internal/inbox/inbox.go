// Package inbox is the query and status-mutation surface over the journal
// consumed by the CLI and, through it, an external session layer. It is
// purely derived from the journal; it holds no state of its own.
package inbox

import (
	"time"

	"github.com/hpungsan/murmur/internal/entry"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/journal"
)

// Preview length bounds.
const (
	DefaultPreviewChars = 80
	MaxPreviewChars     = 1000
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	All          bool // include processed/archived entries
	PreviewChars int  // default: 80, max: 1000; 0 means default
}

// Item is one entry prepared for display.
type Item struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Preview    string        `json:"preview"`
	Topic      entry.Topic   `json:"topic"`
	Urgency    entry.Urgency `json:"urgency"`
	SourceFile string        `json:"source_file"`
	Status     entry.Status  `json:"status"`
}

// Group is all items of one type, in journal order.
type Group struct {
	Type  entry.Type `json:"type"`
	Items []Item     `json:"items"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Groups []Group `json:"groups"`
	Total  int     `json:"total"`
}

// List returns pending entries grouped by type. Groups follow the fixed
// taxonomy order; empty groups are omitted.
func List(j *journal.Journal, input ListInput) (*ListOutput, error) {
	preview := input.PreviewChars
	if preview <= 0 {
		preview = DefaultPreviewChars
	}
	if preview > MaxPreviewChars {
		preview = MaxPreviewChars
	}

	entries, err := Raw(j, input.All)
	if err != nil {
		return nil, err
	}

	byType := make(map[entry.Type][]Item)
	for _, e := range entries {
		byType[e.Classification.Type] = append(byType[e.Classification.Type], Item{
			ID:         e.ID,
			Timestamp:  e.Timestamp,
			Preview:    truncate(e.Transcription, preview),
			Topic:      e.Classification.Topic,
			Urgency:    e.Classification.Urgency,
			SourceFile: e.SourceFile,
			Status:     e.Status,
		})
	}

	out := &ListOutput{Total: len(entries)}
	for _, t := range entry.Types {
		if items, ok := byType[t]; ok {
			out.Groups = append(out.Groups, Group{Type: t, Items: items})
		}
	}
	return out, nil
}

// Raw returns entries as stored, filtered to status new unless all is set.
func Raw(j *journal.Journal, all bool) ([]entry.Entry, error) {
	entries, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	if all {
		return entries, nil
	}
	var pending []entry.Entry
	for _, e := range entries {
		if e.Status == entry.StatusNew {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// ClearInput contains parameters for the Clear operation. Exactly one
// addressing mode must be set.
type ClearInput struct {
	ID  string // mark one entry (all entries with this id) processed
	All bool   // mark every entry processed
	New bool   // mark every new entry processed
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Updated int `json:"updated"`
}

// Clear marks entries processed. It never deletes a record: clearing is a
// status transition, not erasure.
func Clear(j *journal.Journal, input ClearInput) (*ClearOutput, error) {
	hasID := input.ID != ""
	modes := 0
	if hasID {
		modes++
	}
	if input.All {
		modes++
	}
	if input.New {
		modes++
	}
	if modes > 1 {
		return nil, errors.NewAmbiguousAddressing()
	}
	if modes == 0 {
		return nil, errors.NewInvalidRequest("must specify an entry id, --all, or --new")
	}

	var (
		updated int
		err     error
	)
	switch {
	case hasID:
		updated, err = j.MarkProcessed(input.ID)
		if err == nil && updated == 0 {
			return nil, errors.NewNotFound(input.ID)
		}
	case input.All:
		updated, err = j.MarkAllProcessed()
	default:
		updated, err = j.MarkNewProcessed()
	}
	if err != nil {
		return nil, err
	}
	return &ClearOutput{Updated: updated}, nil
}

// truncate caps s at n characters, rune-aware, appending an ellipsis when
// anything was cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

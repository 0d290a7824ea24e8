package pipeline

import (
	"context"
	"io"
	"slices"

	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// Event is the cell content of one collision.
type Event struct {
	ID    int64
	Cells []l1cells.Cell
}

// NewEvent copies the cells and sorts them into module and channel order.
func NewEvent(id int64, cells []l1cells.Cell) *Event {
	sorted := slices.Clone(cells)
	l1cells.SortCells(sorted)
	return &Event{ID: id, Cells: sorted}
}

// Source yields events. Next returns io.EOF after the last event.
type Source interface {
	Next(ctx context.Context) (*Event, error)
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []*Event
	pos    int
}

// NewSliceSource returns a source over the given events.
func NewSliceSource(events ...*Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next returns the next event or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

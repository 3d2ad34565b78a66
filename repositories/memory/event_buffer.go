// Package memory keeps recently captured events in process memory. It backs
// reads and writes while the persistent event tables are unavailable.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
)

// DefaultCapacity is used when NewEventBuffer is given a non-positive size
const DefaultCapacity = 500

type slot struct {
	entry   models.EventEntry
	readers map[string]time.Time
}

// EventBuffer is a bounded, thread-safe ring of events. When full, the
// oldest event is dropped. Inserting an id that is already buffered
// replaces the entry in place and keeps its read state.
type EventBuffer struct {
	mu       sync.RWMutex
	slots    []*slot
	index    map[uuid.UUID]int
	head     int // next write position
	count    int
	capacity int

	dropped int64
}

var _ repositories.EventRepository = (*EventBuffer)(nil)

// NewEventBuffer creates a buffer holding at most capacity events
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventBuffer{
		slots:    make([]*slot, capacity),
		index:    make(map[uuid.UUID]int, capacity),
		capacity: capacity,
	}
}

// Put adds or replaces an event
func (b *EventBuffer) Put(entry models.EventEntry) {
	entry.Payload = append([]byte(nil), entry.Payload...)

	b.mu.Lock()
	defer b.mu.Unlock()

	if pos, ok := b.index[entry.ID]; ok {
		b.slots[pos].entry = entry
		return
	}

	if b.count >= b.capacity {
		// head is also the oldest position once the ring is full
		delete(b.index, b.slots[b.head].entry.ID)
		b.count--
		b.dropped++
	}

	b.slots[b.head] = &slot{entry: entry}
	b.index[entry.ID] = b.head
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// Get returns a buffered event by id
func (b *EventBuffer) Get(id uuid.UUID) (models.EventEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pos, ok := b.index[id]
	if !ok {
		return models.EventEntry{}, false
	}
	return b.slots[pos].entry, true
}

// InsertEntry buffers a new entry
func (b *EventBuffer) InsertEntry(_ context.Context, entry *models.EventEntry) error {
	b.Put(*entry)
	return nil
}

// InsertOutbox is a no-op. Nothing consumes an in-memory outbox.
func (b *EventBuffer) InsertOutbox(context.Context, *models.OutboxRecord) error {
	return nil
}

// ListEvents filters, orders and paginates the buffered events the same
// way the persistent query does.
func (b *EventBuffer) ListEvents(_ context.Context, filter repositories.EventFilter) ([]*models.EventRow, error) {
	subjectTypes := toSet(filter.SubjectTypes)
	types := toSet(filter.Types)
	categories := toSet(filter.Categories)

	b.mu.RLock()
	matched := make([]*models.EventRow, 0, b.count)
	for _, pos := range b.index {
		s := b.slots[pos]
		e := s.entry
		if subjectTypes != nil && !subjectTypes[e.Subject.Type] {
			continue
		}
		if filter.SubjectID != "" && e.Subject.ID != filter.SubjectID {
			continue
		}
		if types != nil && !types[e.EventType] {
			continue
		}
		if categories != nil && !categories[e.Category] {
			continue
		}
		if filter.Since != nil && e.CapturedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && e.CapturedAt.After(*filter.Until) {
			continue
		}
		row := &models.EventRow{Entry: e}
		if filter.RequesterID != "" {
			_, row.IsRead = s.readers[filter.RequesterID]
		}
		matched = append(matched, row)
	}
	b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, c := matched[i].Entry, matched[j].Entry
		if !a.CapturedAt.Equal(c.CapturedAt) {
			return a.CapturedAt.After(c.CapturedAt)
		}
		return bytes.Compare(a.ID[:], c.ID[:]) > 0
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []*models.EventRow{}, nil
	}
	end := len(matched)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], nil
}

// MarkRead adds recipientID to the event's read set. It reports false only
// when the event is not buffered; re-marking keeps the latest read time.
func (b *EventBuffer) MarkRead(_ context.Context, eventID uuid.UUID, recipientID string, readAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.index[eventID]
	if !ok {
		return false, nil
	}
	s := b.slots[pos]
	if s.readers == nil {
		s.readers = make(map[string]time.Time)
	}
	if prev, seen := s.readers[recipientID]; !seen || readAt.After(prev) {
		s.readers[recipientID] = readAt
	}
	return true, nil
}

// Len returns the current number of buffered events
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Dropped returns the number of events evicted to make room
func (b *EventBuffer) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

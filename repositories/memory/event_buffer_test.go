package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
)

var base = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func entry(subjectID, eventType string, minute int) models.EventEntry {
	return models.EventEntry{
		ID:         uuid.New(),
		Category:   "case_lifecycle",
		EventType:  eventType,
		Severity:   models.SeverityInfo,
		Source:     models.SourceAdmin,
		Subject:    models.Subject{Type: models.SubjectTypeCase, ID: subjectID},
		Actor:      models.Actor{Type: models.ActorTypeStaff, ID: "sub-1"},
		Payload:    []byte(`{}`),
		CapturedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func TestEventBuffer_EvictsOldest(t *testing.T) {
	b := NewEventBuffer(3)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		e := entry("1", "case_created", i)
		ids = append(ids, e.ID)
		b.Put(e)
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, int64(2), b.Dropped())
	_, ok := b.Get(ids[0])
	assert.False(t, ok)
	_, ok = b.Get(ids[1])
	assert.False(t, ok)
	_, ok = b.Get(ids[4])
	assert.True(t, ok)
}

func TestEventBuffer_ReplacesSameID(t *testing.T) {
	b := NewEventBuffer(0)
	e := entry("1", "case_created", 0)
	b.Put(e)

	ok, err := b.MarkRead(context.Background(), e.ID, "sub-9", base)
	require.NoError(t, err)
	require.True(t, ok)

	e.TrackingID = "CASE-000001"
	b.Put(e)

	assert.Equal(t, 1, b.Len())
	got, _ := b.Get(e.ID)
	assert.Equal(t, "CASE-000001", got.TrackingID)

	rows, err := b.ListEvents(context.Background(), repositories.EventFilter{RequesterID: "sub-9", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsRead)
}

func TestEventBuffer_ListEvents(t *testing.T) {
	ctx := context.Background()
	b := NewEventBuffer(10)
	b.Put(entry("42", "case_created", 0))
	b.Put(entry("42", "status_changed", 2))
	b.Put(entry("7", "status_changed", 3))
	b.Put(entry("42", "case_assigned", 1))

	t.Run("filters by subject and orders newest first", func(t *testing.T) {
		rows, err := b.ListEvents(ctx, repositories.EventFilter{
			SubjectTypes: []string{"case"},
			SubjectID:    "42",
			Limit:        50,
		})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "status_changed", rows[0].Entry.EventType)
		assert.Equal(t, "case_assigned", rows[1].Entry.EventType)
		assert.Equal(t, "case_created", rows[2].Entry.EventType)
	})

	t.Run("type filter and inclusive time range", func(t *testing.T) {
		since := base.Add(2 * time.Minute)
		until := base.Add(3 * time.Minute)
		rows, err := b.ListEvents(ctx, repositories.EventFilter{
			Types: []string{"status_changed"},
			Since: &since,
			Until: &until,
			Limit: 50,
		})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		page1, _ := b.ListEvents(ctx, repositories.EventFilter{Limit: 2})
		page2, _ := b.ListEvents(ctx, repositories.EventFilter{Limit: 2, Offset: 2})
		past, _ := b.ListEvents(ctx, repositories.EventFilter{Limit: 2, Offset: 10})

		require.Len(t, page1, 2)
		require.Len(t, page2, 2)
		assert.Empty(t, past)
		assert.True(t, page1[1].Entry.CapturedAt.After(page2[0].Entry.CapturedAt))
	})

	t.Run("anonymous requester never sees read", func(t *testing.T) {
		rows, _ := b.ListEvents(ctx, repositories.EventFilter{Limit: 1})
		_, err := b.MarkRead(ctx, rows[0].Entry.ID, "sub-9", base)
		require.NoError(t, err)

		rows, _ = b.ListEvents(ctx, repositories.EventFilter{Limit: 1})
		assert.False(t, rows[0].IsRead)
	})
}

func TestEventBuffer_MarkRead(t *testing.T) {
	ctx := context.Background()
	b := NewEventBuffer(10)
	e := entry("1", "case_created", 0)
	b.Put(e)

	ok, err := b.MarkRead(ctx, e.ID, "sub-9", base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	// earlier timestamp does not regress the read state
	ok, err = b.MarkRead(ctx, e.ID, "sub-9", base)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.MarkRead(ctx, uuid.New(), "sub-9", base)
	require.NoError(t, err)
	assert.False(t, ok)
}

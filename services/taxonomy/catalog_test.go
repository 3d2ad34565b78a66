package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/case-events/models"
)

func TestGetType(t *testing.T) {
	t.Run("known type carries its category", func(t *testing.T) {
		et, ok := GetType("status_changed")
		require.True(t, ok)
		assert.Equal(t, "case_lifecycle", et.CategoryID)
		assert.Equal(t, "Status changed", et.Label)
		assert.True(t, et.Locked)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, ok := GetType("nope")
		assert.False(t, ok)
	})
}

func TestListCategories_ReturnsCopies(t *testing.T) {
	cats := ListCategories()
	require.NotEmpty(t, cats)

	cats[0].Label = "mutated"
	cats[0].Types[0].Locked = !cats[0].Types[0].Locked

	again := ListCategories()
	assert.NotEqual(t, "mutated", again[0].Label)
	assert.NotEqual(t, cats[0].Types[0].Locked, again[0].Types[0].Locked)
}

func TestCatalogIntegrity(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range ListCategories() {
		assert.NotEmpty(t, c.Label, c.ID)
		assert.True(t, c.Severity.IsValid(), c.ID)
		for _, et := range c.Types {
			assert.False(t, seen[et.ID], "duplicate type %s", et.ID)
			seen[et.ID] = true
			assert.Equal(t, c.ID, et.CategoryID)
			assert.True(t, et.Severity.IsValid(), et.ID)
			assert.Contains(t, []models.Source{models.SourcePortal, models.SourceAdmin, models.SourceSystem}, et.Source)
			assert.True(t, HasType(c.ID, et.ID))
		}
	}
	_, ok := GetCategory("messaging")
	assert.True(t, ok)
	assert.False(t, HasType("messaging", "status_changed"))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Message sent", Label("message_sent"))
	assert.Equal(t, "Some custom thing", Label("some_custom_thing"))
	assert.Equal(t, "Messaging", CategoryLabel("messaging"))
	assert.Equal(t, "Uncategorized", CategoryLabel(Uncategorized))
	assert.Equal(t, "", Humanize("  "))
}

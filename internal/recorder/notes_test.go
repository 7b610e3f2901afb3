package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotesMerge_NewCategory(t *testing.T) {
	notes := NoteSetMap{}

	changed := notes.Merge(NoteSetMap{"Motion": NewNoteSet("Zone A")})
	assert.True(t, changed)
	assert.Equal(t, "Motion: Zone A", notes.Render())
}

func TestNotesMerge_UnionIntoExisting(t *testing.T) {
	notes := NoteSetMap{"Motion": NewNoteSet("Zone A")}

	changed := notes.Merge(NoteSetMap{"Motion": NewNoteSet("Zone B", "Zone A")})
	assert.True(t, changed)
	assert.Equal(t, "Motion: Zone A, Zone B", notes.Render())
}

func TestNotesMerge_Idempotent(t *testing.T) {
	notes := NoteSetMap{}
	incoming := NoteSetMap{
		"Motion": NewNoteSet("Zone A", "Zone B"),
		"Linked": NewNoteSet("Front Door"),
	}

	assert.True(t, notes.Merge(incoming))
	first := notes.Render()

	// Second merge of the same set is a no-op
	assert.False(t, notes.Merge(incoming))
	assert.Equal(t, first, notes.Render())
}

func TestNotesMerge_EmptyCategoryIgnored(t *testing.T) {
	notes := NoteSetMap{}
	assert.False(t, notes.Merge(NoteSetMap{"Motion": NewNoteSet()}))
	assert.False(t, notes.Merge(NoteSetMap{}))
	assert.Equal(t, "", notes.Render())
}

// Pins the serialization format: sorted categories and values,
// "category: v1, v2", categories joined with ", ".
func TestNotesRender_Format(t *testing.T) {
	notes := NoteSetMap{
		"Zeta":   NewNoteSet("z2", "z1"),
		"Motion": NewNoteSet("Zone B", "Zone A"),
	}
	assert.Equal(t, "Motion: Zone A, Zone B, Zeta: z1, z2", notes.Render())
}

func TestNotesMerge_DoesNotAliasIncoming(t *testing.T) {
	incoming := NoteSetMap{"Motion": NewNoteSet("Zone A")}
	notes := NoteSetMap{}
	notes.Merge(incoming)

	// mutating the source set later must not leak into the event's notes
	incoming["Motion"]["Zone B"] = struct{}{}
	assert.Equal(t, "Motion: Zone A", notes.Render())
}

package recorder

import (
	"sort"
	"strings"
)

// NoteSet holds the unique annotation strings of one category.
type NoteSet map[string]struct{}

// NoteSetMap maps a category name to its annotation set.
type NoteSetMap map[string]NoteSet

func NewNoteSet(values ...string) NoteSet {
	s := make(NoteSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Merge unions incoming annotations into m and reports whether anything
// changed. Empty incoming categories are ignored; re-merging the same set
// is a no-op.
func (m NoteSetMap) Merge(incoming NoteSetMap) bool {
	changed := false
	for category, newSet := range incoming {
		if len(newSet) == 0 {
			continue
		}
		existing, ok := m[category]
		if !ok {
			cp := make(NoteSet, len(newSet))
			for v := range newSet {
				cp[v] = struct{}{}
			}
			m[category] = cp
			changed = true
			continue
		}
		for v := range newSet {
			if _, ok := existing[v]; !ok {
				existing[v] = struct{}{}
				changed = true
			}
		}
	}
	return changed
}

// Render flattens the map into the notes column format: "cat: v1, v2" per
// category, categories joined with ", ". Both categories and values are
// emitted sorted so the rendering is deterministic.
func (m NoteSetMap) Render() string {
	if len(m) == 0 {
		return ""
	}
	categories := make([]string, 0, len(m))
	for c := range m {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		values := make([]string, 0, len(m[c]))
		for v := range m[c] {
			values = append(values, v)
		}
		sort.Strings(values)
		parts = append(parts, c+": "+strings.Join(values, ", "))
	}
	return strings.Join(parts, ", ")
}

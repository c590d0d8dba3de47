package listing

import "slices"

// Selection is the set of checked rows. It only ever holds ids of the
// current page. Not safe for concurrent use; the Controller guards it.
type Selection struct {
	page     []string
	selected map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{selected: make(map[string]struct{})}
}

// Reset adopts a new page and clears the selection.
func (s *Selection) Reset(pageIDs []string) {
	s.page = slices.Clone(pageIDs)
	s.selected = make(map[string]struct{})
}

// Retain adopts a new page and keeps only the selected ids still on it.
func (s *Selection) Retain(pageIDs []string) {
	s.page = slices.Clone(pageIDs)
	kept := make(map[string]struct{}, len(s.selected))
	for _, id := range pageIDs {
		if _, ok := s.selected[id]; ok {
			kept[id] = struct{}{}
		}
	}
	s.selected = kept
}

// Toggle flips id and reports whether it is now selected. Ids not on the page are ignored.
func (s *Selection) Toggle(id string) bool {
	if !slices.Contains(s.page, id) {
		return false
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SelectAll checks every row of the page.
func (s *Selection) SelectAll() {
	for _, id := range s.page {
		s.selected[id] = struct{}{}
	}
}

// ToggleAll clears a fully selected page and selects every row otherwise.
func (s *Selection) ToggleAll() {
	if s.AllSelected() {
		s.Clear()
		return
	}
	s.SelectAll()
}

func (s *Selection) Clear() {
	s.selected = make(map[string]struct{})
}

func (s *Selection) Contains(id string) bool {
	_, ok := s.selected[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.selected)
}

// AllSelected drives the "select all" checkbox.
func (s *Selection) AllSelected() bool {
	return len(s.page) > 0 && len(s.selected) == len(s.page)
}

// IDs returns the selected ids in page order.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.selected))
	for _, id := range s.page {
		if _, ok := s.selected[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

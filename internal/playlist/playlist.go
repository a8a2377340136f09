package playlist

// PlayList is an ordered sequence of source locators with a cursor.
// The cursor is always a valid index while the list is non-empty.
// A PlayList is not safe for concurrent use; the controller owns it.
type PlayList struct {
	items   []string
	index   int
	looping bool
}

// New copies items into a play-list positioned on the first item.
func New(items []string, looping bool) *PlayList {
	dst := make([]string, len(items))
	copy(dst, items)
	return &PlayList{items: dst, looping: looping}
}

// Index returns the cursor.
func (p *PlayList) Index() int { return p.index }

// At returns the locator at i. It panics when i is out of range.
func (p *PlayList) At(i int) string { return p.items[i] }

// NextIndex computes the index after i: (i+1) mod N when looping, and
// false when not looping and i is the last index.
func (p *PlayList) NextIndex(i int) (int, bool) {
	n := len(p.items)
	if n == 0 {
		return 0, false
	}
	if p.looping {
		return (i + 1) % n, true
	}
	if i+1 >= n {
		return 0, false
	}
	return i + 1, true
}

// MoveTo places the cursor on i. Out-of-range values are ignored.
func (p *PlayList) MoveTo(i int) bool {
	if i < 0 || i >= len(p.items) {
		return false
	}
	p.index = i
	return true
}

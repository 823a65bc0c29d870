package bank

// Lookup is a dense reverse table where index i holds the name registered
// with ID i. Gaps hold the empty string.
type Lookup []string

// Name returns the name for id and whether id is a known, non-gap entry.
func (l Lookup) Name(id uint32) (string, bool) {
	if uint64(id) >= uint64(len(l)) {
		return "", false
	}
	name := l[id]
	return name, name != ""
}

// Len is the number of IDs the table covers, gaps included.
func (l Lookup) Len() int {
	return len(l)
}

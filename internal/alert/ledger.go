package alert

// DefaultLedgerCapacity is the number of alerted ids remembered.
const DefaultLedgerCapacity = 100

// Ledger is a bounded, insertion-ordered set of earthquake ids that have
// already been alerted. When full, the oldest insertion is evicted first,
// regardless of when the earthquakes themselves occurred.
//
// The zero value is an empty ledger of DefaultLedgerCapacity. A Ledger is
// not safe for concurrent use.
type Ledger struct {
	capacity int
	ids      []string
	index    map[string]struct{}
}

// NewLedger creates an empty ledger. A non-positive capacity uses
// DefaultLedgerCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &Ledger{capacity: capacity, index: make(map[string]struct{}, capacity)}
}

// RestoreLedger rebuilds a ledger from persisted ids, oldest first. Only the
// newest capacity entries are kept.
func RestoreLedger(ids []string, capacity int) *Ledger {
	l := NewLedger(capacity)
	for _, id := range ids {
		l.Append(id)
	}
	return l
}

// Contains reports whether id has been alerted. A nil ledger contains nothing.
func (l *Ledger) Contains(id string) bool {
	if l == nil {
		return false
	}
	_, ok := l.index[id]
	return ok
}

// Append records id, evicting the oldest entry when the ledger is full.
// Appending an id already present is a no-op.
func (l *Ledger) Append(id string) {
	if l.Contains(id) {
		return
	}
	if l.index == nil {
		if l.capacity <= 0 {
			l.capacity = DefaultLedgerCapacity
		}
		l.index = make(map[string]struct{}, l.capacity)
	}
	if len(l.ids) == l.capacity {
		delete(l.index, l.ids[0])
		l.ids = append(l.ids[:0:0], l.ids[1:]...)
	}
	l.ids = append(l.ids, id)
	l.index[id] = struct{}{}
}

// IDs returns the ledger contents, oldest first.
func (l *Ledger) IDs() []string {
	return append([]string(nil), l.ids...)
}

// Len returns the number of ids held.
func (l *Ledger) Len() int { return len(l.ids) }

// Cap returns the ledger capacity.
func (l *Ledger) Cap() int {
	if l.capacity <= 0 {
		return DefaultLedgerCapacity
	}
	return l.capacity
}

package timeline

// DefaultHistoryCapacity bounds the undo log.
const DefaultHistoryCapacity = 50

// TrackRef identifies a track created lazily by an edit.
type TrackRef struct {
	ID     string `json:"id"`
	ZOrder int    `json:"z_order"`
}

// Entry is one accepted structural edit. The set of implementations is
// closed; Editor.apply switches over all of them.
type Entry interface {
	Kind() string
	entry()
}

type InsertEntry struct {
	Placement Placement
	NewTrack  *TrackRef
}

type MoveEntry struct {
	Before   Placement
	After    Placement
	NewTrack *TrackRef
	Changes  TransitionDiff
}

type TrimEntry struct {
	Before  Placement
	After   Placement
	Changes TransitionDiff
}

type SplitEntry struct {
	Original        Placement
	Left            Placement
	Right           Placement
	OriginalEffects []Effect
	LeftEffects     []Effect
	RightEffects    []Effect
	Changes         TransitionDiff
}

type DeleteEntry struct {
	Placement   Placement
	Effects     []Effect
	Transitions []Transition
}

type VolumeEntry struct {
	Before Placement
	After  Placement
}

type ReorderEntry struct {
	Track int
	From  int
	To    int
}

func (InsertEntry) Kind() string { return "insert" }
func (MoveEntry) Kind() string { return "move" }
func (TrimEntry) Kind() string { return "trim" }
func (SplitEntry) Kind() string { return "split" }
func (DeleteEntry) Kind() string { return "delete" }
func (VolumeEntry) Kind() string { return "volume" }
func (ReorderEntry) Kind() string { return "reorder" }

func (InsertEntry) entry() {}
func (MoveEntry) entry() {}
func (TrimEntry) entry() {}
func (SplitEntry) entry() {}
func (DeleteEntry) entry() {}
func (VolumeEntry) entry() {}
func (ReorderEntry) entry() {}

// TransitionDiff records the transitions an edit touched: their state before
// the edit and whatever survived it.
type TransitionDiff struct {
	Before []Transition
	After  []Transition
}

// Direction selects which side of an entry to apply.
type Direction int

const (
	Backward Direction = iota
	Forward
)

// History is a bounded linear undo/redo log. cursor counts applied entries.
type History struct {
	entries  []Entry
	cursor   int
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Record appends e, discarding any redo tail first.
func (h *History) Record(e Entry) {
	h.entries = append(h.entries[:h.cursor], e)
	h.cursor++
	if len(h.entries) > h.capacity {
		drop := len(h.entries) - h.capacity
		h.entries = append([]Entry(nil), h.entries[drop:]...)
		h.cursor -= drop
	}
}

// Undo applies the inverse of the entry before the cursor.
func (h *History) Undo(apply func(Entry, Direction) error) (Entry, error) {
	if h.cursor == 0 {
		return nil, ErrNothingToUndo
	}
	e := h.entries[h.cursor-1]
	if err := apply(e, Backward); err != nil {
		return nil, err
	}
	h.cursor--
	return e, nil
}

// Redo reapplies the entry at the cursor.
func (h *History) Redo(apply func(Entry, Direction) error) (Entry, error) {
	if h.cursor >= len(h.entries) {
		return nil, ErrNothingToRedo
	}
	e := h.entries[h.cursor]
	if err := apply(e, Forward); err != nil {
		return nil, err
	}
	h.cursor++
	return e, nil
}

func (h *History) Len() int { return len(h.entries) }
func (h *History) Cursor() int { return h.cursor }
func (h *History) Capacity() int { return h.capacity }
func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.entries) }

// Labels returns the kind of every entry, oldest first.
func (h *History) Labels() []string {
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Kind()
	}
	return out
}

// Clear drops every entry.
func (h *History) Clear() {
	h.entries = nil
	h.cursor = 0
}

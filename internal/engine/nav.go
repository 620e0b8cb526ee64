package engine

import (
	"sync"

	"github.com/gridwell/gridwell/internal/grid"
)

// NavState is the navigation state machine's mode.
type NavState int

const (
	NavIdle NavState = iota
	NavSelected
	NavEditing
)

// Position addresses a cell as (row index, visible column index) in the
// evaluated order. Hidden columns do not occupy positions.
type Position struct {
	Row int
	Col int
}

// ArrowDirection names the four arrow keys.
type ArrowDirection int

const (
	ArrowUp ArrowDirection = iota
	ArrowDown
	ArrowLeft
	ArrowRight
)

// CommitFunc persists an edited cell value. Wired to Engine.SetCell.
type CommitFunc func(rowID, columnID string, v grid.Value)

// Navigator is the cell focus/edit state machine.
//
// STATES: idle (nothing focused), selected (one cell focused), editing
// (focused cell has an open edit buffer).
//
// While editing, keystrokes go to the buffer; a trailing debounce
// persists the draft without leaving edit mode, and every transition
// out of editing forces a final flush (or discards it, for Escape).
// A buffer identical to the cell's current value is never persisted.
//
// The debounced flush fires on a timer goroutine, so all state lives
// behind a mutex. The commit func runs with the navigator lock held;
// lock order is navigator before engine, never the reverse.
type Navigator struct {
	cache  *TableCache
	hidden map[string]bool
	commit CommitFunc
	flush  FlushScheduler
	sink   EventSink

	mu       sync.Mutex
	state    NavState
	pos      Position
	buffer   string
	original grid.Value
}

// NewNavigator builds a navigator over the cache. flush may be nil for
// callers that only ever force-flush on exit.
func NewNavigator(cache *TableCache, commit CommitFunc, flush FlushScheduler, sink EventSink) *Navigator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Navigator{
		cache:  cache,
		commit: commit,
		flush:  flush,
		sink:   sink,
	}
}

// SetHidden installs the set of hidden column ids. The current
// selection is re-clamped against the new visible sequence.
func (n *Navigator) SetHidden(hidden map[string]bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hidden = hidden
	if n.state != NavIdle {
		n.pos = n.clamp(n.pos)
	}
}

// State returns the current mode.
func (n *Navigator) State() NavState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Selection returns the focused position; only meaningful outside idle.
func (n *Navigator) Selection() Position {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pos
}

// Buffer returns the open edit buffer.
func (n *Navigator) Buffer() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.buffer
}

// visibleColumns returns the navigable column sequence.
func (n *Navigator) visibleColumns() []grid.Column {
	cols := n.cache.Columns()
	if len(n.hidden) == 0 {
		return cols
	}
	out := make([]grid.Column, 0, len(cols))
	for _, c := range cols {
		if !n.hidden[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// cellAt resolves a position to its row and column ids.
func (n *Navigator) cellAt(pos Position) (grid.Row, grid.Column, bool) {
	row, ok := n.cache.RowAt(pos.Row)
	if !ok {
		return grid.Row{}, grid.Column{}, false
	}
	cols := n.visibleColumns()
	if pos.Col < 0 || pos.Col >= len(cols) {
		return grid.Row{}, grid.Column{}, false
	}
	return row, cols[pos.Col], true
}

// Click focuses a cell. An open edit on another cell is committed
// first; a second click on the already-selected cell opens the editor.
func (n *Navigator) Click(row, col int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.click(row, col)
}

func (n *Navigator) click(row, col int) {
	if n.state == NavEditing {
		n.commitEdit()
		n.moveTo(Position{Row: row, Col: col})
		return
	}
	if n.state == NavSelected && n.cache.Len() > 0 && len(n.visibleColumns()) > 0 &&
		n.clamp(Position{Row: row, Col: col}) == n.pos {
		n.beginEdit(n.currentDisplay())
		return
	}
	n.moveTo(Position{Row: row, Col: col})
}

// DoubleClick focuses a cell and opens its value for editing.
func (n *Navigator) DoubleClick(row, col int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.click(row, col)
	if n.state == NavSelected {
		n.beginEdit(n.currentDisplay())
	}
}

// Type handles a printable keystroke. On a selected cell it opens a
// fresh edit (typing replaces the value); while editing it appends.
func (n *Navigator) Type(r rune) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case NavSelected:
		n.beginEdit("")
		n.appendBuffer(r)
	case NavEditing:
		n.appendBuffer(r)
	}
}

// SetBuffer replaces the edit buffer wholesale (paste, IME input).
func (n *Navigator) SetBuffer(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == NavSelected {
		n.beginEdit("")
	}
	if n.state != NavEditing {
		return
	}
	n.buffer = s
	n.scheduleFlush()
}

// Enter opens an edit on a selected cell, or commits an open edit and
// moves the selection down one row.
func (n *Navigator) Enter() {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case NavSelected:
		n.beginEdit(n.currentDisplay())
	case NavEditing:
		n.commitEdit()
		n.moveTo(Position{Row: n.pos.Row + 1, Col: n.pos.Col})
	}
}

// Escape discards an open edit without persisting, or clears the
// selection entirely.
func (n *Navigator) Escape() {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case NavEditing:
		n.cancelFlush()
		n.buffer = ""
		n.state = NavSelected
	case NavSelected:
		n.state = NavIdle
	}
}

// Tab commits any open edit and moves right, wrapping to the first
// visible column of the next row at the row's end.
func (n *Navigator) Tab() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == NavIdle {
		return
	}
	if n.state == NavEditing {
		n.commitEdit()
	}
	next := Position{Row: n.pos.Row, Col: n.pos.Col + 1}
	if next.Col >= len(n.visibleColumns()) && next.Row+1 < n.cache.Len() {
		next = Position{Row: next.Row + 1, Col: 0}
	}
	n.moveTo(next)
}

// ShiftTab commits any open edit and moves left, wrapping to the last
// visible column of the previous row at the row's start.
func (n *Navigator) ShiftTab() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == NavIdle {
		return
	}
	if n.state == NavEditing {
		n.commitEdit()
	}
	next := Position{Row: n.pos.Row, Col: n.pos.Col - 1}
	if next.Col < 0 && next.Row > 0 {
		next = Position{Row: next.Row - 1, Col: len(n.visibleColumns()) - 1}
	}
	n.moveTo(next)
}

// Arrow commits any open edit and moves the selection one cell, clamped
// at the grid edges.
func (n *Navigator) Arrow(dir ArrowDirection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == NavIdle {
		return
	}
	if n.state == NavEditing {
		n.commitEdit()
	}
	next := n.pos
	switch dir {
	case ArrowUp:
		next.Row--
	case ArrowDown:
		next.Row++
	case ArrowLeft:
		next.Col--
	case ArrowRight:
		next.Col++
	}
	n.moveTo(next)
}

// moveTo clamps and installs a selection, emitting a move event when
// the position or mode actually changed.
func (n *Navigator) moveTo(pos Position) {
	if n.cache.Len() == 0 || len(n.visibleColumns()) == 0 {
		n.state = NavIdle
		return
	}
	clamped := n.clamp(pos)
	moved := n.state != NavSelected || clamped != n.pos
	n.state = NavSelected
	n.pos = clamped
	if moved {
		n.sink.Emit(EventSelectionMoved, clamped)
	}
}

func (n *Navigator) clamp(pos Position) Position {
	if pos.Row < 0 {
		pos.Row = 0
	}
	if max := n.cache.Len() - 1; pos.Row > max {
		pos.Row = max
	}
	if pos.Col < 0 {
		pos.Col = 0
	}
	if max := len(n.visibleColumns()) - 1; pos.Col > max {
		pos.Col = max
	}
	return pos
}

func (n *Navigator) currentDisplay() string {
	row, col, ok := n.cellAt(n.pos)
	if !ok {
		return ""
	}
	return grid.ValueString(n.cache.Value(row.ID, col.ID))
}

func (n *Navigator) beginEdit(initial string) {
	row, col, ok := n.cellAt(n.pos)
	if !ok {
		return
	}
	n.state = NavEditing
	n.buffer = initial
	n.original = n.cache.Value(row.ID, col.ID)
}

func (n *Navigator) appendBuffer(r rune) {
	n.buffer += string(r)
	n.scheduleFlush()
}

// scheduleFlush arms the trailing debounce to persist the draft while
// the user is still editing.
func (n *Navigator) scheduleFlush() {
	if n.flush == nil {
		return
	}
	n.flush.Schedule(n.flushDraft)
}

func (n *Navigator) cancelFlush() {
	if n.flush != nil {
		n.flush.Cancel()
	}
}

// flushDraft persists the buffer without leaving edit mode. Runs on the
// flush scheduler's goroutine, so it takes the lock like any caller.
func (n *Navigator) flushDraft() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != NavEditing {
		return
	}
	n.persist()
}

// commitEdit forces a final flush and returns to selected.
func (n *Navigator) commitEdit() {
	n.cancelFlush()
	n.persist()
	n.buffer = ""
	n.state = NavSelected
}

// persist sends the buffer through the commit func unless it parses to
// the value the cell already holds.
func (n *Navigator) persist() {
	row, col, ok := n.cellAt(n.pos)
	if !ok {
		return
	}
	v := grid.ValueForKind(col.Kind, n.buffer)
	if grid.ValueEqual(v, n.original) {
		return
	}
	n.original = v
	if n.commit != nil {
		n.commit(row.ID, col.ID, v)
	}
}

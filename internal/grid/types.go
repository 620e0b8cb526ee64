package grid

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ColumnKind is the declared value kind of a column.
type ColumnKind string

const (
	// KindText columns hold free text and compare case-insensitively.
	KindText ColumnKind = "TEXT"
	// KindNumber columns hold parsed numbers and compare numerically.
	KindNumber ColumnKind = "NUMBER"
)

// Valid reports whether the kind is one of the declared kinds.
func (k ColumnKind) Valid() bool {
	return k == KindText || k == KindNumber
}

// Table owns an ordered set of Columns and Rows. Deleting a table
// cascades to everything it owns.
type Table struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column is a typed, ordered field of a table. Ord is dense and
// zero-based within the owning table.
type Column struct {
	ID      string     `json:"id"`
	TableID string     `json:"table_id"`
	Name    string     `json:"name"`
	Kind    ColumnKind `json:"kind"`
	Ord     int        `json:"ord"`
	Width   int        `json:"width"`
}

// DefaultColumnWidth is the display width assigned to new columns.
const DefaultColumnWidth = 180

// Row is an ordered record of a table. Ord is dense and zero-based
// within the owning table.
type Row struct {
	ID      string `json:"id"`
	TableID string `json:"table_id"`
	Ord     int    `json:"ord"`
}

// Cell is the value at a (row, column) intersection. At most one Cell
// exists per pair; absence reads as Empty.
type Cell struct {
	ID       string `json:"id"`
	RowID    string `json:"row_id"`
	ColumnID string `json:"column_id"`
	Value    Value  `json:"-"`
}

// tempIDPrefix marks client-assigned placeholder ids. The store never
// issues ids with this prefix, so the two ranges cannot collide.
const tempIDPrefix = "tmp-"

// NewID returns a permanent UUIDv7 id. UUIDv7 embeds a timestamp, so ids
// sort roughly by creation time, which keeps index pages warm.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewTempID returns a client-side placeholder id. Temporary ids are
// prefixed and timestamp-ordered (UUIDv7) per the optimistic protocol.
func NewTempID() string {
	return tempIDPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsTempID reports whether id is a client-assigned placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

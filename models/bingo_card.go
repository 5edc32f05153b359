package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// CellStatus is the validation state of a single cell.
type CellStatus string

const (
	CellPending   CellStatus = "PENDING"
	CellValidated CellStatus = "VALIDATED"
	CellRejected  CellStatus = "REJECTED"
)

// CellCount is the fixed number of cells on a card (3x3).
const CellCount = 9

var (
	ErrInvalidCells = errors.New("invalid card cells")
	ErrCellNotFound = errors.New("cell not found")
)

// Valid reports whether s is a known status.
func (s CellStatus) Valid() bool {
	switch s {
	case CellPending, CellValidated, CellRejected:
		return true
	}
	return false
}

// Next returns the status one step along PENDING -> VALIDATED -> REJECTED -> PENDING.
func (s CellStatus) Next() CellStatus {
	switch s {
	case CellPending:
		return CellValidated
	case CellValidated:
		return CellRejected
	default:
		return CellPending
	}
}

// Cell is one square of a bingo card. ID is its ordinal, 1..9.
type Cell struct {
	ID     int        `json:"id"`
	Text   string     `json:"text"`
	Status CellStatus `json:"status"`
}

// Cells is the fixed grid stored as a JSON column. Shape is validated on read and write.
type Cells [CellCount]Cell

// NewCells builds a grid from texts keyed by ordinal. Statuses are taken from prev
// by ordinal and default to PENDING.
func NewCells(texts map[int]string, prev *Cells) (Cells, error) {
	var c Cells
	for i := range c {
		id := i + 1
		text, ok := texts[id]
		if !ok {
			return Cells{}, fmt.Errorf("%w: missing cell %d", ErrInvalidCells, id)
		}
		status := CellPending
		if prev != nil {
			if old, err := prev.Get(id); err == nil {
				status = old.Status
			}
		}
		c[i] = Cell{ID: id, Text: text, Status: status}
	}
	return c, nil
}

// Validate checks that ordinals 1..9 each appear once and every status is known.
func (c Cells) Validate() error {
	var seen [CellCount + 1]bool
	for _, cell := range c {
		if cell.ID < 1 || cell.ID > CellCount {
			return fmt.Errorf("%w: ordinal %d out of range", ErrInvalidCells, cell.ID)
		}
		if seen[cell.ID] {
			return fmt.Errorf("%w: duplicate ordinal %d", ErrInvalidCells, cell.ID)
		}
		seen[cell.ID] = true
		if !cell.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidCells, cell.Status)
		}
	}
	return nil
}

// Score is the number of VALIDATED cells.
func (c Cells) Score() int {
	n := 0
	for _, cell := range c {
		if cell.Status == CellValidated {
			n++
		}
	}
	return n
}

// Get returns the cell with the given ordinal.
func (c Cells) Get(id int) (Cell, error) {
	for _, cell := range c {
		if cell.ID == id {
			return cell, nil
		}
	}
	return Cell{}, ErrCellNotFound
}

// Advance moves one cell a single step along the status cycle and returns its new status.
func (c *Cells) Advance(id int) (CellStatus, error) {
	for i := range c {
		if c[i].ID == id {
			c[i].Status = c[i].Status.Next()
			return c[i].Status, nil
		}
	}
	return "", ErrCellNotFound
}

// Value implements driver.Valuer.
func (c Cells) Value() (driver.Value, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal([CellCount]Cell(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *Cells) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidCells, value)
	}

	var list []Cell
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCells, err)
	}
	if len(list) != CellCount {
		return fmt.Errorf("%w: expected %d cells, got %d", ErrInvalidCells, CellCount, len(list))
	}
	var out Cells
	copy(out[:], list)
	if err := out.Validate(); err != nil {
		return err
	}
	*c = out
	return nil
}

// GormDataType implements schema.GormDataTypeInterface.
func (Cells) GormDataType() string {
	return "json"
}

// GormDBDataType picks jsonb on postgres and plain text elsewhere.
func (Cells) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// BingoCard is a participant's 3x3 grid. Score is derived from Cells and
// Revision increases on every write.
type BingoCard struct {
	ID                 string `json:"id" gorm:"primaryKey"`
	EventParticipantID string `json:"event_participant_id" gorm:"uniqueIndex;not null"`
	Cells              Cells  `json:"cells" gorm:"not null"`
	Score              int    `json:"score" gorm:"not null"`
	Revision           int    `json:"revision" gorm:"not null"`
	Timestamps
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(prefix string) map[int]string {
	out := make(map[int]string, CellCount)
	for i := 1; i <= CellCount; i++ {
		out[i] = prefix + string(rune('0'+i))
	}
	return out
}

func TestStatusCycle(t *testing.T) {
	s := CellPending
	s = s.Next()
	assert.Equal(t, CellValidated, s)
	s = s.Next()
	assert.Equal(t, CellRejected, s)
	s = s.Next()
	assert.Equal(t, CellPending, s)
}

func TestAdvanceThreeTimesReturnsToPending(t *testing.T) {
	cells, err := NewCells(texts("x"), nil)
	require.NoError(t, err)

	var visited []CellStatus
	for i := 0; i < 3; i++ {
		st, err := cells.Advance(3)
		require.NoError(t, err)
		visited = append(visited, st)
	}

	assert.Equal(t, []CellStatus{CellValidated, CellRejected, CellPending}, visited)
	assert.Equal(t, 0, cells.Score())
}

func TestAdvanceUnknownCell(t *testing.T) {
	cells, _ := NewCells(texts("x"), nil)
	_, err := cells.Advance(10)
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestNewCellsCarriesStatusesByOrdinal(t *testing.T) {
	prev, _ := NewCells(texts("old"), nil)
	_, _ = prev.Advance(2)
	_, _ = prev.Advance(5)
	_, _ = prev.Advance(5)

	next, err := NewCells(texts("new"), &prev)
	require.NoError(t, err)

	c2, _ := next.Get(2)
	c5, _ := next.Get(5)
	assert.Equal(t, CellValidated, c2.Status)
	assert.Equal(t, "new2", c2.Text)
	assert.Equal(t, CellRejected, c5.Status)
	assert.Equal(t, 1, next.Score())
}

func TestNewCellsRequiresEveryOrdinal(t *testing.T) {
	in := texts("x")
	delete(in, 7)
	_, err := NewCells(in, nil)
	assert.ErrorIs(t, err, ErrInvalidCells)
}

func TestCellsRoundTripThroughColumn(t *testing.T) {
	cells, _ := NewCells(texts("x"), nil)
	_, _ = cells.Advance(1)

	v, err := cells.Value()
	require.NoError(t, err)

	var back Cells
	require.NoError(t, back.Scan(v))
	assert.Equal(t, cells, back)

	var fromBytes Cells
	require.NoError(t, fromBytes.Scan([]byte(v.(string))))
	assert.Equal(t, cells, fromBytes)
}

func TestScanRejectsMalformedGrids(t *testing.T) {
	cases := map[string]string{
		"too few":        `[{"id":1,"text":"a","status":"PENDING"}]`,
		"not json":       `{`,
		"duplicate":      `[{"id":1,"status":"PENDING"},{"id":1,"status":"PENDING"},{"id":3,"status":"PENDING"},{"id":4,"status":"PENDING"},{"id":5,"status":"PENDING"},{"id":6,"status":"PENDING"},{"id":7,"status":"PENDING"},{"id":8,"status":"PENDING"},{"id":9,"status":"PENDING"}]`,
		"unknown status": `[{"id":1,"status":"DONE"},{"id":2,"status":"PENDING"},{"id":3,"status":"PENDING"},{"id":4,"status":"PENDING"},{"id":5,"status":"PENDING"},{"id":6,"status":"PENDING"},{"id":7,"status":"PENDING"},{"id":8,"status":"PENDING"},{"id":9,"status":"PENDING"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var c Cells
			assert.ErrorIs(t, c.Scan(raw), ErrInvalidCells)
		})
	}

	var c Cells
	assert.ErrorIs(t, c.Scan(42), ErrInvalidCells)
}

func TestValueRejectsInvalidGrid(t *testing.T) {
	var c Cells // zero ordinals
	_, err := c.Value()
	assert.ErrorIs(t, err, ErrInvalidCells)
}

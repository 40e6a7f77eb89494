// Package export writes report rows in the CSV layout consumed by
// spreadsheet imports: every text cell quoted, money with two decimals.
package export

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
)

type cellKind int

const (
	kindText cellKind = iota
	kindBare
)

// Cell is a single formatted CSV value.
type Cell struct {
	kind  cellKind
	value string
}

// Text quotes s and doubles embedded quotes.
func Text(s string) Cell {
	return Cell{kind: kindText, value: s}
}

// Money formats an amount with two decimals, unquoted.
func Money(amount decimal.Decimal) Cell {
	return Cell{kind: kindBare, value: money.Format(amount)}
}

// Int writes an integer unquoted.
func Int(v int) Cell {
	return Cell{kind: kindBare, value: strconv.Itoa(v)}
}

// Fixed writes a decimal with the given places, unquoted.
func Fixed(v decimal.Decimal, places int32) Cell {
	return Cell{kind: kindBare, value: v.StringFixed(places)}
}

// Date writes a calendar date as quoted text.
func Date(t time.Time) Cell {
	if t.IsZero() {
		return Text("")
	}
	return Text(t.Format(money.DateLayout))
}

// Bool writes "Yes"/"No" as quoted text.
func Bool(v bool) Cell {
	if v {
		return Text("Yes")
	}
	return Text("No")
}

// Writer emits a header row followed by data rows terminated by "\n".
type Writer struct {
	w       *bufio.Writer
	columns int
	err     error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Header writes the column labels. It must be called once, before any Row.
func (w *Writer) Header(columns ...string) error {
	if w.columns != 0 {
		return errors.New("export: header already written")
	}
	cells := make([]Cell, len(columns))
	for i, c := range columns {
		cells[i] = Text(c)
	}
	w.columns = len(columns)
	return w.write(cells)
}

// Row writes one record; the cell count must match the header.
func (w *Writer) Row(cells ...Cell) error {
	if w.columns == 0 {
		return errors.New("export: header not written")
	}
	if len(cells) != w.columns {
		return errors.New("export: row width does not match header")
	}
	return w.write(cells)
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) write(cells []Cell) error {
	if w.err != nil {
		return w.err
	}
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		if c.kind == kindText {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(c.value, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(c.value)
	}
	b.WriteByte('\n')
	_, w.err = w.w.WriteString(b.String())
	return w.err
}

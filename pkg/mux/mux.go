// Package mux drives the select lines of the analog multiplexers that route
// grid rows and columns onto the capacitance sensor input.
package mux

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Controller commands the row and column multiplexer addresses. Selectors
// outside the addressable range are masked down to it rather than rejected;
// the mux hardware only sees the low select-line bits anyway. Electrical
// settling after a change is the caller's job.
type Controller interface {
	SelectRow(s int) error
	SelectCol(s int) error
}

// GPIO is a Controller backed by physical GPIO select lines, up to three per
// axis (an 8:1 mux). Either axis may have no lines at all, in which case
// selecting on it is a no-op; that covers the single-mux and direct-channel
// board layouts.
type GPIO struct {
	rows []gpio.PinOut
	cols []gpio.PinOut
}

var _ Controller = (*GPIO)(nil)

// NewGPIO builds a controller from the row and column select lines, ordered
// LSB first.
func NewGPIO(rows, cols []gpio.PinOut) (*GPIO, error) {
	if len(rows) > 3 || len(cols) > 3 {
		return nil, fmt.Errorf("at most 3 select lines per axis, got %d rows %d cols", len(rows), len(cols))
	}
	return &GPIO{rows: rows, cols: cols}, nil
}

func (g *GPIO) SelectRow(s int) error { return drive(g.rows, s) }

func (g *GPIO) SelectCol(s int) error { return drive(g.cols, s) }

// drive writes the selector onto the lines, bit 0 to the first line. The
// selector is masked to the number of lines, so an 8:1 mux sees s & 0x07 and
// a 4:1 mux sees s & 0x03.
func drive(pins []gpio.PinOut, s int) error {
	s &= 1<<len(pins) - 1
	for i, p := range pins {
		lvl := gpio.Low
		if s&(1<<i) != 0 {
			lvl = gpio.High
		}
		if err := p.Out(lvl); err != nil {
			return fmt.Errorf("select line %s: %w", p.Name(), err)
		}
	}
	return nil
}

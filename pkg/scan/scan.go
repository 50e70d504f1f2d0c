// Package scan implements the grid scan engine: it sequences the mux address
// space, enforces the settle/discard acquisition protocol at every node, and
// hands one stable reading per node per pass to the reporter.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/convert"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/mux"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/sensor"
)

// Address identifies one grid node.
type Address struct {
	Row int
	Col int
}

// Result is one reading for one node. Raw is always the captured 28-bit
// count. When the engine converts, Value is the capacitance in pF and Valid
// reports whether the conversion produced a finite value; readings the
// converter rejects keep their raw count but must never surface as NaN or
// infinity downstream.
type Result struct {
	Addr      Address
	Raw       uint32
	Value     float64
	Valid     bool
	Timestamp time.Time
}

// Reporter consumes results node by node, in scan order. EndFrame marks the
// completion of a full pass over the grid.
type Reporter interface {
	Publish(Result) error
	EndFrame() error
}

// Config parameterizes one scan topology. The same engine covers the single
// mux, dual row/column mux and direct-channel board layouts.
type Config struct {
	Rows int
	Cols int

	RowSettle      time.Duration // after a row address change
	ColSettle      time.Duration // after a column address change
	ConversionWait time.Duration // per node, lets the FDC cycle reflect the new load
	DiscardReads   int           // throwaway reads after switching
	DiscardGap     time.Duration // between discard reads
	InterNodeDelay time.Duration // before advancing to the next node

	// Convert selects capacitance output; with it unset results carry only
	// the raw count.
	Convert   bool
	Constants convert.Constants

	// Channel is the FDC channel for the muxed grid. ChannelMap, when it has
	// Rows*Cols entries, overrides it per node (row-major) for grids wired
	// straight to FDC channels.
	Channel    int
	ChannelMap []int

	// Debug logs discarded reads.
	Debug bool
}

func (c Config) channel(row, col int) int {
	if len(c.ChannelMap) == c.Rows*c.Cols {
		return c.ChannelMap[row*c.Cols+col]
	}
	return c.Channel
}

// Engine owns the sensor and mux for the duration of a scan. It is a single
// logical actor: every wait blocks, nothing overlaps, one node's protocol
// completes before the next begins.
type Engine struct {
	cfg    Config
	mux    mux.Controller
	reader sensor.FrequencyReader
	rep    Reporter
	clock  Clock

	// currently commanded mux address; settle time is only spent when the
	// address actually changes
	curRow int
	curCol int
}

// New validates the configuration and builds an engine on the wall clock.
func New(cfg Config, m mux.Controller, rd sensor.FrequencyReader, rep Reporter) (*Engine, error) {
	if cfg.Rows < 1 || cfg.Cols < 1 {
		return nil, fmt.Errorf("grid must be at least 1x1, got %dx%d", cfg.Rows, cfg.Cols)
	}
	if cfg.DiscardReads < 0 {
		return nil, fmt.Errorf("discard reads must be >= 0, got %d", cfg.DiscardReads)
	}
	if n := len(cfg.ChannelMap); n != 0 && n != cfg.Rows*cfg.Cols {
		return nil, fmt.Errorf("channel map has %d entries for a %dx%d grid", n, cfg.Rows, cfg.Cols)
	}
	if m == nil || rd == nil || rep == nil {
		return nil, errors.New("mux, reader and reporter are required")
	}
	return &Engine{
		cfg:    cfg,
		mux:    m,
		reader: rd,
		rep:    rep,
		clock:  WallClock(),
		curRow: -1,
		curCol: -1,
	}, nil
}

// WithClock substitutes the clock. Tests use it to run the protocol on
// simulated time.
func (e *Engine) WithClock(c Clock) *Engine {
	e.clock = c
	return e
}

// Run scans frames back to back until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := e.Frame(ctx); err != nil {
			return err
		}
	}
}

// Frame performs one full pass: rows outer, columns inner, every node
// exactly once, Rows*Cols results in row-major order.
func (e *Engine) Frame(ctx context.Context) error {
	for row := 0; row < e.cfg.Rows; row++ {
		for col := 0; col < e.cfg.Cols; col++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.scanNode(row, col); err != nil {
				return err
			}
		}
	}
	return e.rep.EndFrame()
}

// scanNode runs the acquisition protocol for one node: address select, row
// and column settle, conversion wait, discards, the authoritative capture,
// emit, inter-node delay.
func (e *Engine) scanNode(row, col int) error {
	if row != e.curRow {
		if err := e.mux.SelectRow(row); err != nil {
			return fmt.Errorf("select row %d: %w", row, err)
		}
		e.curRow = row
		e.clock.Sleep(e.cfg.RowSettle)
	}
	if col != e.curCol {
		if err := e.mux.SelectCol(col); err != nil {
			return fmt.Errorf("select col %d: %w", col, err)
		}
		e.curCol = col
		e.clock.Sleep(e.cfg.ColSettle)
	}
	e.clock.Sleep(e.cfg.ConversionWait)

	ch := e.cfg.channel(row, col)
	for i := 0; i < e.cfg.DiscardReads; i++ {
		v, err := e.reader.ReadChannel(ch)
		if err != nil {
			return fmt.Errorf("discard read %d at (%d,%d): %w", i, row, col, err)
		}
		if e.cfg.Debug {
			log.Printf("discard (%d,%d) #%d = %d", row, col, i, v)
		}
		e.clock.Sleep(e.cfg.DiscardGap)
	}

	raw, err := e.reader.ReadChannel(ch)
	if err != nil {
		return fmt.Errorf("capture at (%d,%d): %w", row, col, err)
	}

	res := Result{
		Addr:      Address{Row: row, Col: col},
		Raw:       raw,
		Timestamp: e.clock.Now(),
	}
	if e.cfg.Convert {
		pf, err := e.cfg.Constants.Convert(raw)
		switch {
		case errors.Is(err, convert.ErrInvalidReading):
			// surfaced as an invalid result, never as a garbage float
		case err != nil:
			return fmt.Errorf("convert at (%d,%d): %w", row, col, err)
		default:
			res.Value = pf
			res.Valid = true
		}
	} else {
		res.Valid = true
	}

	if err := e.rep.Publish(res); err != nil {
		return fmt.Errorf("publish (%d,%d): %w", row, col, err)
	}
	e.clock.Sleep(e.cfg.InterNodeDelay)
	return nil
}

// Package console writes the scan stream as CSV text, one of the two wire
// schemas the downstream plotting scripts understand: labeled per-node lines
// or one unlabeled line per full pass.
package console

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"
)

// invalidField is what an unconvertible reading looks like on the wire; a
// parseable-but-garbage float would silently poison downstream baselines.
const invalidField = "invalid"

type Options struct {
	// Converted formats values as capacitance floats; otherwise the raw
	// count is printed as an integer.
	Converted bool
	// Frame emits one CSV line of values per pass instead of labeled
	// per-node lines.
	Frame bool
	// Precision is the number of decimals for converted values; 0 means 3.
	Precision int
}

type Console struct {
	w    io.Writer
	opts Options
	buf  []string
}

var _ output.Output = (*Console)(nil)

// New writes to stdout. The labeled schema gets its header line up front,
// the way the firmware announced it at boot.
func New(opts Options) *Console { return NewWriter(os.Stdout, opts) }

// NewWriter writes the same stream to an arbitrary writer; the serial output
// reuses it for its port.
func NewWriter(w io.Writer, opts Options) *Console {
	if opts.Precision <= 0 {
		opts.Precision = 3
	}
	c := &Console{w: w, opts: opts}
	if !opts.Frame {
		fmt.Fprintln(w, "Timestamp,Row_index,Column_index,Node_Value")
	}
	return c
}

func (c *Console) Publish(r scan.Result) error {
	field := c.format(r)
	if c.opts.Frame {
		c.buf = append(c.buf, field)
		return nil
	}
	_, err := fmt.Fprintf(c.w, "%d,%d,%d,%s\n", r.Timestamp.UnixMilli(), r.Addr.Row, r.Addr.Col, field)
	return err
}

func (c *Console) EndFrame() error {
	if !c.opts.Frame {
		return nil
	}
	_, err := fmt.Fprintln(c.w, strings.Join(c.buf, ","))
	c.buf = c.buf[:0]
	return err
}

func (c *Console) Close() error { return nil }

func (c *Console) format(r scan.Result) string {
	if !c.opts.Converted {
		return strconv.FormatUint(uint64(r.Raw), 10)
	}
	if !r.Valid {
		return invalidField
	}
	return strconv.FormatFloat(r.Value, 'f', c.opts.Precision, 64)
}

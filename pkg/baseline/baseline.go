// Package baseline layers a median-baseline delta mode over the scan result
// stream: the first window of readings per node establishes a median raw
// count, after which each result's value becomes the relative capacitance
// change against that baseline. The scan engine itself stays stateless; this
// is purely a reporter decorator.
package baseline

import (
	"log"
	"sort"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"
)

type Tracker struct {
	next      scan.Reporter
	cols      int
	window    int
	samples   [][]uint32 // per node, row-major
	medians   []uint32
	ready     bool
	forwarded bool // a result went downstream in the current frame
}

var _ scan.Reporter = (*Tracker)(nil)

// New wraps next with a tracker for a rows x cols grid that collects window
// samples per node before reporting anything.
func New(next scan.Reporter, rows, cols, window int) *Tracker {
	return &Tracker{
		next:    next,
		cols:    cols,
		window:  window,
		samples: make([][]uint32, rows*cols),
		medians: make([]uint32, rows*cols),
	}
}

// Ready reports whether the baseline has been established.
func (t *Tracker) Ready() bool { return t.ready }

// Median returns the baseline median for a node, 0 until ready.
func (t *Tracker) Median(row, col int) uint32 { return t.medians[row*t.cols+col] }

// Publish collects raw counts until every node has a full window, then
// computes the medians and switches to delta reporting. Results during
// collection are absorbed. Afterwards each result's Value is the relative
// capacitance change -(raw - median)/median; the sign flip reflects that
// frequency counts fall as capacitance rises.
func (t *Tracker) Publish(res scan.Result) error {
	node := res.Addr.Row*t.cols + res.Addr.Col
	if node < 0 || node >= len(t.samples) {
		return nil
	}
	if !t.ready {
		if len(t.samples[node]) < t.window {
			t.samples[node] = append(t.samples[node], res.Raw)
		}
		if t.complete() {
			for i, s := range t.samples {
				t.medians[i] = median(s)
			}
			t.samples = nil
			t.ready = true
			log.Printf("baseline set: %d samples per node", t.window)
		}
		return nil
	}

	med := t.medians[node]
	if med == 0 {
		res.Valid = false
		res.Value = 0
	} else {
		res.Value = -(float64(res.Raw) - float64(med)) / float64(med)
		res.Valid = true
	}
	t.forwarded = true
	return t.next.Publish(res)
}

// EndFrame is swallowed until a full frame of results has gone downstream.
// That covers both the collection phase and the frame whose last samples
// completed the window: its results were absorbed into the baseline, so
// forwarding its EndFrame would put an empty pass on the wire.
func (t *Tracker) EndFrame() error {
	if !t.ready || !t.forwarded {
		return nil
	}
	t.forwarded = false
	return t.next.EndFrame()
}

func (t *Tracker) complete() bool {
	for _, s := range t.samples {
		if len(s) < t.window {
			return false
		}
	}
	return true
}

func median(s []uint32) uint32 {
	if len(s) == 0 {
		return 0
	}
	sorted := make([]uint32, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

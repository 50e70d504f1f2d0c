package sensor

import (
	"math/rand"
	"sync"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/convert"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/mux"
)

// Sim fabricates frequency counts from a per-node capacitance model, so the
// whole scan pipeline can run without hardware. Like the real board, the
// value it reports depends on the address currently commanded on the mux.
type Sim struct {
	mu     sync.Mutex
	consts convert.Constants
	addr   *mux.Sim
	cols   int
	base   []float64 // pF per node, row-major
	noise  float64   // pF
	rng    *rand.Rand
}

var _ FrequencyReader = (*Sim)(nil)

// NewSim builds a simulated sensor for a rows x cols grid addressed through
// m. Node capacitances ramp across the grid around a plausible sensor value
// so scans produce a recognizable gradient; noise is Gaussian, in pF.
func NewSim(consts convert.Constants, m *mux.Sim, rows, cols int, noisePF float64, seed int64) *Sim {
	base := make([]float64, rows*cols)
	for i := range base {
		base[i] = 40 + 2*float64(i%cols) + 5*float64(i/cols)
	}
	return &Sim{
		consts: consts,
		addr:   m,
		cols:   cols,
		base:   base,
		noise:  noisePF,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SetNode overrides the modeled capacitance of one node, in pF. Tests use it
// to poke a touch into the grid.
func (s *Sim) SetNode(row, col int, pf float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base[row*s.cols+col] = pf
}

func (s *Sim) ReadChannel(channel int) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := channel
	if s.addr != nil {
		node = s.addr.Row()*s.cols + s.addr.Col()
	}
	if node < 0 || node >= len(s.base) {
		node = 0
	}
	pf := s.base[node] + s.noise*s.rng.NormFloat64()
	return s.consts.RawForCapacitance(pf), nil
}

func (s *Sim) Close() error { return nil }

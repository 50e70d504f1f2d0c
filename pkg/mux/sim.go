package mux

import "sync"

// Sim is an in-memory Controller for development and tests. It remembers the
// currently commanded address, which the simulated sensor reads back to pick
// the node it should report, and records the full selection history.
type Sim struct {
	mu      sync.Mutex
	row     int
	col     int
	RowSels []int
	ColSels []int
}

var _ Controller = (*Sim)(nil)

func NewSim() *Sim { return &Sim{} }

func (s *Sim) SelectRow(sel int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.row = sel & 0x07
	s.RowSels = append(s.RowSels, s.row)
	return nil
}

func (s *Sim) SelectCol(sel int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.col = sel & 0x07
	s.ColSels = append(s.ColSels, s.col)
	return nil
}

// Row returns the currently commanded row address.
func (s *Sim) Row() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.row
}

// Col returns the currently commanded column address.
func (s *Sim) Col() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col
}

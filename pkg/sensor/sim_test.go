package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/convert"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/mux"
)

func TestSimFollowsMuxAddress(t *testing.T) {
	m := mux.NewSim()
	s := NewSim(convert.Default(), m, 2, 2, 0, 1)
	s.SetNode(0, 0, 40)
	s.SetNode(1, 1, 200)

	require.NoError(t, m.SelectRow(0))
	require.NoError(t, m.SelectCol(0))
	low, err := s.ReadChannel(0)
	require.NoError(t, err)

	require.NoError(t, m.SelectRow(1))
	require.NoError(t, m.SelectCol(1))
	high, err := s.ReadChannel(0)
	require.NoError(t, err)

	// more capacitance, lower frequency count
	require.Less(t, high, low)
}

func TestSimDirectChannelAddressing(t *testing.T) {
	// no mux: the FDC channel picks the node, as on the 4-channel board
	s := NewSim(convert.Default(), nil, 4, 1, 0, 1)
	s.SetNode(0, 0, 40)
	s.SetNode(3, 0, 300)

	r0, err := s.ReadChannel(0)
	require.NoError(t, err)
	r3, err := s.ReadChannel(3)
	require.NoError(t, err)
	require.Less(t, r3, r0)
}

func TestSimReadingsMatchModel(t *testing.T) {
	m := mux.NewSim()
	s := NewSim(convert.Default(), m, 1, 1, 0, 1)
	s.SetNode(0, 0, 47)

	raw, err := s.ReadChannel(0)
	require.NoError(t, err)
	pf, err := convert.Default().Convert(raw)
	require.NoError(t, err)
	require.InDelta(t, 47, pf, 0.1)
}

package output

import "github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"

// Output is a reporter that also owns a closable resource (port, broker
// connection).
type Output interface {
	scan.Reporter
	Close() error
}

// Multi fans every result out to a set of outputs in order.
type Multi struct {
	outs []Output
}

var _ Output = (*Multi)(nil)

func NewMulti(outs ...Output) *Multi { return &Multi{outs: outs} }

func (m *Multi) Publish(r scan.Result) error {
	for _, o := range m.outs {
		if err := o.Publish(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) EndFrame() error {
	for _, o := range m.outs {
		if err := o.EndFrame(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every output, returning the first error.
func (m *Multi) Close() error {
	var first error
	for _, o := range m.outs {
		if err := o.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

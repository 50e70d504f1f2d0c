// Package serialport relays the CSV scan stream out a serial port, so hosts
// running the existing serial plotting tools can consume readings from this
// scanner the same way they consumed them from the firmware.
package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output/console"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"
)

// DefaultBaudRate matches the firmware's serial link.
const DefaultBaudRate = 115200

type Serial struct {
	port serial.Port
	out  *console.Console
}

var _ output.Output = (*Serial)(nil)

// New opens the port and writes the selected CSV schema to it.
func New(portName string, baud int, opts console.Options) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return &Serial{port: port, out: console.NewWriter(port, opts)}, nil
}

func (s *Serial) Publish(r scan.Result) error { return s.out.Publish(r) }

func (s *Serial) EndFrame() error { return s.out.EndFrame() }

func (s *Serial) Close() error { return s.port.Close() }

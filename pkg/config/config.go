package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value modes for the output stream.
const (
	ValueRaw         = "raw"         // unconverted 28-bit frequency counts
	ValueCapacitance = "capacitance" // picofarads via the LC relation
)

// Report modes for the output stream.
const (
	ReportNode  = "node"  // one timestamp,row,col,value line per node
	ReportFrame = "frame" // one CSV line of R*C values per pass
)

// Sensor types.
const (
	SensorFDC2214 = "fdc2214"
	SensorSim     = "sim"
)

// GridConfig describes the scanned address space and how grid nodes map to
// sensor channels.
type GridConfig struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`
	// Channel is the FDC channel the muxed grid is wired to.
	Channel int `json:"channel" yaml:"channel"`
	// ChannelMap overrides Channel per node, row-major, for boards where
	// nodes are wired straight to FDC channels instead of through a mux.
	ChannelMap []int `json:"channel_map,omitempty" yaml:"channel_map,omitempty"`
}

// TimingConfig holds the settle/discard protocol timings.
type TimingConfig struct {
	RowSettleUs      int `json:"row_settle_us" yaml:"row_settle_us"`
	ColSettleUs      int `json:"col_settle_us" yaml:"col_settle_us"`
	DiscardReads     int `json:"discard_reads" yaml:"discard_reads"`
	DiscardGapMs     int `json:"discard_gap_ms" yaml:"discard_gap_ms"`
	ConversionWaitMs int `json:"conversion_wait_ms" yaml:"conversion_wait_ms"`
	InterNodeDelayMs int `json:"inter_node_delay_ms" yaml:"inter_node_delay_ms"`
	StartupDelayMs   int `json:"startup_delay_ms" yaml:"startup_delay_ms"`
}

// ConstantsConfig holds the resonant-circuit parameters for capacitance
// conversion, in SI units.
type ConstantsConfig struct {
	ReferenceClockHz float64 `json:"reference_clock_hz" yaml:"reference_clock_hz"`
	InductanceH      float64 `json:"inductance_h" yaml:"inductance_h"`
	BoardCapF        float64 `json:"board_cap_f" yaml:"board_cap_f"`
	ParasiticCapF    float64 `json:"parasitic_cap_f" yaml:"parasitic_cap_f"`
}

// SensorConfig selects and configures the frequency reader.
type SensorConfig struct {
	Type       string `json:"type" yaml:"type"` // fdc2214|sim
	I2CBus     string `json:"i2c_bus" yaml:"i2c_bus"`
	I2CAddress int    `json:"i2c_address" yaml:"i2c_address"`
	// FDC bring-up settings, passed through to the chip.
	ChannelMask uint8 `json:"channel_mask" yaml:"channel_mask"`
	AutoscanSeq uint8 `json:"autoscan_seq" yaml:"autoscan_seq"`
	Deglitch    uint8 `json:"deglitch" yaml:"deglitch"`
	InternalOsc bool  `json:"internal_osc" yaml:"internal_osc"`
	// SimNoisePF is the simulated sensor's reading noise, in pF.
	SimNoisePF float64 `json:"sim_noise_pf" yaml:"sim_noise_pf"`
}

// MuxConfig names the GPIO select lines, LSB first. An empty slice means the
// axis has no mux.
type MuxConfig struct {
	RowPins []string `json:"row_pins" yaml:"row_pins"`
	ColPins []string `json:"col_pins" yaml:"col_pins"`
}

// BaselineConfig enables the median-baseline delta mode.
type BaselineConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Samples int  `json:"samples" yaml:"samples"` // per-node window for the median
}

// MQTTConfig configures the MQTT output.
type MQTTConfig struct {
	Server   string `json:"server" yaml:"server"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Topic    string `json:"topic" yaml:"topic"`
}

// OutputConfig configures one output backend.
type OutputConfig struct {
	Type       string      `json:"type" yaml:"type"` // console|serial|mqtt
	SerialPort string      `json:"serial_port,omitempty" yaml:"serial_port,omitempty"`
	BaudRate   int         `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

type Config struct {
	Grid       GridConfig      `json:"grid" yaml:"grid"`
	Timing     TimingConfig    `json:"timing" yaml:"timing"`
	Constants  ConstantsConfig `json:"constants" yaml:"constants"`
	Sensor     SensorConfig    `json:"sensor" yaml:"sensor"`
	Mux        MuxConfig       `json:"mux" yaml:"mux"`
	Baseline   BaselineConfig  `json:"baseline" yaml:"baseline"`
	Outputs    []OutputConfig  `json:"outputs" yaml:"outputs"`
	ValueMode  string          `json:"value_mode" yaml:"value_mode"`
	ReportMode string          `json:"report_mode" yaml:"report_mode"`
	Debug      bool            `json:"debug" yaml:"debug"`
}

// Default returns the reference configuration: an 8x8 grid behind two 8:1
// muxes, the longest validated settle/discard combination, raw per-node
// CSV on the console.
func Default() Config {
	return Config{
		Grid: GridConfig{Rows: 8, Cols: 8, Channel: 0},
		Timing: TimingConfig{
			RowSettleUs:      8000,
			ColSettleUs:      8000,
			DiscardReads:     2,
			DiscardGapMs:     5,
			ConversionWaitMs: 10,
			InterNodeDelayMs: 2,
			StartupDelayMs:   200,
		},
		Constants: ConstantsConfig{
			ReferenceClockHz: 40e6,
			InductanceH:      18e-6,
			BoardCapF:        33e-12,
			ParasiticCapF:    3e-12,
		},
		Sensor: SensorConfig{
			Type:        SensorFDC2214,
			I2CBus:      "1",
			I2CAddress:  0x2A,
			ChannelMask: 0x1, // CH0 only, no autoscan
			AutoscanSeq: 0x0,
			Deglitch:    0x5, // 10 MHz
			InternalOsc: false,
			SimNoisePF:  0.05,
		},
		Mux: MuxConfig{
			RowPins: []string{"GPIO2", "GPIO3", "GPIO4"},
			ColPins: []string{"GPIO5", "GPIO6", "GPIO7"},
		},
		Baseline:   BaselineConfig{Enabled: false, Samples: 20},
		Outputs:    []OutputConfig{{Type: "console"}},
		ValueMode:  ValueRaw,
		ReportMode: ReportNode,
	}
}

// Load reads a config file on top of defaults, JSON or YAML by extension.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields the scan engine and outputs depend on.
func (c Config) Validate() error {
	if c.Grid.Rows < 1 || c.Grid.Cols < 1 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", c.Grid.Rows, c.Grid.Cols)
	}
	if n := len(c.Grid.ChannelMap); n != 0 && n != c.Grid.Rows*c.Grid.Cols {
		return fmt.Errorf("channel_map has %d entries for a %dx%d grid", n, c.Grid.Rows, c.Grid.Cols)
	}
	if c.Timing.DiscardReads < 0 {
		return fmt.Errorf("discard_reads must be >= 0, got %d", c.Timing.DiscardReads)
	}
	switch c.ValueMode {
	case ValueRaw, ValueCapacitance:
	default:
		return fmt.Errorf("value_mode must be %q or %q, got %q", ValueRaw, ValueCapacitance, c.ValueMode)
	}
	switch c.ReportMode {
	case ReportNode, ReportFrame:
	default:
		return fmt.Errorf("report_mode must be %q or %q, got %q", ReportNode, ReportFrame, c.ReportMode)
	}
	switch c.Sensor.Type {
	case SensorFDC2214, SensorSim:
	default:
		return fmt.Errorf("sensor type must be %q or %q, got %q", SensorFDC2214, SensorSim, c.Sensor.Type)
	}
	if c.ValueMode == ValueCapacitance {
		if c.Constants.ReferenceClockHz <= 0 || c.Constants.InductanceH <= 0 {
			return fmt.Errorf("capacitance mode needs positive reference clock and inductance")
		}
	}
	if c.Baseline.Enabled && c.Baseline.Samples < 1 {
		return fmt.Errorf("baseline samples must be >= 1, got %d", c.Baseline.Samples)
	}
	for _, o := range c.Outputs {
		switch o.Type {
		case "console":
		case "serial":
			if o.SerialPort == "" {
				return fmt.Errorf("serial output needs serial_port")
			}
		case "mqtt":
			if o.MQTT == nil || o.MQTT.Server == "" {
				return fmt.Errorf("mqtt output needs mqtt.server")
			}
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	return nil
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseChannelMap(s string) ([]int, error) {
	parts := parseCSV(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid channel '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

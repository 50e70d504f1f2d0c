package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultMatchesReferenceProtocol(t *testing.T) {
	cfg := Default()
	// the longest validated settle/discard combination
	if cfg.Timing.RowSettleUs != 8000 || cfg.Timing.ColSettleUs != 8000 {
		t.Fatalf("settle defaults: %+v", cfg.Timing)
	}
	if cfg.Timing.DiscardReads != 2 {
		t.Fatalf("discard default: %d", cfg.Timing.DiscardReads)
	}
	if cfg.Grid.Rows != 8 || cfg.Grid.Cols != 8 {
		t.Fatalf("grid default: %+v", cfg.Grid)
	}
	if cfg.Constants.ReferenceClockHz != 40e6 || cfg.Constants.InductanceH != 18e-6 {
		t.Fatalf("constants default: %+v", cfg.Constants)
	}
}

func TestLoadJSON(t *testing.T) {
	js := `{
        "grid": {"rows": 2, "cols": 4, "channel": 1},
        "timing": {"row_settle_us": 4000, "col_settle_us": 200, "discard_reads": 1},
        "value_mode": "capacitance",
        "report_mode": "frame",
        "sensor": {"type": "sim"},
        "outputs": [{"type":"console"}]
    }`
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Grid.Rows != 2 || cfg.Grid.Cols != 4 || cfg.Grid.Channel != 1 {
		t.Fatalf("grid: %+v", cfg.Grid)
	}
	if cfg.Timing.RowSettleUs != 4000 || cfg.Timing.ColSettleUs != 200 {
		t.Fatalf("timing: %+v", cfg.Timing)
	}
	if cfg.Timing.DiscardReads != 1 {
		t.Fatalf("discards: %d", cfg.Timing.DiscardReads)
	}
	if cfg.ValueMode != ValueCapacitance || cfg.ReportMode != ReportFrame {
		t.Fatalf("modes: %q %q", cfg.ValueMode, cfg.ReportMode)
	}
	if cfg.Sensor.Type != SensorSim {
		t.Fatalf("sensor type: %q", cfg.Sensor.Type)
	}
	// untouched fields keep their defaults
	if cfg.Timing.ConversionWaitMs != 10 {
		t.Fatalf("conversion wait default lost: %d", cfg.Timing.ConversionWaitMs)
	}
}

func TestLoadYAML(t *testing.T) {
	yml := `
grid:
  rows: 4
  cols: 1
  channel_map: [0, 1, 2, 3]
sensor:
  type: sim
baseline:
  enabled: true
  samples: 50
`
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Grid.Rows != 4 || cfg.Grid.Cols != 1 {
		t.Fatalf("grid: %+v", cfg.Grid)
	}
	if !reflect.DeepEqual(cfg.Grid.ChannelMap, []int{0, 1, 2, 3}) {
		t.Fatalf("channel map: %v", cfg.Grid.ChannelMap)
	}
	if !cfg.Baseline.Enabled || cfg.Baseline.Samples != 50 {
		t.Fatalf("baseline: %+v", cfg.Baseline)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rows", func(c *Config) { c.Grid.Rows = 0 }},
		{"negative discards", func(c *Config) { c.Timing.DiscardReads = -1 }},
		{"bad value mode", func(c *Config) { c.ValueMode = "volts" }},
		{"bad report mode", func(c *Config) { c.ReportMode = "stream" }},
		{"bad sensor type", func(c *Config) { c.Sensor.Type = "fdc1004" }},
		{"short channel map", func(c *Config) { c.Grid.ChannelMap = []int{0, 1} }},
		{"serial without port", func(c *Config) { c.Outputs = []OutputConfig{{Type: "serial"}} }},
		{"mqtt without server", func(c *Config) { c.Outputs = []OutputConfig{{Type: "mqtt"}} }},
		{"unknown output", func(c *Config) { c.Outputs = []OutputConfig{{Type: "udp"}} }},
		{"baseline without samples", func(c *Config) { c.Baseline = BaselineConfig{Enabled: true} }},
		{"capacitance without inductance", func(c *Config) {
			c.ValueMode = ValueCapacitance
			c.Constants.InductanceH = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseIntOrHex(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"42", 42, true},
		{"0x2A", 0x2A, true},
		{"0X2b", 0x2B, true},
		{"bad", 0, false},
	}
	for _, tt := range tests {
		got, err := parseIntOrHex(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseIntOrHex(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("parseIntOrHex(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseChannelMap(t *testing.T) {
	got, err := parseChannelMap("0, 1,2,3")
	if err != nil {
		t.Fatalf("parseChannelMap: %v", err)
	}
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Fatalf("parseChannelMap = %v", got)
	}
	if _, err := parseChannelMap("0,x"); err == nil {
		t.Fatal("expected error for bad channel")
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" console , mqtt ,")
	if !reflect.DeepEqual(got, []string{"console", "mqtt"}) {
		t.Fatalf("parseCSV = %v", got)
	}
}

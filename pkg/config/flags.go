package config

import (
	"flag"
	"fmt"
)

// LoadFromFlags loads configuration from an optional JSON/YAML file and
// flags. Flags override values present in the file.
func LoadFromFlags() (Config, error) {
	cfgPath := flag.String("config", "", "Path to JSON or YAML config file")
	flagRows := flag.Int("rows", -1, "Grid rows")
	flagCols := flag.Int("cols", -1, "Grid columns")
	flagRowSettle := flag.Int("row-settle-us", -1, "Row mux settle time (us)")
	flagColSettle := flag.Int("col-settle-us", -1, "Column mux settle time (us)")
	flagDiscards := flag.Int("discard-reads", -1, "Throwaway reads after a mux switch")
	flagDiscardGap := flag.Int("discard-gap-ms", -1, "Delay between discard reads (ms)")
	flagConvWait := flag.Int("conversion-wait-ms", -1, "FDC conversion wait after a mux switch (ms)")
	flagNodeDelay := flag.Int("inter-node-delay-ms", -1, "Pause before advancing to the next node (ms)")
	flagValueMode := flag.String("value-mode", "", "Value mode: raw|capacitance")
	flagReportMode := flag.String("report-mode", "", "Report mode: node|frame")
	flagSensorType := flag.String("sensor-type", "", "Sensor type: fdc2214|sim")
	flagI2CBus := flag.String("i2c-bus", "", "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddr := flag.String("i2c-address", "", "I2C address (decimal or 0x hex)")
	flagRowPins := flag.String("row-pins", "", "Comma-separated row select pins, LSB first")
	flagColPins := flag.String("col-pins", "", "Comma-separated column select pins, LSB first")
	flagChannelMap := flag.String("channel-map", "", "Comma-separated FDC channel per node, row-major")
	flagOutputs := flag.String("outputs", "", "Comma-separated outputs (console,serial,mqtt)")
	flagSerialPort := flag.String("serial-port", "", "Serial output port (e.g. /dev/ttyUSB0)")
	flagBaud := flag.Int("baud", -1, "Serial output baud rate")
	flagMQTTServer := flag.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := flag.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := flag.String("mqtt-pass", "", "MQTT password")
	flagClientID := flag.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := flag.String("mqtt-topic", "", "MQTT topic base")
	flagBaseline := flag.Bool("baseline", false, "Enable median-baseline delta mode")
	flagBaselineN := flag.Int("baseline-samples", -1, "Per-node samples for the baseline median")
	flagDebug := flag.Bool("debug", false, "Log discarded reads")

	flag.Parse()

	cfg := Default()
	var err error

	if *cfgPath != "" {
		if cfg, err = Load(*cfgPath); err != nil {
			return cfg, err
		}
	}

	if *flagRows != -1 {
		cfg.Grid.Rows = *flagRows
	}
	if *flagCols != -1 {
		cfg.Grid.Cols = *flagCols
	}
	if *flagRowSettle != -1 {
		cfg.Timing.RowSettleUs = *flagRowSettle
	}
	if *flagColSettle != -1 {
		cfg.Timing.ColSettleUs = *flagColSettle
	}
	if *flagDiscards != -1 {
		cfg.Timing.DiscardReads = *flagDiscards
	}
	if *flagDiscardGap != -1 {
		cfg.Timing.DiscardGapMs = *flagDiscardGap
	}
	if *flagConvWait != -1 {
		cfg.Timing.ConversionWaitMs = *flagConvWait
	}
	if *flagNodeDelay != -1 {
		cfg.Timing.InterNodeDelayMs = *flagNodeDelay
	}
	if *flagValueMode != "" {
		cfg.ValueMode = *flagValueMode
	}
	if *flagReportMode != "" {
		cfg.ReportMode = *flagReportMode
	}
	if *flagSensorType != "" {
		cfg.Sensor.Type = *flagSensorType
	}
	if *flagI2CBus != "" {
		cfg.Sensor.I2CBus = *flagI2CBus
	}
	if *flagI2CAddr != "" {
		v, err := parseIntOrHex(*flagI2CAddr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.Sensor.I2CAddress = v
	}
	if *flagRowPins != "" {
		cfg.Mux.RowPins = parseCSV(*flagRowPins)
	}
	if *flagColPins != "" {
		cfg.Mux.ColPins = parseCSV(*flagColPins)
	}
	if *flagChannelMap != "" {
		m, err := parseChannelMap(*flagChannelMap)
		if err != nil {
			return cfg, err
		}
		cfg.Grid.ChannelMap = m
	}
	if *flagOutputs != "" {
		types := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(types))
		for _, typ := range types {
			outs = append(outs, OutputConfig{Type: typ})
		}
		cfg.Outputs = outs
	}
	for i := range cfg.Outputs {
		switch cfg.Outputs[i].Type {
		case "serial":
			if *flagSerialPort != "" {
				cfg.Outputs[i].SerialPort = *flagSerialPort
			}
			if *flagBaud != -1 {
				cfg.Outputs[i].BaudRate = *flagBaud
			}
		case "mqtt":
			if cfg.Outputs[i].MQTT == nil {
				cfg.Outputs[i].MQTT = &MQTTConfig{}
			}
			m := cfg.Outputs[i].MQTT
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.Topic = *flagTopic
			}
		}
	}
	if *flagBaseline {
		cfg.Baseline.Enabled = true
	}
	if *flagBaselineN != -1 {
		cfg.Baseline.Samples = *flagBaselineN
	}
	if *flagDebug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

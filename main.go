package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/baseline"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/config"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/convert"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/mux"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output/console"
	mqttout "github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output/mqtt"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output/serialport"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/sensor"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctl, rd, err := buildHardware(cfg)
	if err != nil {
		// sensor bring-up failure is fatal; scanning must not start
		return fmt.Errorf("sensor bring-up: %w", err)
	}
	defer rd.Close()
	log.Printf("sensor ready, scanning %dx%d grid", cfg.Grid.Rows, cfg.Grid.Cols)

	// let the FDC stabilize against the initial mux state
	time.Sleep(time.Duration(cfg.Timing.StartupDelayMs) * time.Millisecond)

	outs, err := buildOutputs(cfg)
	if err != nil {
		return err
	}
	multi := output.NewMulti(outs...)
	defer multi.Close()

	var rep scan.Reporter = multi
	if cfg.Baseline.Enabled {
		log.Printf("collecting baseline: %d samples per node", cfg.Baseline.Samples)
		rep = baseline.New(multi, cfg.Grid.Rows, cfg.Grid.Cols, cfg.Baseline.Samples)
	}

	engine, err := scan.New(scanConfig(cfg), ctl, rd, rep)
	if err != nil {
		return err
	}

	err = engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Print("scan stopped")
		return nil
	}
	return err
}

func buildHardware(cfg config.Config) (mux.Controller, sensor.FrequencyReader, error) {
	if cfg.Sensor.Type == config.SensorSim {
		sim := mux.NewSim()
		// with a channel map the simulated nodes are addressed by FDC
		// channel, not by mux state
		var addr *mux.Sim
		if len(cfg.Grid.ChannelMap) == 0 {
			addr = sim
		}
		rd := sensor.NewSim(constants(cfg.Constants), addr, cfg.Grid.Rows, cfg.Grid.Cols,
			cfg.Sensor.SimNoisePF, time.Now().UnixNano())
		return sim, rd, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("host init: %w", err)
	}
	rowPins, err := resolvePins(cfg.Mux.RowPins)
	if err != nil {
		return nil, nil, err
	}
	colPins, err := resolvePins(cfg.Mux.ColPins)
	if err != nil {
		return nil, nil, err
	}
	ctl, err := mux.NewGPIO(rowPins, colPins)
	if err != nil {
		return nil, nil, err
	}
	// park both muxes at address 0 before the chip starts converting
	if err := ctl.SelectRow(0); err != nil {
		return nil, nil, err
	}
	if err := ctl.SelectCol(0); err != nil {
		return nil, nil, err
	}
	rd, err := sensor.NewFDC2214(cfg.Sensor)
	if err != nil {
		return nil, nil, err
	}
	return ctl, rd, nil
}

func resolvePins(names []string) ([]gpio.PinOut, error) {
	pins := make([]gpio.PinOut, 0, len(names))
	for _, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown gpio pin %q", name)
		}
		pins = append(pins, p)
	}
	return pins, nil
}

func buildOutputs(cfg config.Config) ([]output.Output, error) {
	opts := consoleOptions(cfg)
	converted := cfg.ValueMode == config.ValueCapacitance
	outs := make([]output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		switch oc.Type {
		case "console":
			outs = append(outs, console.New(opts))
		case "serial":
			s, err := serialport.New(oc.SerialPort, oc.BaudRate, opts)
			if err != nil {
				return nil, err
			}
			outs = append(outs, s)
		case "mqtt":
			m, err := mqttout.New(*oc.MQTT, converted)
			if err != nil {
				return nil, err
			}
			outs = append(outs, m)
		default:
			return nil, fmt.Errorf("unknown output type %q", oc.Type)
		}
	}
	return outs, nil
}

// consoleOptions maps the value/report modes onto the CSV schema. Baseline
// deltas are small ratios, so they get float formatting with more decimals
// regardless of the value mode.
func consoleOptions(cfg config.Config) console.Options {
	opts := console.Options{
		Converted: cfg.ValueMode == config.ValueCapacitance,
		Frame:     cfg.ReportMode == config.ReportFrame,
	}
	if cfg.Baseline.Enabled {
		opts.Converted = true
		opts.Precision = 6
	}
	return opts
}

func scanConfig(cfg config.Config) scan.Config {
	return scan.Config{
		Rows:           cfg.Grid.Rows,
		Cols:           cfg.Grid.Cols,
		RowSettle:      time.Duration(cfg.Timing.RowSettleUs) * time.Microsecond,
		ColSettle:      time.Duration(cfg.Timing.ColSettleUs) * time.Microsecond,
		ConversionWait: time.Duration(cfg.Timing.ConversionWaitMs) * time.Millisecond,
		DiscardReads:   cfg.Timing.DiscardReads,
		DiscardGap:     time.Duration(cfg.Timing.DiscardGapMs) * time.Millisecond,
		InterNodeDelay: time.Duration(cfg.Timing.InterNodeDelayMs) * time.Millisecond,
		Convert:        cfg.ValueMode == config.ValueCapacitance,
		Constants:      constants(cfg.Constants),
		Channel:        cfg.Grid.Channel,
		ChannelMap:     cfg.Grid.ChannelMap,
		Debug:          cfg.Debug,
	}
}

func constants(c config.ConstantsConfig) convert.Constants {
	return convert.Constants{
		ReferenceClock: c.ReferenceClockHz,
		Inductance:     c.InductanceH,
		BoardCap:       c.BoardCapF,
		ParasiticCap:   c.ParasiticCapF,
	}
}

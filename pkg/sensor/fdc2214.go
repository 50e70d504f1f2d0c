package sensor

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/config"
)

// FDC2214 register map (16-bit registers, big endian on the wire).
const (
	regDataCh0MSB = 0x00 // channel n at 0x00 + 2n
	regDataCh0LSB = 0x01
	regRcountCh0  = 0x08
	regOffsetCh0  = 0x0C
	regSettleCh0  = 0x10
	regClockDiv0  = 0x14
	regStatus     = 0x18
	regErrorConf  = 0x19
	regConfig     = 0x1A
	regMuxConfig  = 0x1B
	regDriveCh0   = 0x1E

	regManufacturerID = 0x7E
	regDeviceID       = 0x7F

	deviceIDFDC2214 = 0x3055
	deviceIDFDC2212 = 0x3054
)

// CONFIG register bits.
const (
	configActiveChanShift = 14 // selects the converted channel when autoscan is off
	configExternalOsc     = 1 << 9
	configIntbDisable     = 1 << 7
	configReserved        = 0x001 // datasheet: write as 1
)

// MUX_CONFIG register bits.
const (
	muxAutoscanEnable = 1 << 15
	muxSeqShift       = 13
	muxReserved       = 0x41 << 3 // datasheet: write as 0b0001000001
)

// STATUS unread-conversion bits, channel 0 highest.
func unreadConvBit(channel int) uint16 { return 1 << uint(3-channel) }

// per-channel setup values, matching the reference firmware's library
// settings: maximum conversion interval for full 28-bit resolution.
const (
	rcountValue = 0xFFFF
	settleValue = 0x64
	clockDiv    = 0x2001 // CH_FIN_SEL=2, CH_FREF_DIVIDER=1
	driveValue  = 0xF800 // IDRIVE code 31
)

const (
	readyPollInterval = 200 * time.Microsecond
	readyTimeout      = 100 * time.Millisecond
)

// FDC2214 reads raw frequency counts from a TI FDC2214/FDC2212 over I2C.
type FDC2214 struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

var _ FrequencyReader = (*FDC2214)(nil)

// NewFDC2214 opens the I2C bus and brings the chip up with the configured
// channel-enable mask, autoscan sequence, deglitch filter and oscillator
// source. A chip that does not acknowledge or reports the wrong DEVICE_ID is
// a fatal condition; scanning must not start.
func NewFDC2214(cfg config.SensorConfig) (*FDC2214, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	s := &FDC2214{
		dev: &i2c.Dev{Addr: uint16(cfg.I2CAddress), Bus: bus},
		bus: bus,
	}
	if err := s.begin(cfg.ChannelMask, cfg.AutoscanSeq, cfg.Deglitch, cfg.InternalOsc); err != nil {
		bus.Close()
		return nil, err
	}
	return s, nil
}

func (s *FDC2214) begin(chanMask, autoscanSeq, deglitch uint8, internalOsc bool) error {
	id, err := s.readReg(regDeviceID)
	if err != nil {
		return fmt.Errorf("sensor not responding: %w", err)
	}
	if id != deviceIDFDC2214 && id != deviceIDFDC2212 {
		return fmt.Errorf("unexpected device id 0x%04X", id)
	}

	// per-channel conversion setup for every enabled channel
	for ch := 0; ch < 4; ch++ {
		if chanMask&(1<<uint(ch)) == 0 {
			continue
		}
		off := uint8(ch)
		if err := s.writeReg(regRcountCh0+off, rcountValue); err != nil {
			return fmt.Errorf("rcount ch%d: %w", ch, err)
		}
		if err := s.writeReg(regOffsetCh0+off, 0); err != nil {
			return fmt.Errorf("offset ch%d: %w", ch, err)
		}
		if err := s.writeReg(regSettleCh0+off, settleValue); err != nil {
			return fmt.Errorf("settlecount ch%d: %w", ch, err)
		}
		if err := s.writeReg(regClockDiv0+off, clockDiv); err != nil {
			return fmt.Errorf("clock dividers ch%d: %w", ch, err)
		}
		if err := s.writeReg(regDriveCh0+off, driveValue); err != nil {
			return fmt.Errorf("drive current ch%d: %w", ch, err)
		}
	}

	if err := s.writeReg(regErrorConf, 0); err != nil {
		return fmt.Errorf("error config: %w", err)
	}

	if err := s.writeReg(regMuxConfig, muxWord(autoscanSeq, deglitch)); err != nil {
		return fmt.Errorf("mux config: %w", err)
	}

	// taking the chip out of sleep starts conversions
	if err := s.writeReg(regConfig, configWord(chanMask, autoscanSeq, internalOsc)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// muxWord builds the MUX_CONFIG register value: deglitch filter always,
// autoscan enable and sequence only when a sequence is requested.
func muxWord(autoscanSeq, deglitch uint8) uint16 {
	v := uint16(muxReserved) | uint16(deglitch&0x7)
	if autoscanSeq != 0 {
		v |= muxAutoscanEnable | uint16(autoscanSeq&0x3)<<muxSeqShift
	}
	return v
}

// configWord builds the CONFIG register value. Without autoscan the chip
// converts only ACTIVE_CHAN, which must point at the enabled channel.
func configWord(chanMask, autoscanSeq uint8, internalOsc bool) uint16 {
	v := uint16(configIntbDisable | configReserved)
	if !internalOsc {
		v |= configExternalOsc
	}
	if autoscanSeq == 0 {
		v |= uint16(lowestChannel(chanMask)) << configActiveChanShift
	}
	return v
}

// lowestChannel returns the first enabled channel in the mask.
func lowestChannel(mask uint8) int {
	for ch := 0; ch < 4; ch++ {
		if mask&(1<<uint(ch)) != 0 {
			return ch
		}
	}
	return 0
}

// ReadChannel polls STATUS until the channel has an unread conversion, then
// reads the two data registers and assembles the 28-bit count.
func (s *FDC2214) ReadChannel(channel int) (uint32, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("invalid channel %d", channel)
	}
	deadline := time.Now().Add(readyTimeout)
	for {
		status, err := s.readReg(regStatus)
		if err != nil {
			return 0, fmt.Errorf("read status: %w", err)
		}
		if status&unreadConvBit(channel) != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("channel %d conversion timeout", channel)
		}
		time.Sleep(readyPollInterval)
	}
	msb, err := s.readReg(regDataCh0MSB + uint8(2*channel))
	if err != nil {
		return 0, fmt.Errorf("read data msb: %w", err)
	}
	lsb, err := s.readReg(regDataCh0LSB + uint8(2*channel))
	if err != nil {
		return 0, fmt.Errorf("read data lsb: %w", err)
	}
	return assemble28(msb, lsb), nil
}

func (s *FDC2214) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

func (s *FDC2214) readReg(reg uint8) (uint16, error) {
	buf := make([]byte, 2)
	if err := s.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (s *FDC2214) writeReg(reg uint8, val uint16) error {
	return s.dev.Tx([]byte{reg, byte(val >> 8), byte(val)}, nil)
}

// assemble28 combines the DATA_CHx register pair into the 28-bit count. The
// top four bits of the MSB register are status flags, not data.
func assemble28(msb, lsb uint16) uint32 {
	return uint32(msb&0x0FFF)<<16 | uint32(lsb)
}

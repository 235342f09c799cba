package dissect

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/mujina-project/mujina-core/internal/bm13xx/frame"
	"github.com/mujina-project/mujina-core/internal/dissect/serial"
	"github.com/mujina-project/mujina-core/internal/peripheral"
)

// OutputConfig controls how dissected events are rendered to text.
type OutputConfig struct {
	ShowRawHex      bool
	UseRelativeTime bool
	StartTime       *float64
	UseColor        bool
}

// DefaultOutputConfig matches the dissector's default rendering.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{UseColor: true}
}

func formatTimestamp(timestamp float64, cfg OutputConfig) string {
	t := timestamp
	if cfg.UseRelativeTime && cfg.StartTime != nil {
		t = timestamp - *cfg.StartTime
	}
	return fmt.Sprintf("%10.6f", t)
}

// FormatSerialFrame renders a dissected serial frame as one log line.
func FormatSerialFrame(f DissectedFrame, cfg OutputConfig) string {
	directionStr := "CI → ASIC"
	if f.Direction == serial.ChipToHost {
		directionStr = "RO ← ASIC"
	}

	var contentStr string
	switch c := f.Content.(type) {
	case CommandContent:
		contentStr = c.Command.String()
	case ResponseContent:
		contentStr = formatResponse(c.Response)
	case InvalidContent:
		if cfg.UseColor {
			contentStr = color.RedString(c.Reason)
		} else {
			contentStr = c.Reason
		}
	}

	result := fmt.Sprintf("[%s] %s: %s", formatTimestamp(f.Timestamp, cfg), directionStr, contentStr)

	if cfg.ShowRawHex {
		result += " " + formatHex(f.RawData)
	}
	if f.CRCStatus != frame.CRCNotChecked {
		result += " [" + formatCRCStatus(f.CRCStatus, cfg) + "]"
	}
	return result
}

// formatResponse renders a decoded chip-to-host response (mirrors the
// bm13xx/frame.Response variants the dissector can reach via
// frame.DecodeResponse).
func formatResponse(r frame.Response) string {
	switch r.Kind {
	case frame.KindRegisterValue:
		return fmt.Sprintf("RegValue(chip=%02x%02x, reg=0x%02x, val=0x%08x)", r.ChipID[0], r.ChipID[1], r.RegAddr, r.RegValue)
	case frame.KindNonceFound:
		s := fmt.Sprintf("NonceFound(job=%d, nonce=0x%08x", r.JobID, r.Nonce)
		if r.MidstateIdx != nil {
			s += fmt.Sprintf(", midstate=%d", *r.MidstateIdx)
		}
		if r.CoreID != nil {
			s += fmt.Sprintf(", core=%d", *r.CoreID)
		}
		return s + ")"
	case frame.KindChipVersion:
		return fmt.Sprintf("Version(0x%08x)", r.Version)
	default:
		return fmt.Sprintf("Unknown(type=0x%02x)", r.Kind)
	}
}

func formatCRCStatus(status frame.CRCStatus, cfg OutputConfig) string {
	if !cfg.UseColor {
		return status.String()
	}
	switch status {
	case frame.CRCValid:
		return color.GreenString(status.String())
	case frame.CRCInvalid:
		return color.RedString(status.String())
	default:
		return status.String()
	}
}

// FormatI2cOperation renders a dissected I2C operation as one log line.
func FormatI2cOperation(op DissectedI2c, cfg OutputConfig) string {
	var deviceStr string
	switch op.Device {
	case peripheral.EMC2101:
		deviceStr = fmt.Sprintf("EMC2101@0x%02x", op.Address)
	case peripheral.TPS546:
		deviceStr = fmt.Sprintf("TPS546@0x%02x", op.Address)
	default:
		deviceStr = fmt.Sprintf("Device@0x%02x", op.Address)
	}

	result := fmt.Sprintf("[%s] I2C: %s %s", formatTimestamp(op.Timestamp, cfg), deviceStr, op.Operation)
	if cfg.ShowRawHex && len(op.RawData) > 0 {
		result += " " + formatHex(op.RawData)
	}
	return result
}

// OutputEvent merges serial frames and I2C operations into one
// time-ordered stream for the dissector's final output (spec §4.H).
type OutputEvent interface {
	Timestamp() float64
	Format(cfg OutputConfig) string
}

// SerialOutputEvent wraps a dissected serial frame.
type SerialOutputEvent struct{ Frame DissectedFrame }

func (e SerialOutputEvent) Timestamp() float64            { return e.Frame.Timestamp }
func (e SerialOutputEvent) Format(cfg OutputConfig) string { return FormatSerialFrame(e.Frame, cfg) }

// I2cOutputEvent wraps a dissected I2C operation.
type I2cOutputEvent struct{ Operation DissectedI2c }

func (e I2cOutputEvent) Timestamp() float64            { return e.Operation.Timestamp }
func (e I2cOutputEvent) Format(cfg OutputConfig) string { return FormatI2cOperation(e.Operation, cfg) }

// Package peripheral names the I2C register addresses of the board
// management chips the dissector recognizes: the EMC2101 fan controller
// and the TPS546 power-stage regulator. It holds no bus I/O of its own
// (spec §4.H "known device register tables").
package peripheral

// Device identifies a recognized I2C peripheral by its bus address.
type Device int

const (
	Unknown Device = iota
	EMC2101
	TPS546
)

// EMC2101Addr and TPS546Addr are the fixed I2C addresses the board wires
// these chips to (mirrors the bring-up firmware's peripheral constants).
const (
	EMC2101Addr uint8 = 0x4C
	TPS546Addr  uint8 = 0x24
)

// DeviceAt identifies the known device at an I2C bus address, if any.
func DeviceAt(addr uint8) Device {
	switch addr {
	case EMC2101Addr:
		return EMC2101
	case TPS546Addr:
		return TPS546
	default:
		return Unknown
	}
}

func (d Device) String() string {
	switch d {
	case EMC2101:
		return "EMC2101"
	case TPS546:
		return "TPS546"
	default:
		return "unknown"
	}
}

var emc2101Registers = map[uint8]string{
	0x00: "INTERNAL_TEMP",
	0x01: "EXTERNAL_TEMP_HIGH",
	0x4A: "FAN_CONFIG",
	0x4C: "FAN_SETTING",
	0xFE: "MFG_ID",
	0xFD: "PRODUCT_ID",
	0xFF: "REVISION",
}

// EMC2101RegisterName returns the mnemonic for an EMC2101 register, or
// "UNKNOWN" if unrecognized.
func EMC2101RegisterName(reg uint8) string {
	if name, ok := emc2101Registers[reg]; ok {
		return name
	}
	return "UNKNOWN"
}

// tps546Registers covers the PMBus commands the board's regulator driver
// actually touches (spec §4.H; full register set per the Texas
// Instruments PMBus command set is much larger).
var tps546Registers = map[uint8]string{
	0x01: "OPERATION",
	0x02: "ON_OFF_CONFIG",
	0x03: "CLEAR_FAULTS",
	0x04: "PHASE",
	0x20: "VOUT_MODE",
	0x21: "VOUT_COMMAND",
	0x24: "VOUT_MAX",
	0x25: "VOUT_MARGIN_HIGH",
	0x26: "VOUT_MARGIN_LOW",
	0x29: "VOUT_SCALE_LOOP",
	0x2B: "VOUT_MIN",
	0x33: "FREQUENCY_SWITCH",
	0x35: "VIN_ON",
	0x36: "VIN_OFF",
	0x40: "VOUT_OV_FAULT_LIMIT",
	0x42: "VOUT_OV_WARN_LIMIT",
	0x43: "VOUT_UV_WARN_LIMIT",
	0x44: "VOUT_UV_FAULT_LIMIT",
	0x46: "IOUT_OC_FAULT_LIMIT",
	0x47: "IOUT_OC_FAULT_RESPONSE",
	0x4A: "IOUT_OC_WARN_LIMIT",
	0x4F: "OT_FAULT_LIMIT",
	0x50: "OT_FAULT_RESPONSE",
	0x51: "OT_WARN_LIMIT",
	0x55: "VIN_OV_FAULT_LIMIT",
	0x56: "VIN_OV_FAULT_RESPONSE",
	0x58: "VIN_UV_WARN_LIMIT",
	0x60: "TON_DELAY",
	0x61: "TON_RISE",
	0x62: "TON_MAX_FAULT_LIMIT",
	0x63: "TON_MAX_FAULT_RESPONSE",
	0x64: "TOFF_DELAY",
	0x65: "TOFF_FALL",
	0x79: "STATUS_WORD",
	0x7A: "STATUS_VOUT",
	0x7B: "STATUS_IOUT",
	0x7C: "STATUS_INPUT",
	0x7D: "STATUS_TEMPERATURE",
	0x7E: "STATUS_CML",
	0x7F: "STATUS_OTHER",
	0x80: "STATUS_MFR_SPECIFIC",
	0x88: "READ_VIN",
	0x8B: "READ_VOUT",
	0x8C: "READ_IOUT",
	0x8D: "READ_TEMPERATURE_1",
	0x99: "MFR_ID",
	0x9A: "MFR_MODEL",
	0x9B: "MFR_REVISION",
	0xAD: "IC_DEVICE_ID",
	0xEC: "STACK_CONFIG",
	0xEE: "PIN_DETECT_OVERRIDE",
}

// TPS546RegisterName returns the PMBus command mnemonic for a TPS546
// register, or "UNKNOWN" if unrecognized.
func TPS546RegisterName(reg uint8) string {
	if name, ok := tps546Registers[reg]; ok {
		return name
	}
	return "UNKNOWN"
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mujina-project/mujina-core/internal/dissect/capture"
)

// Capture file format: one event per line, comma-separated, comment
// lines start with '#'. Two event families share one file, disambiguated
// by the first field:
//
//	serial,<CI|RO>,<timestamp>,<byte-hex>[,err]
//	i2c,<start|stop>,<timestamp>
//	i2c,address,<timestamp>,<addr-hex>,<read|write>[,ack|nack]
//	i2c,data,<timestamp>,<byte-hex>[,ack|nack]
//
// No capture front end exists in the retrieval pack (capture.rs was not
// carried into original_source/); this line format is this tool's own,
// just expressive enough to drive both assemblers from a saved trace.
func readCaptureFile(path string) ([]capture.SerialEvent, []capture.I2cEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()

	var serialEvents []capture.SerialEvent
	var i2cEvents []capture.I2cEvent

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		switch fields[0] {
		case "serial":
			ev, err := parseSerialLine(fields)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			serialEvents = append(serialEvents, ev)
		case "i2c":
			ev, err := parseI2cLine(fields)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			i2cEvents = append(i2cEvents, ev)
		default:
			return nil, nil, fmt.Errorf("line %d: unknown event family %q", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return serialEvents, i2cEvents, nil
}

func parseSerialLine(fields []string) (capture.SerialEvent, error) {
	if len(fields) < 4 {
		return capture.SerialEvent{}, fmt.Errorf("serial event needs channel,timestamp,byte")
	}
	var ch capture.Channel
	switch fields[1] {
	case "CI":
		ch = capture.CI
	case "RO":
		ch = capture.RO
	default:
		return capture.SerialEvent{}, fmt.Errorf("unknown channel %q", fields[1])
	}
	ts, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return capture.SerialEvent{}, fmt.Errorf("bad timestamp: %w", err)
	}
	b, err := strconv.ParseUint(strings.TrimPrefix(fields[3], "0x"), 16, 8)
	if err != nil {
		return capture.SerialEvent{}, fmt.Errorf("bad byte: %w", err)
	}
	hasError := len(fields) > 4 && fields[4] == "err"
	return capture.SerialEvent{Timestamp: ts, Data: byte(b), Channel: ch, HasError: hasError}, nil
}

func parseI2cLine(fields []string) (capture.I2cEvent, error) {
	if len(fields) < 3 {
		return capture.I2cEvent{}, fmt.Errorf("i2c event needs kind,timestamp")
	}
	ts, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return capture.I2cEvent{}, fmt.Errorf("bad timestamp: %w", err)
	}
	ev := capture.I2cEvent{Timestamp: ts}

	switch fields[1] {
	case "start":
		ev.EventType = capture.I2cStart
	case "stop":
		ev.EventType = capture.I2cStop
	case "address":
		ev.EventType = capture.I2cAddress
		if len(fields) < 5 {
			return capture.I2cEvent{}, fmt.Errorf("address event needs addr,read|write[,ack|nack]")
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[3], "0x"), 16, 8)
		if err != nil {
			return capture.I2cEvent{}, fmt.Errorf("bad address: %w", err)
		}
		a := uint8(addr)
		ev.Address = &a
		ev.Read = fields[4] == "read"
		ev.Ack = len(fields) < 6 || fields[5] != "nack"
	case "data":
		ev.EventType = capture.I2cData
		if len(fields) < 4 {
			return capture.I2cEvent{}, fmt.Errorf("data event needs byte[,ack|nack]")
		}
		b, err := strconv.ParseUint(strings.TrimPrefix(fields[3], "0x"), 16, 8)
		if err != nil {
			return capture.I2cEvent{}, fmt.Errorf("bad data byte: %w", err)
		}
		d := uint8(b)
		ev.Data = &d
		ev.Ack = len(fields) < 5 || fields[4] != "nack"
	default:
		return capture.I2cEvent{}, fmt.Errorf("unknown i2c event kind %q", fields[1])
	}
	return ev, nil
}

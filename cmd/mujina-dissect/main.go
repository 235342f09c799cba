// Command mujina-dissect replays a saved logic-analyser capture of the
// BM13xx serial lines and I2C bus, printing a time-ordered, decoded
// trace (spec §4.F/G/H, offline-only — no live capture front end).
package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mujina-project/mujina-core/internal/dissect"
	"github.com/mujina-project/mujina-core/internal/dissect/i2c"
	"github.com/mujina-project/mujina-core/internal/dissect/serial"
)

func main() {
	var (
		showRawHex bool
		useColor   bool
	)

	root := &cobra.Command{
		Use:   "mujina-dissect <capture-file>",
		Short: "Dissect a saved BM13xx serial/I2C capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], showRawHex, useColor)
		},
	}
	root.Flags().BoolVar(&showRawHex, "raw", false, "also print each event's raw bytes")
	root.Flags().BoolVar(&useColor, "color", true, "colorize CRC status and invalid frames")

	if err := root.Execute(); err != nil {
		log.Fatalf("mujina-dissect: %v", err)
	}
}

func run(path string, showRawHex, useColor bool) error {
	serialEvents, i2cEvents, err := readCaptureFile(path)
	if err != nil {
		return err
	}

	events := make([]dissect.OutputEvent, 0, len(serialEvents)+len(i2cEvents))

	multi := serial.NewMultiChannelAssembler(nil)
	for _, ev := range serialEvents {
		multi.Process(ev)
	}
	multi.Flush()
	for {
		frame, ok := multi.NextFrame()
		if !ok {
			break
		}
		events = append(events, dissect.SerialOutputEvent{Frame: dissect.DissectSerialFrame(frame)})
	}

	i2cAsm := i2c.NewAssembler()
	for _, ev := range i2cEvents {
		i2cAsm.Process(ev)
	}
	i2cAsm.Flush()
	var transactions []i2c.Transaction
	for {
		tx, ok := i2cAsm.NextTransaction()
		if !ok {
			break
		}
		transactions = append(transactions, tx)
	}
	for _, op := range i2c.GroupTransactions(transactions) {
		events = append(events, dissect.I2cOutputEvent{Operation: dissect.DissectI2cOperation(op)})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp() < events[j].Timestamp() })

	cfg := dissect.DefaultOutputConfig()
	cfg.ShowRawHex = showRawHex
	cfg.UseColor = useColor

	for _, e := range events {
		fmt.Println(e.Format(cfg))
	}
	return nil
}

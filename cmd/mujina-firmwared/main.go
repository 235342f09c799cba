// Command mujina-firmwared bridges one Stratum V2 pool connection to a
// chain of BM13xx mining chips over a serial link (spec §1, §5).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tarm/serial"

	"github.com/mujina-project/mujina-core/internal/bm13xx"
	"github.com/mujina-project/mujina-core/internal/scheduler"
	"github.com/mujina-project/mujina-core/internal/sv2"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "mujina-firmwared",
		Short: "Bridge a Stratum V2 pool connection to a BM13xx mining chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "/etc/mujina/firmwared.yaml", "path to the daemon config file")

	if err := root.Execute(); err != nil {
		log.Fatalf("mujina-firmwared: %v", err)
	}
}

func run(configPath string) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	port, err := serial.OpenPort(&serial.Config{Name: cfg.Serial.Device, Baud: cfg.Serial.Baud})
	if err != nil {
		return err
	}
	defer port.Close()

	handler := bm13xx.NewHandler(port, logger)

	events := make(chan scheduler.SourceEvent, 16)
	commands := make(chan scheduler.SourceCommand, 16)

	source := sv2.New(sv2.Config{PoolURL: cfg.Pool.URL, Worker: cfg.Pool.Worker}, events, commands, logger)
	disp := newDispatcher(handler, events, commands, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Println("[mujina-firmwared] shutting down")
		cancel()
	}()

	go disp.runEvents(ctx)
	go disp.runNonces(ctx)

	if err := source.Run(ctx); err != nil {
		logger.Printf("[mujina-firmwared] source stopped: %v", err)
		return err
	}
	return nil
}

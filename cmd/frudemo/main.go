// Command frudemo wires a simulated IPMI FRU device, an Engine, and the
// bundled raw decoder to demonstrate a read-modify-write round trip. It
// takes no interactive input and offers no command grammar — it is a
// library-exercising demo, not a shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ehrlich-b/ipmifru"
	"github.com/ehrlich-b/ipmifru/decoder/raw"
	"github.com/ehrlich-b/ipmifru/internal/config"
	"github.com/ehrlich-b/ipmifru/internal/logging"
)

func main() {
	var (
		size       = pflag.Uint16("size", 64, "simulated FRU inventory area size in bytes")
		wordAccess = pflag.Bool("word-access", false, "simulate a 16-bit word-addressed device")
		deviceID   = pflag.Uint8("device-id", 0, "IPMI device id to address")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
		mutateAt   = pflag.Int("mutate-offset", 4, "byte offset to flip during the demo write")
		configPath = pflag.String("config", "", "explicit engine tuning config file (HuJSON), overrides global/project config")
	)
	pflag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	workDir, err := os.Getwd()
	if err != nil {
		logger.Error("failed to resolve working directory", "error", err)
		os.Exit(1)
	}
	tuning, err := config.Load(workDir, *configPath)
	if err != nil {
		logger.Error("failed to load engine tuning config", "error", err)
		os.Exit(1)
	}

	ipmifru.InitDecoderRegistry()
	defer ipmifru.ShutdownDecoderRegistry()

	decoder := raw.New()
	ipmifru.RegisterDecoder(decoder)
	defer ipmifru.DeregisterDecoder(decoder)

	device := ipmifru.NewSimulated(ipmifru.SimulatedConfig{
		Size:       *size,
		WordAccess: *wordAccess,
	})
	defer device.Close()

	domain := ipmifru.NewDomain("frudemo")
	engine := ipmifru.NewEngine(device, domain, ipmifru.WithLogger(logger), ipmifru.WithTuning(tuning))

	addr := ipmifru.Address{DeviceID: *deviceID, IsLogical: true}

	done := make(chan error, 1)
	fru := engine.Alloc(addr, func(f *ipmifru.FRU, err error) {
		done <- err
	})

	if err := <-done; err != nil {
		logger.Error("read failed", "error", err)
		os.Exit(1)
	}
	logger.Info("read complete", "fru", fru.Name(), "bytes", fru.DataLen())
	fmt.Printf("read %d bytes from %s: % x\n", fru.DataLen(), fru.Name(), fru.Data())

	if *mutateAt >= 0 && *mutateAt < fru.DataLen() {
		decoder.Mutate(fru, *mutateAt, []byte{fru.Data()[*mutateAt] + 1})
	}

	writeDone := make(chan error, 1)
	if err := engine.Write(fru, func(f *ipmifru.FRU, err error) {
		writeDone <- err
	}); err != nil {
		logger.Error("write rejected", "error", err)
		os.Exit(1)
	}

	if err := <-writeDone; err != nil {
		logger.Error("write failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s, device now holds: % x\n", fru.Name(), device.Data())

	destroyDone := make(chan struct{})
	if err := engine.Destroy(fru, func(f *ipmifru.FRU) {
		close(destroyDone)
	}); err != nil {
		logger.Error("destroy failed", "error", err)
		os.Exit(1)
	}
	<-destroyDone
	fmt.Println("fru destroyed")
}

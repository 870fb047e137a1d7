// Command inspector-core is the inspection stand's process entry point: it
// loads configuration, wires the Register Store to the RS-485 sensor
// driver, the command-register state machine, the SQLite persistence
// layer, the Modbus TCP slave, and the diagnostics stream, and runs the
// whole thing as an OS service (spec §5 concurrency model).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/lasergeom/inspector-core/src/inspector-core/config"
	"github.com/lasergeom/inspector-core/src/inspector-core/control"
	"github.com/lasergeom/inspector-core/src/inspector-core/diagnostics"
	"github.com/lasergeom/inspector-core/src/inspector-core/modbusserver"
	"github.com/lasergeom/inspector-core/src/inspector-core/persistence"
	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/lasergeom/inspector-core/src/inspector-core/runtimemonitor"
	"github.com/lasergeom/inspector-core/src/inspector-core/sensor"
	"github.com/sirupsen/logrus"
)

// program implements service.Interface. Start must not block; it spawns
// run in its own goroutine and returns immediately as the kardianos/service
// contract requires. Stop cancels the context every long-lived goroutine
// in run shares.
type program struct {
	cfg config.Config
	log *logrus.Logger

	cancel context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()
	return nil
}

func (p *program) run(ctx context.Context) {
	log := p.log.WithField("service", "inspector-core")

	store := registers.New()

	persisted, err := persistence.Open(p.cfg.SQLiteDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open persistence store")
		return
	}
	defer persisted.Close()

	if err := persistence.Restore(ctx, persisted, store); err != nil {
		log.WithError(err).Fatal("failed to restore persisted registers")
		return
	}
	go persistence.Poll(ctx, persisted, store, log, p.cfg.PersistencePollEvery)

	driver := sensor.New(ctx, log, p.cfg.SerialPort)
	go driver.Run()

	machine := control.New(store, log, driver)
	go machine.Run(ctx)

	go runtimemonitor.Start(ctx, log)

	broker := diagnostics.NewBroker()
	go diagnostics.Stream(ctx, store, broker, time.Second)

	diagHandle := &diagnostics.Handle{Broker: broker, Log: log}
	diagMux := http.NewServeMux()
	diagMux.Handle("/", diagHandle)
	diagServer := &http.Server{Addr: p.cfg.DiagnosticsListenAddr, Handler: diagMux}
	go func() {
		if err := diagServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("diagnostics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		diagServer.Shutdown(shutdownCtx)
	}()

	modbusSrv, err := modbusserver.NewServer(p.cfg.ModbusListenAddr, store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create modbus server")
		return
	}
	if err := modbusSrv.Start(); err != nil {
		log.WithError(err).Fatal("failed to start modbus server")
		return
	}
	go func() {
		<-ctx.Done()
		modbusSrv.Stop()
	}()

	log.Info("inspector-core started")
	<-ctx.Done()
	log.Info("inspector-core stopping")
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspector-core: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	svcConfig := &service.Config{
		Name:        "inspector-core",
		DisplayName: "Laser Inspection Stand Core",
		Description: "Reads RF602 laser sensors, runs the inspection state machine, and serves results over Modbus TCP.",
	}

	prg := &program{cfg: cfg, log: logger}

	svc, err := service.New(prg, svcConfig)
	if err != nil {
		logger.WithError(err).Fatal("failed to create service")
	}

	if err := svc.Run(); err != nil {
		logger.WithError(err).Fatal("service exited with error")
	}
}

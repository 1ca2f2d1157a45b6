package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"gocheckin/authz"
	"gocheckin/credential"
	"gocheckin/device"
	"gocheckin/indicator"
	"gocheckin/mqtt"
	"gocheckin/reader"
	"gocheckin/station"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg     *Config
	dev     *device.SL500
	poller  reader.CardPoller
	sink    indicator.Sink
	mqtt    *mqtt.Client
	station *station.Station
	model   string
	exit    func(int)
}

func main() {
	fmt.Printf("gocheckin build %s\n", myBuild)

	cfgfile := flag.String("cfg", "gocheckin.cfg", "Config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgfile, flagSet("cfg"))
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	setupLogging(cfg)

	app := &App{cfg: cfg, exit: os.Exit}

	// Open the reader and switch to the fast line speed
	if cfg.Device.Port != "" {
		app.dev, err = device.Open(cfg.Device)
		if err != nil {
			log.Fatalf("Open device: %v", err)
		}

		fmt.Printf("\nSpeeding up communication to %d baud...\n", cfg.Device.FastBaud)
		if err := app.dev.SetSpeed(cfg.Device.FastBaud); err != nil {
			app.dev.Close()
			log.Fatalf("Set speed: %v", err)
		}

		app.model, err = app.dev.Model()
		if err != nil {
			app.fail("Get model: %v", err)
		}
		fmt.Printf("Model: %s\n", app.model)
	}

	// Initialize feedback sinks (reader LED/buzzer plus any extras)
	var primary indicator.Sink
	if app.dev != nil {
		primary = indicator.NewDevice(app.dev)
	}
	app.sink, err = indicator.New(cfg.Indicator, primary)
	if err != nil {
		app.fail("Init indicator: %v", err)
	}

	// Initialize card poller
	app.poller, err = reader.New(cfg.Reader, app.dev)
	if err != nil {
		app.fail("Init reader: %v", err)
	}

	client, err := authz.New(cfg.Authz, "gocheckin/"+myBuild)
	if err != nil {
		app.fail("Init authz client: %v", err)
	}

	// Initialize MQTT
	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect: func() { publishStatus(app.mqtt, "online", app.model) },
	})
	if err != nil {
		app.fail("Init MQTT: %v", err)
	}
	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Warnf("MQTT connect: %v", err)
		}
	}()

	app.station = station.New(station.Deps{
		Poller:      app.poller,
		Credentials: credential.FileSource{Path: cfg.LicenseFile},
		Authorizer:  client,
		Signaler:    indicator.NewSignaler(app.sink),
		OnEvent:     eventPublisher(app.mqtt),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	log.Printf("Waiting for cards (license %s)", cfg.LicenseFile)
	err = app.station.Run(ctx)
	stop()
	app.finish(err)
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func setupLogging(cfg *Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Bad log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// finish ends the process once the loop has returned. A non-nil err is the
// fatal feedback failure.
func (app *App) finish(err error) {
	if err != nil {
		app.fail("Feedback device failed: %v", err)
		return
	}
	fmt.Println("Shutting down...")
	app.shutdown(0)
}

// fail logs and runs the shutdown sequence with a non-zero status.
func (app *App) fail(format string, args ...interface{}) {
	log.Errorf(format, args...)
	app.shutdown(1)
}

// shutdown releases everything and, as the last act, puts the reader back
// on its power-on speed so the next start can talk to it.
func (app *App) shutdown(code int) {
	if app.poller != nil {
		app.poller.Close()
	}
	if app.sink != nil {
		app.sink.Release()
	}
	if app.mqtt != nil {
		publishStatus(app.mqtt, "offline", app.model)
		app.mqtt.Disconnect()
	}

	if app.dev != nil {
		fmt.Printf("\nResetting communication speed to %d baud...\n", app.cfg.Device.Baud)
		if err := app.dev.SetSpeed(app.cfg.Device.Baud); err != nil {
			log.Errorf("Reset speed: %v", err)
		}
		app.dev.Close()
	}

	fmt.Println("Shutdown complete")
	app.exit(code)
}

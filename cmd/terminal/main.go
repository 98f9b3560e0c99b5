// cmd/terminal/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/tamzrod/fingerprint-terminal/internal/backend"
	"github.com/tamzrod/fingerprint-terminal/internal/config"
	"github.com/tamzrod/fingerprint-terminal/internal/enroll"
	"github.com/tamzrod/fingerprint-terminal/internal/events"
	"github.com/tamzrod/fingerprint-terminal/internal/events/mqtt"
	"github.com/tamzrod/fingerprint-terminal/internal/harvest"
	"github.com/tamzrod/fingerprint-terminal/internal/link"
	"github.com/tamzrod/fingerprint-terminal/internal/logger"
	"github.com/tamzrod/fingerprint-terminal/internal/operator"
	"github.com/tamzrod/fingerprint-terminal/internal/sensor"
	"github.com/tamzrod/fingerprint-terminal/internal/terminal"
	"github.com/tamzrod/fingerprint-terminal/internal/thermo"
	"github.com/tamzrod/fingerprint-terminal/internal/verify"
	"github.com/tamzrod/fingerprint-terminal/internal/writer"
)

const (
	modeEnroll = "enroll"
	modeVerify = "verify"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "terminal.yaml", "path to the terminal YAML config")
	simulate := pflag.Bool("simulate", false, "use a simulated fingerprint module and thermometer")
	logLevel := pflag.String("log-level", "", "override terminal.log.level")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: terminal [--config FILE] [--simulate] [--log-level L] %s|%s\n", modeEnroll, modeVerify)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	boot := logger.New(logger.Options{Component: "main"})

	if pflag.NArg() != 1 || (pflag.Arg(0) != modeEnroll && pflag.Arg(0) != modeVerify) {
		pflag.Usage()
		os.Exit(2)
	}
	mode := pflag.Arg(0)

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}
	if *simulate {
		cfg.Terminal.Sensor.Simulate = true
		if cfg.Terminal.Thermometer.Type == config.ThermometerMLX90614 {
			cfg.Terminal.Thermometer.Type = config.ThermometerSimulation
		}
	}
	if *logLevel != "" {
		cfg.Terminal.Log.Level = *logLevel
	}

	if err := config.Validate(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)
	t := cfg.Terminal

	log := logger.New(logger.Options{
		Level:     t.Log.Level,
		Format:    t.Log.Format,
		Terminal:  t.ID,
		Component: "main",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, t, mode, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("terminal stopped")
		os.Exit(1)
	}
	log.Info().Msg("terminal stopped")
}

// run owns every opened resource, so its defers release them before
// main exits.
func run(ctx context.Context, t config.TerminalConfig, mode string, log zerolog.Logger) error {
	clock := clockwork.NewRealClock()

	// --------------------
	// Sensor link + protocol
	// --------------------

	l, err := openLink(t, mode)
	if err != nil {
		return fmt.Errorf("sensor link: %w", err)
	}
	defer l.Close()

	proto, err := sensor.New(sensor.Config{
		Address:         t.Sensor.Address,
		Password:        t.Sensor.Password,
		ResponseTimeout: t.Sensor.ResponseTimeout(),
		PollInterval:    t.Sensor.PollInterval(),
		Capacity:        t.Sensor.Capacity,
	}, l, clock, log)
	if err != nil {
		return fmt.Errorf("sensor setup: %w", err)
	}

	// --------------------
	// Access events (log + optional MQTT)
	// --------------------

	pubs := events.Multi{events.NewLog(log.With().Str("component", "events").Logger())}
	if m := t.Events.MQTT; m.Server != "" {
		p, err := mqtt.New(mqtt.Config{
			Server:   m.Server,
			ClientID: m.ClientID,
			Username: m.Username,
			Password: m.Password,
			Topic:    m.Topic,
		})
		if err != nil {
			log.Warn().Err(err).Str("server", m.Server).Msg("mqtt unavailable, events go to the log only")
		} else {
			pubs = append(pubs, p)
		}
	}
	defer pubs.Close()

	// --------------------
	// Terminal status block (optional)
	// --------------------

	var statusWriter writer.StatusWriter
	if t.Status.Endpoint != "" {
		sw, closeStatus, err := writer.BuildStatusWriter(t.Status)
		if err != nil {
			log.Warn().Err(err).Msg("status block disabled")
		} else {
			defer closeStatus()
			statusWriter = sw
		}
	}

	// --------------------
	// Backend gateway
	// --------------------

	gw, err := backend.New(backend.Config{
		UploadURL: t.Backend.UploadURL,
		FetchURL:  t.Backend.FetchURL,
		Timeout:   t.Backend.Timeout(),
	}, log)
	if err != nil {
		return fmt.Errorf("backend setup: %w", err)
	}

	deps := terminal.Deps{
		Protocol: proto,
		Status:   statusWriter,
		Clock:    clock,
		Log:      log,
	}

	// --------------------
	// Mode wiring
	// --------------------

	switch mode {
	case modeEnroll:
		prompter := operator.New(os.Stdin, os.Stdout, proto.Capacity, log)

		deps.Slots = prompter
		deps.Enroll, err = enroll.New(enroll.Config{
			Terminal:        t.ID,
			Settle:          t.Enroll.Settle(),
			TemplateSize:    t.Template.Size,
			HarvestDeadline: t.Template.HarvestTimeout(),
			UploadPartial:   t.Template.UploadPartial,
		}, proto, harvest.New(l, clock), gw, pubs, prompter, clock, log)
		if err != nil {
			return fmt.Errorf("enroll setup: %w", err)
		}

	case modeVerify:
		th, err := openThermometer(t.Thermometer)
		if err != nil {
			return fmt.Errorf("thermometer not found: %w", err)
		}
		if th != nil {
			defer th.Close()
		}

		if t.Backend.FetchURL != "" {
			deps.Backend = gw
		}
		deps.Verify, err = verify.New(verify.Config{
			Terminal:        t.ID,
			TemperatureGate: t.Verify.TemperatureGate,
			Threshold:       t.Verify.TemperatureThreshold,
		}, proto, th, pubs, clock, log)
		if err != nil {
			return fmt.Errorf("verify setup: %w", err)
		}
	}

	runner, err := terminal.New(terminal.Config{
		Capacity:       t.Sensor.Capacity,
		VerifyInterval: t.Verify.Interval(),
		EnrollAttempts: t.Enroll.MaxAttempts,
		RetryPause:     t.Enroll.RetryPause(),
	}, deps)
	if err != nil {
		return fmt.Errorf("runner setup: %w", err)
	}

	if err := runner.BringUp(); err != nil {
		return err
	}

	// --------------------
	// Run until signal or end of operator input
	// --------------------

	log.Info().Str("mode", mode).Bool("simulate", t.Sensor.Simulate).Msg("terminal started")
	if mode == modeEnroll {
		return runner.RunEnroll(ctx)
	}
	return runner.RunVerify(ctx)
}

// openLink opens the UART, or a simulated module that alternates a
// finger on the glass. In verify mode that finger is pre-enrolled at
// slot 1 so the loop can be watched end to end.
func openLink(t config.TerminalConfig, mode string) (link.Link, error) {
	if !t.Sensor.Simulate {
		s, err := link.OpenSerial(link.SerialConfig{Port: t.Sensor.Port, BaudRate: t.Sensor.BaudRate})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	sim := sensor.NewSimulator(t.Sensor.Capacity, t.Template.Size)
	sim.SetPassword(t.Sensor.Password)
	sim.Auto(1)
	if mode == modeVerify {
		sim.Enroll(1, 1)
	}
	return sim, nil
}

// openThermometer returns nil for type none.
func openThermometer(c config.ThermometerConfig) (thermo.Thermometer, error) {
	switch c.Type {
	case config.ThermometerMLX90614:
		m, err := thermo.NewMLX90614(thermo.Config{Bus: c.I2CBus, Address: c.I2CAddress})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ThermometerSimulation:
		return &thermo.Fixed{Object: c.SimulatedObjectC, Ambient: c.SimulatedAmbientC}, nil
	default:
		return nil, nil
	}
}

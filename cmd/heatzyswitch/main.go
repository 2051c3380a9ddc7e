package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/heatzyswitch/cmd/app"
	httpctrl "github.com/Agrid-Dev/heatzyswitch/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/heatzyswitch/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/heatzyswitch/internal/controllers/mqtt"
	natsctrl "github.com/Agrid-Dev/heatzyswitch/internal/controllers/nats"
	"github.com/Agrid-Dev/heatzyswitch/internal/gizwits"
	"github.com/Agrid-Dev/heatzyswitch/internal/heatzy"
	"github.com/Agrid-Dev/heatzyswitch/internal/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	var (
		configPath  string
		printConfig bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if printConfig {
		if err := cfg.PrintYAML(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := logger.New(cfg.LogLevel, cfg.Device.Trace)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("heatzyswitch exited", "err", err)
	}
	log.Info("heatzyswitch stopped")
}

func run(ctx context.Context, cfg app.Config, log *zap.SugaredLogger) error {
	spec := heatzy.NewModeSpec()
	sc := cfg.Settings().Resolve(spec)

	api := gizwits.New(cfg.Gizwits())
	sessions := gizwits.NewSessionManager(api, sc.Username, sc.Password, log)
	remote := heatzy.NewRemoteDeviceClient(api, sessions, spec, sc, log)
	rec := heatzy.NewReconciler(remote, sc, log)
	sw := heatzy.NewSwitch(remote, rec, sc, log)

	runners := []runner{rec}
	cc := cfg.Controllers

	if cc.HTTP.Enabled {
		runners = append(runners, httpctrl.New(sw, cc.HTTP.Addr, log))
	}
	if cc.MQTT.Enabled {
		m, err := mqttctrl.New(sw, mqttctrl.Config{
			DeviceID:  sc.DeviceID,
			BrokerURL: cc.MQTT.BrokerURL,
			ClientID:  cc.MQTT.ClientID,
			BaseTopic: cc.MQTT.BaseTopic,
			QoS:       cc.MQTT.QoS,
			Username:  cc.MQTT.Username,
			Password:  cc.MQTT.Password,
		}, log)
		if err != nil {
			return err
		}
		rec.AddNotifier(m)
		runners = append(runners, m)
	}
	if cc.Modbus.Enabled {
		m, err := modbusctrl.New(sw, modbusctrl.Config{
			DeviceID: sc.DeviceID,
			Addr:     cc.Modbus.Addr,
			UnitID:   cc.Modbus.UnitID,
		}, log)
		if err != nil {
			return err
		}
		runners = append(runners, m)
	}
	if cc.NATS.Enabled {
		n, err := natsctrl.New(sw, natsctrl.Config{
			DeviceID: sc.DeviceID,
			URL:      cc.NATS.URL,
			Subject:  cc.NATS.Subject,
		}, log)
		if err != nil {
			return err
		}
		rec.AddNotifier(n)
		runners = append(runners, n)
	}
	if len(runners) == 1 {
		log.Warn("no controller enabled; only reconciling")
	}

	log.Infow("heatzyswitch starting",
		"did", sc.DeviceID,
		"interval", sc.Interval,
		"switch_on", sc.SwitchOn,
		"switch_off", sc.SwitchOff,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}

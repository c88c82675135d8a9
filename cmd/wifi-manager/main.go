package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awilliams/wifi-manager/internal/logging"
	"github.com/awilliams/wifi-manager/internal/report"
	"github.com/awilliams/wifi-manager/internal/udp"
	"github.com/awilliams/wifi-manager/internal/wifi"
	"github.com/awilliams/wifi-manager/internal/wpa"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const appName = "wifi-manager"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel context when a terminating signal is received.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		fmt.Fprintf(os.Stderr, "Received signal %q, exiting...\n", <-sigs)
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// run executes the wifi-manager program. It stops when an error occurs or
// the context is cancelled.
func run(ctx context.Context, args []string) error {
	fs := newFlagSet(appName)
	fs.Usage = usage(fs, appName)

	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if cfg.version {
		fmt.Printf("%s v%s\n", appName, version)
		return nil
	}

	logger := logging.New(cfg.logLevel)
	defer logger.Sync()

	link, closeLink, err := newLink(cfg)
	if err != nil {
		return err
	}
	defer closeLink()

	var haltErr error
	mgr, err := wifi.New(cfg.wifi, link,
		wifi.WithLogger(logger.Named("wifi")),
		wifi.WithHalt(func(err error) { haltErr = err }),
	)
	if err != nil {
		return err
	}

	a := &app{
		logger:         logger.Named("app"),
		mgr:            mgr,
		talker:         udp.New(udp.WithLogger(logger.Named("udp"))),
		udpPort:        cfg.udpPort,
		tick:           cfg.tick,
		reportInterval: cfg.reportInterval,
		halted: func() error {
			if haltErr != nil {
				return fmt.Errorf("%w: %w", errHalted, haltErr)
			}
			return nil
		},
	}
	if a.udpLocal, err = parseOptionalAddr(cfg.udpLocal); err != nil {
		return fmt.Errorf("invalid udp.local: %w", err)
	}
	if a.udpPeer, err = parseOptionalAddr(cfg.udpPeer); err != nil {
		return fmt.Errorf("invalid udp.peer: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if cfg.mqtt.BrokerAddr != "" {
		mc, err := connectMQTT(ctx, cfg.mqtt)
		if err != nil {
			return err
		}
		logger.Info("connected to MQTT broker", zap.String("addr", cfg.mqtt.BrokerAddr), zap.String("config_topic", mc.ConfigTopic()))
		defer func() {
			// Cannot use original context since it may have already
			// been cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = mc.StatusOffline(ctx)
			cancel()
			mc.Close()
		}()
		a.rep = mc

		configs := make(chan report.Configuration, 1)
		a.configs = configs

		// Stop on first MQTT error, e.g. connection lost.
		eg.Go(func() error {
			return mc.OnConnectionLost(egCtx)
		})
		eg.Go(func() error {
			return mc.SubscribeConfig(egCtx, func(_ bool, c report.Configuration) error {
				select {
				case configs <- c:
				case <-egCtx.Done():
				}
				return nil
			})
		})
	}

	eg.Go(func() error {
		return a.run(egCtx)
	})

	return eg.Wait()
}

// newLink connects to the control interfaces the mode needs.
func newLink(cfg config) (*wpa.Link, func(), error) {
	var station, ap *wpa.Client
	closeAll := func() {
		if station != nil {
			station.Close()
		}
		if ap != nil {
			ap.Close()
		}
	}

	var err error
	if cfg.wifi.Mode != wifi.ModeAccessPoint {
		if station, err = wpa.NewClient(cfg.sockDir, cfg.wpaSock); err != nil {
			return nil, nil, fmt.Errorf("unable to connect to wpa_supplicant control socket %q: %w", cfg.wpaSock, err)
		}
	}
	if cfg.wifi.Mode != wifi.ModeStation {
		if ap, err = wpa.NewClient(cfg.sockDir, cfg.hostapdSock); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("unable to connect to hostapd control socket %q: %w", cfg.hostapdSock, err)
		}
	}

	return wpa.NewLink(station, ap, cfg.apIface), closeAll, nil
}

func connectMQTT(ctx context.Context, opts report.MQTTOpts) (*report.MQTT, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mc, err := report.NewMQTT(ctx, opts)
	if err != nil {
		return nil, err
	}
	// Use MQTT will to publish online & offline messages.
	// Offline message will only be automatically published if MQTT
	// connection is broken. So we must explicitly publish it during a
	// "normal" shutdown.
	if err := mc.StatusOnline(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return mc, nil
}

func parseOptionalAddr(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(s)
}

// SPDX-License-Identifier: GPL-3.0-only

// Package main provides the entry point for the Tuya brightness bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
	"github.com/shini4i/tuya-brightness-bridge/internal/characteristic"
	"github.com/shini4i/tuya-brightness-bridge/internal/config"
	"github.com/shini4i/tuya-brightness-bridge/internal/dbus"
	"github.com/shini4i/tuya-brightness-bridge/internal/homekit"
	"github.com/shini4i/tuya-brightness-bridge/internal/mqtt"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

var (
	verbose    bool
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "tuya-brightness-bridge",
		Short: "HomeKit bridge for the brightness of Tuya cloud lights",
		Long: `tuya-brightness-bridge publishes the dimmable lights of a Tuya account
as HomeKit lightbulbs and translates brightness between HomeKit percentages
and the vendor scale.

Optionally it exposes the same lights on the D-Bus session bus and mirrors
brightness changes to an MQTT broker.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func run() {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		setupLogging(verbose)
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(verbose || cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Starting tuya-brightness-bridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := tuya.NewClient(cfg.Credentials())
	if err := client.Login(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate with Tuya")
	}

	manager := accessory.NewManager(client,
		accessory.WithDiscoverer(client.Discover),
		accessory.WithFilter(isDimmable),
		accessory.WithOverrides(cfg.Overrides()),
		accessory.WithCacheTTL(cfg.CacheTTL.Duration),
	)
	if err := refreshWithRetry(ctx, manager, 3, 500*time.Millisecond); err != nil {
		log.Fatal().Err(err).Msg("Failed to discover devices")
	}

	lights := bindLights(manager.List())
	if len(lights) == 0 {
		log.Warn().Msg("No dimmable Tuya devices found")
	} else {
		log.Info().Int("count", len(lights)).Msg("Found dimmable Tuya devices")
	}

	var server *dbus.Server
	if cfg.DBus.Enabled {
		server = dbus.NewServer(dbusLights(lights))
		server.SetDeviceErrorHandler(createRediscoveryHandler(ctx, manager))
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start D-Bus server (local control disabled)")
			server = nil
		} else {
			for _, l := range lights {
				forwardToDBus(server, l)
			}
		}
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to MQTT broker (state mirroring disabled)")
		} else {
			defer mqttClient.Disconnect(250)
			publisher := mqtt.NewPublisher(mqttClient, cfg.MQTT.Prefix)
			for _, l := range lights {
				publisher.Attach(l)
			}
		}
	}

	poller := accessory.NewPoller(manager, cfg.PollInterval.Duration, pollHandler(lights))
	if err := poller.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start poller (external changes will not be reported)")
	}

	bridge := homekit.NewBridge(homekit.Config{
		Name:       cfg.HomeKit.Name,
		Pin:        cfg.HomeKit.Pin,
		Addr:       cfg.Addr(),
		StorageDir: cfg.HomeKit.StorageDir,
	}, homekitLights(lights))

	bridgeErr := make(chan error, 1)
	go func() {
		bridgeErr <- bridge.Run(ctx)
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Bridge running, press Ctrl+C to stop")
	select {
	case <-sigChan:
	case err := <-bridgeErr:
		if err != nil {
			log.Error().Err(err).Msg("HomeKit bridge stopped")
		}
	}

	// Cleanup
	log.Info().Msg("Shutting down...")
	cancel()
	poller.Stop()
	if server != nil {
		if err := server.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop D-Bus server")
		}
	}

	log.Info().Msg("Bridge stopped")
}

// isDimmable keeps only devices advertising a brightness capability.
func isDimmable(dev tuya.Device) bool {
	return characteristic.IsBrightnessSupported(dev.Data)
}

func bindLights(dimmers []*accessory.Dimmer) []*characteristic.Light {
	lights := make([]*characteristic.Light, 0, len(dimmers))
	for _, d := range dimmers {
		lights = append(lights, characteristic.Bind(d))
	}
	return lights
}

func homekitLights(lights []*characteristic.Light) []*homekit.Light {
	out := make([]*homekit.Light, 0, len(lights))
	for _, l := range lights {
		out = append(out, homekit.NewLight(l, l))
	}
	return out
}

func dbusLights(lights []*characteristic.Light) []dbus.Light {
	out := make([]dbus.Light, 0, len(lights))
	for _, l := range lights {
		out = append(out, l)
	}
	return out
}

// forwardToDBus emits BrightnessChanged for spontaneous updates of l.
func forwardToDBus(server *dbus.Server, l *characteristic.Light) {
	id := l.ID()
	l.Subscribe(characteristic.BrightnessTitle, func(value int) {
		server.EmitBrightnessChanged(id, uint32(value))
	})
}

// pollHandler refreshes the published light of each polled dimmer. Dimmers
// without one were discovered after startup and have no subscribers, so they
// are skipped.
func pollHandler(lights []*characteristic.Light) accessory.PollHandler {
	byID := make(map[string]*characteristic.Light, len(lights))
	for _, l := range lights {
		byID[l.ID()] = l
	}
	return func(ctx context.Context, d *accessory.Dimmer) {
		l, ok := byID[d.ID()]
		if !ok || l.Dimmer != d {
			log.Debug().Str("device", d.ID()).Msg("Skipping unpublished device")
			return
		}
		l.Refresh(ctx)
	}
}

// refresher re-discovers the account's devices.
type refresher interface {
	Refresh(ctx context.Context) error
}

// refreshWithRetry attempts a device refresh with linear backoff.
// It retries up to maxRetries times with increasing delays between attempts.
func refreshWithRetry(ctx context.Context, r refresher, maxRetries int, backoff time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * backoff
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("Retrying device refresh")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := r.Refresh(ctx); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("maxRetries", maxRetries+1).
				Msg("Device refresh failed")
			continue
		}

		if attempt > 0 {
			log.Info().Int("attempts", attempt+1).Msg("Device refresh succeeded after retry")
		}
		return nil
	}
	return fmt.Errorf("device refresh failed after %d attempts: %w", maxRetries+1, lastErr)
}

// deviceChanges is the outcome of comparing two device snapshots.
type deviceChanges struct {
	added   []string
	removed []string
}

// deviceSnapshot maps the ids of the managed dimmers to their names.
func deviceSnapshot(dimmers []*accessory.Dimmer) map[string]string {
	snapshot := make(map[string]string, len(dimmers))
	for _, d := range dimmers {
		snapshot[d.ID()] = d.Name()
	}
	return snapshot
}

func diffDevices(oldDevices, newDevices map[string]string) deviceChanges {
	var changes deviceChanges
	for id := range newDevices {
		if _, exists := oldDevices[id]; !exists {
			changes.added = append(changes.added, id)
		}
	}
	for id := range oldDevices {
		if _, exists := newDevices[id]; !exists {
			changes.removed = append(changes.removed, id)
		}
	}
	sort.Strings(changes.added)
	sort.Strings(changes.removed)
	return changes
}

// refreshMu serializes rediscovery triggered by concurrent device errors.
var refreshMu sync.Mutex

// createRediscoveryHandler returns a handler that refreshes the device list
// when a device disappears from the account.
func createRediscoveryHandler(ctx context.Context, manager *accessory.Manager) dbus.DeviceErrorHandler {
	return func(id string, err error) {
		refreshMu.Lock()
		defer refreshMu.Unlock()

		log.Info().Err(err).Str("device", id).Msg("Device vanished, refreshing device list")

		before := deviceSnapshot(manager.List())
		if err := refreshWithRetry(ctx, manager, 3, 500*time.Millisecond); err != nil {
			log.Error().Err(err).Msg("Rediscovery failed (all retries exhausted)")
			return
		}
		changes := diffDevices(before, deviceSnapshot(manager.List()))

		for _, added := range changes.added {
			log.Warn().Str("device", added).Msg("New device found, restart the bridge to publish it")
		}
		for _, removed := range changes.removed {
			log.Info().Str("device", removed).Msg("Device no longer available")
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

// SPDX-License-Identifier: GPL-3.0-only

// Package dbus provides a D-Bus service for local brightness control of the
// bridged Tuya lights.
package dbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

// ErrEmptyID is returned when an empty device id is provided.
var ErrEmptyID = errors.New("device id cannot be empty")

// ErrRateLimitExceeded is returned when brightness change requests exceed the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrInvalidStep is returned when an invalid brightness step value is provided.
var ErrInvalidStep = errors.New("step must be between 1 and 100")

const (
	// rateLimitPerSecond is the maximum number of brightness changes per second.
	rateLimitPerSecond = 20

	// rateLimitBurst is the maximum burst size for brightness changes.
	rateLimitBurst = 5

	// callTimeout bounds the cloud round trip of a single method call.
	callTimeout = 10 * time.Second
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.shini4i.TuyaBrightness"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/shini4i/TuyaBrightness"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.shini4i.TuyaBrightness"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="ListAccessories">
      <arg name="accessories" type="a(ss)" direction="out"/>
    </method>
    <method name="GetBrightness">
      <arg name="id" type="s" direction="in"/>
      <arg name="brightness" type="u" direction="out"/>
    </method>
    <method name="SetBrightness">
      <arg name="id" type="s" direction="in"/>
      <arg name="brightness" type="u" direction="in"/>
    </method>
    <method name="IncreaseBrightness">
      <arg name="id" type="s" direction="in"/>
      <arg name="step" type="u" direction="in"/>
    </method>
    <method name="DecreaseBrightness">
      <arg name="id" type="s" direction="in"/>
      <arg name="step" type="u" direction="in"/>
    </method>
    <method name="SetAllBrightness">
      <arg name="brightness" type="u" direction="in"/>
    </method>
    <signal name="BrightnessChanged">
      <arg name="id" type="s"/>
      <arg name="brightness" type="u"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// Light is a dimmable light reachable through the brightness translator.
type Light interface {
	ID() string
	Name() string
	GetRemoteValue(ctx context.Context) (int, error)
	SetRemoteValue(ctx context.Context, homekitValue int) error
}

// DeviceErrorHandler is called when a device is found to be gone from the
// account, so the caller can re-run discovery.
type DeviceErrorHandler func(id string, err error)

// AccessoryInfo represents accessory information returned via D-Bus.
// Serializes to D-Bus type (ss) - a struct containing id and name.
type AccessoryInfo struct {
	ID   string
	Name string
}

// Server implements the D-Bus service for brightness control.
//
// Thread safety:
//   - The connMu mutex protects the D-Bus connection field for signal emission.
//   - The lightsMu mutex protects the lights map.
//   - IncreaseBrightness and DecreaseBrightness perform non-atomic
//     read-modify-write operations against the cloud. Concurrent calls may
//     result in missed increments.
type Server struct {
	conn               *dbus.Conn
	connMu             sync.RWMutex // Protects conn field only
	lightsMu           sync.RWMutex
	lights             map[string]Light
	rateLimiter        *rate.Limiter
	handlerMu          sync.RWMutex // Protects deviceErrorHandler
	deviceErrorHandler DeviceErrorHandler
}

// NewServer creates a new D-Bus server for the given lights.
func NewServer(lights []Light) *Server {
	s := &Server{
		lights:      make(map[string]Light, len(lights)),
		rateLimiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
	for _, l := range lights {
		s.lights[l.ID()] = l
	}
	return s
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	err = conn.Export(s, ObjectPath, InterfaceName)
	if err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// SetDeviceErrorHandler sets the callback invoked when a device has vanished
// from the account.
func (s *Server) SetDeviceErrorHandler(handler DeviceErrorHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.deviceErrorHandler = handler
}

// handleDeviceError triggers recovery when err says the device is gone.
// Returns true if recovery was triggered.
func (s *Server) handleDeviceError(id string, err error) bool {
	if err == nil || !errors.Is(err, tuya.ErrDeviceNotFound) {
		return false
	}

	log.Warn().Err(err).Str("device", id).Msg("Device missing from account, triggering rediscovery")

	s.handlerMu.RLock()
	handler := s.deviceErrorHandler
	s.handlerMu.RUnlock()

	if handler != nil {
		// Run recovery asynchronously to not block the D-Bus response
		go handler(id, err)
	}
	return true
}

func (s *Server) light(id string) (Light, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	s.lightsMu.RLock()
	defer s.lightsMu.RUnlock()

	l, ok := s.lights[id]
	if !ok {
		return nil, fmt.Errorf("device %s not found", id)
	}
	return l, nil
}

// ListAccessories returns all bridged lights ordered by id.
func (s *Server) ListAccessories() ([]AccessoryInfo, *dbus.Error) {
	s.lightsMu.RLock()
	result := make([]AccessoryInfo, 0, len(s.lights))
	for _, l := range s.lights {
		result = append(result, AccessoryInfo{ID: l.ID(), Name: l.Name()})
	}
	s.lightsMu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	log.Debug().Int("count", len(result)).Msg("Listed accessories")
	return result, nil
}

// GetBrightness returns the brightness of a light as a percentage (0-100).
func (s *Server) GetBrightness(id string) (uint32, *dbus.Error) {
	l, err := s.light(id)
	if err != nil {
		return 0, dbus.MakeFailedError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	brightness, err := l.GetRemoteValue(ctx)
	if err != nil {
		s.handleDeviceError(id, err)
		return 0, dbus.MakeFailedError(err)
	}

	log.Debug().Str("device", id).Int("brightness", brightness).Msg("Got brightness")
	// #nosec G115 -- translator values are within 0-100
	return uint32(brightness), nil
}

// SetBrightness sets the brightness of a light to a percentage (0-100).
func (s *Server) SetBrightness(id string, brightness uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	l, err := s.light(id)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	if brightness > 100 {
		brightness = 100
	}
	if err := s.set(l, brightness); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// IncreaseBrightness increases the brightness of a light by a step.
// The step parameter must be between 1 and 100.
func (s *Server) IncreaseBrightness(id string, step uint32) *dbus.Error {
	return s.adjust(id, int(step), "IncreaseBrightness")
}

// DecreaseBrightness decreases the brightness of a light by a step.
// The step parameter must be between 1 and 100.
func (s *Server) DecreaseBrightness(id string, step uint32) *dbus.Error {
	return s.adjust(id, -int(step), "DecreaseBrightness")
}

func (s *Server) adjust(id string, delta int, method string) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Str("method", method).Msg("Rate limit exceeded")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if delta == 0 || delta > 100 || delta < -100 {
		return dbus.MakeFailedError(ErrInvalidStep)
	}

	l, err := s.light(id)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	current, err := l.GetRemoteValue(ctx)
	if err != nil {
		s.handleDeviceError(id, err)
		return dbus.MakeFailedError(err)
	}

	next := current + delta
	if next > 100 {
		next = 100
	}
	if next < 0 {
		next = 0
	}

	// #nosec G115 -- next is clamped to 0-100
	if err := s.set(l, uint32(next)); err != nil {
		return dbus.MakeFailedError(err)
	}

	log.Debug().Str("device", id).Int("delta", delta).Int("new", next).Msg("Adjusted brightness")
	return nil
}

// SetAllBrightness sets the brightness of all lights to a percentage (0-100).
func (s *Server) SetAllBrightness(brightness uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetAllBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if brightness > 100 {
		brightness = 100
	}

	s.lightsMu.RLock()
	lights := make([]Light, 0, len(s.lights))
	for _, l := range s.lights {
		lights = append(lights, l)
	}
	s.lightsMu.RUnlock()

	failed := 0
	for _, l := range lights {
		if err := s.set(l, brightness); err != nil {
			failed++
		}
	}

	log.Debug().
		Uint32("brightness", brightness).
		Int("count", len(lights)).
		Int("failed", failed).
		Msg("Set all brightness")
	return nil
}

func (s *Server) set(l Light, brightness uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := l.SetRemoteValue(ctx, int(brightness)); err != nil {
		s.handleDeviceError(l.ID(), err)
		log.Error().Err(err).Str("device", l.ID()).Msg("Failed to set brightness")
		return err
	}

	log.Debug().Str("device", l.ID()).Uint32("brightness", brightness).Msg("Set brightness")
	s.EmitBrightnessChanged(l.ID(), brightness)
	return nil
}

// EmitBrightnessChanged emits the BrightnessChanged signal.
func (s *Server) EmitBrightnessChanged(id string, brightness uint32) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".BrightnessChanged", id, brightness)
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit BrightnessChanged signal")
	}
}

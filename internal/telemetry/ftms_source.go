package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/skobkin/antbridge/internal/bluetoothutil"
)

const defaultSubscribeWait = 8 * time.Second

// FTMSSource follows the Indoor Bike Data notifications of a BLE fitness
// machine. Fields a notification omits keep their previous value.
type FTMSSource struct {
	logger    *slog.Logger
	address   string
	adapterID string
	acc       *Accumulator
	now       func() time.Time

	mu       sync.Mutex
	last     Sample
	device   *bluetooth.Device
	bikeData *bluetooth.DeviceCharacteristic
}

func NewFTMSSource(logger *slog.Logger, address, adapterID string, staleAfter time.Duration) *FTMSSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &FTMSSource{
		logger:    logger,
		address:   strings.TrimSpace(address),
		adapterID: strings.TrimSpace(adapterID),
		acc:       NewAccumulator(staleAfter),
		now:       time.Now,
	}
}

func (s *FTMSSource) Snapshot() Snapshot {
	return s.acc.Snapshot()
}

func (s *FTMSSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("address", s.address, "adapter", s.adapterID)
	if s.device != nil {
		return nil
	}
	addr, err := bluetoothutil.ParseAddress(s.address)
	if err != nil {
		return err
	}

	adapter := bluetoothutil.ResolveAdapter(s.adapterID)
	logger.Info("connecting to trainer")
	if err := bluetoothutil.EnableAdapter(adapter); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil && bluetoothutil.ShouldRetryConnectWithDiscovery(err) {
		logger.Info("direct connect failed, trying discovery", "error", err)
		if discoverErr := bluetoothutil.DiscoverDevice(ctx, adapter, addr); discoverErr != nil {
			return fmt.Errorf("connect trainer %q: %w", s.address, errors.Join(err, discoverErr))
		}
		device, err = adapter.Connect(addr, bluetooth.ConnectionParams{})
	}
	if err != nil {
		return fmt.Errorf("connect trainer %q: %w", s.address, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{bluetoothutil.FTMSServiceUUID()})
	if err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("discover fitness machine service: %w", err)
	}
	if len(services) == 0 {
		_ = device.Disconnect()
		return errors.New("fitness machine service is not available")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bluetoothutil.FTMSIndoorBikeDataUUID()})
	if err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("discover indoor bike data: %w", err)
	}
	if len(chars) != 1 {
		_ = device.Disconnect()
		return fmt.Errorf("unexpected characteristic count: %d", len(chars))
	}
	bikeData := chars[0]

	if err := enableNotificationsWithTimeout(ctx, device, bikeData, s.handleNotification, defaultSubscribeWait); err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("subscribe to indoor bike data: %w", err)
	}

	s.device = &device
	s.bikeData = &bikeData
	logger.Info("trainer connected")

	return nil
}

func (s *FTMSSource) Close() error {
	s.mu.Lock()
	device := s.device
	bikeData := s.bikeData
	s.device = nil
	s.bikeData = nil
	s.mu.Unlock()
	if device == nil {
		return nil
	}

	var closeErr error
	if err := bikeData.EnableNotifications(nil); err != nil && !bluetoothutil.IsNotConnectedError(err) {
		closeErr = errors.Join(closeErr, fmt.Errorf("disable notifications: %w", err))
	}
	if err := device.Disconnect(); err != nil && !bluetoothutil.IsNotConnectedError(err) {
		closeErr = errors.Join(closeErr, fmt.Errorf("disconnect trainer: %w", err))
	}

	return closeErr
}

func (s *FTMSSource) handleNotification(payload []byte) {
	data, err := ParseIndoorBikeData(payload)
	if err != nil {
		s.logger.Debug("dropping indoor bike data", "error", err, "len", len(payload))
		return
	}

	sample := s.last
	sample.At = s.now()
	if data.HasPower {
		sample.Power = data.PowerW
	}
	if data.HasCadence {
		sample.Cadence = data.CadenceRPM
	}
	if data.HasSpeed {
		sample.SpeedMPS = data.SpeedKPH / 3.6
	}
	s.last = sample
	s.acc.Update(sample)
}

func enableNotificationsWithTimeout(
	ctx context.Context,
	device bluetooth.Device,
	char bluetooth.DeviceCharacteristic,
	callback func([]byte),
	wait time.Duration,
) error {
	done := make(chan error, 1)
	go func() {
		done <- char.EnableNotifications(callback)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = device.Disconnect()
		return ctx.Err()
	case <-timer.C:
		_ = device.Disconnect()
		return fmt.Errorf("timed out after %s", wait)
	}
}

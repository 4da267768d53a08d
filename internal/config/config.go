package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectorType identifies which transport backend reaches the ANT stick.
type ConnectorType string

// SourceType identifies where bike telemetry comes from.
type SourceType string

const (
	ConnectorUSB    ConnectorType = "usb"
	ConnectorSerial ConnectorType = "serial"

	SourceSim  SourceType = "sim"
	SourceFTMS SourceType = "ftms"

	DefaultVendorID        uint16 = 0x0FCF
	DefaultSerialBaud             = 115200
	DefaultResetSettleMS          = 1000
	DefaultResponseTimeout        = 2000
	// DefaultNetworkKey is the public ANT+ network key.
	DefaultNetworkKey      = "B9A521FBBD72C345"
	DefaultSensorID uint16 = 3862

	PowerDeviceType uint8 = 0x0B
	SpeedDeviceType uint8 = 0x7B

	DefaultIntervalMS   = 250
	DefaultSpeedDivisor = 1.67
	DefaultStaleAfterMS = 3000

	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultRetentionDays = 30

	DefaultInfluxMeasurement = "broadcast"
)

// DefaultProductIDs lists the ANTUSB2 (0x1008) and ANTUSB-m (0x1009) sticks.
func DefaultProductIDs() []uint16 {
	return []uint16{0x1008, 0x1009}
}

// RadioConfig describes how the ANT stick is found and opened.
type RadioConfig struct {
	Connector         ConnectorType `json:"connector" yaml:"connector"`
	VendorID          uint16        `json:"vendor_id" yaml:"vendor_id"`
	ProductIDs        []uint16      `json:"product_ids" yaml:"product_ids"`
	ResetSettleMS     int           `json:"reset_settle_ms" yaml:"reset_settle_ms"`
	SerialPort        string        `json:"serial_port" yaml:"serial_port"`
	SerialBaud        int           `json:"serial_baud" yaml:"serial_baud"`
	ResponseTimeoutMS int           `json:"response_timeout_ms" yaml:"response_timeout_ms"`
}

func (c RadioConfig) ResetSettle() time.Duration {
	return time.Duration(c.ResetSettleMS) * time.Millisecond
}

func (c RadioConfig) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMS) * time.Millisecond
}

// ChannelConfig is the fixed per-profile channel setup.
type ChannelConfig struct {
	DeviceType  uint8  `json:"device_type" yaml:"device_type"`
	Period      uint16 `json:"period" yaml:"period"`
	RFFrequency uint8  `json:"rf_frequency" yaml:"rf_frequency"`
}

// AntConfig holds network and channel constants. Values must match what ANT+
// receivers expect, so defaults are the wire-compatible ones.
type AntConfig struct {
	NetworkKey       string        `json:"network_key" yaml:"network_key"`
	NetworkNumber    uint8         `json:"network_number" yaml:"network_number"`
	SensorID         uint16        `json:"sensor_id" yaml:"sensor_id"`
	TransmissionType uint8         `json:"transmission_type" yaml:"transmission_type"`
	Power            ChannelConfig `json:"power" yaml:"power"`
	Speed            ChannelConfig `json:"speed" yaml:"speed"`
}

// Key decodes NetworkKey into the 8 raw key bytes.
func (c AntConfig) Key() ([8]byte, error) {
	var key [8]byte
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(c.NetworkKey), " ", ""))
	if err != nil {
		return key, fmt.Errorf("decode network key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("network key must be %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)

	return key, nil
}

// BroadcastConfig controls the broadcast loop.
type BroadcastConfig struct {
	IntervalMS int `json:"interval_ms" yaml:"interval_ms"`
	// SpeedDivisor is applied to km/h in the status line. 1.67 is a local
	// calibration value, not a standard unit conversion.
	SpeedDivisor float64 `json:"speed_divisor" yaml:"speed_divisor"`
}

func (c BroadcastConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// TelemetryConfig selects and tunes the bike telemetry source.
type TelemetryConfig struct {
	Source           SourceType `json:"source" yaml:"source"`
	BluetoothAddress string     `json:"bluetooth_address" yaml:"bluetooth_address"`
	BluetoothAdapter string     `json:"bluetooth_adapter" yaml:"bluetooth_adapter"`
	StaleAfterMS     int        `json:"stale_after_ms" yaml:"stale_after_ms"`
	SimPower         int        `json:"sim_power" yaml:"sim_power"`
	SimCadence       int        `json:"sim_cadence" yaml:"sim_cadence"`
}

func (c TelemetryConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMS) * time.Millisecond
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	LogToFile  bool   `json:"log_to_file" yaml:"log_to_file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

// RecorderConfig toggles the SQLite broadcast log. Broadcasts older than
// RetentionDays are pruned at startup; zero keeps everything.
type RecorderConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	RetentionDays int  `json:"retention_days" yaml:"retention_days"`
}

func (c RecorderConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// InfluxConfig configures the optional InfluxDB export.
type InfluxConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	URL         string `json:"url" yaml:"url"`
	Token       string `json:"token" yaml:"token"`
	Org         string `json:"org" yaml:"org"`
	Bucket      string `json:"bucket" yaml:"bucket"`
	Measurement string `json:"measurement" yaml:"measurement"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Radio     RadioConfig     `json:"radio" yaml:"radio"`
	Ant       AntConfig       `json:"ant" yaml:"ant"`
	Broadcast BroadcastConfig `json:"broadcast" yaml:"broadcast"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Recorder  RecorderConfig  `json:"recorder" yaml:"recorder"`
	Influx    InfluxConfig    `json:"influx" yaml:"influx"`
}

func Default() AppConfig {
	return AppConfig{
		Radio: RadioConfig{
			Connector:         ConnectorUSB,
			VendorID:          DefaultVendorID,
			ProductIDs:        DefaultProductIDs(),
			ResetSettleMS:     DefaultResetSettleMS,
			SerialBaud:        DefaultSerialBaud,
			ResponseTimeoutMS: DefaultResponseTimeout,
		},
		Ant: AntConfig{
			NetworkKey:       DefaultNetworkKey,
			NetworkNumber:    0,
			SensorID:         DefaultSensorID,
			TransmissionType: 0,
			Power:            ChannelConfig{DeviceType: PowerDeviceType, Period: 8182, RFFrequency: 57},
			Speed:            ChannelConfig{DeviceType: SpeedDeviceType, Period: 8118, RFFrequency: 57},
		},
		Broadcast: BroadcastConfig{
			IntervalMS:   DefaultIntervalMS,
			SpeedDivisor: DefaultSpeedDivisor,
		},
		Telemetry: TelemetryConfig{
			Source:       SourceSim,
			StaleAfterMS: DefaultStaleAfterMS,
			SimPower:     150,
			SimCadence:   85,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogToFile:  false,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		Recorder: RecorderConfig{Enabled: true, RetentionDays: DefaultRetentionDays},
		Influx:   InfluxConfig{Measurement: DefaultInfluxMeasurement},
	}
}

// Load reads a JSON config, or YAML when the file has a .yaml/.yml extension.
// A missing file yields defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from the command line or the user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if isYAMLPath(cleanPath) {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("decode config yaml: %w", err)
		}
	} else if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Radio.Connector == "" {
		c.Radio.Connector = ConnectorUSB
	}
	if c.Radio.VendorID == 0 {
		c.Radio.VendorID = DefaultVendorID
	}
	if len(c.Radio.ProductIDs) == 0 {
		c.Radio.ProductIDs = DefaultProductIDs()
	}
	if c.Radio.ResetSettleMS < 0 {
		c.Radio.ResetSettleMS = DefaultResetSettleMS
	}
	if c.Radio.SerialBaud <= 0 {
		c.Radio.SerialBaud = DefaultSerialBaud
	}
	if c.Radio.ResponseTimeoutMS <= 0 {
		c.Radio.ResponseTimeoutMS = DefaultResponseTimeout
	}
	if strings.TrimSpace(c.Ant.NetworkKey) == "" {
		c.Ant.NetworkKey = DefaultNetworkKey
	}
	if c.Ant.SensorID == 0 {
		c.Ant.SensorID = DefaultSensorID
	}
	if c.Ant.Power.DeviceType == 0 {
		c.Ant.Power.DeviceType = PowerDeviceType
	}
	if c.Ant.Speed.DeviceType == 0 {
		c.Ant.Speed.DeviceType = SpeedDeviceType
	}
	if c.Broadcast.IntervalMS <= 0 {
		c.Broadcast.IntervalMS = DefaultIntervalMS
	}
	if c.Broadcast.SpeedDivisor <= 0 {
		c.Broadcast.SpeedDivisor = DefaultSpeedDivisor
	}
	if c.Telemetry.Source == "" {
		c.Telemetry.Source = SourceSim
	}
	if c.Telemetry.StaleAfterMS <= 0 {
		c.Telemetry.StaleAfterMS = DefaultStaleAfterMS
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Recorder.RetentionDays < 0 {
		c.Recorder.RetentionDays = DefaultRetentionDays
	}
	if c.Influx.Measurement == "" {
		c.Influx.Measurement = DefaultInfluxMeasurement
	}
}

func (c AppConfig) Validate() error {
	switch c.Radio.Connector {
	case ConnectorUSB:
		if c.Radio.VendorID == 0 {
			return errors.New("usb vendor id is required")
		}
		if len(c.Radio.ProductIDs) == 0 {
			return errors.New("at least one usb product id is required")
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Radio.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Radio.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Radio.Connector)
	}

	if _, err := c.Ant.Key(); err != nil {
		return err
	}
	if c.Ant.Power.Period == 0 || c.Ant.Speed.Period == 0 {
		return errors.New("channel period must be positive")
	}
	if c.Ant.Power.RFFrequency > 124 || c.Ant.Speed.RFFrequency > 124 {
		return errors.New("rf frequency offset must be within 0..124")
	}
	if c.Broadcast.IntervalMS <= 0 {
		return errors.New("broadcast interval must be positive")
	}
	if c.Broadcast.SpeedDivisor <= 0 {
		return errors.New("speed divisor must be positive")
	}

	switch c.Telemetry.Source {
	case SourceSim:
	case SourceFTMS:
		if strings.TrimSpace(c.Telemetry.BluetoothAddress) == "" {
			return errors.New("bluetooth address is required for ftms source")
		}
	default:
		return fmt.Errorf("unknown telemetry source: %s", c.Telemetry.Source)
	}

	if c.Influx.Enabled {
		if strings.TrimSpace(c.Influx.URL) == "" {
			return errors.New("influx url is required")
		}
		if strings.TrimSpace(c.Influx.Org) == "" || strings.TrimSpace(c.Influx.Bucket) == "" {
			return errors.New("influx org and bucket are required")
		}
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var (
		raw []byte
		err error
	)
	if isYAMLPath(path) {
		raw, err = yaml.Marshal(cfg)
	} else {
		raw, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

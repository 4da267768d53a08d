package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/antbridge/internal/app"
	"github.com/skobkin/antbridge/internal/broadcast"
	"github.com/skobkin/antbridge/internal/bus"
	"github.com/skobkin/antbridge/internal/config"
	"github.com/skobkin/antbridge/internal/connectors"
	"github.com/skobkin/antbridge/internal/logging"
	"github.com/skobkin/antbridge/internal/persistence"
	"github.com/skobkin/antbridge/internal/platform"
	"github.com/skobkin/antbridge/internal/radio"
	"github.com/skobkin/antbridge/internal/sink"
	"github.com/skobkin/antbridge/internal/telemetry"
	"github.com/skobkin/antbridge/internal/transport"
)

const noDevicesMessage = "No ANT devices available"

type cliFlags struct {
	configFile string
	connector  string
	serialPort string
	source     string
	bleAddress string
	logLevel   string
	history    int
	clear      bool
	saveConfig bool
	version    bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, transport.ErrNoDevices) {
			fmt.Println(noDevicesMessage)
		}
		slog.Error("run antbridge", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "", "config file (.json, .yaml or .yml)")
	fs.StringVar(&f.connector, "connector", "", "ANT stick connector: usb or serial")
	fs.StringVar(&f.serialPort, "serial-port", "", "serial device of the ANT stick")
	fs.StringVar(&f.source, "source", "", "telemetry source: sim or ftms")
	fs.StringVar(&f.bleAddress, "ble-address", "", "BLE address of the FTMS trainer")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.IntVar(&f.history, "history", 0, "print the last N recorded broadcasts and exit")
	fs.BoolVar(&f.clear, "clear-history", false, "delete recorded broadcasts and connection events and exit")
	fs.BoolVar(&f.saveConfig, "write-config", false, "write the effective config, flags included, to the config file and exit")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}

	return f, nil
}

func applyOverrides(cfg *config.AppConfig, f cliFlags) {
	if v := strings.TrimSpace(f.connector); v != "" {
		cfg.Radio.Connector = config.ConnectorType(strings.ToLower(v))
	}
	if v := strings.TrimSpace(f.serialPort); v != "" {
		cfg.Radio.SerialPort = v
		if f.connector == "" {
			cfg.Radio.Connector = config.ConnectorSerial
		}
	}
	if v := strings.TrimSpace(f.source); v != "" {
		cfg.Telemetry.Source = config.SourceType(strings.ToLower(v))
	}
	if v := strings.TrimSpace(f.bleAddress); v != "" {
		cfg.Telemetry.BluetoothAddress = v
	}
	if v := strings.TrimSpace(f.logLevel); v != "" {
		cfg.Logging.Level = v
	}
}

func run() error {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if f.version {
		fmt.Println(app.Name, app.BuildVersionWithDate())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths(f.configFile)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, f)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if f.saveConfig {
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("config written to", paths.ConfigFile)
		return nil
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting antbridge", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	if f.history > 0 {
		return printHistory(ctx, os.Stdout, paths.DBFile, f.history)
	}
	if f.clear {
		return clearHistory(ctx, os.Stdout, paths.DBFile)
	}

	radioLock, err := platform.AcquireRadioLock(app.Name, connectionTarget(cfg.Radio))
	switch {
	case errors.Is(err, platform.ErrRadioLockUnsupported):
		logger.Warn("radio lock unavailable, continuing without it", "error", err)
	case err != nil:
		return fmt.Errorf("lock ANT radio: %w", err)
	default:
		defer func() {
			if releaseErr := radioLock.Release(); releaseErr != nil {
				logger.Warn("release radio lock", "error", releaseErr)
			}
		}()
	}

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	if cfg.Recorder.Enabled {
		db, err := persistence.Open(ctx, paths.DBFile)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Warn("close sqlite", "error", closeErr)
			}
		}()
		broadcasts := persistence.NewBroadcastRepo(db)
		pruneHistory(ctx, logger, broadcasts, cfg.Recorder.Retention(), time.Now())

		// The recorder outlives ctx so the session's final closed status,
		// published after cancellation, still reaches the database.
		writer := persistence.NewWriterQueue(logMgr.Logger("persistence"), 256)
		writerCtx, stopWriter := context.WithCancel(context.WithoutCancel(ctx))
		writer.Start(writerCtx)
		recorder := persistence.NewRecorder(logMgr.Logger("recorder"), writer, broadcasts, persistence.NewConnectionRepo(db))
		recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
		recorder.Start(recorderCtx, b)
		defer func() {
			stopRecorder()
			recorder.Wait()
			stopWriter()
			writer.Wait()
		}()
	}

	if cfg.Influx.Enabled {
		client, writeAPI := sink.NewInfluxClient(cfg.Influx)
		defer client.Close()
		sink.NewInfluxSink(logMgr.Logger("influx"), writeAPI, cfg.Influx.Measurement, cfg.Ant.SensorID).Start(ctx, b)
	}
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		logRawFrames(ctx, b, logMgr.Logger("frames"))
	}

	source, closeSource, err := startSource(ctx, cfg.Telemetry, logMgr.Logger("telemetry"))
	if err != nil {
		return fmt.Errorf("start telemetry source: %w", err)
	}
	defer closeSource()

	tr := newTransport(cfg.Radio)
	logger.Info("opening ANT radio", "connector", cfg.Radio.Connector, "target", connectionTarget(cfg.Radio))
	node := radio.NewNode(logMgr.Logger("radio"), b, tr, cfg.Radio.ResponseTimeout())
	session, err := radio.OpenSession(ctx, node, cfg.Ant)
	if err != nil {
		logScanReport(logger, tr)
		return fmt.Errorf("open ANT session: %w", err)
	}
	for _, ch := range []*radio.Channel{session.Power, session.Speed} {
		spec := ch.Spec()
		logger.Info("ANT channel open", "channel", ch.Number(), "profile", spec.Name,
			"device_number", spec.DeviceNumber, "device_type", spec.DeviceType, "period", spec.Period)
	}
	defer func() {
		if closeErr := session.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Warn("close ANT session", "error", closeErr)
		}
	}()

	loop := broadcast.New(logMgr.Logger("broadcast"), b, source, session.Power, session.Speed, session.Close, broadcast.Options{
		Interval:     cfg.Broadcast.Interval(),
		SpeedDivisor: cfg.Broadcast.SpeedDivisor,
	})

	return loop.Run(ctx)
}

func newTransport(cfg config.RadioConfig) transport.Transport {
	if cfg.Connector == config.ConnectorSerial {
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud)
	}

	return transport.NewUSBTransport(cfg.VendorID, cfg.ProductIDs, cfg.ResetSettle())
}

func connectionTarget(cfg config.RadioConfig) string {
	switch cfg.Connector {
	case config.ConnectorSerial:
		return fmt.Sprintf("%s@%d", cfg.SerialPort, cfg.SerialBaud)
	case config.ConnectorUSB:
		ids := make([]string, 0, len(cfg.ProductIDs))
		for _, id := range cfg.ProductIDs {
			ids = append(ids, fmt.Sprintf("%04x", id))
		}
		return fmt.Sprintf("%04x:{%s}", cfg.VendorID, strings.Join(ids, ","))
	default:
		return ""
	}
}

// startSource returns a running telemetry source and its shutdown func.
func startSource(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (telemetry.Source, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Source {
	case config.SourceFTMS:
		src := telemetry.NewFTMSSource(logger, cfg.BluetoothAddress, cfg.BluetoothAdapter, cfg.StaleAfter())
		if err := src.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return src, func() {
			if err := src.Close(); err != nil {
				logger.Warn("close trainer connection", "error", err)
			}
		}, nil
	case config.SourceSim:
		src := telemetry.NewSimSource(cfg.SimPower, cfg.SimCadence, cfg.StaleAfter())
		simCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := src.Run(simCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("simulated rider stopped", "error", err)
			}
		}()
		logger.Info("using simulated rider", "power", cfg.SimPower, "cadence", cfg.SimCadence)
		return src, cancel, nil
	default:
		return nil, nil, fmt.Errorf("unknown telemetry source: %s", cfg.Source)
	}
}

func printHistory(ctx context.Context, w io.Writer, dbPath string, limit int) error {
	db, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	repo := persistence.NewBroadcastRepo(db)
	records, err := repo.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("load broadcast history: %w", err)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count broadcast history: %w", err)
	}
	writeHistory(w, records, total)

	return nil
}

// writeHistory prints records oldest first.
func writeHistory(w io.Writer, records []persistence.BroadcastRecord, total int) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "no broadcasts recorded")
		return
	}
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		_, _ = fmt.Fprintf(w, "%s  %3d W %3d RPM %5d REV %5d ms  %s %s\n",
			r.At.Format(time.DateTime), r.Power, r.Cadence, r.CumRevCount, r.EventTimeMS, r.PowerPage, r.SpeedPage)
	}
	_, _ = fmt.Fprintf(w, "showing %d of %d broadcasts\n", len(records), total)
}

func clearHistory(ctx context.Context, w io.Writer, dbPath string) error {
	db, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := persistence.ClearDatabase(ctx, db); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "history cleared")

	return nil
}

// pruneHistory drops broadcasts older than retention. Zero retention keeps
// everything.
func pruneHistory(ctx context.Context, logger *slog.Logger, repo *persistence.BroadcastRepo, retention time.Duration, now time.Time) {
	if retention <= 0 {
		return
	}
	n, err := repo.PruneBefore(ctx, now.Add(-retention))
	if err != nil {
		logger.Warn("prune broadcast history", "error", err)
		return
	}
	if n > 0 {
		logger.Info("pruned broadcast history", "removed", n, "retention", retention)
	}
}

type scanReporter interface {
	LastScan() transport.ScanReport
}

// logScanReport explains which sticks were tried when the radio failed to open.
func logScanReport(logger *slog.Logger, tr transport.Transport) {
	reporter, ok := tr.(scanReporter)
	if !ok {
		return
	}
	report := reporter.LastScan()
	for _, step := range report.Steps {
		logger.Warn("ANT stick candidate", "target", step.Target, "outcome", step.Outcome, "error", step.Err)
	}
	if report.Outcome != "" {
		logger.Info("ANT stick scan finished", "outcome", report.Outcome, "candidates", len(report.Steps))
	}
}

// logRawFrames traces every frame crossing the transport until ctx is done.
func logRawFrames(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	trace := func(topic, direction string) {
		sub := b.Subscribe(topic)
		go bus.Consume(ctx, b, sub, func(frame connectors.RawFrame) {
			logger.Debug(direction, "hex", frame.Hex, "len", frame.Len)
		})
	}
	trace(connectors.TopicRawFrameIn, "ANT rx")
	trace(connectors.TopicRawFrameOut, "ANT tx")
}

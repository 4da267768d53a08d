package transport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/gousb"
)

const (
	// antEndpointNumber is the bulk endpoint used in both directions by
	// ANTUSB2 and ANTUSB-m sticks.
	antEndpointNumber   = 1
	defaultUSBReadChunk = 64
)

type usbLink struct {
	dev     *gousb.Device
	release func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	target  string
}

// USBTransport talks to an ANT stick over libusb bulk endpoints.
type USBTransport struct {
	vendorID   uint16
	productIDs []uint16
	settle     time.Duration

	mu      sync.Mutex
	usbCtx  *gousb.Context
	link    *usbLink
	report  ScanReport
	writeMu sync.Mutex
	readMu  sync.Mutex
	pending []byte
}

func NewUSBTransport(vendorID uint16, productIDs []uint16, settle time.Duration) *USBTransport {
	return &USBTransport{
		vendorID:   vendorID,
		productIDs: slices.Clone(productIDs),
		settle:     settle,
	}
}

func (t *USBTransport) Name() string {
	return "usb"
}

func (t *USBTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.link == nil {
		return ""
	}

	return t.link.target
}

// LastScan returns the report of the most recent Connect attempt.
func (t *USBTransport) LastScan() ScanReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.report
}

// Connect enumerates matching sticks and opens the first one that resets and
// claims cleanly. It returns ErrNoDevices when none does.
func (t *USBTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("usb", "vendor", fmt.Sprintf("%04x", t.vendorID))
	if t.link != nil {
		logger.Debug("connect skipped: already connected")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	usbCtx := gousb.NewContext()
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return t.matches(uint16(desc.Vendor), uint16(desc.Product))
	})
	if err != nil {
		// OpenDevices reports per-device open errors but still returns the
		// devices it could open.
		logger.Warn("usb enumeration reported errors", "error", err, "opened", len(devs))
	}
	logger.Debug("usb candidates", "count", len(devs))

	link, report, scanErr := scanCandidates(ctx, logger, devs, describeUSBDevice, t.openDevice)
	t.report = report
	for _, dev := range devs {
		if link != nil && dev == link.dev {
			continue
		}
		_ = dev.Close()
	}
	if scanErr != nil {
		_ = usbCtx.Close()
		return scanErr
	}

	t.usbCtx = usbCtx
	t.link = link
	t.pending = nil
	logger.Info("connected", "target", link.target)

	return nil
}

func (t *USBTransport) openDevice(ctx context.Context, dev *gousb.Device) (*usbLink, error) {
	if err := dev.Reset(); err != nil {
		return nil, fmt.Errorf("reset usb device: %w", err)
	}
	if !sleepWithContext(ctx, t.settle) {
		return nil, ctx.Err()
	}
	if err := dev.SetAutoDetach(true); err != nil {
		transportLogger("usb").Debug("auto detach not supported", "error", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("claim default interface: %w", err)
	}
	out, err := intf.OutEndpoint(antEndpointNumber)
	if err != nil {
		done()
		return nil, fmt.Errorf("open out endpoint: %w", err)
	}
	in, err := intf.InEndpoint(antEndpointNumber)
	if err != nil {
		done()
		return nil, fmt.Errorf("open in endpoint: %w", err)
	}

	return &usbLink{
		dev:     dev,
		release: done,
		in:      in,
		out:     out,
		target:  describeUSBDevice(dev),
	}, nil
}

func (t *USBTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("usb")
	if t.link == nil {
		logger.Debug("close skipped: not connected")
		return nil
	}

	link := t.link
	t.link = nil
	t.pending = nil
	link.release()

	var closeErr error
	if err := link.dev.Close(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("close usb device: %w", err))
	}
	if t.usbCtx != nil {
		if err := t.usbCtx.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close usb context: %w", err))
		}
		t.usbCtx = nil
	}
	if closeErr != nil {
		logger.Warn("close failed", "error", closeErr)
		return closeErr
	}
	logger.Info("closed", "target", link.target)

	return nil
}

func (t *USBTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	link, err := t.currentLink()
	if err != nil {
		return nil, err
	}

	t.readMu.Lock()
	defer t.readMu.Unlock()

	payload, err := readFrame(func(buf []byte) error {
		return t.readFull(ctx, link, buf)
	})
	if err != nil {
		return nil, err
	}
	transportLogger("usb").Debug("read frame", "len", len(payload))

	return payload, nil
}

func (t *USBTransport) WriteFrame(ctx context.Context, payload []byte) error {
	logger := transportLogger("usb")
	link, err := t.currentLink()
	if err != nil {
		return err
	}

	frame, err := encodeFrame(payload)
	if err != nil {
		logger.Warn("encode frame failed", "payload_len", len(payload), "error", err)
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	n, err := link.out.WriteContext(ctx, frame)
	if err != nil {
		logger.Warn("write frame failed", "frame_len", len(frame), "error", err)
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("short usb write: wrote %d of %d", n, len(frame))
	}
	logger.Debug("write frame", "payload_len", len(payload), "frame_len", len(frame))

	return nil
}

// readFull serves buf from bytes left over by previous bulk reads before
// asking the endpoint for more. One bulk transfer may carry several frames.
func (t *USBTransport) readFull(ctx context.Context, link *usbLink, buf []byte) error {
	filled := 0
	for filled < len(buf) {
		if len(t.pending) == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk := make([]byte, max(link.in.Desc.MaxPacketSize, defaultUSBReadChunk))
			n, err := link.in.ReadContext(ctx, chunk)
			if err != nil {
				return err
			}
			t.pending = append(t.pending, chunk[:n]...)
			continue
		}
		n := copy(buf[filled:], t.pending)
		t.pending = t.pending[n:]
		filled += n
	}

	return nil
}

func (t *USBTransport) currentLink() (*usbLink, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.link == nil {
		return nil, errNotConnected
	}

	return t.link, nil
}

func (t *USBTransport) matches(vendor, product uint16) bool {
	return vendor == t.vendorID && slices.Contains(t.productIDs, product)
}

func describeUSBDevice(dev *gousb.Device) string {
	return fmt.Sprintf("bus %d addr %d (%s:%s)", dev.Desc.Bus, dev.Desc.Address, dev.Desc.Vendor, dev.Desc.Product)
}

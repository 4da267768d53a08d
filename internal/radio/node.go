package radio

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/antbridge/internal/ant"
	"github.com/skobkin/antbridge/internal/bus"
	"github.com/skobkin/antbridge/internal/connectors"
	"github.com/skobkin/antbridge/internal/transport"
)

const (
	defaultResponseTimeout = 2 * time.Second
	startupWait            = time.Second
	// maxChannels matches the smallest channel count of supported sticks.
	maxChannels = 8
)

var (
	ErrNodeStopped     = errors.New("radio node is stopped")
	ErrNoFreeChannel   = errors.New("no free ANT channel")
	ErrResponseTimeout = errors.New("timed out waiting for channel response")
)

type waiter struct {
	match func(ant.ChannelResponse) bool
	ch    chan ant.ChannelResponse
}

// Node is the ANT protocol node running over one transport. Configuration
// commands are serialised and each waits for its channel response.
type Node struct {
	logger          *slog.Logger
	transport       transport.Transport
	bus             bus.MessageBus
	responseTimeout time.Duration

	reqMu sync.Mutex

	mu          sync.Mutex
	waiters     []*waiter
	nextChannel uint8
	started     bool
	readErr     error

	startup      chan struct{}
	readerDone   chan struct{}
	cancelReader context.CancelFunc
	stopOnce     sync.Once
	stopErr      error
}

func NewNode(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, responseTimeout time.Duration) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	if responseTimeout <= 0 {
		responseTimeout = defaultResponseTimeout
	}

	return &Node{
		logger:          logger,
		transport:       tr,
		bus:             b,
		responseTimeout: responseTimeout,
		startup:         make(chan struct{}, 1),
		readerDone:      make(chan struct{}),
	}
}

// Start connects the transport, starts the inbound reader, resets the stick
// and installs the network key.
func (n *Node) Start(ctx context.Context, network uint8, key [8]byte) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return errors.New("radio node already started")
	}
	n.started = true
	n.mu.Unlock()

	n.publishConnStatus(connectors.ConnectionStateConnecting, nil)
	if err := n.transport.Connect(ctx); err != nil {
		n.publishConnStatus(connectors.ConnectionStateDisconnected, err)
		close(n.readerDone)
		return fmt.Errorf("connect %s transport: %w", n.transport.Name(), err)
	}

	readerCtx, cancel := context.WithCancel(context.Background())
	n.cancelReader = cancel
	go n.runReader(readerCtx)

	n.logger.Info("starting ANT node")
	if err := n.write(ctx, ant.ResetSystem()); err != nil {
		return fmt.Errorf("reset stick: %w", err)
	}
	if !n.waitStartup(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.logger.Debug("no startup message after reset, continuing")
	}

	if err := n.request(ctx, ant.SetNetworkKey(network, key), network); err != nil {
		return fmt.Errorf("set network key: %w", err)
	}
	n.publishConnStatus(connectors.ConnectionStateConnected, nil)

	return nil
}

// Stop shuts the reader down and closes the transport. Only the first call
// has an effect.
func (n *Node) Stop() error {
	n.stopOnce.Do(func() {
		if n.cancelReader != nil {
			n.cancelReader()
			<-n.readerDone
		}
		n.stopErr = n.transport.Close()
		n.failWaiters()
		n.publishConnStatus(connectors.ConnectionStateClosed, n.stopErr)
		n.logger.Info("ANT node stopped")
	})

	return n.stopErr
}

// OpenChannel assigns the next free channel number and opens it with spec.
func (n *Node) OpenChannel(ctx context.Context, spec ChannelSpec) (*Channel, error) {
	number, err := n.allocateChannel()
	if err != nil {
		return nil, err
	}

	logger := n.logger.With("channel", number, "profile", spec.Name)
	steps := []ant.Message{
		ant.AssignChannel(number, spec.Type, spec.Network),
		ant.SetChannelID(number, spec.DeviceNumber, spec.DeviceType, spec.TransmissionType),
		ant.SetChannelPeriod(number, spec.Period),
		ant.SetRFFrequency(number, spec.RFFrequency),
		ant.OpenChannel(number),
	}
	for _, msg := range steps {
		if err := n.request(ctx, msg, number); err != nil {
			logger.Warn("channel setup failed", "step", msg.ID, "error", err)
			return nil, fmt.Errorf("open %s channel: %w", spec.Name, err)
		}
	}
	logger.Info("channel opened",
		"device_type", fmt.Sprintf("0x%02X", spec.DeviceType),
		"device_number", spec.DeviceNumber,
		"period", spec.Period,
		"rf", spec.RFFrequency,
	)

	return &Channel{node: n, number: number, spec: spec}, nil
}

func (n *Node) allocateChannel() (uint8, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nextChannel >= maxChannels {
		return 0, ErrNoFreeChannel
	}
	number := n.nextChannel
	n.nextChannel++

	return number, nil
}

// request writes msg and waits for the stick to answer it on channel.
func (n *Node) request(ctx context.Context, msg ant.Message, channel uint8) error {
	n.reqMu.Lock()
	defer n.reqMu.Unlock()

	w := n.expect(func(r ant.ChannelResponse) bool {
		return r.Channel == channel && r.MessageID == msg.ID
	})
	if err := n.write(ctx, msg); err != nil {
		n.forget(w)
		return err
	}

	resp, err := n.await(ctx, w)
	if err != nil {
		return fmt.Errorf("%s: %w", msg.ID, err)
	}
	if resp.Code != ant.ResponseNoError {
		return &ant.ResponseError{Channel: channel, Request: msg.ID, Code: resp.Code}
	}

	return nil
}

func (n *Node) expect(match func(ant.ChannelResponse) bool) *waiter {
	w := &waiter{match: match, ch: make(chan ant.ChannelResponse, 1)}
	n.mu.Lock()
	n.waiters = append(n.waiters, w)
	n.mu.Unlock()

	return w
}

func (n *Node) forget(w *waiter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.waiters {
		if cur == w {
			n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
			return
		}
	}
}

func (n *Node) await(ctx context.Context, w *waiter) (ant.ChannelResponse, error) {
	defer n.forget(w)

	timer := time.NewTimer(n.responseTimeout)
	defer timer.Stop()

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-ctx.Done():
		return ant.ChannelResponse{}, ctx.Err()
	case <-timer.C:
		return ant.ChannelResponse{}, ErrResponseTimeout
	case <-n.readerDone:
		select {
		case resp := <-w.ch:
			return resp, nil
		default:
		}
		return ant.ChannelResponse{}, n.readerError()
	}
}

func (n *Node) write(ctx context.Context, msg ant.Message) error {
	payload := msg.Bytes()
	if err := n.transport.WriteFrame(ctx, payload); err != nil {
		return err
	}
	n.publish(connectors.TopicRawFrameOut, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})

	return nil
}

func (n *Node) runReader(ctx context.Context) {
	defer close(n.readerDone)

	for {
		payload, err := n.transport.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, transport.ErrChecksum) {
				n.logger.Debug("dropping corrupt frame", "error", err)
				continue
			}
			n.logger.Warn("radio read failed", "error", err)
			n.mu.Lock()
			n.readErr = err
			n.mu.Unlock()
			return
		}

		n.publish(connectors.TopicRawFrameIn, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})
		msg, err := ant.ParseMessage(payload)
		if err != nil {
			continue
		}
		n.dispatch(msg)
	}
}

func (n *Node) dispatch(msg ant.Message) {
	switch msg.ID {
	case ant.MsgStartup:
		select {
		case n.startup <- struct{}{}:
		default:
		}
	case ant.MsgChannelResponse:
		resp, err := ant.ParseChannelResponse(msg)
		if err != nil {
			n.logger.Debug("bad channel response", "error", err)
			return
		}
		if resp.IsEvent() && resp.Code != ant.EventChannelClosed {
			if resp.Code != ant.EventTx {
				n.logger.Debug("channel event", "channel", resp.Channel, "event", resp.Code)
			}
			return
		}
		n.deliver(resp)
	default:
		n.logger.Debug("unhandled message", "id", msg.ID, "len", len(msg.Data))
	}
}

func (n *Node) deliver(resp ant.ChannelResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, w := range n.waiters {
		if w.match(resp) {
			select {
			case w.ch <- resp:
			default:
			}
			return
		}
	}
}

func (n *Node) waitStartup(ctx context.Context) bool {
	timer := time.NewTimer(startupWait)
	defer timer.Stop()

	select {
	case <-n.startup:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

func (n *Node) failWaiters() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waiters = nil
}

func (n *Node) readerError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.readErr != nil {
		return fmt.Errorf("radio reader stopped: %w", n.readErr)
	}

	return ErrNodeStopped
}

func (n *Node) publish(topic string, msg any) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(topic, msg)
}

func (n *Node) publishConnStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnStatus{
		State:         state,
		TransportName: n.transport.Name(),
		Timestamp:     time.Now(),
	}
	if resolver, ok := n.transport.(transport.StatusTargetResolver); ok {
		status.Target = resolver.StatusTarget()
	}
	if err != nil {
		status.Err = err.Error()
	}
	n.publish(connectors.TopicConnStatus, status)
}

package radio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/skobkin/antbridge/internal/ant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type responseKey struct {
	id      ant.MessageID
	channel uint8
}

// fakeStick answers configuration commands the way a healthy ANT stick does.
type fakeStick struct {
	mu         sync.Mutex
	written    []ant.Message
	inbound    chan []byte
	connectErr error
	failOn     map[responseKey]ant.ResponseCode
	silent     bool
	connects   int
	closes     int
}

func newFakeStick() *fakeStick {
	return &fakeStick{
		inbound: make(chan []byte, 64),
		failOn:  make(map[responseKey]ant.ResponseCode),
	}
}

func (f *fakeStick) Name() string { return "fake" }

func (f *fakeStick) StatusTarget() string { return "fake0" }

func (f *fakeStick) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++

	return f.connectErr
}

func (f *fakeStick) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++

	return nil
}

func (f *fakeStick) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-f.inbound:
		return payload, nil
	}
}

func (f *fakeStick) WriteFrame(_ context.Context, payload []byte) error {
	msg, err := ant.ParseMessage(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes > 0 {
		return errors.New("write after close")
	}
	f.written = append(f.written, msg)

	switch msg.ID {
	case ant.MsgResetSystem:
		f.inbound <- []byte{byte(ant.MsgStartup), 0x20}
	case ant.MsgBroadcastData:
	default:
		if f.silent {
			return nil
		}
		channel := msg.Data[0]
		code := f.failOn[responseKey{id: msg.ID, channel: channel}]
		f.inbound <- []byte{byte(ant.MsgChannelResponse), channel, byte(msg.ID), byte(code)}
		if msg.ID == ant.MsgCloseChannel && code == ant.ResponseNoError {
			f.inbound <- []byte{byte(ant.MsgChannelResponse), channel, byte(ant.MsgChannelEvent), byte(ant.EventChannelClosed)}
		}
	}

	return nil
}

func (f *fakeStick) messages() []ant.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ant.Message(nil), f.written...)
}

func (f *fakeStick) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closes
}

func (f *fakeStick) count(id ant.MessageID, channel uint8) int {
	n := 0
	for _, msg := range f.messages() {
		if msg.ID == id && len(msg.Data) > 0 && msg.Data[0] == channel {
			n++
		}
	}

	return n
}

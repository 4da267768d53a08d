package radio

import (
	"context"
	"fmt"
	"sync"

	"github.com/skobkin/antbridge/internal/ant"
)

// ChannelSpec is the immutable configuration of one transmit channel.
type ChannelSpec struct {
	Name             string
	Type             ant.ChannelType
	Network          uint8
	DeviceNumber     uint16
	DeviceType       uint8
	TransmissionType uint8
	Period           uint16
	RFFrequency      uint8
}

// Channel is an open ANT broadcast channel. It is closed at most once.
type Channel struct {
	node   *Node
	number uint8
	spec   ChannelSpec

	closeOnce sync.Once
	closeErr  error
}

func (c *Channel) Number() uint8 {
	return c.number
}

func (c *Channel) Spec() ChannelSpec {
	return c.spec
}

// Send queues page as broadcast data for the next channel period.
func (c *Channel) Send(ctx context.Context, page ant.Page) error {
	if err := c.node.write(ctx, ant.BroadcastData(c.number, page)); err != nil {
		return fmt.Errorf("broadcast on %s channel: %w", c.spec.Name, err)
	}

	return nil
}

// Close closes the channel and waits for EVENT_CHANNEL_CLOSED. A missing
// closed event is logged, not returned.
func (c *Channel) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		logger := c.node.logger.With("channel", c.number, "profile", c.spec.Name)
		closed := c.node.expect(func(r ant.ChannelResponse) bool {
			return r.Channel == c.number && r.IsEvent() && r.Code == ant.EventChannelClosed
		})

		if err := c.node.request(ctx, ant.CloseChannel(c.number), c.number); err != nil {
			c.node.forget(closed)
			c.closeErr = fmt.Errorf("close %s channel: %w", c.spec.Name, err)
			logger.Warn("close channel failed", "error", err)
			return
		}
		if _, err := c.node.await(ctx, closed); err != nil {
			logger.Warn("no channel closed event", "error", err)
		}
		logger.Info("channel closed")
	})

	return c.closeErr
}

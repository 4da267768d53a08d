package ant

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MessageID is the ANT serial message identifier.
type MessageID byte

const (
	MsgChannelEvent     MessageID = 0x01
	MsgChannelResponse  MessageID = 0x40
	MsgUnassignChannel  MessageID = 0x41
	MsgAssignChannel    MessageID = 0x42
	MsgChannelPeriod    MessageID = 0x43
	MsgRFFrequency      MessageID = 0x45
	MsgNetworkKey       MessageID = 0x46
	MsgResetSystem      MessageID = 0x4A
	MsgOpenChannel      MessageID = 0x4B
	MsgCloseChannel     MessageID = 0x4C
	MsgRequest          MessageID = 0x4D
	MsgBroadcastData    MessageID = 0x4E
	MsgAcknowledgedData MessageID = 0x4F
	MsgChannelID        MessageID = 0x51
	MsgStartup          MessageID = 0x6F
)

func (id MessageID) String() string {
	switch id {
	case MsgChannelEvent:
		return "channel_event"
	case MsgChannelResponse:
		return "channel_response"
	case MsgUnassignChannel:
		return "unassign_channel"
	case MsgAssignChannel:
		return "assign_channel"
	case MsgChannelPeriod:
		return "channel_period"
	case MsgRFFrequency:
		return "rf_frequency"
	case MsgNetworkKey:
		return "network_key"
	case MsgResetSystem:
		return "reset_system"
	case MsgOpenChannel:
		return "open_channel"
	case MsgCloseChannel:
		return "close_channel"
	case MsgRequest:
		return "request"
	case MsgBroadcastData:
		return "broadcast_data"
	case MsgAcknowledgedData:
		return "acknowledged_data"
	case MsgChannelID:
		return "channel_id"
	case MsgStartup:
		return "startup"
	default:
		return fmt.Sprintf("0x%02X", byte(id))
	}
}

// ChannelType is the ANT channel type used in the assign message.
type ChannelType byte

const (
	ChannelTypeBidirectionalReceive  ChannelType = 0x00
	ChannelTypeBidirectionalTransmit ChannelType = 0x10
)

// MaxDataSize is the largest message body the framing length byte allows.
const MaxDataSize = 255

var ErrEmptyMessage = errors.New("ant: empty message")

// Message is one ANT serial message without sync, length and checksum.
type Message struct {
	ID   MessageID
	Data []byte
}

// Bytes returns the frame payload: message id followed by data.
func (m Message) Bytes() []byte {
	out := make([]byte, 0, 1+len(m.Data))
	out = append(out, byte(m.ID))

	return append(out, m.Data...)
}

// ParseMessage splits a frame payload into id and data.
func ParseMessage(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, ErrEmptyMessage
	}
	data := make([]byte, len(payload)-1)
	copy(data, payload[1:])

	return Message{ID: MessageID(payload[0]), Data: data}, nil
}

func ResetSystem() Message {
	return Message{ID: MsgResetSystem, Data: []byte{0x00}}
}

func SetNetworkKey(network uint8, key [8]byte) Message {
	data := make([]byte, 0, 9)
	data = append(data, network)

	return Message{ID: MsgNetworkKey, Data: append(data, key[:]...)}
}

func AssignChannel(channel uint8, typ ChannelType, network uint8) Message {
	return Message{ID: MsgAssignChannel, Data: []byte{channel, byte(typ), network}}
}

func SetChannelID(channel uint8, deviceNumber uint16, deviceType, transmissionType uint8) Message {
	data := []byte{channel, 0, 0, deviceType, transmissionType}
	binary.LittleEndian.PutUint16(data[1:3], deviceNumber)

	return Message{ID: MsgChannelID, Data: data}
}

func SetChannelPeriod(channel uint8, period uint16) Message {
	data := []byte{channel, 0, 0}
	binary.LittleEndian.PutUint16(data[1:3], period)

	return Message{ID: MsgChannelPeriod, Data: data}
}

func SetRFFrequency(channel, frequency uint8) Message {
	return Message{ID: MsgRFFrequency, Data: []byte{channel, frequency}}
}

func OpenChannel(channel uint8) Message {
	return Message{ID: MsgOpenChannel, Data: []byte{channel}}
}

func CloseChannel(channel uint8) Message {
	return Message{ID: MsgCloseChannel, Data: []byte{channel}}
}

func BroadcastData(channel uint8, page Page) Message {
	data := make([]byte, 0, 1+PageSize)
	data = append(data, channel)

	return Message{ID: MsgBroadcastData, Data: append(data, page[:]...)}
}

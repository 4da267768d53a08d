package ant

import (
	"fmt"
)

// ResponseCode is the status byte of a channel response or event.
type ResponseCode byte

const (
	ResponseNoError             ResponseCode = 0x00
	EventRxSearchTimeout        ResponseCode = 0x01
	EventRxFail                 ResponseCode = 0x02
	EventTx                     ResponseCode = 0x03
	EventTransferRxFailed       ResponseCode = 0x04
	EventTransferTxCompleted    ResponseCode = 0x05
	EventTransferTxFailed       ResponseCode = 0x06
	EventChannelClosed          ResponseCode = 0x07
	EventChannelCollision       ResponseCode = 0x09
	ChannelInWrongState         ResponseCode = 0x15
	ChannelNotOpened            ResponseCode = 0x16
	ChannelIDNotSet             ResponseCode = 0x18
	CloseAllChannels            ResponseCode = 0x19
	TransferInProgress          ResponseCode = 0x1F
	TransferSequenceNumberError ResponseCode = 0x20
	InvalidMessage              ResponseCode = 0x28
	InvalidNetworkNumber        ResponseCode = 0x29
	InvalidParameterProvided    ResponseCode = 0x33
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseNoError:
		return "RESPONSE_NO_ERROR"
	case EventRxSearchTimeout:
		return "EVENT_RX_SEARCH_TIMEOUT"
	case EventRxFail:
		return "EVENT_RX_FAIL"
	case EventTx:
		return "EVENT_TX"
	case EventTransferRxFailed:
		return "EVENT_TRANSFER_RX_FAILED"
	case EventTransferTxCompleted:
		return "EVENT_TRANSFER_TX_COMPLETED"
	case EventTransferTxFailed:
		return "EVENT_TRANSFER_TX_FAILED"
	case EventChannelClosed:
		return "EVENT_CHANNEL_CLOSED"
	case EventChannelCollision:
		return "EVENT_CHANNEL_COLLISION"
	case ChannelInWrongState:
		return "CHANNEL_IN_WRONG_STATE"
	case ChannelNotOpened:
		return "CHANNEL_NOT_OPENED"
	case ChannelIDNotSet:
		return "CHANNEL_ID_NOT_SET"
	case CloseAllChannels:
		return "CLOSE_ALL_CHANNELS"
	case TransferInProgress:
		return "TRANSFER_IN_PROGRESS"
	case TransferSequenceNumberError:
		return "TRANSFER_SEQUENCE_NUMBER_ERROR"
	case InvalidMessage:
		return "INVALID_MESSAGE"
	case InvalidNetworkNumber:
		return "INVALID_NETWORK_NUMBER"
	case InvalidParameterProvided:
		return "INVALID_PARAMETER_PROVIDED"
	default:
		return fmt.Sprintf("0x%02X", byte(c))
	}
}

// ChannelResponse is a decoded 0x40 message. MessageID is MsgChannelEvent for
// unsolicited RF events, otherwise the id of the command being answered.
type ChannelResponse struct {
	Channel   uint8
	MessageID MessageID
	Code      ResponseCode
}

// IsEvent reports whether the response is an unsolicited channel event.
func (r ChannelResponse) IsEvent() bool {
	return r.MessageID == MsgChannelEvent
}

func ParseChannelResponse(msg Message) (ChannelResponse, error) {
	if msg.ID != MsgChannelResponse {
		return ChannelResponse{}, fmt.Errorf("ant: not a channel response: %s", msg.ID)
	}
	if len(msg.Data) < 3 {
		return ChannelResponse{}, fmt.Errorf("ant: short channel response: %d bytes", len(msg.Data))
	}

	return ChannelResponse{
		Channel:   msg.Data[0],
		MessageID: MessageID(msg.Data[1]),
		Code:      ResponseCode(msg.Data[2]),
	}, nil
}

// ResponseError reports a command the stick answered with a failure code.
type ResponseError struct {
	Channel uint8
	Request MessageID
	Code    ResponseCode
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("ant: channel %d %s failed: %s", e.Channel, e.Request, e.Code)
}

package connectors

const (
	TopicConnStatus  = "conn.status"
	TopicBroadcast   = "broadcast"
	TopicTickSkipped = "broadcast.skipped"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
)

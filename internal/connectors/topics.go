package connectors

const (
	TopicConnStatus  = "conn.status"
	TopicMessage     = "remote.message"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
	// TopicPlayback carries domain.PlaybackEntry values once they are stored.
	TopicPlayback = "history.playback"
)

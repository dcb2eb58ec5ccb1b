package protocol

const (
	// CurrentProtocolVersion is the version stamped on every outbound message.
	CurrentProtocolVersion int32 = 21
	// MinProtocolVersion is the oldest server version the client talks to.
	MinProtocolVersion int32 = 21
	// DefaultMessageVersion is the declared proto2 default of the version
	// field, which is what a frame without one reads as. The player stamps
	// its messages with the same default, so it equals the current version.
	DefaultMessageVersion int32 = CurrentProtocolVersion
)

// Codec translates between frame payloads and protocol values.
//
// Decode never fails: undecodable payloads come back as error messages so the
// dispatch loop handles them like any other inbound value.
type Codec interface {
	Encode(req Request) ([]byte, error)
	Decode(payload []byte) Message
}

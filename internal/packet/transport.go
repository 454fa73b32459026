package packet

// Each peer talks to the server over one bidirectional gRPC stream whose
// messages are google.protobuf.BytesValue wrappers around encoded Frames.
const (
	ServiceName   = "gophmaster.transport.Peer"
	StreamName    = "Connect"
	ConnectMethod = "/" + ServiceName + "/" + StreamName
)

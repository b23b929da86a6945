package broker

// Op identifies one of the five inbound operations of §4.2, plus one
// internal-only event (opDisconnect) used to tear down a connection's
// state from within the single dispatcher goroutine.
type Op int

const (
	OpHandshake Op = iota
	OpPublish
	OpSubscribe
	OpCancel
	OpList
	opDisconnect
)

func (o Op) String() string {
	switch o {
	case OpHandshake:
		return "HANDSHAKE"
	case OpPublish:
		return "PUBLISH"
	case OpSubscribe:
		return "SUBSCRIBE"
	case OpCancel:
		return "CANCEL"
	case OpList:
		return "LIST"
	case opDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

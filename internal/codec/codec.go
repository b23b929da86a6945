// Package codec implements the three wire encodings a connection can
// negotiate at handshake time: JSON, XML, and a binary object-graph codec.
// All three carry the same logical record defined by Message.
package codec

import "fmt"

// Method names carried on the wire, see spec §6.2.2.
const (
	MethodPublish        = "PUBLISH"
	MethodSubscribe      = "SUBSCRIBE"
	MethodCancel         = "CANCEL"
	MethodList           = "LIST"
	MethodMessage        = "MESSAGE"
	MethodLastMessage    = "LAST_MESSAGE"
	MethodListTopicsRep  = "LIST_TOPICS_REP"
)

// Serializer names a client may request in the handshake frame.
const (
	SerializerJSON   = "JSONQueue"
	SerializerXML    = "XMLQueue"
	SerializerBinary = "PickleQueue"
)

// Message is the codec-neutral logical record every frame after the
// handshake carries: {method, topic, msg}. Msg is kept as a string at the
// codec boundary because XML can only carry strings (§9 design note);
// callers that need a richer type parse Msg themselves.
type Message struct {
	Method string
	Topic  string
	Msg    string
}

// Codec encodes and decodes Message values for one connection's negotiated
// wire format. A Codec is stateless and safe for concurrent use.
type Codec interface {
	Name() string
	Encode(Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// ForSerializer resolves a handshake serializer name to a Codec instance.
// Unrecognized names return an error; the caller must close the connection
// without a reply (§6.2.1, §7 handshake failure).
func ForSerializer(name string) (Codec, error) {
	switch name {
	case SerializerJSON:
		return JSON{}, nil
	case SerializerXML:
		return XML{}, nil
	case SerializerBinary:
		return Binary{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown serializer %q", name)
	}
}

package codec

import "github.com/vmihailenco/msgpack/v5"

// Binary is the object-graph codec negotiated as "PickleQueue" at handshake
// time. The original broker this spec was distilled from used a
// language-native pickle format that does not cross runtimes; this
// implementation uses MessagePack instead, which is portable and carries
// the same three-field record (§6.2.3). Wire-incompatible with the
// original's BINARY codec by design — see DESIGN.md.
type Binary struct{}

func (Binary) Name() string { return SerializerBinary }

type binaryWire struct {
	Method string `msgpack:"method"`
	Topic  string `msgpack:"topic"`
	Msg    string `msgpack:"msg"`
}

func (Binary) Encode(m Message) ([]byte, error) {
	return msgpack.Marshal(binaryWire{Method: m.Method, Topic: m.Topic, Msg: m.Msg})
}

func (Binary) Decode(data []byte) (Message, error) {
	var w binaryWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return Message{}, err
	}
	return Message{Method: w.Method, Topic: w.Topic, Msg: w.Msg}, nil
}

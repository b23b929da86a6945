package codec

import "encoding/json"

// JSON is the {"method":..., "topic":..., "msg":...} wire encoding (§6.2.3).
type JSON struct{}

func (JSON) Name() string { return SerializerJSON }

type jsonWire struct {
	Method string `json:"method"`
	Topic  string `json:"topic"`
	Msg    string `json:"msg"`
}

func (JSON) Encode(m Message) ([]byte, error) {
	return json.Marshal(jsonWire{Method: m.Method, Topic: m.Topic, Msg: m.Msg})
}

func (JSON) Decode(data []byte) (Message, error) {
	var w jsonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, err
	}
	return Message{Method: w.Method, Topic: w.Topic, Msg: w.Msg}, nil
}

package codec

import (
	"bytes"
	"encoding/xml"
)

// XML is the <?xml version="1.0"?><data method="M" topic="T"><msg>V</msg></data>
// wire encoding (§6.2.3). Method and topic are attributes; msg is a text
// child. XML can only carry strings, which is why Message.Msg is a string.
type XML struct{}

func (XML) Name() string { return SerializerXML }

const xmlProlog = `<?xml version="1.0"?>`

type xmlWire struct {
	XMLName xml.Name `xml:"data"`
	Method  string   `xml:"method,attr"`
	Topic   string   `xml:"topic,attr"`
	Msg     string   `xml:"msg"`
}

func (XML) Encode(m Message) ([]byte, error) {
	body, err := xml.Marshal(xmlWire{Method: m.Method, Topic: m.Topic, Msg: m.Msg})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xmlProlog)
	buf.Write(body)
	return buf.Bytes(), nil
}

func (XML) Decode(data []byte) (Message, error) {
	var w xmlWire
	if err := xml.Unmarshal(data, &w); err != nil {
		return Message{}, err
	}
	return Message{Method: w.Method, Topic: w.Topic, Msg: w.Msg}, nil
}

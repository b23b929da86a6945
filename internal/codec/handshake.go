package codec

import "encoding/json"

// Handshake is always JSON UTF-8 regardless of the codec being negotiated
// (§6.2.1). Extra fields (e.g. "method": "ACK") are accepted and ignored —
// json.Unmarshal into a concrete struct already drops unknown keys, so no
// extra bookkeeping is needed here.
type Handshake struct {
	Serializer string `json:"Serializer"`
}

// DecodeHandshake parses the first frame of a new connection.
func DecodeHandshake(data []byte) (Handshake, error) {
	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return Handshake{}, err
	}
	return hs, nil
}

package transport

import "encoding/json"

// encodeTopicList renders topics as a JSON array string so LIST_TOPICS_REP
// carries the same representation regardless of the connection's
// negotiated codec (§9 opaque-payload design note) — XML and binary both
// carry it as an ordinary string, not a native array.
func encodeTopicList(topics []string) (string, error) {
	if topics == nil {
		topics = []string{}
	}
	data, err := json.Marshal(topics)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTopicList is the pkg/queue client's counterpart to encodeTopicList.
func DecodeTopicList(payload string) ([]string, error) {
	var topics []string
	if err := json.Unmarshal([]byte(payload), &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

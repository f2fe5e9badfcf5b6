package wire

import "encoding/json"

// JSONCodec is the text encoding. It works with every framing.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) ContentType() string {
	return "application/json"
}

func (JSONCodec) Binary() bool {
	return false
}

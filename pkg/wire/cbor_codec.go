package wire

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// cborEnc uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items, so the same
// logical message always produces identical bytes.
var cborEnc cbor.EncMode

// cborDec accepts standard CBOR and ignores unknown fields for forward
// compatibility. Any-typed targets decode maps as map[string]any, the type
// the rest of the Go ecosystem expects.
var cborDec cbor.DecMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORCodec is the compact binary encoding. Being binary, it is only valid
// on binary-clean framings (length-prefixed).
type CBORCodec struct{}

func (CBORCodec) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (CBORCodec) Unmarshal(data []byte, v any) error {
	return cborDec.Unmarshal(data, v)
}

func (CBORCodec) ContentType() string {
	return "application/cbor"
}

func (CBORCodec) Binary() bool {
	return true
}

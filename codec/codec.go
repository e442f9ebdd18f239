// Package codec centralizes the encoding of every value stored in BadgerDB.
// Encoding is deterministic: the same record always produces the same bytes,
// which keeps store writes idempotent and comparable in tests.
package codec

import "github.com/fxamacker/cbor/v2"

var (
	enc cbor.EncMode
	dec cbor.DecMode
)

func init() {
	var err error
	enc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v with the deterministic store encoding.
func Marshal(v any) ([]byte, error) {
	return enc.Marshal(v)
}

// Unmarshal decodes stored bytes into v.
func Unmarshal(data []byte, v any) error {
	return dec.Unmarshal(data, v)
}

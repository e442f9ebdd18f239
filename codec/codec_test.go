package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	ID   string `cbor:"id"`
	Seq  uint64 `cbor:"seq"`
	Body string `cbor:"body"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	req := require.New(t)
	record := sample{ID: "4ff2dea1", Seq: 42, Body: "salut"}

	first, err := Marshal(record)
	req.NoError(err)
	second, err := Marshal(record)
	req.NoError(err)

	// Two encodings of the same record must be byte identical
	req.Equal(first, second)
}

func TestRoundtrip(t *testing.T) {
	req := require.New(t)
	record := sample{ID: "4ff2dea1", Seq: 42, Body: "salut"}

	data, err := Marshal(record)
	req.NoError(err)

	var decoded sample
	req.NoError(Unmarshal(data, &decoded))
	req.Equal(record, decoded)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	req := require.New(t)

	var decoded sample
	req.Error(Unmarshal([]byte{0xff, 0x00, 0x13}, &decoded))
}

package server

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
	"github.com/fxamacker/cbor/v2"
)

// Messages are plain Go structs. Connect's protojson codec cannot handle
// them, so the handlers register a plain "json" codec over it, plus CBOR.

const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

type jsonCodec struct{}

func (jsonCodec) Name() string                         { return CodecJSON }
func (jsonCodec) Marshal(msg any) ([]byte, error)      { return json.Marshal(msg) }
func (jsonCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

type cborCodec struct {
	em cbor.EncMode
}

func newCBORCodec() cborCodec {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	return cborCodec{em: em}
}

func (c cborCodec) Name() string                         { return CodecCBOR }
func (c cborCodec) Marshal(msg any) ([]byte, error)      { return c.em.Marshal(msg) }
func (c cborCodec) Unmarshal(data []byte, msg any) error { return cbor.Unmarshal(data, msg) }

// Codec returns the Connect codec with the given name.
func Codec(name string) (connect.Codec, error) {
	switch name {
	case CodecJSON:
		return jsonCodec{}, nil
	case CodecCBOR:
		return newCBORCodec(), nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// codecOptions returns the handler options enabling the named codecs.
// An empty list enables both.
func codecOptions(names []string) ([]connect.HandlerOption, error) {
	if len(names) == 0 {
		names = []string{CodecJSON, CodecCBOR}
	}
	opts := make([]connect.HandlerOption, 0, len(names))
	for _, name := range names {
		c, err := Codec(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, connect.WithCodec(c))
	}
	return opts, nil
}

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Subprotocol names negotiated on the websocket handshake
const (
	SubprotocolJSON    = "json"
	SubprotocolMsgPack = "msgpack"
)

// Codec encodes outgoing messages and decodes client intents
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary messages
	Binary() bool
	Encode(v interface{}) ([]byte, error)
	// Decode unmarshals a frame into v; clients use it for server messages
	Decode(data []byte, v interface{}) error
	DecodeIntent(data []byte) (Intent, error)
}

// CodecFor returns the codec for a negotiated subprotocol. Unknown or empty
// names fall back to JSON.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgPack {
		return MsgPackCodec{}
	}
	return JSONCodec{}
}

// Subprotocols lists the names the server accepts, preferred first
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgPack}
}

// JSONCodec is the default text codec
type JSONCodec struct{}

func (JSONCodec) Name() string { return SubprotocolJSON }

func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (c JSONCodec) DecodeIntent(data []byte) (Intent, error) {
	var raw rawIntent
	if err := c.Decode(data, &raw); err != nil {
		return Intent{}, fmt.Errorf("json: %v: %w", err, ErrInvalidIntent)
	}
	return raw.validate()
}

// MsgPackCodec is the binary codec. Field names follow the json tags so both
// encodings carry the same keys.
type MsgPackCodec struct{}

func (MsgPackCodec) Name() string { return SubprotocolMsgPack }

func (MsgPackCodec) Binary() bool { return true }

func (MsgPackCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPackCodec) Decode(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (c MsgPackCodec) DecodeIntent(data []byte) (Intent, error) {
	var raw rawIntent
	if err := c.Decode(data, &raw); err != nil {
		return Intent{}, fmt.Errorf("msgpack: %v: %w", err, ErrInvalidIntent)
	}
	return raw.validate()
}

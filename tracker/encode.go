package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Format names an output encoding
type Format string

const (
	FormatJSON    Format = "json"    // one JSON object per line
	FormatMsgpack Format = "msgpack" // concatenated msgpack maps
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "jsonl", "":
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Encoder writes measurement and pitch records to a stream
type Encoder interface {
	Encode(v any) error
}

// NewEncoder returns an encoder for format. Msgpack output uses the same
// field names as JSON.
func NewEncoder(w io.Writer, format Format) (Encoder, error) {
	switch format {
	case FormatJSON, "":
		return json.NewEncoder(w), nil
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Marshal encodes a single record, e.g. for a websocket message
func Marshal(v any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.Marshal(v)
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Decoder reads records written by an Encoder
type Decoder interface {
	Decode(v any) error
}

// NewDecoder returns a decoder reading what NewEncoder writes
func NewDecoder(r io.Reader, format Format) (Decoder, error) {
	switch format {
	case FormatJSON, "":
		return json.NewDecoder(r), nil
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		return dec, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

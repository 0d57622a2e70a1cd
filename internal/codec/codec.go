// Package codec encodes message payloads and stored entries.
package codec

import "encoding/json"

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the compact JSON codec used on the mailbox and in stores.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// Default is the codec used when none is configured.
var Default Codec = JSON{}

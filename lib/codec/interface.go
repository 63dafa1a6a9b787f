package codec

import "fmt"

// ICodec is the interface for all record codecs.
type ICodec interface {
	// Encode serializes v into a byte array
	Encode(v any) ([]byte, error)
	// Decode deserializes b into the value pointed to by v
	Decode(b []byte, v any) error
	// Name returns the name used to select the codec
	Name() string
}

// ByName returns the codec registered under name.
func ByName(name string) (ICodec, error) {
	switch name {
	case "json", "":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s (expected json or gob)", name)
	}
}

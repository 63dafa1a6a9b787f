package blob

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Encoding selects how payloads are represented in the medium.
type Encoding string

const (
	// EncodingDataURL stores data:<mime>;base64,<payload>, readable by the original web client.
	EncodingDataURL Encoding = "dataurl"
	// EncodingRaw stores the payload bytes unchanged.
	EncodingRaw Encoding = "raw"
	// EncodingZstd stores a zstd frame of the payload.
	EncodingZstd Encoding = "zstd"
)

// ParseEncoding returns the encoding named s. The empty string selects EncodingDataURL.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(s)) {
	case "", EncodingDataURL:
		return EncodingDataURL, nil
	case EncodingRaw:
		return EncodingRaw, nil
	case EncodingZstd:
		return EncodingZstd, nil
	default:
		return "", fmt.Errorf("invalid blob encoding %s (expected dataurl, raw or zstd)", s)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithZeroFrames(true))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
	}
}

// encode turns a payload into its stored form.
func (e Encoding) encode(data []byte) ([]byte, error) {
	switch e {
	case EncodingDataURL:
		return []byte(toDataURL(data)), nil
	case EncodingRaw:
		return bytes.Clone(data), nil
	case EncodingZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrEncoding, e)
	}
}

// decode turns a stored value back into the payload.
func (e Encoding) decode(stored []byte) ([]byte, error) {
	switch e {
	case EncodingDataURL:
		data, _, err := fromDataURL(string(stored))
		return data, err
	case EncodingRaw:
		return stored, nil
	case EncodingZstd:
		data, err := zstdDecoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompression failed: %v", ErrEncoding, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrEncoding, e)
	}
}

// --------------------------------------------------------------------------
// Data URLs
// --------------------------------------------------------------------------

func toDataURL(data []byte) string {
	mime := "application/octet-stream"
	if len(data) > 0 {
		mime = http.DetectContentType(data)
	}
	// drop parameters like "; charset=utf-8", the original client stores the bare type
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// fromDataURL decodes a base64 data URL and returns the payload and its media type.
func fromDataURL(url string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data url", ErrEncoding)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data url without payload", ErrEncoding)
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("%w: data url is not base64 encoded", ErrEncoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return data, mime, nil
}

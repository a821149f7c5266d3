package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxImageBytes caps the decoded size of an uploaded meal photo.
const MaxImageBytes = 4 << 20

var ErrNotDataURL = errors.New("image must be a base64 data URL")

// Image is a decoded data URL.
type Image struct {
	MIMEType string
	Data     []byte
	DataURL  string
}

// Subtype returns the part after "image/", e.g. "jpeg".
func (i Image) Subtype() string {
	_, sub, ok := strings.Cut(i.MIMEType, "/")
	if !ok {
		return "jpeg"
	}
	return sub
}

func splitDataURL(s string) (mime, payload string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", ErrNotDataURL
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" || !strings.HasPrefix(mime, "image/") {
		return "", "", ErrNotDataURL
	}
	return mime, payload, nil
}

// EstimateDecodedSize returns the decoded byte length of a base64 data URL
// without decoding it.
func EstimateDecodedSize(dataURL string) (int, error) {
	_, payload, err := splitDataURL(dataURL)
	if err != nil {
		return 0, err
	}
	n := len(payload) / 4 * 3
	n -= strings.Count(payload[max(0, len(payload)-2):], "=")
	if r := len(payload) % 4; r > 1 {
		n += r - 1
	}
	return n, nil
}

// DecodeDataURL parses a base64 image data URL.
func DecodeDataURL(dataURL string) (Image, error) {
	mime, payload, err := splitDataURL(dataURL)
	if err != nil {
		return Image{}, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return Image{}, fmt.Errorf("decode image: %w", err)
		}
	}
	return Image{MIMEType: mime, Data: data, DataURL: dataURL}, nil
}

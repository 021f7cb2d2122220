package scanning

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURI wraps raw image bytes in a self-describing base64 data URI,
// the only form images travel in between components.
func EncodeDataURI(data []byte, contentType string) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI strips the data-URI scheme prefix and decodes the payload,
// returning the raw bytes and the declared content type. Bare base64 input
// without a prefix is accepted and assumed to be JPEG.
func DecodeDataURI(uri string) ([]byte, string, error) {
	contentType := "image/jpeg"
	payload := uri

	if strings.HasPrefix(uri, "data:") {
		comma := strings.Index(uri, ",")
		if comma == -1 {
			return nil, "", fmt.Errorf("malformed data URI: no payload separator")
		}
		meta := uri[len("data:"):comma]
		payload = uri[comma+1:]

		meta = strings.TrimSuffix(meta, ";base64")
		if meta != "" {
			contentType = meta
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image payload")
	}
	return data, contentType, nil
}

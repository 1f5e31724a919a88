package brain

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errBadDataURI = errors.New("invalid data uri")

// splitDataURI returns the media type and base64 payload of a
// "data:<type>;base64,<payload>" string.
func splitDataURI(uri string) (mediaType, payload string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", errBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", errBadDataURI
	}
	mediaType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return "", "", errBadDataURI
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return mediaType, payload, nil
}

func decodeDataURI(uri string) (mediaType string, data []byte, err error) {
	mediaType, payload, err := splitDataURI(uri)
	if err != nil {
		return "", nil, err
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(errBadDataURI, err)
	}
	return mediaType, data, nil
}

// extractJSONObject strips code fences and surrounding prose from a reply
// produced by a model without constrained decoding.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

const (
	MaxMessageChars = 2000
	// MaxImageEncodedBytes bounds the encoded data-URI length, not the decoded size.
	MaxImageEncodedBytes = 1536 * 1024
	MaxDocumentBytes     = 500 * 1024

	ImagePrefix = "data:image/"
)

// Reason codes for rejected user input.
const (
	ReasonEmptyMessage        = "empty_message"
	ReasonMessageTooLong      = "message_too_long"
	ReasonInvalidImageFormat  = "invalid_image_format"
	ReasonImageTooLarge       = "image_too_large"
	ReasonUnsupportedFileType = "unsupported_file_type"
	ReasonFileTooLarge        = "file_too_large"
)

// ValidationError rejects a proposed user turn before it touches session state.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func reject(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ValidateTurnInput checks a user turn in a fixed order (text emptiness, text
// length, each image, each document) and returns the first failure, or nil.
func ValidateTurnInput(in protocol.UserTurn) *ValidationError {
	if strings.TrimSpace(in.Content) == "" {
		return reject(ReasonEmptyMessage, "Message cannot be empty")
	}
	if utf8.RuneCountInString(in.Content) > MaxMessageChars {
		return reject(ReasonMessageTooLong, "Message is too long (max %d characters)", MaxMessageChars)
	}
	for _, img := range in.Images {
		if !strings.HasPrefix(img, ImagePrefix) {
			return reject(ReasonInvalidImageFormat, "Invalid image format")
		}
		if len(img) > MaxImageEncodedBytes {
			return reject(ReasonImageTooLarge, "Image size too large (max 1.5MB)")
		}
	}
	for _, doc := range in.Documents {
		switch doc.Kind {
		case protocol.DocumentTXT, protocol.DocumentCSV:
		default:
			return reject(ReasonUnsupportedFileType, "Unsupported file type (only txt and csv allowed)")
		}
		if len(doc.Content) > MaxDocumentBytes {
			return reject(ReasonFileTooLarge, "File size too large (max 500KB)")
		}
	}
	return nil
}

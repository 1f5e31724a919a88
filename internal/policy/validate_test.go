package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

func TestValidateTurnInputAccepts(t *testing.T) {
	err := ValidateTurnInput(protocol.UserTurn{
		Content: "I need 5000 USB-C cables",
		Images:  []string{"data:image/png;base64,iVBORw0KGgo="},
		Documents: []protocol.Document{
			{Name: "specs.csv", Content: "len,color\n1m,black", Kind: protocol.DocumentCSV},
			{Name: "notes.txt", Content: "braided", Kind: protocol.DocumentTXT},
		},
	})
	assert.Nil(t, err)
}

func TestValidateTurnInputRejectsEmptyAndWhitespace(t *testing.T) {
	for _, text := range []string{"", " ", "\n\t  "} {
		err := ValidateTurnInput(protocol.UserTurn{Content: text})
		require.NotNil(t, err, "%q", text)
		assert.Equal(t, ReasonEmptyMessage, err.Reason)
	}
}

func TestValidateTurnInputMessageLength(t *testing.T) {
	assert.Nil(t, ValidateTurnInput(protocol.UserTurn{Content: strings.Repeat("a", MaxMessageChars)}))

	err := ValidateTurnInput(protocol.UserTurn{Content: strings.Repeat("a", MaxMessageChars+1)})
	require.NotNil(t, err)
	assert.Equal(t, ReasonMessageTooLong, err.Reason)

	// Multi-byte runes count once each.
	assert.Nil(t, ValidateTurnInput(protocol.UserTurn{Content: strings.Repeat("é", MaxMessageChars)}))
}

func TestValidateTurnInputImages(t *testing.T) {
	err := ValidateTurnInput(protocol.UserTurn{Content: "see photo", Images: []string{"iVBORw0KGgo="}})
	require.NotNil(t, err)
	assert.Equal(t, ReasonInvalidImageFormat, err.Reason)
	assert.Contains(t, err.Error(), "Invalid image format")

	huge := ImagePrefix + "png;base64," + strings.Repeat("A", MaxImageEncodedBytes)
	err = ValidateTurnInput(protocol.UserTurn{Content: "see photo", Images: []string{huge}})
	require.NotNil(t, err)
	assert.Equal(t, ReasonImageTooLarge, err.Reason)
}

func TestValidateTurnInputDocuments(t *testing.T) {
	err := ValidateTurnInput(protocol.UserTurn{Content: "file", Documents: []protocol.Document{{Name: "a.pdf", Kind: "pdf"}}})
	require.NotNil(t, err)
	assert.Equal(t, ReasonUnsupportedFileType, err.Reason)

	err = ValidateTurnInput(protocol.UserTurn{Content: "file", Documents: []protocol.Document{
		{Name: "big.txt", Kind: protocol.DocumentTXT, Content: strings.Repeat("x", MaxDocumentBytes+1)},
	}})
	require.NotNil(t, err)
	assert.Equal(t, ReasonFileTooLarge, err.Reason)
}

func TestValidateTurnInputReportsFirstFailureInOrder(t *testing.T) {
	err := ValidateTurnInput(protocol.UserTurn{
		Content:   "   ",
		Images:    []string{"bad"},
		Documents: []protocol.Document{{Kind: "pdf"}},
	})
	require.NotNil(t, err)
	assert.Equal(t, ReasonEmptyMessage, err.Reason)

	err = ValidateTurnInput(protocol.UserTurn{
		Content:   "ok",
		Images:    []string{"data:image/png;base64,AA==", "bad"},
		Documents: []protocol.Document{{Kind: "pdf"}},
	})
	require.NotNil(t, err)
	assert.Equal(t, ReasonInvalidImageFormat, err.Reason)
}

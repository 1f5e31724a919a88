package dialogue

import (
	"strings"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

// SubmitText is what a click on the card's Submit pill sends.
const SubmitText = "Submit the requirements"

// PillText is the user message synthesized from a pill click.
func PillText(pill string) string {
	if pill == protocol.PillSubmit {
		return SubmitText
	}
	return pill
}

func isSubmit(text string) bool {
	text = strings.TrimSpace(text)
	return strings.EqualFold(text, SubmitText) || strings.EqualFold(text, protocol.PillSubmit)
}

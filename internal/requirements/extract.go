package requirements

import (
	"strings"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

// Extract reads "Key: value" bullets from a summary card. Bullets whose key is
// not recognised are kept only in Raw.
func Extract(card protocol.Card) Set {
	set := Set{Raw: append([]string(nil), card.Summary...)}
	if set.Raw == nil {
		set.Raw = []string{}
	}

	for _, point := range card.Summary {
		key, value, ok := strings.Cut(point, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(key)
		value = strings.TrimSpace(value)

		switch {
		case strings.Contains(key, "product"):
			set.Product = value
		case strings.Contains(key, "quantity"):
			set.Quantity = value
		case strings.Contains(key, "custom"):
			set.Customization = append(set.Customization, value)
		case strings.Contains(key, "lead time"):
			set.LeadTime = value
		case strings.Contains(key, "incoterm"):
			set.Incoterms = value
		case strings.Contains(key, "shipping"):
			set.Shipping = value
		}
	}
	return set
}

// AttachmentURLs lists the card attachment URLs in order.
func AttachmentURLs(card protocol.Card) []string {
	if len(card.Attachments) == 0 {
		return nil
	}
	out := make([]string, 0, len(card.Attachments))
	for _, a := range card.Attachments {
		out = append(out, a.URL)
	}
	return out
}

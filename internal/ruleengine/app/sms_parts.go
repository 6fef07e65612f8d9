package app

import (
	"strings"
	"unicode/utf16"
)

// Segment limits per GSM 03.38 / 3GPP TS 23.038.
const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// Characters in the GSM-7 basic set. Anything outside this set (plus the
// extension table below) forces UCS-2 encoding for the whole message.
const gsm7BasicSet = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// Extension-table characters cost two septets each.
const gsm7ExtensionSet = "^{}\\[~]|€\f"

// CountSegments returns the number of SMS parts the message body occupies.
// Empty bodies still occupy one part (attachment-only messages).
func CountSegments(body string) int {
	if body == "" {
		return 1
	}

	septets, gsmEncodable := gsm7Septets(body)
	if gsmEncodable {
		if septets <= gsm7SingleLimit {
			return 1
		}
		return (septets + gsm7MultiLimit - 1) / gsm7MultiLimit
	}

	codeUnits := len(utf16.Encode([]rune(body)))
	if codeUnits <= ucs2SingleLimit {
		return 1
	}
	return (codeUnits + ucs2MultiLimit - 1) / ucs2MultiLimit
}

func gsm7Septets(body string) (int, bool) {
	septets := 0
	for _, r := range body {
		switch {
		case strings.ContainsRune(gsm7BasicSet, r):
			septets++
		case strings.ContainsRune(gsm7ExtensionSet, r):
			septets += 2
		default:
			return 0, false
		}
	}
	return septets, true
}

package utils

import (
	"strings"
	"unicode"
)

const ellipsis = "..."

const zeroWidthJoiner = '\u200d'

// SmartTruncate shortens text to at most maxLength characters, preferring to
// cut at a sentence end, then a soft break, a word boundary, a newline and
// finally anywhere outside an emoji sequence. Text that already fits is
// returned unchanged.
func SmartTruncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength <= 0 {
		return ""
	}
	if maxLength <= len(ellipsis) {
		return string(runes[:maxLength])
	}

	target := maxLength - len(ellipsis)

	if end := lastSentenceEnd(runes, target); end > 0 && preserves(end, target, 0.4) {
		return string(runes[:end])
	}

	if cut := lastSoftBreak(runes, target); cut > 0 && preserves(cut, target, 0.5) {
		return withEllipsis(runes[:cut])
	}

	if cut := lastIndexAtOrBefore(runes, ' ', target); cut > 0 && preserves(cut, target, 0.6) {
		return withEllipsis(runes[:cut])
	}

	if cut := lastIndexAtOrBefore(runes, '\n', target); cut > 0 && preserves(cut, target, 0.4) {
		return withEllipsis(runes[:cut])
	}

	cut := backOffEmoji(runes, target)
	return string(runes[:cut]) + ellipsis
}

func preserves(cut, target int, ratio float64) bool {
	return float64(cut) >= float64(target)*ratio
}

func withEllipsis(runes []rune) string {
	return strings.TrimRightFunc(string(runes), unicode.IsSpace) + ellipsis
}

func isSentenceTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isSoftBreak(r rune) bool {
	switch r {
	case ',', ';', ':', '-', '–', '—', '|', '•', '·':
		return true
	}
	return false
}

// lastSentenceEnd returns the position just past the last terminal
// punctuation that is followed by whitespace or an emoji and ends within target.
func lastSentenceEnd(runes []rune, target int) int {
	for i := target - 1; i >= 0; i-- {
		if !isSentenceTerminal(runes[i]) || i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		if unicode.IsSpace(next) || isEmoji(next) {
			return i + 1
		}
	}
	return -1
}

// lastSoftBreak returns a cut position before a punctuation break or just
// after a complete emoji.
func lastSoftBreak(runes []rune, target int) int {
	for i := target - 1; i >= 0; i-- {
		r := runes[i]
		if isSoftBreak(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i
		}
		if isEmoji(r) && !isEmojiModifier(r) {
			if i+1 < len(runes) && continuesEmoji(runes[i+1], r) {
				continue
			}
			if isRegionalIndicator(r) && regionalRunEndingAt(runes, i)%2 == 1 {
				continue
			}
			return i + 1
		}
	}
	return -1
}

func lastIndexAtOrBefore(runes []rune, target rune, limit int) int {
	for i := limit; i > 0; i-- {
		if i < len(runes) && runes[i] == target {
			return i
		}
	}
	return -1
}

// backOffEmoji moves cut left until it no longer splits an emoji sequence.
func backOffEmoji(runes []rune, cut int) int {
	for cut > 0 && cut < len(runes) {
		r, prev := runes[cut], runes[cut-1]
		switch {
		case continuesEmoji(r, prev):
			cut--
		case isRegionalIndicator(r) && isRegionalIndicator(prev) && regionalRunEndingAt(runes, cut-1)%2 == 1:
			cut--
		default:
			return cut
		}
	}
	return cut
}

func continuesEmoji(r, prev rune) bool {
	return isEmojiModifier(r) || r == zeroWidthJoiner || prev == zeroWidthJoiner
}

func regionalRunEndingAt(runes []rune, i int) int {
	n := 0
	for ; i >= 0 && isRegionalIndicator(runes[i]); i-- {
		n++
	}
	return n
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}

// isEmojiModifier reports runes that only ever attach to a preceding emoji:
// variation selectors, skin tones, the keycap mark and tag characters.
func isEmojiModifier(r rune) bool {
	switch {
	case r == 0xFE0E || r == 0xFE0F:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x20E3:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	return false
}

var emojiRanges = [][2]rune{
	{0x1F000, 0x1F02F}, // mahjong, domino
	{0x1F0A0, 0x1F0FF}, // playing cards
	{0x1F1E6, 0x1F1FF}, // regional indicators
	{0x1F300, 0x1F5FF}, // symbols and pictographs
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F680, 0x1F6FF}, // transport and map
	{0x1F700, 0x1F77F}, // alchemical
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA70, 0x1FAFF}, // symbols and pictographs extended-A
	{0x2600, 0x26FF},   // misc symbols
	{0x2700, 0x27BF},   // dingbats
	{0x2B50, 0x2B55},   // stars, circles
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

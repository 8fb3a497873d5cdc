package discord

import (
	"regexp"
	"strings"
)

var urlNoEmbedRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	matches := urlNoEmbedRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(matches)*2)

	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(text[last:start])
		last = end

		if start > 0 && text[start-1] == '<' && end < len(text) && text[end] == '>' {
			b.WriteString(text[start:end])
			continue
		}
		core, punct := trimTrailingPunctuation(text[start:end])
		if core == "" {
			b.WriteString(text[start:end])
			continue
		}
		b.WriteString("<" + core + ">" + punct)
	}
	b.WriteString(text[last:])
	return b.String()
}

func trimTrailingPunctuation(s string) (string, string) {
	idx := len(s)
	for idx > 0 && strings.ContainsRune(".,;:!?)", rune(s[idx-1])) {
		idx--
	}
	return s[:idx], s[idx:]
}

// shortAddress keeps the head and tail of long wallet addresses.
func shortAddress(addr string) string {
	if len(addr) > 16 {
		return addr[:8] + "..." + addr[len(addr)-8:]
	}
	return addr
}

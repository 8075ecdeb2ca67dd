package util

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var charReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201C", "\"",
	"\u201D", "\"", "\u2013", "-", "\u2014", "--", "\u2026", "...",
	"\u00a0", " ", "\u0096", "-", "\u0097", "--", "\u0091", "'",
	"\u0092", "'", "\u0093", "\"", "\u0094", "\"", "\u200B", "",
	"\uFEFF", "",
)

// CleanText strips a UTF-8 BOM, replaces invalid UTF-8 sequences and maps
// typographic punctuation to plain ASCII. src names the input in logs.
func CleanText(data []byte, src string) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		log.Warnf("%s: invalid UTF-8, replacing invalid chars", src)
		data = bytes.ToValidUTF8(data, []byte(string(utf8.RuneError)))
	}

	str := charReplacer.Replace(string(data))
	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 after replacements: %s", src)
	}
	return str, nil
}

// CollapseWhitespace trims s and replaces every run of whitespace with a
// single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte("It\u2019s \u201Cbroken\u201D\u2026")...)

	out, err := CleanText(in, "test")
	require.NoError(t, err)
	assert.Equal(t, `It's "broken"...`, out)
}

func TestCleanText_InvalidUTF8(t *testing.T) {
	out, err := CleanText([]byte{'o', 'k', 0xff, '!'}, "test")
	require.NoError(t, err)
	assert.Equal(t, "ok\uFFFD!", out)
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a\n\tb   c \r\n"))
	assert.Equal(t, "", CollapseWhitespace(" \n "))
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("I can't log in to the web portal. When I click login, the button just spins! Why?")
	assert.Equal(t, []string{
		"I can't log in to the web portal.",
		"When I click login, the button just spins!",
		"Why?",
	}, got)
	assert.Empty(t, SplitSentences("   "))
}

func TestCapSentences(t *testing.T) {
	text := "The app crashed. I restarted it. It crashed again. I reinstalled it. Nothing helped."
	assert.Equal(t, "The app crashed. I restarted it. It crashed again. I reinstalled it.", CapSentences(text, 4))
	assert.Equal(t, "The app crashed. I restarted it.", CapSentences("The app crashed. I restarted it.", 4))
	assert.Equal(t, text, CapSentences(text, 0))
}

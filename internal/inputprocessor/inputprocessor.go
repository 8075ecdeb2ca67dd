package inputprocessor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"triage/internal/models"
	"triage/internal/util"
)

// maxMessageBytes bounds messages read from files.
const maxMessageBytes = 64 * 1024

// Result holds a message body read from the command line.
type Result struct {
	Body        string
	ContentType string
	FilePath    *string // absolute path when the input was a file
}

// Processor prepares raw customer messages for classification.
type Processor interface {
	// Process reads input as a file path when one exists, otherwise treats
	// it as the message text itself.
	Process(ctx context.Context, input string) (Result, error)
	// Normalize cleans every field of msg.
	Normalize(msg models.CustomerMessage) (models.CustomerMessage, error)
}

// New creates a default processor implementation
func New() Processor {
	return &defaultProcessor{}
}

type defaultProcessor struct{}

func (p *defaultProcessor) Process(ctx context.Context, input string) (Result, error) {
	fi, err := os.Stat(input)
	switch {
	case err == nil && !fi.IsDir():
		if fi.Size() > maxMessageBytes {
			return Result{}, fmt.Errorf("message file '%s' is larger than %d bytes", input, maxMessageBytes)
		}
		data, readErr := os.ReadFile(input)
		if readErr != nil {
			if errors.Is(readErr, os.ErrPermission) {
				return Result{}, fmt.Errorf("permission denied reading file '%s': %w", input, readErr)
			}
			return Result{}, fmt.Errorf("failed to read file '%s': %w", input, readErr)
		}
		absPath, pathErr := filepath.Abs(input)
		if pathErr != nil {
			log.Warnf("Failed to get absolute path for '%s': %v. Using original path.", input, pathErr)
			absPath = input
		}
		log.Debugf("Input '%s' detected as a file.", input)
		return Result{Body: string(data), ContentType: http.DetectContentType(data), FilePath: &absPath}, nil
	case err != nil && !errors.Is(err, os.ErrNotExist) && !errors.Is(err, os.ErrInvalid):
		log.Debugf("Stat failed for input, treating as raw text: %v", err)
	}

	return Result{Body: input, ContentType: "text/plain; charset=utf-8"}, nil
}

func (p *defaultProcessor) Normalize(msg models.CustomerMessage) (models.CustomerMessage, error) {
	text, err := NormalizeText(msg.Message)
	if err != nil {
		return msg, err
	}
	return models.CustomerMessage{
		CustomerID: strings.TrimSpace(msg.CustomerID),
		Message:    text,
		Product:    util.CollapseWhitespace(msg.Product),
	}, nil
}

var tagPattern = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)(\s[^<>]*)?/?>`)

// isHTMLTag reports whether a tagPattern match names a known HTML element.
func isHTMLTag(tag string) bool {
	m := tagPattern.FindStringSubmatch(tag)
	return m != nil && atom.Lookup([]byte(strings.ToLower(m[1]))) != 0
}

// NormalizeText repairs encoding problems, strips HTML markup and
// collapses whitespace. Bracketed words that are not HTML elements, such
// as <Ctrl>, are kept as text.
func NormalizeText(raw string) (string, error) {
	text, err := util.CleanText([]byte(raw), "message")
	if err != nil {
		return "", &models.ValidationError{Fields: []string{"message"}, Reason: err.Error()}
	}
	if containsHTML(text) {
		escaped := tagPattern.ReplaceAllStringFunc(text, func(tag string) string {
			if isHTMLTag(tag) {
				return tag
			}
			return html.EscapeString(tag)
		})
		if extracted, err := ExtractText(escaped); err == nil {
			text = extracted
		} else {
			log.Warnf("Failed to parse HTML message, keeping raw text: %v", err)
		}
	}
	return util.CollapseWhitespace(text), nil
}

func containsHTML(text string) bool {
	for _, tag := range tagPattern.FindAllString(text, -1) {
		if isHTMLTag(tag) {
			return true
		}
	}
	return false
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
}

// ExtractText returns the visible text of an HTML fragment.
func ExtractText(fragment string) (string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(doc)
	return sb.String(), nil
}

// Ensure defaultProcessor satisfies the Processor interface.
var _ Processor = (*defaultProcessor)(nil)

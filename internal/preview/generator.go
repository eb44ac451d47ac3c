// Package preview builds short text excerpts and display categories for
// fetched or local files.
package preview

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
)

// ErrInvalidUTF8 is wrapped by PreviewError when the head is not text.
var ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

// PreviewError reports a file whose excerpt could not be produced.
type PreviewError struct {
	Name string
	Err  error
}

func (e *PreviewError) Error() string {
	return fmt.Sprintf("preview %s: %v", e.Name, e.Err)
}

func (e *PreviewError) Unwrap() error {
	return e.Err
}

// Preview is the result of a generation. Text is empty for files that have
// no textual excerpt, such as images.
type Preview struct {
	Text      string
	Kind      Kind
	Truncated bool
}

var textExtensions = map[string]bool{
	"md": true, "txt": true, "csv": true, "xml": true, "yml": true,
	"yaml": true, "json": true, "js": true, "ts": true, "html": true, "css": true,
}

// Generator produces previews. The zero value is not usable; call
// NewGenerator.
type Generator struct {
	maxChars   int
	sniffBytes int
	logger     *logging.Logger
}

// NewGenerator creates a generator that keeps at most maxChars runes of
// text. Zero uses the default.
func NewGenerator(maxChars int, logger *logging.Logger) *Generator {
	if maxChars <= 0 {
		maxChars = constants.PreviewMaxChars
	}
	return &Generator{
		maxChars:   maxChars,
		sniffBytes: constants.PreviewSniffBytes,
		logger:     logging.OrNop(logger),
	}
}

// MaxChars returns the excerpt length limit in runes.
func (g *Generator) MaxChars() int {
	return g.maxChars
}

// headLimit is the most bytes ever needed: maxChars runes of the widest
// encoding plus one byte to tell whether more follows.
func (g *Generator) headLimit() int {
	n := g.maxChars*utf8.UTFMax + 1
	if n < g.sniffBytes {
		n = g.sniffBytes
	}
	return n
}

// Generate previews data, which may be the whole file or just its head.
// A PreviewError is returned when an eligible file is not valid UTF-8.
func (g *Generator) Generate(name, mimeType string, data []byte) (Preview, error) {
	p := Preview{Kind: Classify(name, mimeType)}
	if models.IsImageType(mimeType) {
		p.Kind = KindImage
		return p, nil
	}
	if !g.eligible(name, mimeType, data) {
		return p, nil
	}
	if p.Kind == KindUnknown {
		p.Kind = KindText
	}

	text, truncated, err := g.decodeHead(data)
	if err != nil {
		g.logger.Debug().Str("file", name).Err(err).Msg("Preview skipped")
		return p, &PreviewError{Name: name, Err: err}
	}
	p.Text = text
	p.Truncated = truncated
	return p, nil
}

// FromSource previews any source, reading only the bounded head.
func (g *Generator) FromSource(src models.Source) (Preview, error) {
	if models.IsImageType(src.MimeType()) {
		return Preview{Kind: KindImage}, nil
	}
	rc, err := src.Open()
	if err != nil {
		return Preview{Kind: Classify(src.Name(), src.MimeType())}, &PreviewError{Name: src.Name(), Err: err}
	}
	defer rc.Close()

	head, err := io.ReadAll(io.LimitReader(rc, int64(g.headLimit())))
	if err != nil {
		return Preview{Kind: Classify(src.Name(), src.MimeType())}, &PreviewError{Name: src.Name(), Err: err}
	}
	return g.Generate(src.Name(), src.MimeType(), head)
}

func (g *Generator) eligible(name, mimeType string, data []byte) bool {
	t := strings.ToLower(strings.TrimSpace(mimeType))
	if strings.HasPrefix(t, "text/") || strings.Contains(t, "json") {
		return true
	}
	if textExtensions[models.Extension(name)] {
		return true
	}
	if t != "" && !strings.HasPrefix(t, models.GenericBinaryType) {
		return false
	}

	head := data
	if len(head) > g.sniffBytes {
		head = head[:g.sniffBytes]
	}
	if len(head) == 0 {
		return false
	}
	return strings.HasPrefix(mimetype.Detect(head).String(), "text/")
}

// decodeHead keeps at most maxChars runes. It reports whether anything was
// left out.
func (g *Generator) decodeHead(data []byte) (string, bool, error) {
	var b strings.Builder
	i, n := 0, 0
	for i < len(data) && n < g.maxChars {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return "", false, ErrInvalidUTF8
		}
		b.WriteRune(r)
		i += size
		n++
	}
	if i < len(data) {
		b.WriteString(constants.PreviewEllipsis)
		return b.String(), true, nil
	}
	return b.String(), false, nil
}

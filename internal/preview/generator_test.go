package preview

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dropshare/dropget/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		want     Kind
	}{
		{"report.pdf", "", KindPDF},
		{"letter.DOCX", "", KindDocument},
		{"data.csv", "text/csv", KindSpreadsheet},
		{"deck.pptx", "", KindPresentation},
		{"bundle.tar", "", KindArchive},
		{"song.flac", "", KindAudio},
		{"clip.webm", "", KindVideo},
		{"config.json", "application/json", KindJSON},
		{"README.md", "text/markdown", KindCode},
		{"photo", "image/png", KindImage},
		{"notes", "text/plain", KindText},
		{"scan", "application/pdf", KindPDF},
		{"sheet", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", KindSpreadsheet},
		{"blob", "application/x-zip-compressed", KindArchive},
		{"payload", "application/ld+json", KindJSON},
		{"mystery", "application/octet-stream", KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.name, tt.mimeType); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.name, tt.mimeType, got, tt.want)
		}
	}
}

func TestGenerateShortText(t *testing.T) {
	g := NewGenerator(0, nil)
	p, err := g.Generate("notes.txt", "text/plain", []byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Text != "hello world" || p.Truncated {
		t.Errorf("got %+v", p)
	}
	if p.Kind != KindText {
		t.Errorf("Kind = %s, want text", p.Kind)
	}
}

func TestGenerateTruncatesByRunes(t *testing.T) {
	g := NewGenerator(500, nil)

	exact := strings.Repeat("é", 500)
	p, err := g.Generate("a.txt", "text/plain", []byte(exact))
	if err != nil {
		t.Fatal(err)
	}
	if p.Truncated || p.Text != exact {
		t.Errorf("exactly 500 runes must not be truncated")
	}

	long := strings.Repeat("日本", 400)
	p, err = g.Generate("b.txt", "text/plain", []byte(long))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Truncated || !strings.HasSuffix(p.Text, "...") {
		t.Errorf("long text should end with ellipsis")
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(p.Text, "...")); n != 500 {
		t.Errorf("kept %d runes, want 500", n)
	}
}

func TestGenerateEligibility(t *testing.T) {
	g := NewGenerator(0, nil)
	tests := []struct {
		name     string
		mimeType string
		data     string
		wantText bool
	}{
		{"styles.css", "application/octet-stream", "body{}", true},
		{"data.bin", "application/json; charset=utf-8", `{"a":1}`, true},
		{"unknown", "application/octet-stream", "plain words in a file\n", true},
		{"unknown", "", "plain words in a file\n", true},
		{"archive.bin", "application/octet-stream", "PK\x03\x04\x14\x00\x00\x00", false},
		{"doc.pdf", "application/pdf", "%PDF-1.7", false},
	}
	for _, tt := range tests {
		p, err := g.Generate(tt.name, tt.mimeType, []byte(tt.data))
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got := p.Text != ""; got != tt.wantText {
			t.Errorf("%s (%s): text preview = %v, want %v", tt.name, tt.mimeType, got, tt.wantText)
		}
	}
}

func TestGenerateImageHasNoText(t *testing.T) {
	g := NewGenerator(0, nil)
	p, err := g.Generate("cat.txt", "image/png", []byte("not really"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != KindImage || p.Text != "" {
		t.Errorf("image preview = %+v", p)
	}
}

func TestGenerateInvalidUTF8(t *testing.T) {
	g := NewGenerator(0, nil)
	_, err := g.Generate("broken.txt", "text/plain", []byte{'o', 'k', 0xff, 0xfe})

	var pe *PreviewError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreviewError, got %v", err)
	}
	if pe.Name != "broken.txt" || !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestFromSourceReadsBoundedHead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.md")
	content := strings.Repeat("x", 1<<20)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := models.NewLocalSource(path)
	if err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(10, nil)
	p, err := g.FromSource(src)
	if err != nil {
		t.Fatal(err)
	}
	if p.Text != "xxxxxxxxxx..." {
		t.Errorf("Text = %q", p.Text)
	}
	if p.Kind != KindCode {
		t.Errorf("Kind = %s, want code", p.Kind)
	}
}

func TestFromRemoteSource(t *testing.T) {
	src := &models.RemoteSource{
		Descriptor: models.FileDescriptor{Name: "readme.txt"},
		Data:       []byte("remote text"),
		Resolved:   "text/plain",
	}
	p, err := NewGenerator(0, nil).FromSource(src)
	if err != nil || p.Text != "remote text" {
		t.Errorf("FromSource = %+v, %v", p, err)
	}
}

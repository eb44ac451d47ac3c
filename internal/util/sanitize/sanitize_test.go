package sanitize

import (
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "photo.jpg", "photo.jpg"},
		{"unix traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\report.pdf`, "report.pdf"},
		{"nested folder", "camera/2024/a.jpg", "a.jpg"},
		{"zero-width space", "pho\u200Bto.jpg", "photo.jpg"},
		{"BOM", "\uFEFFnotes.txt", "notes.txt"},
		{"control chars", "bad\x00na\x1bme.txt", "badname.txt"},
		{"reserved chars", `what?<is>"this".txt`, "what__is__this_.txt"},
		{"collapse whitespace", "  my   holiday\tpic.png ", "my holiday pic.png"},
		{"trailing dots", "file...", "file"},
		{"empty", "", "file"},
		{"dot dot", "..", "file"},
		{"only slashes", "///", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.input); got != tt.expected {
				t.Errorf("FileName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestField(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"  hello  ", "hello"},
		{"\u200Bhidden\u200D", "hidden"},
	}

	for _, tt := range tests {
		if got := Field(tt.input); got != tt.expected {
			t.Errorf("Field(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

package preview

import (
	"strings"

	"github.com/dropshare/dropget/internal/models"
)

// Kind is the display category of a file.
type Kind string

const (
	KindPDF          Kind = "pdf"
	KindDocument     Kind = "document"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindArchive      Kind = "archive"
	KindImage        Kind = "image"
	KindAudio        Kind = "audio"
	KindVideo        Kind = "video"
	KindCode         Kind = "code"
	KindJSON         Kind = "json"
	KindText         Kind = "text"
	KindUnknown      Kind = "unknown"
)

var extensionKinds = map[string]Kind{
	"pdf":  KindPDF,
	"doc":  KindDocument,
	"docx": KindDocument,
	"xls":  KindSpreadsheet,
	"xlsx": KindSpreadsheet,
	"csv":  KindSpreadsheet,
	"ppt":  KindPresentation,
	"pptx": KindPresentation,
	"zip":  KindArchive,
	"rar":  KindArchive,
	"7z":   KindArchive,
	"tar":  KindArchive,
	"gz":   KindArchive,
	"mp3":  KindAudio,
	"wav":  KindAudio,
	"ogg":  KindAudio,
	"flac": KindAudio,
	"mp4":  KindVideo,
	"mov":  KindVideo,
	"avi":  KindVideo,
	"mkv":  KindVideo,
	"webm": KindVideo,
	"json": KindJSON,
	"js":   KindCode,
	"ts":   KindCode,
	"jsx":  KindCode,
	"tsx":  KindCode,
	"html": KindCode,
	"css":  KindCode,
	"xml":  KindCode,
	"md":   KindCode,
	"yml":  KindCode,
	"yaml": KindCode,
}

// Classify picks the display category of a file. The extension wins over
// the MIME type.
func Classify(name, mimeType string) Kind {
	if k, ok := extensionKinds[models.Extension(name)]; ok {
		return k
	}

	t := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(t, "image/"):
		return KindImage
	case strings.HasPrefix(t, "text/"):
		return KindText
	case strings.HasPrefix(t, "audio/"):
		return KindAudio
	case strings.HasPrefix(t, "video/"):
		return KindVideo
	case strings.Contains(t, "pdf"):
		return KindPDF
	case strings.Contains(t, "spreadsheet"), strings.Contains(t, "csv"):
		return KindSpreadsheet
	case strings.Contains(t, "archive"), strings.Contains(t, "zip"):
		return KindArchive
	case strings.Contains(t, "json"):
		return KindJSON
	}
	return KindUnknown
}

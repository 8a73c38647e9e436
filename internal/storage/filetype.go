package storage

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/noteduco342/chatsync/internal/models"
)

// Classification is what the content sniffer found out about an upload.
type Classification struct {
	FileType  models.FileType
	MIME      string
	Extension string
}

// processable lists the image formats the image pipeline can decode.
var processable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ClassifyFile sniffs the content; the client supplied name is only used as a
// fallback for the extension.
func ClassifyFile(data []byte, name string) Classification {
	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	ext := mt.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(name))
	}

	c := Classification{MIME: mime, Extension: ext, FileType: models.FileDocument}
	switch {
	case mt.Is("application/pdf"):
		c.FileType = models.FilePDF
	case strings.HasPrefix(mime, "image/"):
		c.FileType = models.FileImage
	case strings.HasPrefix(mime, "video/"):
		c.FileType = models.FileVideo
	case strings.HasPrefix(mime, "audio/"):
		c.FileType = models.FileAudio
	}
	return c
}

// Processable reports whether ProcessImage can re-encode the upload.
func (c Classification) Processable() bool {
	return c.FileType == models.FileImage && processable[c.MIME]
}

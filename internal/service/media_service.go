package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/storage"
	"github.com/rs/zerolog/log"
)

var ErrStorageNotConfigured = errors.New("storage not configured")

const AttachmentPrefix = "attachments"

// ObjectStore is the part of the media store uploads need.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectStat, error)
	DeleteObject(ctx context.Context, key string) error
}

type MediaService struct {
	store         ObjectStore
	publicBaseURL string
	maxBytes      int64
}

func NewMediaService(store ObjectStore, publicBaseURL string, maxBytes int64) *MediaService {
	if maxBytes <= 0 {
		maxBytes = 25 * 1024 * 1024
	}
	return &MediaService{
		store:         store,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		maxBytes:      maxBytes,
	}
}

type UploadResult struct {
	URL      string          `json:"url"`
	Name     string          `json:"name"`
	FileType models.FileType `json:"file_type"`
	Size     int64           `json:"size"`
}

// Upload stores an attachment and returns the URL messages refer to it by.
// Images are re-encoded so their metadata is stripped and their size bounded.
func (s *MediaService) Upload(ctx context.Context, uploaderID uint, name string, r io.Reader) (*UploadResult, error) {
	if s.store == nil {
		return nil, apperr.Upstream("upload", ErrStorageNotConfigured)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, apperr.InvalidArgument("upload", "read upload: %v", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.InvalidArgument("upload", "file exceeds %d bytes", s.maxBytes)
	}
	if len(data) == 0 {
		return nil, apperr.InvalidArgument("upload", "file is empty")
	}

	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		name = ""
	}

	class := storage.ClassifyFile(data, name)
	contentType := class.MIME
	ext := class.Extension
	if class.Processable() {
		out, ct, _, err := storage.ProcessImage(data, class.MIME, storage.DefaultAttachmentOptions())
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return nil, apperr.InvalidArgument("upload", "image too large")
		case err != nil:
			return nil, apperr.InvalidArgument("upload", "invalid image: %v", err)
		}
		data, contentType, ext = out, ct, ".jpg"
	}

	key := fmt.Sprintf("%s/%d/%s%s", AttachmentPrefix, uploaderID, uuid.NewString(), ext)
	if _, err := s.store.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to store attachment")
		return nil, apperr.Upstream("upload", err)
	}

	if name == "" {
		name = filepath.Base(key)
	}
	return &UploadResult{
		URL:      s.publicBaseURL + "/" + key,
		Name:     name,
		FileType: class.FileType,
		Size:     int64(len(data)),
	}, nil
}

// Remove deletes an object previously returned by Upload for the same owner.
// URLs that point elsewhere are ignored.
func (s *MediaService) Remove(ctx context.Context, ownerID uint, url string) error {
	if s.store == nil || url == "" {
		return nil
	}
	prefix := fmt.Sprintf("%s/%s/%d/", s.publicBaseURL, AttachmentPrefix, ownerID)
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	key, err := storage.SafeJoinKey(AttachmentPrefix, strings.TrimPrefix(url, s.publicBaseURL+"/"+AttachmentPrefix))
	if err != nil {
		return apperr.InvalidArgument("remove", "invalid object url")
	}
	if err := s.store.DeleteObject(ctx, key); err != nil {
		return apperr.Upstream("remove", err)
	}
	return nil
}

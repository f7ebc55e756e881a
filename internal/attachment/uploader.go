// Package attachment stores voice memos and invoice documents in object storage.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/google/uuid"
)

type Kind string

const (
	KindVoiceNote Kind = "voice-notes"
	KindInvoice   Kind = "invoices"
)

type File struct {
	Kind        Kind
	Filename    string
	ContentType string
	Data        []byte
}

// Uploader returns the public URL of the stored file.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func (c Config) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// New returns a Cloudinary uploader, or one that always fails with
// ErrNotConfigured so callers record a warning.
func New(cfg Config) (Uploader, error) {
	if !cfg.Configured() {
		return unconfigured{}, nil
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to init cloudinary: %w", err)
	}
	return &cloudinaryUploader{cld: cld, folder: cfg.Folder}, nil
}

type cloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func (u *cloudinaryUploader) Upload(ctx context.Context, f File) (string, error) {
	if len(f.Data) == 0 {
		return "", apperr.Validation("empty attachment")
	}
	params := uploader.UploadParams{
		Folder:       path.Join(u.folder, string(f.Kind)),
		PublicID:     publicID(f.Filename),
		ResourceType: resourceType(f),
	}
	resp, err := u.cld.Upload.Upload(ctx, bytes.NewReader(f.Data), params)
	if err != nil {
		return "", apperr.Upstream("cloudinary", err)
	}
	if resp.Error.Message != "" {
		return "", apperr.Upstream("cloudinary", errors.New(resp.Error.Message))
	}
	return resp.SecureURL, nil
}

type unconfigured struct{}

func (unconfigured) Upload(context.Context, File) (string, error) {
	return "", apperr.NotConfigured("cloudinary")
}

// resourceType keeps audio out of the image pipeline; Cloudinary files audio under "video".
func resourceType(f File) string {
	switch {
	case strings.HasPrefix(f.ContentType, "audio/"), strings.HasPrefix(f.ContentType, "video/"):
		return "video"
	case strings.HasPrefix(f.ContentType, "image/"):
		return "image"
	case f.ContentType == "application/pdf":
		return "image"
	}
	return "raw"
}

func publicID(filename string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	id := uuid.New().String()[:8]
	if b.Len() == 0 {
		return id
	}
	return b.String() + "-" + id
}

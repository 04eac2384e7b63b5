package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/retrofails/backend/internal/apperrors"
)

// MaxImageBytes caps the decoded size of an uploaded image.
const MaxImageBytes = 5 * 1024 * 1024

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// DecodedImage is an uploaded image after validation.
type DecodedImage struct {
	Data        []byte
	ContentType string
	Name        string
}

// DecodeImage accepts a data URL ("data:image/png;base64,...") or bare base64.
// The content type is sniffed from the bytes rather than trusted from the prefix.
func DecodeImage(encoded string) (*DecodedImage, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, apperrors.Validation("image is empty")
	}
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.Index(encoded, ",")
		if comma < 0 || !strings.Contains(encoded[:comma], ";base64") {
			return nil, apperrors.Validation("image must be a base64 data URL")
		}
		encoded = encoded[comma+1:]
	}

	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxImageBytes+3 {
		return nil, apperrors.PayloadTooLarge(fmt.Sprintf("image exceeds %d MB", MaxImageBytes/(1024*1024)))
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Validation("image is not valid base64")
	}
	if len(data) > MaxImageBytes {
		return nil, apperrors.PayloadTooLarge(fmt.Sprintf("image exceeds %d MB", MaxImageBytes/(1024*1024)))
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported image type %s", contentType))
	}

	return &DecodedImage{
		Data:        data,
		ContentType: contentType,
		Name:        uuid.NewString() + ext,
	}, nil
}

// Save uploads the image to the storage bucket and returns its public URL.
func (hc *HostedClient) Save(ctx context.Context, accessToken string, img *DecodedImage) (string, error) {
	if hc.bucket == "" {
		return "", apperrors.Internal("Image storage is not configured", nil)
	}
	err := hc.do(ctx, hostedRequest{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + hc.bucket + "/" + img.Name,
		token:       accessToken,
		rawBody:     img.Data,
		contentType: img.ContentType,
	}, nil)
	if err != nil {
		return "", err
	}
	return hc.baseURL + "/storage/v1/object/public/" + hc.bucket + "/" + img.Name, nil
}

// DiskImageStore writes images under a directory served at urlPrefix.
type DiskImageStore struct {
	dir       string
	urlPrefix string
}

func NewDiskImageStore(dir, urlPrefix string) *DiskImageStore {
	return &DiskImageStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (ds *DiskImageStore) Dir() string {
	return ds.dir
}

func (ds *DiskImageStore) Save(ctx context.Context, _ string, img *DecodedImage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(ds.dir, 0755); err != nil {
		return "", apperrors.Internal("Failed to prepare image directory", err)
	}
	path := filepath.Join(ds.dir, filepath.Base(img.Name))
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return "", apperrors.Internal("Failed to store image", err)
	}
	return ds.urlPrefix + "/" + filepath.Base(img.Name), nil
}

// Package storage persists uploaded images and hands back the public
// reference that gets stored on users and restaurants.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"restaurant-review-api/apperr"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the upload limit in bytes.
const MaxImageSize = 5_000_000

const (
	FolderRestaurants = "restaurants"
	FolderProfiles    = "profiles"
)

type ImageStore interface {
	// Save validates and stores the upload, returning its public reference.
	Save(ctx context.Context, folder string, file *multipart.FileHeader) (string, error)
	// Remove deletes a previously saved image. Unknown references are ignored.
	Remove(ctx context.Context, ref string) error
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

const formatMessage = "Only .png, .jpg and .jpeg format allowed!"

// readImage loads an upload and checks both its extension and its sniffed
// content type. The returned extension is the canonical one for the content.
func readImage(file *multipart.FileHeader) ([]byte, string, error) {
	if file == nil {
		return nil, "", apperr.Validation("No file uploaded")
	}
	if file.Size > MaxImageSize {
		return nil, "", apperr.Validation("Image must be 5MB or smaller")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		return nil, "", apperr.Validation(formatMessage)
	}

	f, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, "", apperr.Validation("Image must be 5MB or smaller")
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/jpeg"):
		return data, ".jpg", nil
	case mt.Is("image/png"):
		return data, ".png", nil
	default:
		return nil, "", apperr.Validation(formatMessage)
	}
}

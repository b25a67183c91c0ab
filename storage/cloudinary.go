package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryStore keeps images in a Cloudinary account when CLOUDINARY_URL is set.
type CloudinaryStore struct {
	cld        *cloudinary.Cloudinary
	rootFolder string
}

func NewCloudinaryStore(cloudinaryURL, rootFolder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, rootFolder: rootFolder}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, folder string, file *multipart.FileHeader) (string, error) {
	data, _, err := readImage(file)
	if err != nil {
		return "", err
	}
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID: uuid.NewString(),
		Folder:   path.Join(s.rootFolder, folder),
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload image: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) Remove(ctx context.Context, ref string) error {
	publicID, err := publicIDFromURL(ref)
	if err != nil {
		return nil
	}
	if _, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("destroy image: %w", err)
	}
	return nil
}

// publicIDFromURL extracts "folder/name" from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/reviews/restaurants/abc.jpg
func publicIDFromURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", errors.New("not a cloudinary upload url")
	}
	segments := strings.Split(rest, "/")
	if len(segments) > 1 && isVersion(segments[0]) {
		segments = segments[1:]
	}
	id := strings.Join(segments, "/")
	return strings.TrimSuffix(id, path.Ext(id)), nil
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

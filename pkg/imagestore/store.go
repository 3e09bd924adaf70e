// Package imagestore keeps uploaded images on local disk next to a resized
// thumbnail and maps them to the public /uploads URL space.
package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"recipecost/pkg/apperr"
)

// PublicPrefix is the URL prefix the upload directory is served under.
const PublicPrefix = "/uploads"

const thumbSuffix = "_thumb"

// accepted maps sniffed content types to the extension files are stored with.
var accepted = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Saved describes a stored image by its public URLs.
type Saved struct {
	URL      string
	ThumbURL string
}

type Store struct {
	base       string
	maxBytes   int64
	thumbWidth int
}

func New(base string, maxBytes int64, thumbWidth int) *Store {
	return &Store{base: base, maxBytes: maxBytes, thumbWidth: thumbWidth}
}

// Base returns the directory served under PublicPrefix.
func (s *Store) Base() string { return s.base }

// MaxBytes is the largest accepted upload.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Ensure creates the base directory if needed.
func (s *Store) Ensure() error {
	return os.MkdirAll(s.base, 0o755)
}

// Save stores an uploaded image under <base>/<kind>/<uuid>.<ext> together
// with its thumbnail. The content type is sniffed, never trusted from the
// client.
func (s *Store) Save(kind string, fh *multipart.FileHeader) (Saved, error) {
	if fh == nil {
		return Saved{}, apperr.Validation("O campo 'image' é obrigatório.")
	}
	if fh.Size > s.maxBytes {
		return Saved{}, apperr.Validation(fmt.Sprintf("A imagem excede o limite de %d MB.", s.maxBytes/(1024*1024)))
	}
	src, err := fh.Open()
	if err != nil {
		return Saved{}, apperr.Internal("falha ao ler imagem", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	ext, ok := accepted[http.DetectContentType(head[:n])]
	if !ok {
		return Saved{}, apperr.Validation("Formato de imagem não suportado. Use JPEG, PNG ou GIF.")
	}

	dir := filepath.Join(s.base, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Saved{}, apperr.Internal("falha ao salvar imagem", err)
	}
	name := uuid.NewString() + ext
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return Saved{}, apperr.Internal("falha ao salvar imagem", err)
	}
	written, err := io.Copy(out, io.MultiReader(bytes.NewReader(head[:n]), io.LimitReader(src, s.maxBytes)))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > s.maxBytes {
		err = errTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		if errors.Is(err, errTooLarge) {
			return Saved{}, apperr.Validation(fmt.Sprintf("A imagem excede o limite de %d MB.", s.maxBytes/(1024*1024)))
		}
		return Saved{}, apperr.Internal("falha ao salvar imagem", err)
	}

	thumb, err := s.Thumbnail(dst)
	if err != nil {
		_ = os.Remove(dst)
		return Saved{}, apperr.Validation("Imagem inválida.")
	}
	return Saved{URL: s.publicURL(dst), ThumbURL: s.publicURL(thumb)}, nil
}

var errTooLarge = errors.New("image too large")

// Thumbnail writes <name>_thumb.jpg next to src, scaled to fit the configured
// width, and returns its path.
func (s *Store) Thumbnail(src string) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", src, err)
	}
	img = imaging.Fit(img, s.thumbWidth, s.thumbWidth, imaging.Lanczos)
	dst := ThumbPath(src)
	if err := imaging.Save(img, dst, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("save thumbnail %s: %w", dst, err)
	}
	return dst, nil
}

// Remove deletes the image behind a public URL and its thumbnail. Unknown or
// foreign URLs are ignored.
func (s *Store) Remove(publicURL string) error {
	p, ok := s.localPath(publicURL)
	if !ok {
		return nil
	}
	var errs []error
	for _, f := range []string{p, ThumbPath(p)} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backfill generates thumbnails for every stored image that lacks one and
// returns how many were written.
func (s *Store) Backfill() (int, error) {
	var todo []string
	err := filepath.WalkDir(s.base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsSupported(d.Name()) {
			return nil
		}
		if _, err := os.Stat(ThumbPath(p)); errors.Is(err, fs.ErrNotExist) {
			todo = append(todo, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	sort.Strings(todo)

	var errs []error
	made := 0
	for _, p := range todo {
		if _, err := s.Thumbnail(p); err != nil {
			errs = append(errs, err)
			continue
		}
		made++
	}
	return made, errors.Join(errs...)
}

func (s *Store) publicURL(p string) string {
	rel, err := filepath.Rel(s.base, p)
	if err != nil {
		return ""
	}
	return path.Join(PublicPrefix, filepath.ToSlash(rel))
}

// localPath maps a public URL back into the base directory, refusing
// anything that would escape it.
func (s *Store) localPath(publicURL string) (string, bool) {
	if !strings.HasPrefix(publicURL, PublicPrefix+"/") {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(publicURL, PublicPrefix+"/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", false
	}
	return filepath.Join(s.base, filepath.FromSlash(rel)), true
}

// ThumbPath returns the thumbnail path belonging to an image path.
func ThumbPath(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + thumbSuffix + ".jpg"
}

// IsSupported reports whether name is an original image the store handles.
// Thumbnails are excluded so they are never thumbnailed again.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), thumbSuffix) {
		return false
	}
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

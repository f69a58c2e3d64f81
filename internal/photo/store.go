package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxBytes     = 5 << 20
	DefaultMaxDimension = 1024
	jpegQuality         = 85
)

var (
	ErrNotFound        = errors.New("photo not found")
	ErrUnsupportedType = errors.New("unsupported photo type")
	ErrTooLarge        = errors.New("photo too large")
	ErrInvalidID       = errors.New("invalid student id")
)

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Store keeps one JPEG per student under <dir>/<student-id>.jpg.
type Store struct {
	dir          string
	maxBytes     int64
	maxDimension int
	logger       *slog.Logger
}

func NewStore(dir string, maxBytes int64, maxDimension int, logger *slog.Logger) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, maxDimension: maxDimension, logger: logger}, nil
}

func (s *Store) path(studentID string) (string, error) {
	if err := uuid.Validate(studentID); err != nil {
		return "", ErrInvalidID
	}
	return filepath.Join(s.dir, studentID+".jpg"), nil
}

func (s *Store) Exists(ctx context.Context, studentID string) (bool, error) {
	p, err := s.path(studentID)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Upload replaces the student's photo. The image is decoded, bounded to the
// maximum dimension and stored re-encoded as JPEG.
func (s *Store) Upload(ctx context.Context, studentID string, r io.Reader) error {
	p, err := s.path(studentID)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return ErrTooLarge
	}
	if !acceptedTypes[http.DetectContentType(data)] {
		return ErrUnsupportedType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	b := img.Bounds()
	if b.Dx() > s.maxDimension || b.Dy() > s.maxDimension {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	tmp, err := os.CreateTemp(s.dir, studentID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp photo: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("store photo: %w", err)
	}

	s.logger.InfoContext(ctx, "student photo stored", "student_id", studentID, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return nil
}

// Delete removes the photo; a missing photo is not an error.
func (s *Store) Delete(ctx context.Context, studentID string) error {
	p, err := s.path(studentID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, studentID string) (*os.File, error) {
	p, err := s.path(studentID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	return f, nil
}

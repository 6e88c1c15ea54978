package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// MaxSize is the largest lab slip accepted, in bytes.
const MaxSize int64 = 5 << 20

var (
	ErrEmpty           = errors.New("file is empty")
	ErrTooLarge        = errors.New("file exceeds the 5MB limit")
	ErrUnsupportedType = errors.New("only JPEG, PNG and PDF files are accepted")
)

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

var uploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "medrecords",
	Subsystem: "evidence",
	Name:      "uploads_rejected_total",
	Help:      "Lab slip uploads rejected before reaching object storage.",
}, []string{"reason"})

// Validate checks the declared content type and size of a lab slip.
func Validate(contentType string, size int64) error {
	if _, ok := allowedTypes[normaliseType(contentType)]; !ok {
		uploadsRejected.WithLabelValues("type").Inc()
		return ErrUnsupportedType
	}
	if size <= 0 {
		uploadsRejected.WithLabelValues("empty").Inc()
		return ErrEmpty
	}
	if size > MaxSize {
		uploadsRejected.WithLabelValues("size").Inc()
		return ErrTooLarge
	}
	return nil
}

func normaliseType(contentType string) string {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return media
}

// Uploader stores objects. *s3.Client satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType, sha256 string) error
	PublicURL(bucket, key string) string
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Object describes a stored lab slip.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// Config controls where slips are stored and how they are linked.
type Config struct {
	Bucket string
	// PresignTTL switches URLs from public links to presigned GETs when set.
	PresignTTL time.Duration
}

// Store uploads lab slips.
type Store struct {
	uploader Uploader
	cfg      Config
}

// NewStore constructs a Store.
func NewStore(uploader Uploader, cfg Config) (*Store, error) {
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &Store{uploader: uploader, cfg: cfg}, nil
}

// Upload validates and stores a slip under lab-slips/{patientID}/{uuid}{ext}. size is
// the size the client declared; the body is also capped at MaxSize while reading.
func (s *Store) Upload(ctx context.Context, patientID uuid.UUID, filename, contentType string, size int64, body io.Reader) (Object, error) {
	if err := Validate(contentType, size); err != nil {
		return Object{}, err
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxSize+1))
	if err != nil {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	if err := Validate(contentType, int64(len(data))); err != nil {
		return Object{}, err
	}

	media := normaliseType(contentType)
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("lab-slips/%s/%s%s", patientID, uuid.New(), extension(filename, media))

	if err := s.uploader.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), media, digest); err != nil {
		return Object{}, fmt.Errorf("store lab slip: %w", err)
	}

	url, err := s.URL(ctx, key)
	if err != nil {
		return Object{}, err
	}

	zerolog.Ctx(ctx).Info().Str("key", key).Int("bytes", len(data)).Msg("lab slip stored")
	return Object{Key: key, URL: url, ContentType: media, Size: int64(len(data)), SHA256: digest}, nil
}

// URL returns the link clients use to fetch key.
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	if s.cfg.PresignTTL > 0 {
		return s.uploader.PresignGet(ctx, s.cfg.Bucket, key, s.cfg.PresignTTL)
	}
	return s.uploader.PublicURL(s.cfg.Bucket, key), nil
}

func extension(filename, media string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".pdf":
		return ext
	default:
		return allowedTypes[media]
	}
}

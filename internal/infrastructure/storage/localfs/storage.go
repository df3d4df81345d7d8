package localfs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

// Storage keeps blobs on the local filesystem. Temporary URLs point at the
// API's blob endpoint and carry an HMAC-SHA256 signature over key and expiry.
type Storage struct {
	basePath   string
	publicURL  string
	signingKey []byte
	now        func() time.Time
}

func New(basePath, publicURL, signingKey string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if strings.TrimSpace(signingKey) == "" {
		return nil, errors.New("localfs: signing key is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{
		basePath:   basePath,
		publicURL:  strings.TrimRight(publicURL, "/"),
		signingKey: []byte(signingKey),
		now:        time.Now,
	}, nil
}

// Save writes data to a temporary file and renames it into place so a failed
// upload never leaves a partial blob under key.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) (domain.BlobObject, error) {
	target, err := s.resolve(key)
	if err != nil {
		return domain.BlobObject{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return domain.BlobObject{}, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return domain.BlobObject{}, fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), data)
	if err != nil {
		tmp.Close()
		return domain.BlobObject{}, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.BlobObject{}, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return domain.BlobObject{}, fmt.Errorf("commit file: %w", err)
	}

	return domain.BlobObject{
		Key:    key,
		Size:   size,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "open blob", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete is idempotent: a missing blob is not an error.
func (s *Storage) Delete(_ context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Storage) TemporaryURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(key, expires))
	return s.publicURL + "/v1/blobs/" + escapeKey(key) + "?" + q.Encode(), nil
}

// Verify checks a signature produced by TemporaryURL.
func (s *Storage) Verify(key, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return domain.WrapError(domain.ErrUnauthorized, "verify blob url", errors.New("malformed expiry"))
	}
	if s.now().Unix() > exp {
		return domain.WrapError(domain.ErrUnauthorized, "verify blob url", errors.New("link expired"))
	}
	want := s.sign(key, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return domain.WrapError(domain.ErrUnauthorized, "verify blob url", errors.New("bad signature"))
	}
	return nil
}

func (s *Storage) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Storage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean != "/"+key {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

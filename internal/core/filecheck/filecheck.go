// Package filecheck validates uploaded files by extension, size and leading bytes.
package filecheck

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

// HeaderSize is how many leading bytes Validate needs to see.
const HeaderSize = 8

type Policy struct {
	AllowedExtensions []string
	MaxSizeBytes      int64
}

func DefaultPolicy() Policy {
	return Policy{
		AllowedExtensions: []string{"pdf", "jpg", "jpeg", "png", "tiff", "tif"},
		MaxSizeBytes:      50 << 20,
	}
}

var (
	ErrExtensionNotAllowed = errors.New("file extension is not allowed")
	ErrTooLarge            = errors.New("file exceeds maximum size")
	ErrEmpty               = errors.New("file is empty")
	ErrSignatureMismatch   = errors.New("file content does not match its extension")
)

var (
	sigPDF     = []byte("%PDF")
	sigJPEG    = []byte{0xFF, 0xD8, 0xFF}
	sigPNG     = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	sigTIFFLE  = []byte{'I', 'I', 0x2A, 0x00}
	sigTIFFBE  = []byte{'M', 'M', 0x00, 0x2A}
	signatures = map[string][][]byte{
		"pdf":  {sigPDF},
		"jpg":  {sigJPEG},
		"jpeg": {sigJPEG},
		"png":  {sigPNG},
		"tif":  {sigTIFFLE, sigTIFFBE},
		"tiff": {sigTIFFLE, sigTIFFBE},
	}
)

// Validate checks a file before it is stored. Errors are ErrInvalidInput kinds.
func Validate(header []byte, filename string, size int64, policy Policy) error {
	const op = "filecheck.validate"

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !allowed(ext, policy.AllowedExtensions) {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext))
	}
	if policy.MaxSizeBytes > 0 && size > policy.MaxSizeBytes {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, size, policy.MaxSizeBytes))
	}
	if size == 0 || len(header) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, op, ErrEmpty)
	}
	sigs, known := signatures[ext]
	if !known {
		// Allowed by policy but no signature on record.
		return nil
	}
	for _, sig := range sigs {
		if bytes.HasPrefix(header, sig) {
			return nil
		}
	}
	return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%w: .%s", ErrSignatureMismatch, ext))
}

// Peek returns the leading bytes of r together with a reader that still yields the whole stream.
func Peek(r io.Reader) ([]byte, io.Reader, error) {
	br := bufio.NewReaderSize(r, 64)
	header, err := br.Peek(HeaderSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	return append([]byte(nil), header...), br, nil
}

func allowed(ext string, list []string) bool {
	if ext == "" {
		return false
	}
	for _, candidate := range list {
		if strings.EqualFold(strings.TrimPrefix(candidate, "."), ext) {
			return true
		}
	}
	return false
}

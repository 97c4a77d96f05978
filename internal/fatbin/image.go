// Package fatbin loads the binary module images handed to the driver.
package fatbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fxnlabs/gpu-smoke/kernels"
	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

// Kind identifies the payload format of an image.
type Kind int

const (
	KindUnknown Kind = iota
	KindFatbin
	KindCubin
	KindPTX
)

func (k Kind) String() string {
	switch k {
	case KindFatbin:
		return "fatbin"
	case KindCubin:
		return "cubin"
	case KindPTX:
		return "ptx"
	default:
		return "unknown"
	}
}

// EmbeddedName is the Resolve path that selects the embedded PTX kernel.
const EmbeddedName = "embedded"

const fatbinMagic = 0xBA55ED50

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
	elfMagic  = []byte{0x7F, 'E', 'L', 'F'}
)

var (
	ErrEmptyImage       = errors.New("fatbin: image is empty")
	ErrUnknownFormat    = errors.New("fatbin: unrecognized image format")
	ErrChecksumMismatch = errors.New("fatbin: checksum mismatch")
)

// Image is a module payload ready for cuModuleLoadData.
type Image struct {
	Name     string
	Kind     Kind
	Data     []byte
	Checksum uint64
}

// Load reads a module image from path. zstd and lz4 framed files are
// decompressed transparently.
func Load(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module image: %w", err)
	}
	img, err := Parse(filepath.Base(path), raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Parse builds an Image from an in-memory payload.
func Parse(name string, raw []byte) (*Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}

	data, err := decompress(raw)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	kind := Sniff(data)
	if kind == KindUnknown {
		return nil, ErrUnknownFormat
	}

	return &Image{
		Name:     name,
		Kind:     kind,
		Data:     data,
		Checksum: xxh3.Hash(data),
	}, nil
}

// Embedded returns the PTX kernel compiled into the binary.
func Embedded() *Image {
	return &Image{
		Name:     EmbeddedName,
		Kind:     KindPTX,
		Data:     kernels.MatMulPTX,
		Checksum: xxh3.Hash(kernels.MatMulPTX),
	}
}

// Resolve maps a configured module path to an image. An empty path or
// "embedded" selects the embedded kernel.
func Resolve(path string) (*Image, error) {
	if path == "" || path == EmbeddedName {
		return Embedded(), nil
	}
	return Load(path)
}

// Verify checks the image against an expected xxh3 checksum. Zero disables
// the check.
func (img *Image) Verify(expected uint64) error {
	if expected == 0 || expected == img.Checksum {
		return nil
	}
	return fmt.Errorf("%w: %s has %s, expected %s", ErrChecksumMismatch,
		img.Name, FormatChecksum(img.Checksum), FormatChecksum(expected))
}

// FormatChecksum renders a checksum the way it is written in config files.
func FormatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// ParseChecksum is the inverse of FormatChecksum. An empty string yields 0.
func ParseChecksum(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	sum, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid module checksum %q: %w", s, err)
	}
	return sum, nil
}

// Sniff identifies the format of an uncompressed payload.
func Sniff(data []byte) Kind {
	switch {
	case len(data) >= 4 && binary.LittleEndian.Uint32(data) == fatbinMagic:
		return KindFatbin
	case bytes.HasPrefix(data, elfMagic):
		return KindCubin
	case bytes.Contains(data, []byte(".entry")) && bytes.Contains(data, []byte(".version")):
		return KindPTX
	default:
		return KindUnknown
	}
}

func decompress(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(raw, lz4Magic):
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decode: %w", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

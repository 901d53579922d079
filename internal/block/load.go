package block

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies an encoded image. Host tools compare it before and
// after a transfer.
func Fingerprint(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// FormatOf derives the file format from a path extension. Anything that is
// not a source format is treated as a raw image.
func FormatOf(path string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "json", "toml":
		return ext
	case "yaml", "yml":
		return "yaml"
	default:
		return "bin"
	}
}

// Load reads a block from path, compiling source files and parsing raw images.
// It also returns the encoded image.
func Load(path string) (*Block, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	format := FormatOf(path)
	if format == "bin" {
		b, err := Parse(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return b, data, nil
	}
	src, err := DecodeSource(data, format)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	b, err := Compile(src)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	raw, err := b.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, raw, nil
}

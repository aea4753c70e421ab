// Package loader reads jambOS programs: space-separated hexadecimal bytes
// such as "A9 03 8D 41 00 00".
package loader

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidProgram is returned for text that is not a byte listing.
var ErrInvalidProgram = errors.New("invalid program")

var programPattern = regexp.MustCompile(`^[0-9a-f]{2}( [0-9a-f]{2})*$`)

// Program is a parsed program ready to be loaded into a partition.
type Program struct {
	// Name identifies the program, usually the base name of its file.
	Name string
	// Code is the program image, starting at partition offset 0.
	Code []byte
}

// Normalize lowercases text, trims it, and collapses every run of
// whitespace into a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Parse validates and decodes a program listing.
func Parse(text string) ([]byte, error) {
	normalized := Normalize(text)
	if !programPattern.MatchString(normalized) {
		return nil, fmt.Errorf("%w: expected two-digit hex bytes separated by spaces", ErrInvalidProgram)
	}

	code, err := hex.DecodeString(strings.ReplaceAll(normalized, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	return code, nil
}

// Load reads and parses a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}

	code, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Program{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Code: code,
	}, nil
}

// Format renders code in the canonical upper-case listing form.
func Format(code []byte) string {
	var sb strings.Builder
	for i, b := range code {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

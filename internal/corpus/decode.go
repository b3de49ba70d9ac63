package corpus

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrUndecodable is returned for content that is valid in neither UTF-8 nor Windows-1252.
var ErrUndecodable = errors.New("content is neither valid UTF-8 nor Windows-1252")

// Bytes with no assigned character in the Windows-1252 code page.
var undefinedCP1252 = [256]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}

// DecodeText returns data as a string, decoding it as UTF-8 when valid and as
// Windows-1252 otherwise. usedFallback reports whether the legacy code page was used.
func DecodeText(data []byte) (text string, usedFallback bool, err error) {
	if utf8.Valid(data) {
		return string(data), false, nil
	}

	for i, b := range data {
		if undefinedCP1252[b] {
			return "", true, fmt.Errorf("%w: byte 0x%02X at offset %d", ErrUndecodable, b, i)
		}
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return string(decoded), true, nil
}

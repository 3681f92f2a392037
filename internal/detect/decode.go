package detect

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeLenient decodes b as UTF-8, dropping a leading BOM and replacing
// invalid sequences with U+FFFD. It never fails.
func decodeLenient(b []byte) string {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

// Digest returns the hex encoded SHA3-256 of b.
func Digest(b []byte) string {
	sum := sha3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

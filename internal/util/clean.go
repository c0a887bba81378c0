package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const maxBinaryCheckBytes = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Review dumps are full of Windows-1252 punctuation that survived a bad
// re-encode; fold it to plain ASCII so the tokenizer sees ordinary words.
var charReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "“", "\"", "”", "\"",
	"–", "-", "—", " - ", "…", "...", " ", " ",
	"\u0096", "-", "\u0097", " - ", "\u0091", "'", "\u0092", "'",
	"\u0093", "\"", "\u0094", "\"",
)

// IsLikelyBinary sniffs the first bytes of a file for NUL bytes.
func IsLikelyBinary(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, maxBinaryCheckBytes)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	return bytes.Contains(buffer[:n], []byte{0}), nil
}

// CleanText strips a UTF-8 BOM, repairs invalid UTF-8 and folds typographic
// punctuation. src is only used in log and error messages.
func CleanText(raw []byte, src string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		log.Warnf("%s: invalid UTF-8, replacing invalid bytes", src)
		raw = bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError)))
	}

	str := charReplacer.Replace(string(raw))

	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 after replacements: %s", src)
	}
	return str, nil
}

package source

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// codingCookie matches a PEP 263 declaration such as "# -*- coding: latin-1 -*-".
var codingCookie = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-\w.]+)`)

var encodingAliases = map[string]string{
	"utf8":    "utf-8",
	"latin-1": "iso-8859-1",
	"latin1":  "iso-8859-1",
	"l1":      "iso-8859-1",
	"cp1252":  "windows-1252",
	"ascii":   "us-ascii",
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts Python source to UTF-8. A byte order mark wins over a
// coding declaration. Without either, source that is not valid UTF-8 is
// decoded with the encoding charset detection settles on.
func Decode(raw []byte) ([]byte, error) {
	if hasBOM(raw) {
		out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode source: %w", err)
		}
		return out, nil
	}

	name := Coding(raw)
	if utf8.Valid(raw) && (name == "" || name == "utf-8") {
		return raw, nil
	}

	var enc encoding.Encoding
	switch name {
	case "utf-8":
		return nil, fmt.Errorf("source declares utf-8 but is not valid UTF-8")
	case "":
		var certain bool
		enc, name, certain = charset.DetermineEncoding(raw, "text/plain")
		log.Debug().
			Str("encoding", name).
			Bool("certain", certain).
			Msg("source is not UTF-8, using detected encoding")
	default:
		var err error
		if enc, err = lookup(name); err != nil {
			return nil, err
		}
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source as %s: %w", name, err)
	}
	return out, nil
}

// Coding returns the normalized encoding named by a coding declaration on
// one of the first two lines, or "".
func Coding(raw []byte) string {
	lines := bytes.SplitN(raw, []byte("\n"), 3)
	if len(lines) > 2 {
		lines = lines[:2]
	}

	for _, line := range lines {
		if m := codingCookie.FindSubmatch(line); m != nil {
			return normalize(string(m[1]))
		}
		// the declaration may only follow a comment or blank line
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && trimmed[0] != '#' {
			break
		}
	}
	return ""
}

func normalize(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	if strings.HasPrefix(name, "utf-8-") {
		// utf-8-sig and friends
		return "utf-8"
	}
	if alias, ok := encodingAliases[name]; ok {
		return alias
	}
	return name
}

func lookup(name string) (encoding.Encoding, error) {
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported source encoding %q", name)
	}
	return enc, nil
}

func hasBOM(raw []byte) bool {
	return bytes.HasPrefix(raw, bomUTF8) ||
		bytes.HasPrefix(raw, bomUTF16LE) ||
		bytes.HasPrefix(raw, bomUTF16BE)
}

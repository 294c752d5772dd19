package ingestion_engine

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	xunicode "golang.org/x/text/encoding/unicode"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 80
)

// TextChunker packs sentences into chunks of at most Size runes.
// Every chunk after the first starts with the last Overlap runes of the one before it.
type TextChunker struct {
	Size    int
	Overlap int
}

// NewTextChunker clamps the settings so that Overlap < Size.
func NewTextChunker(size, overlap int) TextChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return TextChunker{Size: size, Overlap: overlap}
}

// ChunkBytes decodes raw text of unknown charset and chunks it.
// It also returns the charset the bytes were read as.
func (c TextChunker) ChunkBytes(data []byte) ([]string, string) {
	text, charset := decodeText(data)
	return c.Chunk(text), charset
}

// Chunk splits text at sentence and line boundaries and packs the pieces.
// A sentence longer than a fresh chunk is cut at the size boundary.
func (c TextChunker) Chunk(text string) []string {
	text = normalizeText(text)
	if text == "" {
		return nil
	}

	var (
		chunks     []string
		cur        []rune
		hasContent bool
	)
	for _, s := range splitSentences(text) {
		seg := []rune(s)
		for len(seg) > 0 {
			room := c.Size - len(cur)
			if len(seg) <= room {
				cur = append(cur, seg...)
				hasContent = hasContent || !isBlank(seg)
				break
			}
			if hasContent {
				chunks = append(chunks, string(cur))
				cur = overlapTail(cur, c.Overlap)
				hasContent = false
				continue
			}
			if isBlank(seg) {
				break
			}
			cur = append(cur, seg[:room]...)
			seg = seg[room:]
			hasContent = true
		}
	}
	if hasContent {
		chunks = append(chunks, string(cur))
	}
	return chunks
}

// splitSentences cuts after "\n\n", "\n", 。！？ and after . ! ? that end a sentence.
// Delimiters stay with the sentence they close; the concatenation of the result is the input.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes); i++ {
		cut := false
		switch runes[i] {
		case '\n':
			cut = true
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
		case '。', '！', '？':
			cut = true
		case '.', '!', '?':
			cut = i+1 == len(runes) || unicode.IsSpace(runes[i+1])
		}
		if cut {
			out = append(out, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func overlapTail(cur []rune, overlap int) []rune {
	if overlap <= 0 {
		return nil
	}
	if len(cur) > overlap {
		cur = cur[len(cur)-overlap:]
	}
	return append([]rune(nil), cur...)
}

func isBlank(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func normalizeText(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// japaneseCharsets are resolved before htmlindex so detector names map to x/text encodings directly.
var japaneseCharsets = map[string]encoding.Encoding{
	"shift_jis":   japanese.ShiftJIS,
	"euc-jp":      japanese.EUCJP,
	"iso-2022-jp": japanese.ISO2022JP,
}

// decodeText returns data as UTF-8. BOMs win, valid UTF-8 is kept as is,
// anything else goes through charset detection. Undecodable input is read as UTF-8.
func decodeText(data []byte) (string, string) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return string(data[len(utf8BOM):]), "UTF-8"
	case bytes.HasPrefix(data, utf16LEBOM):
		if s, err := decodeCharset(data, "UTF-16LE"); err == nil {
			return s, "UTF-16LE"
		}
	case bytes.HasPrefix(data, utf16BEBOM):
		if s, err := decodeCharset(data, "UTF-16BE"); err == nil {
			return s, "UTF-16BE"
		}
	}

	if utf8.Valid(data) {
		return string(data), "UTF-8"
	}

	if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res.Charset != "" {
		if s, err := decodeCharset(data, res.Charset); err == nil {
			return s, res.Charset
		}
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), "UTF-8"
}

// decodeCharset decodes data with the named charset.
func decodeCharset(data []byte, charset string) (string, error) {
	name := strings.ToLower(charset)

	var enc encoding.Encoding
	switch name {
	case "utf-16le":
		enc = xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM)
	case "utf-16be":
		enc = xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM)
	default:
		if e, ok := japaneseCharsets[name]; ok {
			enc = e
		} else {
			e, err := htmlindex.Get(name)
			if err != nil {
				return "", err
			}
			enc = e
		}
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

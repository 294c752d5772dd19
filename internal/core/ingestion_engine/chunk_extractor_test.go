package ingestion_engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	xunicode "golang.org/x/text/encoding/unicode"
)

func longEnglish(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		b.WriteString("The pipeline converts every uploaded document into searchable text. ")
	}
	return b.String()
}

func longJapanese(sentences int) string {
	return strings.Repeat("この文書は検索可能なテキストに変換されます。", sentences)
}

func assertChunkInvariants(t *testing.T, c TextChunker, chunks []string) {
	t.Helper()
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), c.Size, "chunk %d too long", i)
		assert.NotEmpty(t, strings.TrimSpace(ch), "chunk %d is blank", i)
		if i == 0 {
			continue
		}
		prev := []rune(chunks[i-1])
		tail := string(prev[max(0, len(prev)-c.Overlap):])
		assert.True(t, strings.HasPrefix(ch, tail), "chunk %d does not start with the previous tail", i)
	}
}

func TestTextChunker_EnglishRespectsSizeAndOverlap(t *testing.T) {
	c := NewTextChunker(500, 80)
	chunks := c.Chunk(longEnglish(40))

	require.Greater(t, len(chunks), 1)
	assertChunkInvariants(t, c, chunks)
}

func TestTextChunker_JapaneseTerminators(t *testing.T) {
	c := NewTextChunker(500, 80)
	chunks := c.Chunk(longJapanese(60))

	require.Greater(t, len(chunks), 1)
	assertChunkInvariants(t, c, chunks)
	for _, ch := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(ch, "。"), "chunks end on a sentence boundary")
	}
}

func TestTextChunker_ShortTextIsOneChunk(t *testing.T) {
	chunks := NewTextChunker(500, 80).Chunk("  Hello world.\r\nSecond line.  ")
	assert.Equal(t, []string{"Hello world.\nSecond line."}, chunks)
}

func TestTextChunker_EmptyText(t *testing.T) {
	c := NewTextChunker(500, 80)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk(" \n\n\t "))
	assert.Empty(t, c.Chunk("\ufeff"))
}

func TestTextChunker_LongSentenceIsCut(t *testing.T) {
	c := NewTextChunker(100, 20)
	chunks := c.Chunk(strings.Repeat("x", 250))

	require.Len(t, chunks, 3)
	assertChunkInvariants(t, c, chunks)
	assert.Equal(t, strings.Repeat("x", 100), chunks[0])
}

func TestTextChunker_ClampsOverlap(t *testing.T) {
	c := NewTextChunker(100, 150)
	assert.Equal(t, 50, c.Overlap)

	d := NewTextChunker(0, -1)
	assert.Equal(t, DefaultChunkSize, d.Size)
	assert.Zero(t, d.Overlap)
}

func TestSplitSentences(t *testing.T) {
	in := "First. Second!\n\nThird?Fourth。Fifth v1.2 ok"
	segs := splitSentences(in)

	assert.Equal(t, in, strings.Join(segs, ""))
	assert.Equal(t, []string{"First.", " Second!", "\n\n", "Third?Fourth。", "Fifth v1.2 ok"}, segs)
}

func TestDecodeText_UTF8AndBOM(t *testing.T) {
	s, cs := decodeText([]byte("héllo"))
	assert.Equal(t, "héllo", s)
	assert.Equal(t, "UTF-8", cs)

	s, _ = decodeText(append([]byte{0xEF, 0xBB, 0xBF}, []byte("bom")...))
	assert.Equal(t, "bom", s)
}

func TestDecodeText_UTF16WithBOM(t *testing.T) {
	enc := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("こんにちは"))
	require.NoError(t, err)

	s, cs := decodeText(data)
	assert.Equal(t, "こんにちは", s)
	assert.Equal(t, "UTF-16LE", cs)
}

func TestDecodeCharset_ShiftJIS(t *testing.T) {
	data, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("日本語の文書です。"))
	require.NoError(t, err)

	s, err := decodeCharset(data, "Shift_JIS")
	require.NoError(t, err)
	assert.Equal(t, "日本語の文書です。", s)
}

func TestDecodeCharset_Unknown(t *testing.T) {
	_, err := decodeCharset([]byte("x"), "no-such-charset")
	assert.Error(t, err)
}

func TestDecodeText_InvalidFallsBackToUTF8(t *testing.T) {
	s, _ := decodeText([]byte{0xfd, 'a'})
	assert.True(t, utf8.ValidString(s))
}

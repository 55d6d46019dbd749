package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	t.Run("ShouldKeepShortDocumentInOneChunk", func(t *testing.T) {
		chunks := ChunkText("Intro.\n\nBody text here.\n\nConclusion.", DefaultMaxChars)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Intro.\nBody text here.\nConclusion.", chunks[0])
	})

	t.Run("ShouldFlushBeforeExceedingLimit", func(t *testing.T) {
		chunks := ChunkText("aaaa\nbbbb\ncccc", 10)
		assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)
	})

	t.Run("ShouldKeepOversizedParagraphWhole", func(t *testing.T) {
		long := strings.Repeat("x", 50)
		chunks := ChunkText("short\n"+long+"\ntail", 10)
		assert.Equal(t, []string{"short", long, "tail"}, chunks)
	})

	t.Run("ShouldDropBlankAndTrimLines", func(t *testing.T) {
		chunks := ChunkText("  one  \n\n \t \n two\n", 100)
		assert.Equal(t, []string{"one\ntwo"}, chunks)
	})

	t.Run("ShouldReturnNothingForBlankText", func(t *testing.T) {
		assert.Empty(t, ChunkText("\n \n\t\n", 100))
		assert.Empty(t, ChunkText("", 100))
	})

	t.Run("ShouldUseDefaultForNonPositiveLimit", func(t *testing.T) {
		assert.Equal(t, ChunkText("a\nb", DefaultMaxChars), ChunkText("a\nb", 0))
	})

	t.Run("ShouldCoverEveryParagraphInOrderWithinBound", func(t *testing.T) {
		var paragraphs []string
		var sb strings.Builder
		for i := 0; i < 200; i++ {
			p := strings.Repeat(string(rune('a'+i%26)), 1+(i*37)%90)
			paragraphs = append(paragraphs, p)
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
		const maxChars = 120
		chunks := ChunkText(sb.String(), maxChars)

		var rebuilt []string
		for _, c := range chunks {
			require.NotEmpty(t, c)
			lines := strings.Split(c, "\n")
			if len(lines) > 1 {
				assert.LessOrEqual(t, len(c), maxChars)
			}
			rebuilt = append(rebuilt, lines...)
		}
		assert.Equal(t, paragraphs, rebuilt)
	})
}

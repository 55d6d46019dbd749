package services

import "strings"

// DefaultMaxChars is the soft size limit for a chunk.
const DefaultMaxChars = 800

// ChunkText splits text into paragraph-aligned chunks. Paragraphs are lines,
// trimmed, with blank ones dropped. A chunk is flushed before a paragraph that
// would push it past maxChars; a single paragraph longer than maxChars becomes
// its own oversized chunk rather than being split.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var (
		chunks  []string
		current []string
		curLen  int
	)
	for _, line := range strings.Split(text, "\n") {
		p := strings.TrimSpace(line)
		if p == "" {
			continue
		}
		if curLen+len(p)+1 > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = []string{p}
			curLen = len(p)
			continue
		}
		current = append(current, p)
		curLen += len(p) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

package pluginsdk

import "strings"

// DefaultTextChunkLimit is the character limit used when a channel does not
// configure its own.
const DefaultTextChunkLimit = 2000

// ResolveTextChunkLimit returns limit when positive, falling back to the
// default otherwise.
func ResolveTextChunkLimit(limit int) int {
	if limit > 0 {
		return limit
	}
	return DefaultTextChunkLimit
}

// ChunkText splits text into chunks of at most limit characters, preferring
// line boundaries so paragraphs stay intact.
func ChunkText(text string, limit int) []string {
	limit = ResolveTextChunkLimit(limit)
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+1+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		// A single line longer than the limit is split hard.
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if len(chunks) == 0 {
		return []string{text[:limit]}
	}
	return chunks
}

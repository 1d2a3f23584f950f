package render

// SplitIntoChunks splits cumulative text into transport-sized segments.
// Every chunk except the last is exactly size runes; the last carries the
// remainder. Empty input yields an empty slice and the caller must skip
// rendering. The split is by runes so a multibyte character never straddles
// a message boundary.
func SplitIntoChunks(text string, size int) []string {
	if len(text) == 0 || size <= 0 {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

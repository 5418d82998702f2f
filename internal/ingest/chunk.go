package ingest

// splitText cuts text into fixed rune windows of at most size runes where
// each window repeats the last overlap runes of its predecessor. Callers
// guarantee overlap < size via configuration validation; the invariant that
// concatenating windows minus each non-final window's trailing overlap
// reconstructs the input depends on the windows being exact, so no attempt
// is made to cut at word boundaries.
func splitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/(size-overlap)+1)
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
}

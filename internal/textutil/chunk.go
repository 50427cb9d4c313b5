package textutil

import "strings"

// SplitIntoChunks normalizes text and cuts it into windows of size runes with
// the given rune overlap between consecutive windows. Text at most size runes
// long is returned as a single chunk. Each chunk is trimmed of surrounding
// whitespace, so chunks cut at whitespace boundaries may be slightly shorter
// than size.
func SplitIntoChunks(text string, size, overlap int) []string {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if size <= 0 || len(runes) <= size {
		return []string{normalized}
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

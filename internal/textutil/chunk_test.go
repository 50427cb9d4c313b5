package textutil

import (
	"strings"
	"testing"
)

func TestSplitIntoChunksShortText(t *testing.T) {
	chunks := SplitIntoChunks("short", 100, 10)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}

func TestSplitIntoChunksEmpty(t *testing.T) {
	if chunks := SplitIntoChunks("  \n ", 100, 10); chunks != nil {
		t.Fatalf("expected nil for blank input, got %v", chunks)
	}
}

func TestSplitIntoChunksCoverage(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	size, overlap := 10, 3
	step := size - overlap

	chunks := SplitIntoChunks(text, size, overlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}

	for i, c := range chunks {
		if n := len([]rune(c)); n > size {
			t.Errorf("chunk %d has %d runes, exceeds size %d", i, n, size)
		}
	}

	// Consecutive chunks share exactly overlap runes.
	for i := 0; i < len(chunks)-1; i++ {
		cur := []rune(chunks[i])
		next := []rune(chunks[i+1])
		tail := string(cur[len(cur)-overlap:])
		head := string(next[:overlap])
		if tail != head {
			t.Errorf("chunks %d/%d overlap mismatch: %q vs %q", i, i+1, tail, head)
		}
	}

	// Concatenating the non-overlapping heads reconstructs the text.
	var sb strings.Builder
	for i, c := range chunks {
		if i == len(chunks)-1 {
			sb.WriteString(c)
			break
		}
		sb.WriteString(string([]rune(c)[:step]))
	}
	if got := sb.String(); got != text {
		t.Errorf("reconstruction mismatch:\n got %q\nwant %q", got, text)
	}
}

func TestSplitIntoChunksHanRunes(t *testing.T) {
	text := strings.Repeat("气虚体质乏力", 10) // 60 runes
	chunks := SplitIntoChunks(text, 25, 5)
	for i, c := range chunks {
		if n := len([]rune(c)); n > 25 {
			t.Errorf("chunk %d has %d runes, window must count runes not bytes", i, n)
		}
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks over 60 runes, got %d", len(chunks))
	}
}

func TestSplitIntoChunksMinimumStep(t *testing.T) {
	// overlap >= size degenerates to step 1; must still terminate and cover.
	chunks := SplitIntoChunks("abcdef", 3, 5)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix("abcdef", last) {
		t.Errorf("last chunk %q does not reach end of text", last)
	}
}

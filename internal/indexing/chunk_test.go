package indexing

import (
	"strings"
	"testing"
)

func TestChunkText_EmptyInput(t *testing.T) {
	if chunks := ChunkText("", 900); chunks != nil {
		t.Fatalf("expected nil for empty input, got %v", chunks)
	}
	if chunks := ChunkText("   \n  ", 900); chunks != nil {
		t.Fatalf("expected nil for whitespace input, got %v", chunks)
	}
}

func TestChunkText_SingleShortText(t *testing.T) {
	chunks := ChunkText("Hello there. How are you?", 900)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "Hello there. How are you?" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestChunkText_BreaksAtSentenceBoundaries(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here."
	chunks := ChunkText(text, 45)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %v", len(chunks), chunks)
	}
	for _, chunk := range chunks {
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Fatalf("chunk has stray whitespace: %q", chunk)
		}
		// No chunk may end mid-sentence.
		if !strings.HasSuffix(chunk, ".") {
			t.Fatalf("chunk does not end at a sentence boundary: %q", chunk)
		}
	}
}

func TestChunkText_RespectsLimitAcrossSentences(t *testing.T) {
	sentence := "This sentence is exactly forty chars ok."
	text := strings.Repeat(sentence+" ", 10)
	chunks := ChunkText(text, 100)
	for _, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk exceeds limit (%d chars): %q", len(chunk), chunk)
		}
	}
}

func TestChunkText_OversizedSentenceBecomesOwnChunk(t *testing.T) {
	long := strings.Repeat("word ", 50) + "end."
	chunks := ChunkText(long, 30)
	if len(chunks) != 1 {
		t.Fatalf("expected a single oversized chunk, got %d: %v", len(chunks), chunks)
	}
}

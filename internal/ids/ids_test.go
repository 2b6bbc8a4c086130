package ids

import (
	"strings"
	"testing"
)

func TestTranscriptIDShape(t *testing.T) {
	id := NewTranscriptID()
	if !strings.HasPrefix(id, "trs_") {
		t.Fatalf("missing prefix: %q", id)
	}
	if len(id) != len("trs_")+21 {
		t.Fatalf("unexpected length %d for %q", len(id), id)
	}
}

func TestChunkIDShape(t *testing.T) {
	id := NewChunkID()
	if !strings.HasPrefix(id, "trnchk_") {
		t.Fatalf("missing prefix: %q", id)
	}
	if len(id) != len("trnchk_")+21 {
		t.Fatalf("unexpected length %d for %q", len(id), id)
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewTranscriptID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

package packetbuf

import "testing"

func TestAppendOverflow(t *testing.T) {
	b := New(3)
	if !b.Append('a') || !b.Append('b') || !b.Append('c') {
		t.Fatal("first three appends should succeed")
	}
	if b.Append('d') {
		t.Fatal("fourth append should overflow")
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
}

func TestStartsWithAndFind(t *testing.T) {
	b := New(16)
	for _, c := range []byte("vCont;c") {
		b.Append(c)
	}
	if !b.StartsWith([]byte("vCont")) {
		t.Error("expected StartsWith(vCont)")
	}
	if idx := b.Find(';'); idx != 5 {
		t.Errorf("Find(';') = %d, want 5", idx)
	}
	if idx := b.Find('z'); idx != -1 {
		t.Errorf("Find('z') = %d, want -1", idx)
	}
}

func TestViewClamped(t *testing.T) {
	b := New(16)
	for _, c := range []byte("hello") {
		b.Append(c)
	}
	if got := string(b.View(1, 100)); got != "ello" {
		t.Errorf("View(1,100) = %q, want %q", got, "ello")
	}
	if got := b.View(10, 20); got != nil {
		t.Errorf("out-of-range View should be nil, got %v", got)
	}
}

package ptid

import "testing"

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []struct {
		in     string
		curPid int64
		want   PTID
	}{
		{"1", 3, PTID{Pid: 3, Tid: 1}},
		{"0", 3, PTID{Pid: 3, Tid: Any}},
		{"p1", 0, PTID{Pid: 1, Tid: All}},
		{"p1.2", 0, PTID{Pid: 1, Tid: 2}},
		{"p0.2", 0, PTID{Pid: Any, Tid: 2}},
	}
	for _, c := range cases {
		got, err := Decode([]byte(c.in), c.curPid)
		if err != nil {
			t.Fatalf("Decode(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Decode(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestDecodeRejectsAllWithAnyOrAll(t *testing.T) {
	for _, in := range []string{"p-1.-1", "p-1.0"} {
		if _, err := Decode([]byte(in), 0); err == nil {
			t.Errorf("Decode(%q) should reject pid=ALL with tid in {ALL,ANY}", in)
		}
	}
}

func TestEncode(t *testing.T) {
	p := PTID{Pid: 1, Tid: All}
	if got, want := p.Encode(), "p1.-1"; got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
	p2 := PTID{Pid: Any, Tid: 2}
	if got, want := p2.Encode(), "p0.2"; got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestCrystalize(t *testing.T) {
	p := PTID{Pid: Any, Tid: Any}
	got, err := p.Crystalize(5, 7)
	if err != nil {
		t.Fatalf("Crystalize: %v", err)
	}
	if got != (PTID{Pid: 5, Tid: 7}) {
		t.Errorf("Crystalize = %+v", got)
	}

	if _, err := (PTID{Pid: All, Tid: 1}).Crystalize(5, 7); err == nil {
		t.Error("expected error crystalizing ALL pid")
	}
}

func TestMatches(t *testing.T) {
	if !(PTID{Pid: All}).Matches(4) {
		t.Error("ALL should match any pid")
	}
	if (PTID{Pid: 3}).Matches(4) {
		t.Error("3 should not match 4")
	}
}

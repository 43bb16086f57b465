package traceflags

import "testing"

func TestDefaultIPG(t *testing.T) {
	f := New()
	if f.Enabled(IPG) {
		t.Error("ipg should start disabled")
	}
	if got := f.Int(IPG); got != 50 {
		t.Errorf("default ipg = %d, want 50", got)
	}
}

func TestParseBooleanFlag(t *testing.T) {
	f := New()
	if err := f.Parse("rsp"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Enabled(RSP) {
		t.Error("rsp should be enabled")
	}
	if f.String(RSP) != "" {
		t.Errorf("bare flag should have empty string value, got %q", f.String(RSP))
	}
}

func TestParseNumericFlag(t *testing.T) {
	f := New()
	if err := f.Parse("verbosity=3"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := f.Int(Verbosity); got != 3 {
		t.Errorf("verbosity = %d, want 3", got)
	}
}

func TestParseUnknownFlagFails(t *testing.T) {
	f := New()
	if err := f.Parse("bogus"); err == nil {
		t.Error("expected error for unknown flag")
	}
}

package common

import (
	"encoding/base64"
	"testing"
)

// ---------- MakeRandBase64String ----------

func TestMakeRandBase64String_DecodesToSize(t *testing.T) {
	s, err := MakeRandBase64String(OpaqueTokenSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("string is not valid base64: %v", err)
	}
	if len(raw) != OpaqueTokenSize {
		t.Fatalf("expected %d decoded bytes, got %d", OpaqueTokenSize, len(raw))
	}
}

func TestMakeRandBase64String_ZeroSize(t *testing.T) {
	s, err := MakeRandBase64String(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeRandBase64String_Distinct(t *testing.T) {
	a, err := MakeRandBase64String(OpaqueTokenSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := MakeRandBase64String(OpaqueTokenSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two 64-byte tokens collided: %q", a)
	}
}

package vector

import (
	"testing"
)

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{1.5, -2, 0, 3.25}
	blob := EncodeVector(in)
	if len(blob) != len(in)*4 {
		t.Fatalf("blob length = %d", len(blob))
	}
	out, err := DecodeVector(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded length = %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeVector_Empty(t *testing.T) {
	if EncodeVector(nil) != nil {
		t.Error("empty vector should encode to nil")
	}
	out, err := DecodeVector(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil vector, got %v", out)
	}
}

func TestDecodeVector_BadLength(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

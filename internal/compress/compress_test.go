package compress

import (
	"bytes"
	"errors"
	"testing"
)

const testLimit = 64 << 20

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("hello"),
		bytes.Repeat([]byte("abcd1234"), 4096),
	}

	for _, in := range cases {
		compressed, err := Compress(in)
		if err != nil {
			t.Fatalf("Compress failed: %v", err)
		}
		out, err := Decompress(compressed, testLimit)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("round trip mismatch for %d byte input", len(in))
		}
	}
}

func TestCompressReducesRepetitiveData(t *testing.T) {
	in := bytes.Repeat([]byte("the same line over and over\n"), 1000)
	compressed, err := Compress(in)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(in) {
		t.Errorf("expected compression to shrink %d bytes, got %d", len(in), len(compressed))
	}
}

func TestDecompressLimit(t *testing.T) {
	in := bytes.Repeat([]byte("a"), 10000)
	compressed, err := Compress(in)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if _, err := Decompress(compressed, 1024); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge below the inflated size, got %v", err)
	}
	out, err := Decompress(compressed, int64(len(in)))
	if err != nil {
		t.Fatalf("Decompress at exact size failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("round trip mismatch at exact limit")
	}
}

func TestDecompressGarbage(t *testing.T) {
	if _, err := Decompress([]byte("definitely not gzip"), testLimit); err == nil {
		t.Error("Decompress of garbage should fail")
	}
}

func TestDecompressTruncated(t *testing.T) {
	compressed, err := Compress(bytes.Repeat([]byte("x"), 10000))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, err := Decompress(compressed[:len(compressed)/2], testLimit); err == nil {
		t.Error("Decompress of truncated input should fail")
	}
}

package stitch

import (
	"bytes"
	"testing"
)

func TestSerializeCompression(t *testing.T) {
	data := make([]byte, 64*64*8)
	for i := range data {
		data[i] = byte(i / 100)
	}
	for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Gzip, Zstd} {
		s, err := SerializeData(data, compress, CRC32)
		if err != nil {
			t.Fatalf("unable to serialize with %s: %v\n", compress, err)
		}
		got, gotCompress, err := DeserializeData(s)
		if err != nil {
			t.Fatalf("unable to deserialize with %s: %v\n", compress, err)
		}
		if gotCompress != compress {
			t.Errorf("expected compression %s, got %s\n", compress, gotCompress)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%s round trip altered %d bytes of data\n", compress, len(data))
		}
	}
}

func TestSerializeBadChecksum(t *testing.T) {
	s, err := SerializeData([]byte("some label bytes"), Uncompressed, CRC32)
	if err != nil {
		t.Fatal(err)
	}
	s[len(s)-1] ^= 0xff
	if _, _, err := DeserializeData(s); err == nil {
		t.Fatalf("expected checksum failure on corrupted data\n")
	}
	if _, _, err := DeserializeData(nil); err == nil {
		t.Fatalf("expected error on empty data\n")
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]Compression{
		"":       Uncompressed,
		"none":   Uncompressed,
		"GZIP":   Gzip,
		"zstd":   Zstd,
		"snappy": Snappy,
		"lz4":    LZ4,
	}
	for s, expected := range tests {
		got, err := ParseCompression(s)
		if err != nil {
			t.Fatalf("bad parse of %q: %v\n", s, err)
		}
		if got != expected {
			t.Errorf("parse of %q: expected %s, got %s\n", s, expected, got)
		}
	}
	if _, err := ParseCompression("bzip9"); err == nil {
		t.Errorf("expected error on unknown compression\n")
	}
}

package provenance

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/zopieux/rthumbd/internal/fsmeta"
)

// buildMinimalPNG returns a byte stream with just a valid RGB8 IHDR and a
// trailing IEND, sufficient to exercise the chunk-splicing logic without a
// real pixel payload.
func buildMinimalPNG(t *testing.T, width, height int, bitDepth, colorType byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(pngSignature)

	ihdr := make([]byte, 13)
	ihdr[0] = byte(width >> 24)
	ihdr[1] = byte(width >> 16)
	ihdr[2] = byte(width >> 8)
	ihdr[3] = byte(width)
	ihdr[4] = byte(height >> 24)
	ihdr[5] = byte(height >> 16)
	ihdr[6] = byte(height >> 8)
	ihdr[7] = byte(height)
	ihdr[8] = bitDepth
	ihdr[9] = colorType
	if err := writeChunk(&buf, "IHDR", ihdr); err != nil {
		t.Fatal(err)
	}
	if err := writeChunk(&buf, "IEND", nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "thumb.png")

	plainPNG := buildMinimalPNG(t, 128, 64, 8, 2)
	meta := FullMeta{
		Width:  512,
		Height: 256,
		Fs: fsmeta.FsMeta{
			URI:       "file:///a.png",
			MtimeNsec: 1700000000.123456,
			Size:      65536,
		},
	}

	if err := Write(dest, plainPNG, meta); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(dest)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !fsmeta.Equal(got, meta.Fs) {
		t.Errorf("round-tripped provenance = %+v, want %+v", got, meta.Fs)
	}
	if got.URI != meta.Fs.URI {
		t.Errorf("URI = %q, want %q", got.URI, meta.Fs.URI)
	}
}

func TestWriteRejectsNonRGB8(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "thumb.png")

	// Color type 6 (RGBA) must be rejected per the writer contract.
	plainPNG := buildMinimalPNG(t, 128, 64, 8, 6)
	meta := FullMeta{Fs: fsmeta.FsMeta{URI: "file:///a.png", MtimeNsec: 1, Size: 1}}

	if err := Write(dest, plainPNG, meta); err == nil {
		t.Error("Write should reject a non-RGB8 source PNG")
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read("/nonexistent/path.png"); err == nil {
		t.Error("Read should fail for a missing file")
	}
}

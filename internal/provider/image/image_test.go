package image

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"path/filepath"
	"testing"

	"github.com/zopieux/rthumbd/internal/fsmeta"
	"github.com/zopieux/rthumbd/internal/provcache"
	"github.com/zopieux/rthumbd/internal/provenance"
)

func TestFilePathFromURIAcceptsFileScheme(t *testing.T) {
	path, err := filePathFromURI("file:///tmp/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/a.png" {
		t.Errorf("filePathFromURI = %q, want /tmp/a.png", path)
	}
}

func TestFilePathFromURIRejectsNonFileScheme(t *testing.T) {
	cases := []string{
		"http://x.com/y.png",
		"https://x.com/y.png",
		"ftp://x.com/y.png",
		"not a url at all: \x7f",
	}
	for _, uri := range cases {
		if _, err := filePathFromURI(uri); err == nil {
			t.Errorf("filePathFromURI(%q) should have failed", uri)
		}
	}
}

func TestFilePathFromURIRejectsEmptyPath(t *testing.T) {
	if _, err := filePathFromURI("file://"); err == nil {
		t.Error("filePathFromURI(\"file://\") should have failed: empty path")
	}
}

// writeMinimalPNGChunk appends one length-prefixed, CRC-checked PNG chunk,
// mirroring provenance package's own (unexported) writeChunk just enough to
// build a valid-enough IHDR+IEND stream for provenance.Write to accept.
func writeMinimalPNGChunk(buf *bytes.Buffer, kind string, data []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.WriteString(kind)
	buf.Write(data)
	crc := crc32.NewIEEE()
	_, _ = crc.Write([]byte(kind))
	_, _ = crc.Write(data)
	_ = binary.Write(buf, binary.BigEndian, crc.Sum32())
}

func buildMinimalRGB8PNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	ihdr := make([]byte, 13)
	ihdr[3] = 1 // width = 1
	ihdr[7] = 1 // height = 1
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // color type: truecolor RGB8
	writeMinimalPNGChunk(&buf, "IHDR", ihdr)
	writeMinimalPNGChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func TestCacheHitMissingDestination(t *testing.T) {
	p := New(nil)
	dir := t.TempDir()
	dest := filepath.Join(dir, "thumb.png")

	if p.cacheHit(dest, fsmeta.FsMeta{URI: "file:///a.png", MtimeNsec: 1, Size: 1}) {
		t.Error("cacheHit should be false for a missing destination")
	}
}

func TestCacheHitMatchesEmbeddedProvenance(t *testing.T) {
	p := New(nil)
	dir := t.TempDir()
	dest := filepath.Join(dir, "thumb.png")

	sourceMeta := fsmeta.FsMeta{URI: "file:///a.png", MtimeNsec: 1700000000.5, Size: 1024}
	if err := provenance.Write(dest, buildMinimalRGB8PNG(t), provenance.FullMeta{Fs: sourceMeta}); err != nil {
		t.Fatal(err)
	}

	if !p.cacheHit(dest, sourceMeta) {
		t.Error("cacheHit should be true when embedded provenance matches the source")
	}

	staleMeta := sourceMeta
	staleMeta.MtimeNsec = sourceMeta.MtimeNsec + 1
	if p.cacheHit(dest, staleMeta) {
		t.Error("cacheHit should be false when the source has a newer mtime")
	}
}

func TestCacheHitUsesProvCacheWhenPresent(t *testing.T) {
	cache, err := provcache.New(16, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	p := New(cache)
	dir := t.TempDir()
	dest := filepath.Join(dir, "thumb.png")

	sourceMeta := fsmeta.FsMeta{URI: "file:///a.png", MtimeNsec: 42, Size: 8}
	if err := provenance.Write(dest, buildMinimalRGB8PNG(t), provenance.FullMeta{Fs: sourceMeta}); err != nil {
		t.Fatal(err)
	}

	if !p.cacheHit(dest, sourceMeta) {
		t.Error("cacheHit should be true on first probe (falls back to disk, then populates the cache)")
	}
	if !p.cacheHit(dest, sourceMeta) {
		t.Error("cacheHit should be true on second probe, whether served from provCache or disk")
	}
}

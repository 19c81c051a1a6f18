package fsmeta

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCapturePrecision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.png")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	want := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)
	if err := os.Chtimes(path, want, want); err != nil {
		t.Fatal(err)
	}

	meta, err := Capture("file://"+path, path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.URI != "file://"+path {
		t.Errorf("URI = %q, want %q", meta.URI, "file://"+path)
	}
	if meta.Size != 5 {
		t.Errorf("Size = %d, want 5", meta.Size)
	}

	gotSec := int64(meta.MtimeNsec)
	if gotSec != want.Unix() {
		t.Errorf("MtimeNsec whole-second part = %d, want %d", gotSec, want.Unix())
	}
	gotFrac := meta.MtimeNsec - float64(want.Unix())
	if math.Abs(gotFrac-0.123456) > 1e-6 {
		t.Errorf("MtimeNsec fractional part = %.9f, want 0.123456", gotFrac)
	}
}

func TestEqualAsymmetricSize(t *testing.T) {
	base := FsMeta{URI: "file:///a.png", MtimeNsec: 100.5, Size: 1024}

	zeroSize := base
	zeroSize.Size = 0
	if !Equal(base, zeroSize) {
		t.Error("Equal should tolerate a zero size on either side")
	}
	if !Equal(zeroSize, base) {
		t.Error("Equal should tolerate a zero size regardless of argument order")
	}

	differentSize := base
	differentSize.Size = 2048
	if Equal(base, differentSize) {
		t.Error("Equal should not tolerate two different nonzero sizes")
	}
}

func TestEqualMismatches(t *testing.T) {
	base := FsMeta{URI: "file:///a.png", MtimeNsec: 100.5, Size: 1024}

	differentURI := base
	differentURI.URI = "file:///b.png"
	if Equal(base, differentURI) {
		t.Error("Equal should reject a different URI")
	}

	differentMtime := base
	differentMtime.MtimeNsec = 200.5
	if Equal(base, differentMtime) {
		t.Error("Equal should reject a different mtime")
	}
}

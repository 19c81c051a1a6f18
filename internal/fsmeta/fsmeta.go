// Package fsmeta captures and compares source-file provenance: the
// modification time (nanosecond precision) and size used to decide whether
// a cached thumbnail is still fresh.
package fsmeta

import (
	"fmt"
	"os"
	"syscall"
)

// FsMeta is the provenance of a source file: its URI, modification time
// (seconds since epoch with nanosecond subdivision, combined into one
// float64), and size in bytes.
type FsMeta struct {
	URI       string
	MtimeNsec float64
	Size      uint64
}

// Capture stats path and returns its provenance, with uri recorded verbatim
// (Capture never re-derives or normalizes the URI).
func Capture(uri, path string) (FsMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FsMeta{}, fmt.Errorf("stat %s: %w", path, err)
	}
	sec, nsec := mtimeParts(info)
	return FsMeta{
		URI:       uri,
		MtimeNsec: float64(sec) + float64(nsec)/1e9,
		Size:      uint64(info.Size()),
	}, nil
}

// mtimeParts splits the file's modification time into whole seconds and a
// nanosecond remainder, matching how the original Rust implementation reads
// st_mtime/st_mtime_nsec separately before recombining them.
func mtimeParts(info os.FileInfo) (sec, nsec int64) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		// Fall back to the monotonic-stripped wall time; only reachable on
		// platforms without a raw Stat_t, which this daemon does not target.
		mt := info.ModTime()
		return mt.Unix(), int64(mt.Nanosecond())
	}
	return int64(stat.Mtim.Sec), int64(stat.Mtim.Nsec)
}

// Equal implements the asymmetric equality from spec §4.C: the size
// comparison is skipped when either side's size is zero, which tolerates
// provenance records written before size tracking existed.
func Equal(a, b FsMeta) bool {
	if a.URI != b.URI {
		return false
	}
	if a.MtimeNsec != b.MtimeNsec {
		return false
	}
	return a.Size == 0 || b.Size == 0 || a.Size == b.Size
}

// Package cachepath derives on-disk cache file names from source URIs and
// resolves the XDG cache root. MD5 is used here purely for compatibility
// with the freedesktop thumbnail naming convention other Thumbnailer1
// implementations rely on — it is never used as a security primitive.
package cachepath

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zopieux/rthumbd/internal/flavor"
)

// Root resolves the cache root directory per the XDG base directory spec:
// $XDG_CACHE_HOME/thumbnails if set, else $HOME/.cache/thumbnails. The
// "thumbnails" suffix is appended unconditionally in both cases.
func Root() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "thumbnails"), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", "thumbnails"), nil
	}
	return "", fmt.Errorf("both XDG_CACHE_HOME and HOME are unset")
}

// FlavorDir returns the directory that holds cache entries for a flavor,
// e.g. <root>/normal.
func FlavorDir(root string, f flavor.Flavor) string {
	return filepath.Join(root, f.String())
}

// uriHash returns the lowercase hex MD5 digest of uri.
func uriHash(uri string) string {
	sum := md5.Sum([]byte(uri))
	return hex.EncodeToString(sum[:])
}

// Destination returns the final cache filename for uri within dir.
func Destination(dir, uri string) string {
	return filepath.Join(dir, uriHash(uri)+".png")
}

// Temp returns the staging filename used while a thumbnail is being written.
// id only needs to be unique within the chunk currently writing to uri; the
// registry uses each job's position within its chunk.
func Temp(dir, uri string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.tmp%d", uriHash(uri), id))
}

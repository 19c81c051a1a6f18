// Package image implements the one concrete Provider shipped with this
// daemon: decode via libvips, downscale-only thumbnail, embed provenance,
// atomic publish (spec §4.E).
package image

import (
	"fmt"
	"net/url"
	"os"

	"github.com/cshum/vipsgen/vips"

	"github.com/zopieux/rthumbd/internal/cachepath"
	"github.com/zopieux/rthumbd/internal/fsmeta"
	"github.com/zopieux/rthumbd/internal/logger"
	"github.com/zopieux/rthumbd/internal/media"
	"github.com/zopieux/rthumbd/internal/provcache"
	"github.com/zopieux/rthumbd/internal/provenance"
	"github.com/zopieux/rthumbd/internal/rthumberr"
)

// mimeTypes is the static set of MIME types this provider claims at
// registration time, matching the formats libvips' default loader set can
// decode plus the favicon alias the original implementation special-cased.
var mimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/tiff",
	"image/bmp",
	"image/heif",
	"image/heic",
	"image/avif",
	"image/svg+xml",
	"image/vnd.microsoft.icon",
}

// Provider decodes and thumbnails raster images via libvips. It holds no
// per-request state and is safe for concurrent use, as vips itself is
// thread-safe once started (vips.Startup is called once in main).
type Provider struct {
	provCache *provcache.Cache
}

// New constructs the image provider. provCache may be nil, in which case
// every cache-hit probe re-parses the destination file from disk.
func New(provCache *provcache.Cache) *Provider {
	return &Provider{provCache: provCache}
}

func (p *Provider) Name() string { return "libvips image provider" }

func (p *Provider) SupportedMimeTypes() []string { return mimeTypes }

func (p *Provider) Process(opaqueID int, cacheRoot string, job media.Job) error {
	sourcePath, err := filePathFromURI(job.Media.URI)
	if err != nil {
		return err
	}

	sourceMeta, err := fsmeta.Capture(job.Media.URI, sourcePath)
	if err != nil {
		return fmt.Errorf("%w: %v", rthumberr.ErrSourceIO, err)
	}

	flavorDir := cachepath.FlavorDir(cacheRoot, job.Flavor)
	if err := os.MkdirAll(flavorDir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", rthumberr.ErrSinkIO, flavorDir, err)
	}
	destPath := cachepath.Destination(flavorDir, job.Media.URI)

	if p.cacheHit(destPath, sourceMeta) {
		logger.Debugf("[ImageProvider] cache hit for %s", job.Media.URI)
		return nil
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", rthumberr.ErrSourceIO, sourcePath, err)
	}

	origImg, err := vips.NewImageFromBuffer(data, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", rthumberr.ErrDecode, err)
	}
	origWidth, origHeight := origImg.Width(), origImg.Height()
	origImg.Close()

	dimension := job.Flavor.Dimension()
	thumb, err := vips.NewThumbnailBuffer(data, dimension, &vips.ThumbnailBufferOptions{
		Height: dimension,
		Size:   vips.SizeDown, // never upscale
	})
	if err != nil {
		return fmt.Errorf("%w: %v", rthumberr.ErrDecode, err)
	}
	defer thumb.Close()

	// Normalize to 3-band sRGB unconditionally, not just when alpha is
	// present: a grayscale, palette-indexed, or CMYK source decodes fine in
	// vips but is not "color type 2" on its own, and provenance.Write's
	// validateIHDR hard-rejects anything else. This is the Go equivalent of
	// the original's unconditional to_rgb8() conversion.
	if err := thumb.Colourspace(vips.InterpretationSRGB); err != nil {
		return fmt.Errorf("%w: colourspace convert: %v", rthumberr.ErrDecode, err)
	}
	if thumb.HasAlpha() {
		if err := thumb.Flatten(&vips.FlattenOptions{Background: []float64{255, 255, 255}}); err != nil {
			return fmt.Errorf("%w: flatten alpha: %v", rthumberr.ErrDecode, err)
		}
	}

	plainPNG, err := thumb.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	if err != nil {
		return fmt.Errorf("%w: encode png: %v", rthumberr.ErrSinkIO, err)
	}

	fullMeta := provenance.FullMeta{Width: origWidth, Height: origHeight, Fs: sourceMeta}
	tempPath := cachepath.Temp(flavorDir, job.Media.URI, opaqueID)
	if err := provenance.Write(tempPath, plainPNG, fullMeta); err != nil {
		return fmt.Errorf("%w: %v", rthumberr.ErrSinkIO, err)
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: rename into place: %v", rthumberr.ErrSinkIO, err)
	}
	if p.provCache != nil {
		p.provCache.Invalidate(destPath)
		p.provCache.Set(destPath, sourceMeta)
	}
	return nil
}

// cacheHit reports whether destPath already holds a thumbnail whose
// embedded provenance matches sourceMeta, short-circuiting the decode.
func (p *Provider) cacheHit(destPath string, sourceMeta fsmeta.FsMeta) bool {
	if p.provCache != nil {
		if cached, ok := p.provCache.Get(destPath); ok {
			return fsmeta.Equal(cached, sourceMeta)
		}
	}
	existing, err := provenance.Read(destPath)
	if err != nil {
		// Missing or unparseable destination: not an error, just re-render.
		return false
	}
	if p.provCache != nil {
		p.provCache.Set(destPath, existing)
	}
	return fsmeta.Equal(existing, sourceMeta)
}

// filePathFromURI requires the file:// scheme and resolves the local path,
// matching spec §4.E step 1.
func filePathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", rthumberr.ErrNotFileScheme, err)
	}
	if u.Scheme != "file" {
		return "", rthumberr.ErrNotFileScheme
	}
	if u.Path == "" {
		return "", rthumberr.ErrNotFileScheme
	}
	return u.Path, nil
}

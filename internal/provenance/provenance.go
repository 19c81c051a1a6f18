package provenance

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zopieux/rthumbd/internal/fsmeta"
)

const (
	keywordURI   = "Thumb::URI"
	keywordMTime = "Thumb::MTime"
	keywordSize  = "Thumb::Size"
)

// FullMeta is a source file's provenance plus its original pixel
// dimensions. Width/Height describe the *source* image, not the thumbnail
// written alongside this metadata.
type FullMeta struct {
	Width, Height int
	Fs            fsmeta.FsMeta
}

// Write embeds meta into plainPNG (an already color-type-2/8-bit-depth PNG
// byte stream, e.g. as produced by the image codec's PNG export) as three
// tEXt chunks placed immediately after IHDR, then atomically-unsafe-writes
// the result to path (truncate+create; callers are responsible for the
// tmp-then-rename dance required for crash safety).
func Write(path string, plainPNG []byte, meta FullMeta) error {
	chunks, err := readChunks(bytes.NewReader(plainPNG))
	if err != nil {
		return fmt.Errorf("provenance: parse source png: %w", err)
	}
	if len(chunks) == 0 || chunks[0].typeString() != "IHDR" {
		return fmt.Errorf("provenance: png missing leading IHDR chunk")
	}
	if err := validateIHDR(chunks[0].data); err != nil {
		return fmt.Errorf("provenance: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("provenance: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(pngSignature); err != nil {
		return err
	}
	if err := writeChunk(f, "IHDR", chunks[0].data); err != nil {
		return err
	}
	if err := writeChunk(f, "tEXt", textChunkPayload(keywordURI, meta.Fs.URI)); err != nil {
		return err
	}
	if err := writeChunk(f, "tEXt", textChunkPayload(keywordMTime, fmt.Sprintf("%.6f", meta.Fs.MtimeNsec))); err != nil {
		return err
	}
	if err := writeChunk(f, "tEXt", textChunkPayload(keywordSize, fmt.Sprintf("%d", meta.Fs.Size))); err != nil {
		return err
	}
	for _, c := range chunks[1:] {
		if err := writeChunk(f, c.typeString(), c.data); err != nil {
			return err
		}
	}
	return nil
}

// validateIHDR checks that the source image is 8-bit-depth truecolor (PNG
// color type 2), i.e. RGB8 with no alpha channel, per the writer contract
// in spec §4.B.
func validateIHDR(ihdr []byte) error {
	if len(ihdr) < 13 {
		return fmt.Errorf("malformed IHDR")
	}
	bitDepth := ihdr[8]
	colorType := ihdr[9]
	if bitDepth != 8 || colorType != 2 {
		return fmt.Errorf("expected RGB8 (bit depth 8, color type 2), got bit depth %d color type %d", bitDepth, colorType)
	}
	return nil
}

// Read parses only the three Thumb::* tEXt chunks from the PNG at path,
// ignoring every other chunk (including the pixel data). Both URI and
// MTime are required; Size is optional and defaults to 0, which triggers
// the asymmetric equality allowance in fsmeta.Equal.
func Read(path string) (fsmeta.FsMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return fsmeta.FsMeta{}, err
	}
	defer f.Close()

	chunks, err := readChunks(f)
	if err != nil {
		return fsmeta.FsMeta{}, err
	}

	var uri, mtimeText, sizeText string
	var haveURI, haveMtime bool
	for _, c := range chunks {
		if c.typeString() != "tEXt" {
			continue
		}
		keyword, text, ok := parseTextChunk(c.data)
		if !ok {
			continue
		}
		switch keyword {
		case keywordURI:
			uri, haveURI = text, true
		case keywordMTime:
			mtimeText = text
			haveMtime = true
		case keywordSize:
			sizeText = text
		}
	}
	if !haveURI {
		return fsmeta.FsMeta{}, fmt.Errorf("provenance: missing %s chunk", keywordURI)
	}
	if !haveMtime {
		return fsmeta.FsMeta{}, fmt.Errorf("provenance: missing %s chunk", keywordMTime)
	}

	var mtime float64
	if _, err := fmt.Sscanf(mtimeText, "%f", &mtime); err != nil {
		return fsmeta.FsMeta{}, fmt.Errorf("provenance: invalid %s value %q: %w", keywordMTime, mtimeText, err)
	}

	var size uint64
	if sizeText != "" {
		if _, err := fmt.Sscanf(sizeText, "%d", &size); err != nil {
			size = 0
		}
	}

	return fsmeta.FsMeta{URI: uri, MtimeNsec: mtime, Size: size}, nil
}

// Package provenance embeds and extracts original-file provenance from the
// PNG text chunks of a cached thumbnail (spec §4.B). The PNG pixel data
// itself is produced by the image codec library (vips); this package only
// ever touches the chunk stream, splicing three uncompressed Latin-1 tEXt
// chunks in after IHDR and before the image data. No library in the
// reference corpus exposes arbitrary ancillary PNG chunk embedding (the
// stdlib image/png encoder does not expose a hook for it either), so this
// is implemented directly against the PNG chunk framing, the same way the
// original Rust implementation leaned on the low-level `png` crate instead
// of a high-level image library for this exact task.
package provenance

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type chunk struct {
	kind [4]byte
	data []byte
}

func (c chunk) typeString() string { return string(c.kind[:]) }

// readChunks parses the full chunk sequence of a PNG byte stream, validating
// the leading signature. It does not interpret chunk payloads.
func readChunks(r io.Reader) ([]chunk, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, fmt.Errorf("read png signature: %w", err)
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, fmt.Errorf("not a PNG file (bad signature)")
	}

	var chunks []chunk
	for {
		var length uint32
		if err := binary.Read(br, binary.BigEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read chunk length: %w", err)
		}
		var kind [4]byte
		if _, err := io.ReadFull(br, kind[:]); err != nil {
			return nil, fmt.Errorf("read chunk type: %w", err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("read chunk payload: %w", err)
		}
		var crc uint32
		if err := binary.Read(br, binary.BigEndian, &crc); err != nil {
			return nil, fmt.Errorf("read chunk crc: %w", err)
		}
		chunks = append(chunks, chunk{kind: kind, data: data})
		if string(kind[:]) == "IEND" {
			break
		}
	}
	return chunks, nil
}

// writeChunk appends one length-prefixed, CRC-checked chunk to w.
func writeChunk(w io.Writer, kind string, data []byte) error {
	if len(kind) != 4 {
		panic("provenance: chunk type must be 4 bytes")
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, kind); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	crc := crc32.NewIEEE()
	_, _ = io.WriteString(crc, kind)
	_, _ = crc.Write(data)
	return binary.Write(w, binary.BigEndian, crc.Sum32())
}

// textChunkPayload builds a tEXt chunk payload: keyword, NUL, Latin-1 text.
func textChunkPayload(keyword, text string) []byte {
	buf := make([]byte, 0, len(keyword)+1+len(text))
	buf = append(buf, keyword...)
	buf = append(buf, 0)
	buf = append(buf, text...)
	return buf
}

// parseTextChunk splits a tEXt payload back into keyword and text. Returns
// false if there is no NUL separator.
func parseTextChunk(data []byte) (keyword, text string, ok bool) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", "", false
	}
	return string(data[:idx]), string(data[idx+1:]), true
}

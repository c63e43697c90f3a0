package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxHeaderSize bounds the declared header length. The safetensors
// format caps headers at 100MB; anything larger (or non-positive) is a
// corrupted shard, not a header to allocate for.
const maxHeaderSize = 100 << 20

// tensorMetadata is one entry of a safetensors header. Offsets are
// relative to the start of the data section, end exclusive.
type tensorMetadata struct {
	Type    string   `json:"dtype"`
	Shape   []uint64 `json:"shape"`
	Offsets []int64  `json:"data_offsets"`
}

// parseShardHeader reads the safetensors header from the start of r:
// an 8 byte little-endian header length followed by a JSON object
// mapping tensor names to their metadata. It returns the header and
// the absolute offset of the data section.
func parseShardHeader(r io.Reader) (map[string]tensorMetadata, int64, error) {
	var n int64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, 0, fmt.Errorf("header length: %w", err)
	}

	if n <= 0 || n > maxHeaderSize {
		return nil, 0, fmt.Errorf("invalid header length %d", n)
	}

	b := bytes.NewBuffer(make([]byte, 0, n))
	if _, err := io.CopyN(b, r, n); err != nil {
		return nil, 0, fmt.Errorf("header: %w", err)
	}

	var header map[string]tensorMetadata
	if err := json.NewDecoder(b).Decode(&header); err != nil {
		return nil, 0, fmt.Errorf("header: %w", err)
	}

	for name, md := range header {
		// the optional __metadata__ entry decodes to a zero value
		if md.Type == "" {
			continue
		}

		if len(md.Offsets) != 2 || md.Offsets[0] < 0 || md.Offsets[1] < md.Offsets[0] {
			return nil, 0, fmt.Errorf("invalid data_offsets for %q", name)
		}
	}

	return header, 8 + n, nil
}

// writeSafetensors serializes the collection into a single safetensors
// container: header entries and payloads both follow collection order,
// payloads packed contiguously. Payload bytes are written exactly as
// they were read from the source shards.
func writeSafetensors(w io.Writer, c *TensorCollection) error {
	var header bytes.Buffer
	header.WriteByte('{')

	var offset int64
	for i, t := range c.Tensors() {
		if i > 0 {
			header.WriteByte(',')
		}

		name, err := json.Marshal(t.Name)
		if err != nil {
			return err
		}

		md, err := json.Marshal(tensorMetadata{
			Type:    t.Dtype,
			Shape:   t.Shape,
			Offsets: []int64{offset, offset + int64(len(t.Data))},
		})
		if err != nil {
			return err
		}

		header.Write(name)
		header.WriteByte(':')
		header.Write(md)

		offset += int64(len(t.Data))
	}

	header.WriteByte('}')

	// pad the header so the data section is 8 byte aligned
	for (8+header.Len())%8 != 0 {
		header.WriteByte(' ')
	}

	if err := binary.Write(w, binary.LittleEndian, int64(header.Len())); err != nil {
		return err
	}

	if _, err := header.WriteTo(w); err != nil {
		return err
	}

	for _, t := range c.Tensors() {
		if _, err := w.Write(t.Data); err != nil {
			return fmt.Errorf("write %q: %w", t.Name, err)
		}
	}

	return nil
}

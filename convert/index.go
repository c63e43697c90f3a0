package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// IndexFilename is the manifest a sharded checkpoint publishes alongside
// its shard files.
const IndexFilename = "model.safetensors.index.json"

var (
	ErrIndexNotFound  = errors.New("shard index not found")
	ErrIndexMalformed = errors.New("shard index malformed")
)

// ShardIndexEntry maps one tensor name to the shard file that holds it.
type ShardIndexEntry struct {
	Name  string
	Shard string
}

// ShardIndex is the parsed weight map of a sharded checkpoint. Entries
// keep the order they appear in the manifest document so extraction
// order is reproducible across runs.
type ShardIndex struct {
	entries []ShardIndexEntry
}

func (si *ShardIndex) Entries() []ShardIndexEntry {
	return si.entries
}

func (si *ShardIndex) Len() int {
	return len(si.entries)
}

// ParseShardIndex reads the weight map manifest from dir. encoding/json
// would shuffle object keys into a map, so the weight_map object is
// walked token by token to preserve document order.
func ParseShardIndex(dir string) (*ShardIndex, error) {
	f, err := os.Open(filepath.Join(dir, IndexFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, filepath.Join(dir, IndexFilename))
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: expected top-level object in %s", ErrIndexMalformed, IndexFilename)
	}

	var si *ShardIndex
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexMalformed, err)
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key in %s", ErrIndexMalformed, IndexFilename)
		}

		if key != "weight_map" {
			// skip metadata and anything else
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrIndexMalformed, err)
			}
			continue
		}

		if si != nil {
			return nil, fmt.Errorf("%w: duplicate weight_map in %s", ErrIndexMalformed, IndexFilename)
		}

		si, err = parseWeightMap(dec)
		if err != nil {
			return nil, err
		}
	}

	if si == nil {
		return nil, fmt.Errorf("%w: missing weight_map in %s", ErrIndexMalformed, IndexFilename)
	}

	return si, nil
}

func parseWeightMap(dec *json.Decoder) (*ShardIndex, error) {
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: weight_map is not an object", ErrIndexMalformed)
	}

	var si ShardIndex
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexMalformed, err)
		}

		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string tensor name", ErrIndexMalformed)
		}

		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate tensor name %q", ErrIndexMalformed, name)
		}
		seen[name] = struct{}{}

		var shard string
		if err := dec.Decode(&shard); err != nil {
			return nil, fmt.Errorf("%w: shard for %q is not a string", ErrIndexMalformed, name)
		}

		si.entries = append(si.entries, ShardIndexEntry{Name: name, Shard: shard})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexMalformed, err)
	}

	return &si, nil
}

package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	ErrShardMissing     = errors.New("shard file missing")
	ErrTensorNotInShard = errors.New("tensor not in shard")
	ErrRenameCollision  = errors.New("rename collision")
)

type pendingTensor struct {
	source, renamed string
}

// Extract walks the shard index, keeps the tensors the filter accepts
// and returns them keyed by renamed identifier. Entries are grouped by
// shard so each shard file is opened exactly once; shards are visited
// in the order the index first references them and tensors within a
// shard in index order, so the collection is deterministic.
func Extract(dir string, index *ShardIndex, filter NameFilter) (*TensorCollection, error) {
	groups := make(map[string][]pendingTensor)
	var shards []string

	renamed := make(map[string]string, index.Len())
	for _, e := range index.Entries() {
		name, ok := filter.Rename(e.Name)
		if !ok {
			continue
		}

		if prev, ok := renamed[name]; ok {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrRenameCollision, prev, e.Name, name)
		}
		renamed[name] = e.Name

		if _, ok := groups[e.Shard]; !ok {
			shards = append(shards, e.Shard)
		}
		groups[e.Shard] = append(groups[e.Shard], pendingTensor{e.Name, name})
	}

	slog.Debug("filtered shard index", "kept", len(renamed), "total", index.Len(), "shards", len(shards))

	c := NewTensorCollection()
	for _, shard := range shards {
		if err := extractShard(filepath.Join(dir, shard), shard, groups[shard], c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// extractShard reads the wanted tensor payloads out of a single shard
// file. The file handle is scoped here so it is released even when a
// read fails partway.
func extractShard(path, shard string, wanted []pendingTensor, c *TensorCollection) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrShardMissing, path)
	} else if err != nil {
		return err
	}
	defer f.Close()

	header, dataStart, err := parseShardHeader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", shard, err)
	}

	for _, p := range wanted {
		md, ok := header[p.source]
		if !ok || md.Type == "" {
			return fmt.Errorf("%w: index promises %q in %s", ErrTensorNotInShard, p.source, shard)
		}

		data := make([]byte, md.Offsets[1]-md.Offsets[0])
		if _, err := f.ReadAt(data, dataStart+md.Offsets[0]); err != nil {
			return fmt.Errorf("read %q from %s: %w", p.source, shard, err)
		}

		c.Put(Tensor{
			Name:  p.renamed,
			Dtype: md.Type,
			Shape: md.Shape,
			Data:  data,
		})
	}

	slog.Debug("extracted shard", "shard", shard, "tensors", len(wanted))
	return nil
}

package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// TensorsFilename is the single-file container the extracted model is
// written to. Re-sharding oversized outputs is a known limitation.
const TensorsFilename = "model.safetensors"

// tokenizerFiles are auxiliary artifacts copied verbatim from the
// source checkpoint when present. Some checkpoints omit some of these,
// so absence is skipped rather than failed.
var tokenizerFiles = []string{
	"tokenizer.json",
	"tokenizer_config.json",
	"vocab.json",
	"merges.txt",
	"special_tokens_map.json",
	"added_tokens.json",
}

// generationConfig holds fixed sampling defaults plus the token ids
// copied from the derived config so both documents agree on them.
type generationConfig struct {
	BOSTokenID        int     `json:"bos_token_id"`
	EOSTokenID        int     `json:"eos_token_id"`
	DoSample          bool    `json:"do_sample"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	TopK              int     `json:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// WriteCheckpoint serializes the extracted model under dstDir: the
// tensor container, the derived config, a generation config and copies
// of whatever tokenizer artifacts srcDir provides. An existing dstDir
// is overwritten, not merged.
func WriteCheckpoint(srcDir, dstDir string, c *TensorCollection, cfg *TextConfig) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}

	if err := writeTensors(filepath.Join(dstDir, TensorsFilename), c); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(dstDir, ConfigFilename), cfg); err != nil {
		return err
	}

	gen := generationConfig{
		BOSTokenID:        cfg.BOSTokenID,
		EOSTokenID:        cfg.EOSTokenID,
		DoSample:          true,
		Temperature:       0.7,
		TopP:              0.8,
		TopK:              20,
		RepetitionPenalty: 1.05,
	}
	if err := writeJSON(filepath.Join(dstDir, "generation_config.json"), gen); err != nil {
		return err
	}

	for _, name := range tokenizerFiles {
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
			return err
		}
	}

	return nil
}

func writeTensors(path string, c *TensorCollection) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeSafetensors(f, c); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}

func writeJSON(path string, v any) error {
	bts, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(bts, '\n'), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("auxiliary file not present, skipping", "file", filepath.Base(src))
		return nil
	} else if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}

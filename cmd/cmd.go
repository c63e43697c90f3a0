package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/vlsplit/vlsplit/convert"
	"github.com/vlsplit/vlsplit/format"
	"github.com/vlsplit/vlsplit/logutil"
	"github.com/vlsplit/vlsplit/progress"
)

func NewCLI() *cobra.Command {
	level := slog.LevelInfo
	if os.Getenv("VLSPLIT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(logutil.NewLogger(os.Stderr, level))

	rootCmd := &cobra.Command{
		Use:   "vlsplit MODEL_DIR OUTPUT_DIR",
		Short: "Extract the text-only language model from a vision-language checkpoint",
		Args:  cobra.ExactArgs(2),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
		RunE: runSplit,
	}

	rootCmd.Flags().String("prefix", "model.language_model.", "Anchored prefix identifying language model tensors")
	rootCmd.Flags().String("replacement", "model.", "Prefix substituted into extracted tensor names")
	rootCmd.Flags().StringArray("keep", []string{"lm_head.weight"}, "Exact tensor names kept unrenamed from outside the prefix")

	return rootCmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	srcDir, dstDir := args[0], args[1]

	// both checks run before anything is written so a bad invocation
	// leaves no partial output directory behind
	if _, err := os.Stat(srcDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("model directory not found: %s", srcDir)
	} else if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(srcDir, convert.ConfigFilename)); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s not found in %s", convert.ConfigFilename, srcDir)
	} else if err != nil {
		return err
	}

	prefix, _ := cmd.Flags().GetString("prefix")
	replacement, _ := cmd.Flags().GetString("replacement")
	keep, _ := cmd.Flags().GetStringArray("keep")

	filter := convert.NameFilter{
		Prefix:      prefix,
		Replacement: replacement,
		Keep:        keep,
	}

	shards, err := filepath.Glob(filepath.Join(srcDir, "model-*.safetensors"))
	if err != nil {
		return err
	}
	slog.Info("scanned checkpoint", "dir", srcDir, "shards", len(shards))

	p := progress.NewProgress(os.Stderr)
	defer p.Stop()

	var cfg *convert.TextConfig
	if err := phase(p, "[1/3] deriving text config", func() (err error) {
		cfg, err = convert.DeriveTextConfig(srcDir)
		return err
	}); err != nil {
		return err
	}

	var tensors *convert.TensorCollection
	if err := phase(p, "[2/3] extracting language model weights", func() error {
		index, err := convert.ParseShardIndex(srcDir)
		if err != nil {
			return err
		}

		tensors, err = convert.Extract(srcDir, index, filter)
		return err
	}); err != nil {
		return err
	}

	if err := phase(p, "[3/3] saving text model", func() error {
		return convert.WriteCheckpoint(srcDir, dstDir, tensors, cfg)
	}); err != nil {
		return err
	}

	p.StopAndClear()

	if err := printSummary(cmd.OutOrStdout(), dstDir, tensors); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\ntext model saved to %s\n", dstDir)
	return nil
}

// phase runs fn under a spinner that is stopped whether or not fn fails.
func phase(p *progress.Progress, status string, fn func() error) error {
	spinner := progress.NewSpinner(status)
	p.Add(status, spinner)
	defer spinner.Stop()

	return fn()
}

func printSummary(w io.Writer, dstDir string, c *convert.TensorCollection) error {
	var params uint64
	for _, t := range c.Tensors() {
		params += t.Elements()
	}

	entries, err := os.ReadDir(dstDir)
	if err != nil {
		return err
	}

	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return err
		}
		sizes[e.Name()] = info.Size()
	}

	names := maps.Keys(sizes)
	slices.Sort(names)

	var data [][]string
	for _, name := range names {
		data = append(data, []string{name, format.HumanBytes(sizes[name])})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FILE", "SIZE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(w, "\n%s tensors, %s parameters\n", format.HumanNumber(uint64(c.Len())), format.HumanNumber(params))
	return nil
}

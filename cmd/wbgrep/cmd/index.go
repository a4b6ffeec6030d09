package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wb200/wbgrep/internal/indexer"
)

var indexClear bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the semantic index for the repository root",
	Long: `Walks the repository root, chunks every eligible file, embeds each
chunk, and stores the vectors locally. Unchanged files (by content
hash) are skipped; use --clear to force a full rebuild.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexClear, "clear", false, "wipe the existing index before rebuilding")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Printf("Indexing %s\n", rt.root)
	start := time.Now()

	var summary indexer.Summary

	runErr := runWithSpinner(func(updates chan<- tea.Msg) {
		progress := func(current, total int, path string) {
			updates <- indexProgressMsg{current: current, total: total, path: path}
		}
		s, err := rt.idx.IndexAll(context.Background(), indexClear, progress)
		summary = s
		updates <- indexDoneMsg{err: err}
	})

	elapsed := fmtDuration(time.Since(start))

	if runErr != nil {
		return fmt.Errorf("indexing: %w", runErr)
	}

	fmt.Printf("%s %d indexed, %d skipped, %d failed, %d chunks (%s)\n",
		color.GreenString("done"), summary.Indexed, summary.Skipped, summary.Failed, summary.TotalChunks, elapsed)

	if summary.Failed > 0 {
		fmt.Println(color.YellowString("some files failed to index; run with --verbose and retry"))
	}

	return nil
}

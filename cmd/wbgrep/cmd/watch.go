package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wb200/wbgrep/internal/config"
	"github.com/wb200/wbgrep/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the repository root and keep the index up to date",
	Long: `Registers filesystem watches on the repository root and reconciles
changed files into the index as they settle (debounced 500ms). Runs
until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Printf("Indexing %s before watching...\n", rt.root)
	summary, err := rt.idx.IndexAll(context.Background(), false, nil)
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	fmt.Printf("%s %d indexed, %d skipped, %d failed\n",
		color.GreenString("done"), summary.Indexed, summary.Skipped, summary.Failed)

	storeDir := config.StoreDir(rt.root)
	w, err := watcher.New(rt.root, storeDir, rt.idx, rt.logger, rt.cfg.Ignore.Patterns...)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	fmt.Printf("Watching %s %s\n", rt.root, color.HiBlackString("(ctrl-c to stop)"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}

	fmt.Println(color.GreenString("stopped"))
	return nil
}

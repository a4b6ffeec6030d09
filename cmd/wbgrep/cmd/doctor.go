package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type doctorReport struct {
	Root           string   `json:"root"`
	BackendReached bool     `json:"backendReached"`
	ModelAvailable bool     `json:"modelAvailable"`
	Model          string   `json:"model"`
	IndexedFiles   int64    `json:"indexedFiles"`
	IndexedChunks  int64    `json:"indexedChunks"`
	Errors         []string `json:"errors,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the embedding backend and index health",
	Long: `Pings the configured embedding backend, confirms the configured
model is available, and reports index statistics. Use this before a
first index or when search results look stale or empty.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	report := doctorReport{Root: rt.root, Model: rt.cfg.Ollama.Model}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	emb := newEmbedderFromConfig(rt.cfg, rt.logger)
	report.BackendReached = emb.Ping(ctx)
	if report.BackendReached {
		has, err := emb.HasModel(ctx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("checking model: %v", err))
		}
		report.ModelAvailable = has
	} else {
		report.Errors = append(report.Errors, fmt.Sprintf("backend unreachable at %s", rt.cfg.Ollama.BaseURL))
	}

	stats, err := rt.store.Stats()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("reading store stats: %v", err))
	} else {
		report.IndexedFiles = stats.FileCount
		report.IndexedChunks = stats.ChunkCount
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printDoctorReport(report)
	if len(report.Errors) > 0 {
		return fmt.Errorf("doctor found %d issue(s)", len(report.Errors))
	}
	return nil
}

func printDoctorReport(r doctorReport) {
	status := func(ok bool) string {
		if ok {
			return color.GreenString("ok")
		}
		return color.RedString("fail")
	}

	fmt.Printf("root:            %s\n", r.Root)
	fmt.Printf("backend reached: %s\n", status(r.BackendReached))
	fmt.Printf("model available: %s (%s)\n", status(r.ModelAvailable), r.Model)
	fmt.Printf("indexed files:   %d\n", r.IndexedFiles)
	fmt.Printf("indexed chunks:  %d\n", r.IndexedChunks)
	for _, e := range r.Errors {
		fmt.Println(color.YellowString("  - %s", e))
	}
}

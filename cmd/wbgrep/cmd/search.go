package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wb200/wbgrep/internal/indexer"
)

var (
	searchLimit      int
	searchPathFilter string
	searchShowBody   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index by meaning",
	Long: `Embeds the query and returns the most similar indexed chunks,
ranked by score. Scores are 1/(1+distance): closer to 1 is a better
match.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results (default from config)")
	searchCmd.Flags().StringVarP(&searchPathFilter, "path", "p", "", "restrict results to files under this path prefix")
	searchCmd.Flags().BoolVar(&searchShowBody, "content", false, "print chunk content alongside each result")
	rootCmd.AddCommand(searchCmd)
}

type searchResultJSON struct {
	FilePath  string  `json:"filePath"`
	LineStart int     `json:"lineStart"`
	LineEnd   int     `json:"lineEnd"`
	Score     float64 `json:"score"`
	Content   string  `json:"content,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := rt.idx.Search(ctx, args[0], indexer.SearchOptions{
		Limit:      searchLimit,
		PathFilter: searchPathFilter,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		if !jsonOut {
			fmt.Println("no results")
		} else {
			fmt.Println("[]")
		}
		return nil
	}

	showBody := searchShowBody || rt.cfg.Search.ShowContent

	if jsonOut {
		out := make([]searchResultJSON, len(results))
		for i, r := range results {
			rel, _ := filepath.Rel(rt.root, r.FilePath)
			item := searchResultJSON{FilePath: rel, LineStart: r.LineStart, LineEnd: r.LineEnd, Score: r.Score}
			if showBody {
				item.Content = r.Content
			}
			out[i] = item
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for i, r := range results {
		rel, _ := filepath.Rel(rt.root, r.FilePath)
		fmt.Printf("%d. %s %s:%d-%d\n", i+1, color.CyanString("%.3f", r.Score), rel, r.LineStart, r.LineEnd)
		if showBody {
			fmt.Println(r.Content)
			fmt.Println()
		}
	}

	return nil
}

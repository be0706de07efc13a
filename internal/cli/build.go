package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/adapter/loader"
	"docqa/internal/usecase"
)

var rebuild bool

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Ingest a data directory into the vector index",
	Long: `Load every PDF, DOCX and text file under the data directory, split it into
chunks and write the chunks to the configured vector store.

With vector_db: local the index is stored under local.path. With vector_db: idol
the chunks are posted to idol.index_url.

Examples:
  docqa build              # Ingest data.path from the config
  docqa build docs/        # Ingest a specific directory
  docqa build --rebuild    # Clear the local index first`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&rebuild, "rebuild", false, "clear the local index before ingesting")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := buildPath(cfg.Data.Path, args)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	if rebuild && cfg.VectorDB == config.VectorDBIDOL {
		fmt.Println("Note: --rebuild only applies to the local index; IDOL databases are left as they are.")
	}

	comps, err := openComponents(cfg, modeIndex, rebuild, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	split, err := newSplitter(cfg)
	if err != nil {
		return err
	}

	ld := loader.NewDirectoryLoader(loader.NewWalker(cfg.Data.Includes, cfg.Data.Excludes), log)
	buildUC := usecase.NewBuildUseCase(ld, split, comps.store, log)

	fmt.Printf("Loading documents from %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(done, total int, source string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		rate := float64(done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
		}
	}

	start := time.Now()
	result, err := buildUC.Build(cmd.Context(), path, progress)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("\nBuild complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Printf("  Documents loaded: %d\n", result.Documents)
	fmt.Printf("  Sources:          %d\n", result.Sources)
	fmt.Printf("  Chunks created:   %d\n", result.Chunks)
	fmt.Printf("  IDs written:      %d\n", result.IDs)

	if len(result.LoadErrors) > 0 {
		fmt.Printf("\nFiles skipped:\n")
		for _, e := range result.LoadErrors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if len(result.BatchErrors) > 0 {
		fmt.Printf("\nIngestion failures (%d batches rejected):\n", len(result.BatchErrors))
		for _, e := range result.BatchErrors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if cfg.VectorDB == config.VectorDBIDOL {
		fmt.Printf("\nIndexed into %s database %s\n", cfg.IDOL.IndexURL, cfg.IDOL.Database)
	} else {
		fmt.Printf("\nIndex stored at: %s\n", resolvePath(cfg.LocalIndexPath()))
	}
	return nil
}

// buildPath picks the data directory: the argument when given, else data.path.
// Relative paths resolve against the root directory.
func buildPath(dataPath string, args []string) string {
	if len(args) > 0 {
		return resolvePath(args[0])
	}
	return resolvePath(dataPath)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

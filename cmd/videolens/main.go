// Command videolens analyzes a video with a multimodal model and turns the
// result into a browsable timeline with key-frames and exports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/videolens/internal/config"
)

var (
	outputDir string
	exportArg string
	modelName string
	videoPath string
	withRemix bool
	plain     bool
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "videolens",
		Short: "Analyze videos into timelines, key-frames and reports",
		Long: `videolens sends a video to Gemini for a chronological analysis, parses the
returned document into segments, extracts a key-frame for each segment and
exports the result as text, PDF, JSON or image files.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: $VIDEOLENS_OUTPUT_DIR or ./output)")
	rootCmd.PersistentFlags().StringVarP(&exportArg, "export", "e", "", "Comma separated export formats: txt,pdf,json,frames")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <video-file>",
		Short: "Analyze a video",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVarP(&modelName, "model", "m", "", "Gemini model (default: $GEMINI_MODEL or gemini-2.0-flash)")
	analyzeCmd.Flags().BoolVar(&withRemix, "remix", false, "Also produce a narrated audio remix")
	analyzeCmd.Flags().BoolVar(&plain, "plain", false, "Print plain output instead of the interactive view")

	parseCmd := &cobra.Command{
		Use:   "parse <analysis.md>",
		Short: "Re-parse a saved analysis document",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}
	parseCmd.Flags().StringVar(&videoPath, "video", "", "Source video to extract key-frames from")

	remixCmd := &cobra.Command{
		Use:   "remix <analysis.md>",
		Short: "Narrate a saved analysis document as audio",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemix,
	}
	remixCmd.Flags().StringVarP(&modelName, "model", "m", "", "Gemini model used to write the script")

	rootCmd.AddCommand(analyzeCmd, parseCmd, remixCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if modelName != "" {
		cfg.Gemini.Model = modelName
	}
	return cfg, nil
}

// newLogger configures the tint handler on w.
func newLogger(w io.Writer, noColor bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
			NoColor:    noColor,
		}),
	)
}

// fileLogger keeps log lines out of the interactive view.
func fileLogger(dir string) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, "videolens.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newLogger(file, true), func() { file.Close() }, nil
}

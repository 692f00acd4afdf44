package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bdougie/videolens/internal/analyzer"
	"github.com/bdougie/videolens/internal/compressor"
	"github.com/bdougie/videolens/internal/config"
	"github.com/bdougie/videolens/internal/export"
	"github.com/bdougie/videolens/internal/extractor"
	"github.com/bdougie/videolens/internal/models"
	"github.com/bdougie/videolens/internal/parser"
	"github.com/bdougie/videolens/internal/pipeline"
	"github.com/bdougie/videolens/internal/remix"
	"github.com/bdougie/videolens/internal/session"
	"github.com/bdougie/videolens/internal/ui"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireGemini(); err != nil {
		return err
	}
	formats, err := export.ParseFormats(exportArg)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, false)
	var listener pipeline.Listener = logListener{logger: logger}
	var bridge *ui.Bridge
	if !plain {
		fl, closeLog, err := fileLogger(cfg.OutputDir)
		if err != nil {
			return err
		}
		defer closeLog()
		logger = fl
		bridge = ui.NewBridge()
		listener = bridge
	}

	comp := compressor.New(cfg.Video.FFmpegPath, logger)
	if err := comp.CheckAvailable(); err != nil {
		logger.Warn("ffmpeg unavailable, large videos cannot be compressed", "error", err)
	}

	client := analyzer.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	defer client.Close()

	sess := session.New(
		comp,
		analyzer.New(client, logger),
		extractor.New(logger, extractor.WithTimeout(cfg.Video.FrameTimeout), extractor.WithFFmpeg(cfg.Video.FFmpegPath)),
		logger,
		session.WithMaxSourceSize(cfg.Video.MaxSourceSize),
		session.WithFrameWorkers(cfg.Video.Workers),
		session.WithListener(listener),
		session.WithPipelineOptions(
			pipeline.WithCompressThreshold(cfg.Video.CompressThreshold),
			pipeline.WithInlineLimit(cfg.Video.InlineLimit),
			pipeline.WithTickInterval(cfg.Progress),
		),
	)
	defer sess.Clear()

	asset, err := sess.Select(args[0])
	if err != nil {
		return err
	}

	if plain {
		if err := analyzePlain(ctx, sess); err != nil {
			return err
		}
	} else {
		final, err := tea.NewProgram(ui.NewModel(ctx, sess, bridge), tea.WithContext(ctx)).Run()
		if err != nil {
			return fmt.Errorf("interactive view failed: %w", err)
		}
		m, _ := final.(ui.Model)
		if m.Err() != nil {
			return m.Err()
		}
		if !m.Finished() {
			return nil
		}
	}

	if len(formats) == 0 && !withRemix {
		return nil
	}

	report, err := sessionReport(sess, asset.Name)
	if err != nil {
		return err
	}
	if withRemix {
		if report.Remix, err = buildRemix(ctx, cfg, client, logger, report.Document); err != nil {
			return err
		}
	}
	return writeReport(ctx, cfg, logger, report, formats)
}

func analyzePlain(ctx context.Context, sess *session.Session) error {
	if err := sess.Start(ctx); err != nil {
		return err
	}
	if err := sess.Wait(); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	parsed, err := sess.Analysis()
	if errors.Is(err, parser.ErrUnstructured) {
		doc, _ := sess.Document()
		fmt.Print(ui.Raw(doc))
		return nil
	}
	if err != nil {
		return err
	}

	if err := sess.LoadFrames(ctx); err != nil {
		return err
	}
	sess.WaitFrames()
	fmt.Print(ui.Render(parsed, sess.Frames()))
	return nil
}

func sessionReport(sess *session.Session, name string) (export.Report, error) {
	doc, err := sess.Document()
	if err != nil {
		return export.Report{}, err
	}
	report := export.Report{Name: name, Document: doc}
	if parsed, err := sess.Analysis(); err == nil {
		report.Parsed = parsed
		report.Frames = sess.Frames()
	}
	return report, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formats, err := export.ParseFormats(exportArg)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, false)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read analysis: %w", err)
	}
	report := export.Report{Name: documentName(args[0]), Document: string(data)}

	parsed, err := parser.Parse(report.Document)
	switch {
	case errors.Is(err, parser.ErrUnstructured):
		fmt.Print(ui.Raw(report.Document))
	case err != nil:
		return err
	default:
		report.Parsed = parsed
		if videoPath != "" {
			if _, _, err := session.Validate(videoPath, cfg.Video.MaxSourceSize); err != nil {
				return err
			}
			cache := extractor.NewCache(
				extractor.New(logger, extractor.WithTimeout(cfg.Video.FrameTimeout), extractor.WithFFmpeg(cfg.Video.FFmpegPath)),
				logger,
				extractor.WithWorkers(cfg.Video.Workers),
			)
			cache.Fill(ctx, videoPath, parsed.Segments)
			cache.Wait()
			report.Frames = cache.Slots()
		}
		fmt.Print(ui.Render(parsed, report.Frames))
	}

	if len(formats) == 0 {
		return nil
	}
	return writeReport(ctx, cfg, logger, report, formats)
}

func runRemix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireScript(); err != nil {
		return err
	}
	logger := newLogger(os.Stderr, false)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read analysis: %w", err)
	}

	var client *analyzer.Client
	if cfg.Script.Backend == config.ScriptBackendGemini {
		client = analyzer.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		defer client.Close()
	}

	report := export.Report{Name: documentName(args[0]), Document: string(data)}
	if report.Remix, err = buildRemix(ctx, cfg, client, logger, report.Document); err != nil {
		return err
	}
	return writeReport(ctx, cfg, logger, report, nil)
}

func buildRemix(ctx context.Context, cfg *config.Config, client *analyzer.Client, logger *slog.Logger, document string) (*models.Remix, error) {
	if err := cfg.RequireSpeech(); err != nil {
		return nil, err
	}
	voice, err := remix.NewSpeech(cfg.Speech.APIKey, cfg.Speech.BaseURL, cfg.Speech.Model, cfg.Speech.Voice)
	if err != nil {
		return nil, err
	}

	var writer remix.ScriptWriter
	switch cfg.Script.Backend {
	case config.ScriptBackendOllama:
		writer = remix.NewOllamaWriter(cfg.Script.OllamaModel, logger)
	default:
		writer = remix.NewGeminiWriter(client)
	}
	logger.Debug("writing remix script", "backend", cfg.Script.Backend)
	return remix.New(writer, voice, logger).Remix(ctx, document)
}

func writeReport(ctx context.Context, cfg *config.Config, logger *slog.Logger, report export.Report, formats []export.Format) error {
	paths, err := export.New(cfg.OutputDir, logger).Export(ctx, report, formats)
	for _, p := range paths {
		fmt.Println(p)
	}
	return err
}

// documentName derives a report name from a saved analysis path.
func documentName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSuffix(name, "_analysis")
}

// logListener reports pipeline events for the plain output mode.
type logListener struct {
	logger *slog.Logger
}

func (l logListener) OnTransition(from, to pipeline.State, err error) {
	if err != nil {
		l.logger.Error("processing failed", "stage", from, "error", err)
		return
	}
	l.logger.Info("processing", "state", to)
}

func (l logListener) OnProgress(percent int) {
	l.logger.Debug("progress", "percent", percent)
}

func (l logListener) OnStatus(message string) {
	l.logger.Info(message)
}

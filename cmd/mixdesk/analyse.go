package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/mixdesk/internal/cli"
	"github.com/linuxmatters/mixdesk/internal/logging"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/linuxmatters/mixdesk/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// AnalyseCmd profiles each file: loudness, spectrum, stereo width and the
// diagnostic suggestions.
type AnalyseCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Audio files to analyse"`
}

type analyseOutput struct {
	File        string                 `json:"file"`
	TrackID     string                 `json:"track_id"`
	Profile     processor.TrackProfile `json:"profile"`
	Suggestions []processor.Suggestion `json:"suggestions,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

func (c *AnalyseCmd) Run(ctx context.Context, a *App) error {
	switch {
	case a.json:
		return c.runJSON(ctx, a)
	case a.plain || !isTerminal(os.Stdout):
		return c.runPlain(ctx, a)
	default:
		return c.runInteractive(ctx, a)
	}
}

// analyseFile runs one file through the engine and saves its report.
func (a *App) analyseFile(ctx context.Context, path string, progress processor.ProgressFunc) (analyseOutput, ui.FileResult, error) {
	start := time.Now()
	out := analyseOutput{File: path}
	s, err := a.load(ctx, path)
	if err != nil {
		return out, ui.FileResult{}, err
	}
	out.TrackID = a.trackID(ctx, path, s)

	res, err := a.engine.ProfileTrack(ctx, out.TrackID, s, progress)
	if err != nil {
		return out, ui.FileResult{}, err
	}
	out.Profile = res.Profile
	out.Suggestions = res.Suggestions

	data := reportBase(path, s, out.TrackID, start)
	data.Profile = &res.Profile
	data.Suggestions = res.Suggestions
	a.report(data)

	result := ui.FileResult{
		Integrated:  res.Profile.Loudness.Integrated,
		TruePeak:    res.Profile.Loudness.TruePeak,
		CentroidHz:  res.Profile.Spectrum.CentroidHz,
		StereoWidth: res.Profile.StereoWidth,
		Degraded:    res.Profile.Loudness.Degraded,
		Suggestions: len(res.Suggestions),
	}
	if a.logs {
		result.ReportPath = logging.ReportPath(path)
	}
	return out, result, nil
}

func (c *AnalyseCmd) runJSON(ctx context.Context, a *App) error {
	outputs := make([]analyseOutput, 0, len(c.Files))
	for _, path := range c.Files {
		out, _, err := a.analyseFile(ctx, path, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Error = err.Error()
		}
		outputs = append(outputs, out)
	}
	return a.emitJSON(outputs)
}

// runPlain shows one mpb bar counting stages across every file, then prints
// each file's headline and suggestions.
func (c *AnalyseCmd) runPlain(ctx context.Context, a *App) error {
	stages := len(ui.Stages)
	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(a.out))
	bar := p.AddBar(int64(len(c.Files)*stages),
		mpb.PrependDecorators(
			decor.Name("Analysing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Name(" "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)

	outputs := make([]analyseOutput, len(c.Files))
	errs := make([]error, len(c.Files))
	for i, path := range c.Files {
		var mu sync.Mutex
		done := make(map[string]bool, stages)
		progress := func(stage string, pct float64) {
			mu.Lock()
			defer mu.Unlock()
			if pct >= 1 && !done[stage] {
				done[stage] = true
				bar.Increment()
			}
		}

		outputs[i], _, errs[i] = a.analyseFile(ctx, path, progress)
		if errs[i] != nil {
			if ctx.Err() != nil {
				bar.Abort(false)
				p.Wait()
				return ctx.Err()
			}
			mu.Lock()
			bar.IncrBy(stages - len(done))
			mu.Unlock()
		}
	}
	p.Wait()

	failed := 0
	for i, out := range outputs {
		fmt.Fprintln(a.out)
		if errs[i] != nil {
			failed++
			cli.PrintError(fmt.Sprintf("%s: %v", filepath.Base(out.File), errs[i]))
			continue
		}
		printHeadline(a, out)
	}
	return batchError(failed, len(c.Files))
}

// runInteractive drives the bubbletea view from a background goroutine.
func (c *AnalyseCmd) runInteractive(ctx context.Context, a *App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log lines would tear the view; keep them only when they go to a file.
	if a.cfg.Log.File == "" {
		prev := a.logger.Out
		a.logger.SetOutput(io.Discard)
		defer a.logger.SetOutput(prev)
	}

	p := tea.NewProgram(ui.NewModel(c.Files, cancel), tea.WithContext(ctx))

	go func() {
		for i, path := range c.Files {
			if ctx.Err() != nil {
				break
			}
			p.Send(ui.FileStartMsg{FileIndex: i, FileName: path})

			index := i
			progress := func(stage string, pct float64) {
				p.Send(ui.ProgressMsg{FileIndex: index, Stage: stage, Progress: pct})
			}
			_, result, err := a.analyseFile(ctx, path, progress)
			p.Send(ui.FileCompleteMsg{FileIndex: i, Result: result, Error: err})
		}
		p.Send(ui.AllCompleteMsg{})
	}()

	final, err := p.Run()
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	m, ok := final.(ui.Model)
	if !ok {
		return nil
	}
	if m.Aborted {
		return context.Canceled
	}
	return batchError(m.FailedFiles, len(m.Files))
}

func printHeadline(a *App, out analyseOutput) {
	l := out.Profile.Loudness
	cli.PrintSection(a.out, filepath.Base(out.File))
	cli.PrintKeyValue(a.out, "integrated", fmt.Sprintf("%.1f LUFS", l.Integrated))
	cli.PrintKeyValue(a.out, "true peak", fmt.Sprintf("%.1f dBTP", l.TruePeak))
	cli.PrintKeyValue(a.out, "range", fmt.Sprintf("%.1f LU", l.LoudnessRange))
	cli.PrintKeyValue(a.out, "centroid", fmt.Sprintf("%.0f Hz", out.Profile.Spectrum.CentroidHz))
	cli.PrintKeyValue(a.out, "width", fmt.Sprintf("%.2f", out.Profile.StereoWidth))
	if l.Degraded {
		cli.PrintWarning("loudness is approximate, install ffmpeg for EBU R128 figures")
	}
	printSuggestions(a, out.Suggestions)
}

// isTerminal reports whether f is an interactive terminal, which the
// bubbletea view needs.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func batchError(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", failed, total)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/doc-converter/cmd/doc-converter/ui"
	"github.com/spherical/doc-converter/internal/app"
	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/domain"
)

var (
	convertTarget   string
	convertSource   string
	convertOut      string
	convertOutDir   string
	convertFallback bool
	convertJobs     int
	convertForce    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert --to <target> FILE...",
	Short: "Convert one or more files",
	Long: `Convert images or PDFs to the target format. Each file is converted on
its own; a failure does not stop the remaining files. Existing outputs are
kept unless --force is given, and two inputs may not share an output path.

Targets: text, docx, pdf, xlsx, pptx.`,
	Example: `  doc-converter convert --to docx scan.png
  doc-converter convert --to xlsx --fallback-text --out-dir out/ *.pdf
  doc-converter convert --to text --jobs 4 scans/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertTarget, "to", "t", "", "target format (required)")
	convertCmd.Flags().StringVarP(&convertSource, "source", "s", "", "source kind: image or pdf (default: detected)")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output path (single input only)")
	convertCmd.Flags().StringVar(&convertOutDir, "out-dir", "", "output directory (default: next to each input)")
	convertCmd.Flags().BoolVar(&convertFallback, "fallback-text", false, "write extracted text when a PDF has no tables (xlsx only)")
	convertCmd.Flags().IntVarP(&convertJobs, "jobs", "j", 1, "number of files converted at once")
	convertCmd.Flags().BoolVarP(&convertForce, "force", "f", false, "overwrite existing output files")
	convertCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(convertCmd)
}

// fileOutcome is one row of the summary.
type fileOutcome struct {
	input    string
	output   string
	pages    int
	size     int64
	duration time.Duration
	err      error
}

func runConvert(cmd *cobra.Command, args []string) error {
	target, err := domain.ParseTargetKind(convertTarget)
	if err != nil {
		return err
	}

	var declared domain.SourceKind
	if convertSource != "" {
		if declared, err = domain.ParseSourceKind(convertSource); err != nil {
			return err
		}
	}

	if convertOut != "" && len(args) > 1 {
		return domain.ValidationError("--out accepts a single input; use --out-dir", nil)
	}

	if convertJobs < 1 {
		return domain.ValidationError("--jobs must be at least 1", nil)
	}

	outputs, err := planOutputs(args, target)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.NewLogger(cliLogConfig()))
	if err != nil {
		return err
	}
	defer a.Close()

	var outcomes []fileOutcome
	switch {
	case len(args) == 1:
		spinner := ui.NewSpinner(fmt.Sprintf("Converting %s to %s...", filepath.Base(args[0]), target))
		spinner.Start()
		outcomes = []fileOutcome{convertFile(ctx, a, args[0], outputs[0], declared, target)}
		spinner.Stop()
	case convertJobs > 1:
		outcomes = convertParallel(ctx, a, args, outputs, declared, target, convertJobs)
	default:
		outcomes = convertSequential(ctx, a, args, outputs, declared, target)
	}

	return summarize(outcomes)
}

// convertSequential converts paths in order. Once ctx is done the remaining
// paths are reported as failed without being read.
func convertSequential(ctx context.Context, a *app.App, paths, outputs []string, declared domain.SourceKind, target domain.TargetKind) []fileOutcome {
	bar := ui.NewProgressBar(len(paths), "Converting")
	defer bar.Finish()

	outcomes := make([]fileOutcome, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, fileOutcome{input: path, err: err})
			continue
		}
		bar.Describe(filepath.Base(path))
		outcomes = append(outcomes, convertFile(ctx, a, path, outputs[i], declared, target))
		bar.Add()
	}
	return outcomes
}

// convertParallel converts paths with a fixed pool of workers. Outcomes keep
// the input order.
func convertParallel(ctx context.Context, a *app.App, paths, outputs []string, declared domain.SourceKind, target domain.TargetKind, workers int) []fileOutcome {
	type workItem struct {
		index int
		path  string
	}

	workChan := make(chan workItem, len(paths))
	for i, path := range paths {
		workChan <- workItem{index: i, path: path}
	}
	close(workChan)

	progress := ui.NewMultiProgress()
	outcomes := make([]fileOutcome, len(paths))
	var wg sync.WaitGroup

	for i := 0; i < workers && i < len(paths); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				if ctx.Err() != nil {
					outcomes[item.index] = fileOutcome{input: item.path, err: ctx.Err()}
					continue
				}
				task := progress.Track(filepath.Base(item.path))
				outcome := convertFile(ctx, a, item.path, outputs[item.index], declared, target)
				if outcome.err != nil {
					task.Fail()
				} else {
					task.Done()
				}
				outcomes[item.index] = outcome
			}
		}()
	}

	wg.Wait()
	progress.Wait()
	return outcomes
}

func convertFile(ctx context.Context, a *app.App, path, output string, declared domain.SourceKind, target domain.TargetKind) fileOutcome {
	start := time.Now()
	out := fileOutcome{input: path}

	if !convertForce {
		if _, err := os.Stat(output); err == nil {
			out.err = outputExistsError(output)
			return out
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		out.err = domain.IOError("read input", err)
		return out
	}

	result, err := a.Dispatcher.Convert(ctx, domain.ConversionRequest{
		SourceKind: declared,
		TargetKind: target,
		SourceName: filepath.Base(path),
		Data:       data,
		Options:    domain.ConversionOptions{AllowTextFallback: convertFallback},
	})
	out.duration = time.Since(start)
	if err != nil {
		out.err = err
		return out
	}

	if err := writeOutput(output, result.Data); err != nil {
		out.err = err
		return out
	}
	out.output = output
	out.pages = result.PageCount
	out.size = int64(len(result.Data))
	return out
}

// planOutputs resolves every output path up front. Two inputs mapping to the
// same output, or an output that is one of the inputs, fail the whole run.
func planOutputs(inputs []string, target domain.TargetKind) ([]string, error) {
	isInput := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		isInput[pathKey(in)] = true
	}

	owner := make(map[string]string, len(inputs))
	outputs := make([]string, len(inputs))
	for i, in := range inputs {
		out := outputPath(in, convert.FileName(filepath.Base(in), target))
		key := pathKey(out)
		if isInput[key] {
			return nil, domain.ValidationError(fmt.Sprintf("output %s would overwrite an input", out), nil)
		}
		if prev, ok := owner[key]; ok {
			return nil, domain.ValidationError(fmt.Sprintf("%s and %s would both be written to %s; convert them separately", prev, in, out), nil)
		}
		owner[key] = in
		outputs[i] = out
	}
	return outputs, nil
}

func pathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// writeOutput creates path exclusively unless --force is set. A failed write
// removes the partial file.
func writeOutput(path string, data []byte) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if convertForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return outputExistsError(path)
	}
	if err != nil {
		return domain.IOError("write output", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return domain.IOError("write output", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return domain.IOError("write output", err)
	}
	return nil
}

func outputExistsError(path string) error {
	return domain.ValidationError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), fs.ErrExist)
}

func outputPath(input, fileName string) string {
	switch {
	case convertOut != "":
		return convertOut
	case convertOutDir != "":
		return filepath.Join(convertOutDir, fileName)
	default:
		return filepath.Join(filepath.Dir(input), fileName)
	}
}

func summarize(outcomes []fileOutcome) error {
	rows := make([][]string, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			status := string(domain.TypeOf(o.err))
			if status == "" {
				status = "error"
			}
			rows = append(rows, []string{o.input, ui.Status(status, domain.IsRecoverable(o.err)), "", "", ui.FormatDuration(o.duration)})
			continue
		}
		rows = append(rows, []string{o.input, ui.Status("ok", false), o.output, ui.FormatBytes(o.size), ui.FormatDuration(o.duration)})
	}

	if len(outcomes) > 1 || failed > 0 {
		ui.Section("Conversion Summary")
		ui.Table([]string{"Input", "Status", "Output", "Size", "Time"}, rows)
		ui.Newline()
	}

	for _, o := range outcomes {
		if o.err == nil {
			continue
		}
		if domain.IsRecoverable(o.err) {
			ui.Warning("%s: %v (retry with --fallback-text to keep the text)", o.input, o.err)
		} else {
			ui.Error("%s: %v", o.input, o.err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(outcomes))
	}
	if len(outcomes) == 1 {
		ui.Success("Wrote %s (%d page(s), %s)", outcomes[0].output, outcomes[0].pages, ui.FormatBytes(outcomes[0].size))
	}
	return nil
}

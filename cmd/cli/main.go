package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"alfredoptarigan/idoneidad-checker/internal/config"
	"alfredoptarigan/idoneidad-checker/internal/logger"
	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/services"
)

type options struct {
	name            string
	id              string
	requirements    string
	requirementPDFs []string
	evidence        []string
	mode            string
	template        string
	outDir          string
	html            bool
	writeTemplate   string
}

type modelFactory func(ctx context.Context, opts services.GeminiOptions) (services.ModelClient, error)

type cli struct {
	cfg      *config.Config
	in       io.Reader
	out      io.Writer
	newModel modelFactory
}

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{cfg: cfg, in: os.Stdin, out: os.Stdout, newModel: services.NewGeminiService}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", services.UserMessage(err))
		os.Exit(1)
	}
}

func parseOptions(args []string, cfg *config.Config) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("idoneidad", flag.ContinueOnError)
	fs.StringVarP(&opts.name, "name", "n", "", "candidate name")
	fs.StringVar(&opts.id, "id", "", "candidate identification number")
	fs.StringVarP(&opts.requirements, "requirements", "r", "", "profile requirements as text")
	fs.StringArrayVar(&opts.requirementPDFs, "requirements-pdf", nil, "profile requirements PDF (repeatable)")
	fs.StringArrayVarP(&opts.evidence, "evidence", "e", nil, "evidence file: PDF, JPEG, PNG or WEBP (repeatable)")
	fs.StringVarP(&opts.mode, "mode", "m", cfg.Gemini.ResponseMode, "response mode: markdown or structured")
	fs.StringVarP(&opts.template, "template", "t", cfg.Storage.TemplatePath, "xlsx template for the structured export")
	fs.StringVarP(&opts.outDir, "out-dir", "o", ".", "directory for the generated files")
	fs.BoolVar(&opts.html, "html", false, "also write the report as HTML")
	fs.StringVar(&opts.writeTemplate, "write-template", "", "write the built-in xlsx template to this path and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.mode = strings.ToLower(strings.TrimSpace(opts.mode))
	if opts.mode != string(models.ModeMarkdown) && opts.mode != string(models.ModeStructured) {
		return nil, errors.Errorf("invalid mode %q: use markdown or structured", opts.mode)
	}
	return opts, nil
}

func (c *cli) run(ctx context.Context, args []string) error {
	opts, err := parseOptions(args, c.cfg)
	if err != nil {
		return err
	}

	if opts.writeTemplate != "" {
		return writeDefaultTemplate(opts.writeTemplate)
	}

	req := &services.CollectRequest{
		Candidate:        services.Candidate{Name: opts.name, Identification: opts.id},
		RequirementsText: opts.requirements,
		Mode:             models.ResponseMode(opts.mode),
	}
	if req.RequirementPDFs, err = readFiles(opts.requirementPDFs); err != nil {
		return err
	}
	if req.Evidence, err = readFiles(opts.evidence); err != nil {
		return err
	}

	// Reject empty input before asking for a key or calling the model.
	if err := services.ValidateRequest(req); err != nil {
		return err
	}

	apiKey, err := c.cfg.ResolveAPIKey(c.in, c.out)
	if err != nil {
		return err
	}

	model, err := c.newModel(ctx, services.GeminiOptions{
		APIKey:          apiKey,
		Model:           c.cfg.Gemini.Model,
		Temperature:     c.cfg.Gemini.Temperature,
		MaxOutputTokens: c.cfg.Gemini.MaxOutputTokens,
		Timeout:         c.cfg.Gemini.Timeout,
	})
	if err != nil {
		return err
	}

	collector := services.NewInputCollector(
		services.NewPDFParserService(),
		services.NewImageOptimizer(services.DefaultMaxImageSide),
	)
	evaluator := services.NewEvaluatorService(nil, nil, collector, model, c.cfg.Gemini.MaxAttempts)

	outcome, err := evaluator.Evaluate(ctx, req)
	if err != nil {
		return err
	}

	return c.writeOutputs(opts, outcome)
}

func (c *cli) writeOutputs(opts *options, outcome *services.EvaluationOutcome) error {
	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	name := outcome.Candidate.Name
	if outcome.Result != nil && outcome.Result.Name != "" {
		name = outcome.Result.Name
	}
	base := strings.TrimSuffix(services.ExportFilename(name), ".xlsx")

	written := []string{}
	write := func(filename string, data []byte) error {
		path := filepath.Join(opts.outDir, filename)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
		written = append(written, path)
		return nil
	}

	if err := write(base+".md", []byte(outcome.Analysis)); err != nil {
		return err
	}

	if opts.html {
		page, err := services.NewReportRenderer().HTML("Idoneidad - "+name, outcome.Analysis)
		if err != nil {
			return err
		}
		if err := write(base+".html", page); err != nil {
			return err
		}
	}

	if outcome.Result != nil {
		data, err := services.NewExcelFiller(opts.template).Fill(outcome.Result, outcome.Experience)
		if err != nil {
			return err
		}
		if err := write(services.ExportFilename(name), data); err != nil {
			return err
		}
	}

	verdict := outcome.Verdict
	if verdict == "" {
		verdict = "sin conclusión"
	}
	fmt.Fprintf(c.out, "Concepto: %s\n", verdict)
	for _, path := range written {
		fmt.Fprintf(c.out, "Archivo generado: %s\n", path)
	}

	log.WithFields(log.Fields{"candidate": name, "files": len(written)}).Info("Reports written")
	return nil
}

func readFiles(paths []string) ([]services.UploadedFile, error) {
	files := make([]services.UploadedFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}
		files = append(files, services.UploadedFile{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

func writeDefaultTemplate(path string) error {
	data, err := services.WorkbookBytes(services.DefaultTemplate())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

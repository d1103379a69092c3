package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/erdschema"
	"github.com/tordrt/erdschema/internal/config"
	"github.com/tordrt/erdschema/internal/formatter"
	"github.com/tordrt/erdschema/internal/input"
	"github.com/tordrt/erdschema/internal/logging"
	"github.com/tordrt/erdschema/internal/schema"
)

// job renders one input to one output path.
type job struct {
	input  string
	kind   input.Kind
	output string
}

func run(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	jobs, err := planJobs(cfg, args)
	if err != nil {
		return err
	}

	if cfg.Watch {
		for _, j := range jobs {
			if j.kind != input.File {
				return fmt.Errorf("--watch requires script file inputs, %q is a %s", j.input, j.kind)
			}
		}
	}

	var mu sync.Mutex
	report := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(stdout, "Generated: %s\n", path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			path, err := render(gctx, cfg, j)
			if err != nil {
				return err
			}
			report(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.Watch {
		return watch(ctx, cfg, jobs, report)
	}
	return nil
}

// planJobs pairs every input with its output path. A single input without an
// output directory writes to cfg.Output.
func planJobs(cfg *config.Config, args []string) ([]job, error) {
	if cfg.OutputDir == "" {
		if len(args) > 1 {
			return nil, fmt.Errorf("%d inputs given: use --output-dir to render more than one", len(args))
		}
		return []job{{input: args[0], kind: input.Resolve(args[0]), output: cfg.Output}}, nil
	}

	used := make(map[string]int, len(args))
	jobs := make([]job, 0, len(args))
	for _, arg := range args {
		kind := input.Resolve(arg)

		name := outputName(arg, kind)
		used[name]++
		if n := used[name]; n > 1 {
			name += "_" + strconv.Itoa(n)
		}

		var output string
		switch {
		case cfg.Format == config.FormatMulti && len(args) == 1:
			output = cfg.OutputDir
		case cfg.Format == config.FormatMulti:
			output = filepath.Join(cfg.OutputDir, name)
		default:
			output = filepath.Join(cfg.OutputDir, name+outputExtension(cfg))
		}
		jobs = append(jobs, job{input: arg, kind: kind, output: output})
	}
	return jobs, nil
}

func outputName(arg string, kind input.Kind) string {
	switch kind {
	case input.File:
		base := filepath.Base(arg)
		return strings.TrimSuffix(base, filepath.Ext(base))
	case input.Connection:
		return "database"
	default:
		return "script"
	}
}

func outputExtension(cfg *config.Config) string {
	switch cfg.Format {
	case config.FormatDocs:
		return ".md"
	case config.FormatText:
		return ".txt"
	case config.FormatYAML:
		return ".yaml"
	default:
		return filepath.Ext(cfg.Output)
	}
}

// render loads one input and writes it. Nothing is written when loading fails.
func render(ctx context.Context, cfg *config.Config, j job) (string, error) {
	logger := logging.FromContext(ctx).With("input", displayName(j))

	d, defaultSchema, err := load(ctx, cfg, j)
	if err != nil {
		return "", err
	}
	logger.Debug("schema loaded", "tables", len(d.Tables), "foreign_keys", len(d.ForeignKeys))

	out := &erdschema.OutputOptions{
		NewLine:       config.ParseNewLine(cfg.NewLine),
		DefaultSchema: defaultSchema,
		OutputDir:     j.output,
	}

	switch cfg.Format {
	case config.FormatDiagram:
		markdown, err := config.DiagramMarkdown(j.output)
		if err != nil {
			return "", err
		}
		if markdown {
			err = erdschema.RenderMarkdownToFile(ctx, d, j.output, out)
		} else {
			err = erdschema.RenderToFile(ctx, d, j.output, out)
		}
		if err != nil {
			return "", err
		}
	case config.FormatMulti:
		if err := erdschema.FormatSchema(ctx, d, cfg.Format, out); err != nil {
			return "", err
		}
	default:
		err := formatter.WriteFile(j.output, func(w io.Writer) error {
			out.Writer = w
			return erdschema.FormatSchema(ctx, d, cfg.Format, out)
		})
		if err != nil {
			return "", err
		}
	}

	abs, err := filepath.Abs(j.output)
	if err != nil {
		return j.output, nil
	}
	return abs, nil
}

// load reads the schema behind an input and the schema that renders unprefixed.
func load(ctx context.Context, cfg *config.Config, j job) (*schema.Database, string, error) {
	opts := &erdschema.Options{
		Tables:        cfg.Tables,
		ExcludeTables: cfg.Exclude,
		SchemaName:    cfg.Schema,
		Logger:        logging.FromContext(ctx),
	}

	switch j.kind {
	case input.Connection:
		defaultSchema, err := erdschema.DefaultSchemaFor(j.input, opts)
		if err != nil {
			return nil, "", err
		}
		d, err := erdschema.ReadDatabase(ctx, j.input, opts)
		if err != nil {
			return nil, "", err
		}
		return d, defaultSchema, nil

	case input.File:
		script, err := os.ReadFile(j.input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read script: %w", err)
		}
		d, err := erdschema.ParseScript(string(script), opts)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", j.input, err)
		}
		return d, schema.DefaultSchema, nil

	default:
		d, err := erdschema.ParseScript(j.input, opts)
		if err != nil {
			return nil, "", err
		}
		return d, schema.DefaultSchema, nil
	}
}

// displayName keeps connection strings, which may carry passwords, out of logs.
func displayName(j job) string {
	switch j.kind {
	case input.File:
		return j.input
	case input.Connection:
		return "database"
	default:
		return "inline script"
	}
}

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/ha1tch/nudb/pkg/config"
	"github.com/ha1tch/nudb/pkg/database"
	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/sqlite"
	"github.com/ha1tch/nudb/pkg/value"
	"github.com/ha1tch/nudb/pkg/version"
	"github.com/ha1tch/nudb/pkg/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// paramFlag collects repeated -param name=value flags.
type paramFlag []string

func (p *paramFlag) String() string { return strings.Join(*p, ",") }

func (p *paramFlag) Set(s string) error {
	if !strings.Contains(s, "=") {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	*p = append(*p, s)
	return nil
}

// request is what one evaluation of the input should produce.
type request struct {
	path    string
	query   string
	params  paramFlag
	promote bool
	backup  string
	pretty  bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nudb", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var req request
	fs.StringVar(&req.path, "p", "", "Cell path to follow, e.g. main.people.name")
	fs.StringVar(&req.query, "q", "", "SQL query to run")
	fs.Var(&req.params, "param", "Named query parameter name=value (repeatable)")
	fs.BoolVar(&req.promote, "promote", false, "Copy a file database into memory before reading")
	fs.StringVar(&req.backup, "backup", "", "Write the database to this file after reading")
	fs.BoolVar(&req.pretty, "pretty", false, "Indent JSON output")

	var (
		watchFile  = fs.Bool("w", false, "Watch the file and print again on every change")
		configFile = fs.String("config", "", "Configuration file path")
		logLevel   = fs.String("log-level", "", "Log level (debug, info, warn, error, off)")
		logFormat  = fs.String("log-format", "", "Log format (text, json)")

		showHelp     = fs.Bool("h", false, "Show help")
		showHelpL    = fs.Bool("help", false, "Show help")
		showVersion  = fs.Bool("v", false, "Show version")
		showVersionL = fs.Bool("version", false, "Show version")
	)

	fs.Usage = func() {
		printUsage(stderr)
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showHelp || *showHelpL {
		printUsage(stdout)
		return 0
	}
	if *showVersion || *showVersionL {
		fmt.Fprintln(stdout, version.Full())
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "nudb: expected exactly one input file, or - for stdin")
		printUsage(stderr)
		return 2
	}
	input := fs.Arg(0)
	if *watchFile && input == "-" {
		fmt.Fprintln(stderr, "nudb: -w needs a file, not stdin")
		return 2
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			printError(stderr, err)
			return 1
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		printError(stderr, err)
		return 2
	}

	logger := cfg.LoggerTo(stderr)
	ctx = log.WithLogger(ctx, logger)
	opts := cfg.SQLiteOptions(logger)

	logger.System().Debug("starting", "version", version.String(), "input", input)

	pipeline := value.FromFile(input, nil, span.Unknown)
	if input == "-" {
		pipeline = value.PipelineData{Stream: stdin}
	}

	if err := evaluate(ctx, pipeline, req, opts, stdout); err != nil {
		printError(stderr, err)
		return 1
	}

	if !*watchFile {
		return 0
	}
	return watchAndEvaluate(ctx, input, req, opts, logger, stdout, stderr)
}

// evaluate opens the input, produces the requested value and prints it.
func evaluate(ctx context.Context, input value.PipelineData, req request, opts sqlite.Options, stdout io.Writer) error {
	sys, err := database.FromPipeline(ctx, input, span.Unknown, sqlite.WithOptions(opts))
	if err != nil {
		return err
	}
	defer sys.Close()

	if req.promote {
		if err := sys.Promote(ctx); err != nil {
			return err
		}
	}

	out := sys.Value(span.Unknown)
	if req.query != "" {
		params, err := queryParams(req.params)
		if err != nil {
			return err
		}
		q := sqlite.UserSQL(req.query, span.New(0, len(req.query)))
		if out, err = sys.Query(ctx, q, params, span.Unknown); err != nil {
			return err
		}
	}

	if req.path != "" {
		path, err := value.ParseCellPath(req.path)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCellPath, "invalid cell path").
				WithSpan(span.New(0, len(req.path))).Err()
		}
		if out, err = value.FollowCellPath(ctx, out, path); err != nil {
			return err
		}
		if len(path.Members) > 0 {
			defer value.Release(out)
		}
	}

	for out.Kind() == value.KindCustom {
		c, _ := out.AsCustom()
		if out, err = c.ToBaseValue(ctx, out.Span()); err != nil {
			return err
		}
	}

	if err := render(stdout, out, req.pretty); err != nil {
		return err
	}

	if req.backup != "" {
		return sys.Backup(ctx, req.backup, span.Unknown)
	}
	return nil
}

// queryParams turns name=value flags into named parameters. Values that
// parse as JSON keep their type; anything else is a string.
func queryParams(flags paramFlag) (sqlite.Params, error) {
	if len(flags) == 0 {
		return sqlite.NoParams(), nil
	}
	rec := value.NewRecord()
	for _, f := range flags {
		name, raw, _ := strings.Cut(f, "=")
		v, err := value.FromJSON([]byte(raw), span.Unknown)
		if err != nil {
			v = value.String(raw, span.Unknown)
		}
		rec.Push(name, v)
	}
	return sqlite.NamedParams(rec, span.Unknown)
}

func render(w io.Writer, v value.Value, pretty bool) error {
	data, err := value.ToJSON(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUnsupported, "cannot print result as json").
			WithSpan(v.Span()).Err()
	}
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func watchAndEvaluate(ctx context.Context, path string, req request, opts sqlite.Options, logger *log.Logger, stdout, stderr io.Writer) int {
	w, err := watch.New(path, logger,
		watch.WithOnChange(func(p, event string) {
			if event == watch.EventRemoved {
				fmt.Fprintf(stderr, "nudb: %s was removed\n", p)
				return
			}
			if err := evaluate(ctx, value.FromFile(p, nil, span.Unknown), req, opts, stdout); err != nil {
				printError(stderr, err)
			}
		}),
		watch.WithOnError(func(err error) {
			logger.System().Warn("watch error", "error", err.Error())
		}),
	)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	if err := w.Start(); err != nil {
		printError(stderr, err)
		return 1
	}

	<-ctx.Done()
	logger.System().Info("shutdown signal received")

	if err := w.Stop(); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	fmt.Fprint(w, errors.ToDiagnostic(err).String())
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `nudb - Browse SQLite databases as lazy, path-addressable values

Usage:
  nudb [options] <file|->

Reading:
  -p <path>                Cell path to follow, e.g. main.people.name
  -q <sql>                 SQL query to run; -p then applies to its result
  -param <name=value>      Named query parameter (repeatable); JSON values keep their type
  -promote                 Copy a file database into memory before reading
  -pretty                  Indent JSON output

Writing:
  -backup <file>           Write the database to <file> after reading

Watching:
  -w                       Print again every time the file changes

Configuration:
  -config <file>           YAML configuration file
  -log-level <level>       Log level: debug, info, warn, error, off (default: warn)
  -log-format <format>     Log format: text, json (default: text)

General:
  -h, -help                Show help
  -v, -version             Show version

Examples:
  # Print every table of every schema
  nudb app.db

  # Follow a path into one table's column
  nudb -p main.people.name app.db

  # Run a query with a parameter against bytes from stdin
  cat app.db | nudb -q 'SELECT * FROM people WHERE age > :age' -param age=40 -

Exit Codes:
  0  Success
  1  Runtime error
  2  CLI usage error
`)
}

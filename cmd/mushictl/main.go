package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mushi/internal/config"
	logpkg "github.com/kailas-cloud/mushi/internal/logger"
	"github.com/kailas-cloud/mushi/internal/version"
)

const usageText = `Usage: mushictl <command> [flags]

Commands:
  eda        Summarise class counts in an annotation file
  interim    Copy raw images into one folder per class
  processed  Copy interim classes with enough images into a subset
  predict    Classify image files with the configured model
  eval       Score the model against a labelled image folder
  history    Show recently served predictions from the journal
  version    Print version and exit

Run 'mushictl <command> --help' for more information on a command.
`

// errUsage marks errors that should print usage and exit 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	code := exitCode(err)
	if code == 1 {
		fmt.Fprintf(os.Stderr, "mushictl: %v\n", err)
	}
	stop()
	os.Exit(code)
}

// exitCode maps a run error to the process status: 0 for success or an
// explicit --help, 2 for usage errors, 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return errUsage
	}

	switch args[0] {
	case "--help", "-h":
		fmt.Fprint(stdout, usageText)
		return nil
	case "eda":
		return runEDA(args[1:], stdout, stderr)
	case "interim":
		return runInterim(ctx, args[1:], stdout, stderr)
	case "processed":
		return runProcessed(ctx, args[1:], stdout, stderr)
	case "predict":
		return runPredict(ctx, args[1:], stdout, stderr)
	case "eval":
		return runEval(ctx, args[1:], stdout, stderr)
	case "history":
		return runHistory(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "mushictl %s\n", version.String())
		return nil
	default:
		fmt.Fprintf(stderr, "mushictl: unknown command %q\n\n%s", args[0], usageText)
		return errUsage
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name, usage string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mushictl %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args, marking malformed flags as usage errors.
// flag.ErrHelp passes through unchanged.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %w", errUsage, err)
}

// requireFlags returns errUsage naming the first empty flag.
func requireFlags(cmd string, fs *flag.FlagSet, stderr io.Writer, values map[string]string) error {
	for _, name := range sortedKeys(values) {
		if values[name] == "" {
			fmt.Fprintf(stderr, "mushictl %s: --%s is required\n", cmd, name)
			fs.Usage()
			return fmt.Errorf("%w: --%s is required", errUsage, name)
		}
	}
	return nil
}

// loadConfig reads an explicit config file, or the ENV-selected one when path is empty.
func loadConfig(path string) (config.Config, string, error) {
	env := config.GetEnv()
	if path != "" {
		cfg, err := config.LoadFile(path)
		return cfg, env, err
	}
	cfg, err := config.Load(env)
	return cfg, env, err
}

// cliLogger logs to stderr at warn level unless the config asks for more.
func cliLogger(env string, cfg config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if level == "" || level == "debug" || level == "info" {
		level = "warn"
	}
	if env != "prod" {
		env = "local"
	}
	return logpkg.NewLogger(env, level)
}

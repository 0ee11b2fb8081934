package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"simonwaldherr.de/go/nanob/internal/config"
	"simonwaldherr.de/go/nanob/interp"
	"simonwaldherr.de/go/nanob/runtime"
)

const usage = "usage: nanob [flags] [run|fmt|vet] <file.b> [args...]"

// Exit codes.
const (
	exitOK      = 0
	exitHost    = 1 // usage, file or config problems
	exitProgram = 2 // the program failed to parse or run, or vet found issues
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nanob", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default ./"+config.FileName+" if present)")
	timeout := fs.Duration("timeout", 0, "wall-clock limit for one run, 0 disables it")
	maxDepth := fs.Int("max-depth", 0, "function call depth limit")
	logLevel := slog.LevelWarn
	fs.TextVar(&logLevel, "log-level", &logLevel, "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitHost
	}

	cfg, err := config.Find(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitHost
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "timeout":
			cfg.Timeout = *timeout
		case "max-depth":
			cfg.MaxDepth = *maxDepth
		case "log-level":
			cfg.LogLevel = logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitHost
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	rest := fs.Args()
	cmd := "run"
	if len(rest) > 0 {
		switch rest[0] {
		case "run", "fmt", "vet":
			cmd, rest = rest[0], rest[1:]
		}
	}
	if len(rest) == 0 {
		fs.Usage()
		return exitHost
	}
	path := rest[0]
	logger.Debug("start", "cmd", cmd, "file", path, "config", cfg.Path)

	switch cmd {
	case "fmt":
		if err := runFmt(path, stdout); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitCode(err)
		}
		return exitOK
	case "vet":
		n, err := runVet(path, stdout)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitCode(err)
		}
		if n > 0 {
			return exitProgram
		}
		return exitOK
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stderr, "read error:", err)
		return exitHost
	}
	out := bufio.NewWriter(stdout)
	defer out.Flush()
	_, err = RunSafe(string(src), Options{
		Timeout:  cfg.Timeout,
		MaxDepth: cfg.MaxDepth,
		Argv:     rest,
		Stdin:    stdin,
		Stdout:   out,
		Logger:   logger,
	})
	if err != nil {
		out.Flush()
		fmt.Fprintln(stderr, "error:", err)
		return exitProgram
	}
	return exitOK
}

// exitCode separates program errors from host errors.
func exitCode(err error) int {
	var re *interp.RuntimeError
	if errors.As(err, &re) {
		return exitProgram
	}
	return exitHost
}

// Options controls one sandboxed run.
type Options struct {
	Timeout  time.Duration // zero: no limit
	MaxDepth int
	Argv     []string
	Stdin    io.Reader
	Stdout   io.Writer
	Logger   *slog.Logger
	// Externs replaces the standard routines bound to Stdin and Stdout.
	Externs *interp.Externs
}

// stopGrace is how long RunSafe waits for a canceled run to unwind.
const stopGrace = 100 * time.Millisecond

// RunSafe executes untrusted B source inside the interpreter with a
// context-based timeout. It recovers from panics so the host
// application is never crashed by user code.
func RunSafe(source string, opts Options) (interp.Value, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		val interp.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic recovered: %v", r)}
			}
		}()
		v, err := runInterpreted(ctx, source, opts)
		done <- result{v, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		select {
		case r = <-done:
		case <-time.After(stopGrace):
			r.err = ctx.Err()
		}
	}
	if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("execution timed out after %s: %w", opts.Timeout, r.err)
	}
	return r.val, r.err
}

// runInterpreted creates a sandboxed interpreter that can only reach the
// routines in its extern table, and executes the source.
func runInterpreted(ctx context.Context, source string, opts Options) (interp.Value, error) {
	x := opts.Externs
	if x == nil {
		stdin, stdout := opts.Stdin, opts.Stdout
		if stdin == nil {
			stdin = eofReader{}
		}
		if stdout == nil {
			stdout = io.Discard
		}
		x = runtime.StdExterns(stdin, stdout)
	}
	vmOpts := []interp.Option{interp.WithExterns(x)}
	if opts.MaxDepth > 0 {
		vmOpts = append(vmOpts, interp.WithMaxDepth(opts.MaxDepth))
	}
	if opts.Logger != nil {
		vmOpts = append(vmOpts, interp.WithLogger(opts.Logger))
	}
	vm := interp.NewInterpreter(vmOpts...)
	vm.SetArgv(opts.Argv)
	return vm.RunSource(ctx, source)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

func runFmt(path string, w io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	out, err := interp.FormatSource(string(src))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// runVet prints one line per issue and returns how many it found.
func runVet(path string, w io.Writer) (int, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	issues, err := interp.VetSource(string(src), runtime.StdExterns(eofReader{}, io.Discard))
	if err != nil {
		return 0, err
	}
	for _, is := range issues {
		fmt.Fprintf(w, "%s:%s\n", path, is)
	}
	return len(issues), nil
}

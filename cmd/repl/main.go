package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/peterh/liner"

	"simonwaldherr.de/go/nanob/internal/config"
	"simonwaldherr.de/go/nanob/interp"
	"simonwaldherr.de/go/nanob/runtime"
)

const (
	banner     = "nanoB REPL. Statements run now, definitions accumulate. :help for commands, Ctrl-D to exit."
	promptMain = "b> "
	promptCont = ".. "
)

const helpText = `:vars   list root scope variables
:help   show this text
:quit   leave the REPL
A bare expression or a call to a user function prints its value.`

func main() {
	configPath := flag.String("config", "", "config file (default ./"+config.FileName+" if present)")
	flag.Parse()
	cfg, err := config.Find(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	fmt.Println(banner)
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if cfg.History != "" {
		if f, err := os.Open(cfg.History); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(cfg.History); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	s := newSession(cfg, logger, os.Stdin, os.Stdout)
	s.vm.SetArgv(flag.Args())
	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return
		}
		if strings.TrimSpace(code) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if s.handle(code) {
			return
		}
	}
}

// readByParseProbe keeps prompting while the input so far is an
// unfinished block. It reports false at end of input.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl-C drops the pending input
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if src := b.String(); !isIncomplete(src) {
			return src, true
		}
	}
}

func isIncomplete(src string) bool {
	_, err := interp.Parse(src)
	return errors.Is(err, interp.ErrUnclosedBlock)
}

// session is one interactive interpreter. The root scope persists across
// inputs, so functions, layouts and variables accumulate.
type session struct {
	vm      *interp.Interpreter
	out     io.Writer
	timeout time.Duration
}

func newSession(cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) *session {
	vm := interp.NewInterpreter(
		interp.WithExterns(runtime.StdExterns(in, out)),
		interp.WithMaxDepth(cfg.MaxDepth),
		interp.WithLogger(logger),
	)
	return &session{vm: vm, out: out, timeout: cfg.Timeout}
}

// handle runs one complete input and reports whether the user asked to quit.
func (s *session) handle(code string) bool {
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed)
	}
	if err := s.eval(code); err != nil {
		fmt.Fprintln(s.out, "error:", err)
	}
	return false
}

func (s *session) command(cmd string) bool {
	switch strings.ToLower(cmd) {
	case ":quit", ":q":
		return true
	case ":vars":
		globals := s.vm.Globals()
		for _, name := range slices.Sorted(maps.Keys(globals)) {
			fmt.Fprintf(s.out, "%s = %s\n", name, interp.FormatValue(globals[name]))
		}
	case ":help":
		fmt.Fprintln(s.out, helpText)
	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for a list.")
	}
	return false
}

func (s *session) eval(src string) error {
	ctx, cancel := s.context()
	defer cancel()

	prog, err := interp.Parse(src)
	if err != nil {
		// not a statement list; maybe a bare expression
		if _, cerr := interp.CompileExpr(exprText(src)); cerr != nil {
			return err
		}
		return s.echo(ctx, src)
	}
	if call, ok := singleCall(prog); ok {
		if _, isExtern := s.vm.Externs().Lookup(call.Name); !isExtern {
			s.vm.Load(prog)
			return s.echo(ctx, src)
		}
	}
	v, err := s.vm.Exec(ctx, prog)
	if err != nil {
		return err
	}
	if returns(prog.Body) {
		fmt.Fprintln(s.out, interp.FormatValue(v))
	}
	return nil
}

func (s *session) echo(ctx context.Context, src string) error {
	v, err := s.vm.EvalExpr(ctx, exprText(src))
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, interp.FormatValue(v))
	return nil
}

func (s *session) context() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.WithCancel(context.Background())
}

func exprText(src string) string {
	return strings.TrimRight(strings.TrimSpace(src), "; \t\n")
}

func singleCall(prog *interp.Program) (*interp.CallStmt, bool) {
	if len(prog.Body) != 1 || len(prog.Decls) != 1 {
		return nil, false
	}
	call, ok := prog.Body[0].(*interp.CallStmt)
	return call, ok
}

func returns(body []interp.Stmt) bool {
	for _, st := range body {
		if _, ok := st.(*interp.ReturnStmt); ok {
			return true
		}
	}
	return false
}

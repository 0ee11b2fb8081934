// runtime/native_std.go
package runtime

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"simonwaldherr.de/go/nanob/interp"
)

// Names of the standard externs, in the order a program usually meets them.
var StdNames = []string{"putchar", "putstr", "putint", "getchar", "puts", "getint", "abs", "max", "min"}

type flusher interface{ Flush() error }

// StdExterns builds the standard extern table bound to in and out. If out
// can be flushed it is flushed before every read so prompts appear first.
func StdExterns(in io.Reader, out io.Writer) *interp.Externs {
	h := &host{in: bufio.NewReader(in), out: out}
	return interp.NewExterns().
		Register("putchar", h.putchar).
		Register("putstr", h.putstr).
		Register("putint", h.putint).
		Register("getchar", h.getchar).
		Register("puts", h.puts).
		Register("getint", h.getint).
		Register("abs", absExtern).
		Register("max", extremum("max", func(a, b int64) bool { return a > b })).
		Register("min", extremum("min", func(a, b int64) bool { return a < b }))
}

type host struct {
	in  *bufio.Reader
	out io.Writer
}

func (h *host) write(s string) (interp.Value, error) {
	_, err := io.WriteString(h.out, s)
	return nil, err
}

func (h *host) flush() {
	if f, ok := h.out.(flusher); ok {
		_ = f.Flush()
	}
}

func (h *host) putchar(args []interp.Value) (interp.Value, error) {
	c, err := interp.ArgInt("putchar", args, 0)
	if err != nil {
		return nil, err
	}
	return h.write(string(rune(c)))
}

func (h *host) putstr(args []interp.Value) (interp.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("putstr: missing argument")
	}
	return h.write(interp.ToText(args[0]))
}

func (h *host) puts(args []interp.Value) (interp.Value, error) {
	if len(args) == 0 {
		return h.write("\n")
	}
	return h.write(interp.ToText(args[0]) + "\n")
}

func (h *host) putint(args []interp.Value) (interp.Value, error) {
	n, err := interp.ArgInt("putint", args, 0)
	if err != nil {
		return nil, err
	}
	return h.write(strconv.FormatInt(n, 10))
}

// getchar returns the next input character, or 0 at end of input.
func (h *host) getchar(args []interp.Value) (interp.Value, error) {
	h.flush()
	r, _, err := h.in.ReadRune()
	if errors.Is(err, io.EOF) {
		return interp.Int(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getchar: %w", err)
	}
	return interp.Int(r), nil
}

// getint reads one line and parses it as a decimal integer.
func (h *host) getint(args []interp.Value) (interp.Value, error) {
	h.flush()
	line, err := h.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		return nil, errors.New("getint: end of input")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("getint: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("getint: %q is not an integer", strings.TrimSpace(line))
	}
	return interp.Int(n), nil
}

func absExtern(args []interp.Value) (interp.Value, error) {
	n, err := interp.ArgInt("abs", args, 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = -n
	}
	return interp.Int(n), nil
}

func extremum(name string, better func(a, b int64) bool) interp.Extern {
	return func(args []interp.Value) (interp.Value, error) {
		best, err := interp.ArgInt(name, args, 0)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(args); i++ {
			n, err := interp.ArgInt(name, args, i)
			if err != nil {
				return nil, err
			}
			if better(n, best) {
				best = n
			}
		}
		return interp.Int(best), nil
	}
}

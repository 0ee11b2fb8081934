package runtime

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simonwaldherr.de/go/nanob/interp"
)

func run(t *testing.T, src, input string) (interp.Value, string, error) {
	t.Helper()
	var out strings.Builder
	vm := interp.NewInterpreter(interp.WithExterns(StdExterns(strings.NewReader(input), &out)))
	v, err := vm.RunSource(context.Background(), src)
	return v, out.String(), err
}

func TestStdExternNames(t *testing.T) {
	x := StdExterns(strings.NewReader(""), &strings.Builder{})
	assert.ElementsMatch(t, StdNames, x.Names())
}

func TestOutputExterns(t *testing.T) {
	_, out, err := run(t, `
extrn putchar, putstr, putint, puts
putchar('A')
putchar(10)
putstr("x=")
putint(-42)
puts("")
puts("done")
`, "")
	require.NoError(t, err)
	assert.Equal(t, "A\nx=-42\n\ndone\n", out)
}

func TestInputExterns(t *testing.T) {
	v, out, err := run(t, `
extrn getchar, getint, putint, putchar
auto c, n
c = getchar()
n = getint()
putint(n * 2)
putchar(c)
return getchar()
`, "q 21\n")
	require.NoError(t, err)
	assert.Equal(t, "42q", out)
	// input is exhausted
	assert.Equal(t, interp.Int(0), v)
}

func TestGetintErrors(t *testing.T) {
	_, _, err := run(t, "auto n\nn = getint()\n", "abc\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, interp.ErrExtern)
	assert.Contains(t, err.Error(), `"abc" is not an integer`)

	_, _, err = run(t, "auto n\nn = getint()\n", "")
	assert.ErrorContains(t, err, "getint: end of input")
}

func TestGetintLastLineWithoutNewline(t *testing.T) {
	v, _, err := run(t, "return getint()\n", "17")
	require.NoError(t, err)
	assert.Equal(t, interp.Int(17), v)
}

func TestMathExterns(t *testing.T) {
	cases := []struct {
		expr string
		want interp.Int
	}{
		{"abs(-5)", 5},
		{"abs(5)", 5},
		{"max(3, 9)", 9},
		{"max(4)", 4},
		{"max(1, 7, 3)", 7},
		{"min(3, 9)", 3},
		{"min(-1, -8, 2)", -8},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			v, _, err := run(t, "return "+tc.expr+"\n", "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestExternArgumentErrors(t *testing.T) {
	for _, src := range []string{"min()\n", "abs()\n", "putint()\n", "putchar()\n", "putstr()\n"} {
		_, _, err := run(t, src, "")
		assert.ErrorIs(t, err, interp.ErrExtern, src)
	}
	_, _, err := run(t, "auto v[2]\nreturn max(1, v)\n", "")
	assert.ErrorIs(t, err, interp.ErrTypeMismatch)
}

func TestReadsFlushBufferedOutput(t *testing.T) {
	var sink strings.Builder
	w := bufio.NewWriter(&sink)
	in := &probe{sink: &sink}
	vm := interp.NewInterpreter(interp.WithExterns(StdExterns(in, w)))
	_, err := vm.RunSource(context.Background(), "putstr(\"prompt> \")\ngetchar()\n")
	require.NoError(t, err)
	assert.Equal(t, "prompt> ", in.seen)
}

// probe records what had reached the sink when the first read happened.
type probe struct {
	sink *strings.Builder
	seen string
	done bool
}

func (p *probe) Read(b []byte) (int, error) {
	if !p.done {
		p.seen, p.done = p.sink.String(), true
	}
	b[0] = 'y'
	return 1, nil
}

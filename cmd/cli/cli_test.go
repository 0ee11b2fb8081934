package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simonwaldherr.de/go/nanob/interp"
)

func TestRunSafeHelloWorld(t *testing.T) {
	var out strings.Builder
	_, err := RunSafe(`main() { extrn puts; puts("hello") }`, Options{Timeout: 5 * time.Second, Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
}

func TestRunSafeResult(t *testing.T) {
	v, err := RunSafe("return 6 * 7\n", Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, interp.Int(42), v)
}

func TestRunSafePanicRecovery(t *testing.T) {
	x := interp.NewExterns().Register("kaboom", func([]interp.Value) (interp.Value, error) {
		panic("kaboom")
	})
	_, err := RunSafe("kaboom()\n", Options{Timeout: 5 * time.Second, Externs: x})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered")
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRunSafeTimeout(t *testing.T) {
	_, err := RunSafe("while (1) {\n}\n", Options{Timeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.ErrorIs(t, err, interp.ErrCanceled)
}

func TestRunSafeSyntaxError(t *testing.T) {
	_, err := RunSafe("auto a b\n", Options{Timeout: 5 * time.Second})
	assert.ErrorIs(t, err, interp.ErrSyntax)
}

func TestRunSafeMaxDepth(t *testing.T) {
	_, err := RunSafe("f() {\n\treturn f()\n}\nf()\n", Options{Timeout: 5 * time.Second, MaxDepth: 10})
	assert.ErrorIs(t, err, interp.ErrRecursionLimit)
}

func TestRunSafeArgv(t *testing.T) {
	var out strings.Builder
	_, err := RunSafe("extrn puts\nputs(argv[0])\nputs(argv[1])\n", Options{
		Timeout: 5 * time.Second,
		Argv:    []string{"script.b", "arg"},
		Stdout:  &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "script.b\narg\n", out.String())
}

// ---------- command line ----------

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "nanob_*.b")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut strings.Builder
	code = run(args, strings.NewReader(""), &out, &errOut)
	return code, out.String(), errOut.String()
}

func sample(name string) string { return filepath.Join("..", "..", "samples", name) }

func TestRunSamples(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{sample("hello.b")}, "hello, world\n"},
		{[]string{"run", sample("fib.b")}, "0 1 1 2 3 5 8 13 21 34 \n"},
		{[]string{sample("structs.b")}, "25\n"},
		{[]string{sample("vectors.b")}, "sum of squares: 55\n"},
		{[]string{sample("echo.b"), "hi"}, "you said: hi\n"},
		{[]string{"-config", sample("nanob.yaml"), sample("hello.b")}, "hello, world\n"},
	}
	for _, tc := range cases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			code, out, errOut := runCLI(t, tc.args...)
			require.Equal(t, exitOK, code, errOut)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestRunProgramError(t *testing.T) {
	path := writeTempFile(t, "auto a\na = b\n")
	code, _, errOut := runCLI(t, path)
	assert.Equal(t, exitProgram, code)
	assert.Contains(t, errOut, "line 2: a = b")
}

func TestRunOutputBeforeErrorIsKept(t *testing.T) {
	path := writeTempFile(t, "extrn puts\nputs(\"before\")\nnope()\n")
	code, out, _ := runCLI(t, path)
	assert.Equal(t, exitProgram, code)
	assert.Equal(t, "before\n", out)
}

func TestRunUsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, exitHost, code)
	assert.Contains(t, errOut, "usage:")

	code, _, errOut = runCLI(t, filepath.Join(t.TempDir(), "missing.b"))
	assert.Equal(t, exitHost, code)
	assert.Contains(t, errOut, "read error")

	code, _, _ = runCLI(t, "-log-level", "loud", sample("hello.b"))
	assert.Equal(t, exitHost, code)

	code, _, errOut = runCLI(t, "-max-depth", "-3", sample("hello.b"))
	assert.Equal(t, exitHost, code)
	assert.Contains(t, errOut, "config:")

	code, _, _ = runCLI(t, "-h")
	assert.Equal(t, exitOK, code)
}

func TestRunDebugLogging(t *testing.T) {
	code, _, errOut := runCLI(t, "-log-level", "debug", sample("hello.b"))
	require.Equal(t, exitOK, code)
	assert.Contains(t, errOut, "msg=exec")
	assert.Contains(t, errOut, "msg=call")
}

func TestRunFlagTimeout(t *testing.T) {
	path := writeTempFile(t, "for (;;) {\n}\n")
	code, _, errOut := runCLI(t, "-timeout", "100ms", path)
	assert.Equal(t, exitProgram, code)
	assert.Contains(t, errOut, "timed out")
}

// ---------- fmt / vet ----------

func TestFmtSubcommand(t *testing.T) {
	path := writeTempFile(t, "main(){extrn puts;puts(\"x\")}\n")
	code, out, errOut := runCLI(t, "fmt", path)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "main() {\n\textrn puts;\n\tputs(\"x\");\n}\n", out)

	var b strings.Builder
	require.NoError(t, runFmt(path, &b))
	assert.Equal(t, out, b.String())
}

func TestFmtSubcommandParseError(t *testing.T) {
	path := writeTempFile(t, "main() {\n")
	code, _, errOut := runCLI(t, "fmt", path)
	assert.Equal(t, exitProgram, code)
	assert.Contains(t, errOut, "unclosed block")
}

func TestVetSubcommand(t *testing.T) {
	path := writeTempFile(t, "auto x\nx = x\n")
	code, out, _ := runCLI(t, "vet", path)
	assert.Equal(t, exitProgram, code)
	assert.Equal(t, path+":2: self-assignment: x = x has no effect\n", out)

	code, out, _ = runCLI(t, "vet", sample("fib.b"))
	assert.Equal(t, exitOK, code)
	assert.Empty(t, out)
}

func TestVetKnowsStandardExterns(t *testing.T) {
	path := writeTempFile(t, "extrn putint, getint, nothere\nputint(getint())\n")
	var b strings.Builder
	n, err := runVet(path, &b)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, b.String(), "extrn nothere: no such extern")
}

//go:build js && wasm

// cmd/wasm/main.go
package main

import (
	"context"
	"strings"
	"syscall/js"
	"time"

	"simonwaldherr.de/go/nanob/interp"
	"simonwaldherr.de/go/nanob/runtime"
)

// runTimeout keeps a runaway script from freezing the page.
const runTimeout = 5 * time.Second

// jsNanoBRun runs a B program from JS. Output goes to the host console;
// the program's result is returned as a string.
func jsNanoBRun(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		runtime.ConsoleError("nanoBRun: missing source")
		return nil
	}
	source := args[0].String()

	out := &runtime.ConsoleWriter{}
	defer out.Flush()
	vm := interp.NewInterpreter(interp.WithExterns(runtime.StdExterns(strings.NewReader(""), out)))
	if len(args) >= 2 {
		vm.SetArgv(splitArgs(args[1]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	v, err := vm.RunSource(ctx, source)
	if err != nil {
		out.Flush()
		runtime.ConsoleError("nanoB error: " + err.Error())
		return nil
	}
	return interp.FormatValue(v)
}

// jsNanoBFormat returns the canonical layout of a source string.
func jsNanoBFormat(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	out, err := interp.FormatSource(args[0].String())
	if err != nil {
		runtime.ConsoleError("nanoBFormat: " + err.Error())
	}
	return out
}

func splitArgs(v js.Value) []string {
	if v.Type() != js.TypeObject {
		return []string{v.String()}
	}
	n := v.Length()
	out := make([]string, n)
	for i := range n {
		out[i] = v.Index(i).String()
	}
	return out
}

func main() {
	js.Global().Set("nanoBRun", js.FuncOf(jsNanoBRun))
	js.Global().Set("nanoBFormat", js.FuncOf(jsNanoBFormat))

	// Block forever for the browser event loop.
	select {}
}

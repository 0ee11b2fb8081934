//go:build js && wasm

// runtime/console_js.go
package runtime

import (
	"strings"
	"syscall/js"
)

// sendMessage tries to call a JS hook `nanoBPostMessage(msg)` if present to
// stream output to the host. Falls back to console.* when not available.
func sendMessage(kind, text string) {
	hook := js.Global().Get("nanoBPostMessage")
	if hook.Truthy() {
		obj := js.Global().Get("Object").New()
		obj.Set("type", kind)
		obj.Set("text", text)
		hook.Invoke(obj)
		return
	}
	switch kind {
	case "error":
		js.Global().Get("console").Call("error", text)
	default:
		js.Global().Get("console").Call("log", text)
	}
}

func ConsoleLog(s string)   { sendMessage("log", s) }
func ConsoleError(s string) { sendMessage("error", s) }

// ConsoleWriter is an io.Writer that forwards complete lines to ConsoleLog.
// Flush sends any trailing partial line.
type ConsoleWriter struct {
	buf strings.Builder
}

func (w *ConsoleWriter) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' {
			ConsoleLog(w.buf.String())
			w.buf.Reset()
			continue
		}
		w.buf.WriteByte(c)
	}
	return len(p), nil
}

func (w *ConsoleWriter) Flush() error {
	if w.buf.Len() > 0 {
		ConsoleLog(w.buf.String())
		w.buf.Reset()
	}
	return nil
}

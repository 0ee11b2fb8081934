package interp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormatSource(t *testing.T) {
	src := `struct P {auto a, b;}
add(a,b){return a+b;}
auto x=add(1,2)
if(x>2){putint(x);}else{putint(-x);}
`
	want := `struct P {
	auto a, b;
}

add(a, b) {
	return a + b;
}

auto x = add(1, 2);
if (x > 2) {
	putint(x);
} else {
	putint(-x);
}
`
	formatted, err := FormatSource(src)
	if err != nil {
		t.Fatalf("FormatSource returned error: %v", err)
	}
	if diff := cmp.Diff(want, formatted); diff != "" {
		t.Errorf("FormatSource mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatSourceIdempotent(t *testing.T) {
	src := `// counts
main() {
	extrn putstr, putint
	auto v[3], s = "a\tb\n"
	for (auto i = 0; i < 3; i = i + 1) { v[i] = i * 2 }
	for (;;) { return v[1] }
	while (!v[0]) { v[0] = 1 } // trailing
	if (v[0] == 1) { putstr(s) } else if (v[1]) { putint(v[1]) }
	struct P p
	p.x = -(1 + 2) % 3
}
`
	once, err := FormatSource(src)
	if err != nil {
		t.Fatalf("FormatSource returned error: %v", err)
	}
	twice, err := FormatSource(once)
	if err != nil {
		t.Fatalf("FormatSource on formatted output returned error: %v", err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("formatting is not idempotent (-first +second):\n%s", diff)
	}
	if strings.Contains(once, "// counts") {
		t.Errorf("comments should be dropped, got:\n%s", once)
	}
	if !strings.Contains(once, `auto v[3], s = "a\tb\n";`) {
		t.Errorf("string literal not re-escaped, got:\n%s", once)
	}
}

func TestFormatSourceInvalidCode(t *testing.T) {
	src := `main() {`
	out, err := FormatSource(src)
	if err == nil {
		t.Error("expected error for invalid source, got nil")
	}
	if out != src {
		t.Errorf("expected the original source back, got %q", out)
	}
}

func vetMessages(t *testing.T, src string, x *Externs) []string {
	t.Helper()
	issues, err := VetSource(src, x)
	if err != nil {
		t.Fatalf("VetSource error: %v", err)
	}
	var out []string
	for _, is := range issues {
		out = append(out, is.String())
	}
	return out
}

func TestVetSourceClean(t *testing.T) {
	x := NewExterns().Register("putint", func([]Value) (Value, error) { return nil, nil })
	got := vetMessages(t, "main() {\n\textrn putint\n\tputint(1)\n}\n", x)
	if len(got) != 0 {
		t.Errorf("expected no issues for clean code, got: %v", got)
	}
}

func TestVetSource(t *testing.T) {
	x := NewExterns().Register("putint", func([]Value) (Value, error) { return nil, nil })
	cases := []struct {
		name string
		src  string
		want []string
	}{
		{"unreachable", "f() {\n\treturn 1\n\tnope()\n}\n", []string{"3: unreachable code"}},
		{"self-assignment", "auto x\nx = x\n", []string{"2: self-assignment: x = x has no effect"}},
		{"undefined", "nope(1)\nauto r = 1 + other()\n", []string{
			"1: call of undefined function nope",
			"2: call of undefined function other",
		}},
		{"unknown extern", "extrn putint, nothere\n", []string{"1: extrn nothere: no such extern"}},
		{"undefined layout", "struct Q q\n", []string{"1: struct Q is not defined"}},
		{"arity", "f(a) {\n\treturn a\n}\nf(1, 2)\nauto r = f()\n", []string{
			"4: f called with 2 arguments, want 1",
			"5: f called with 0 arguments, want 1",
		}},
		{"sorted by line", "f() {\n\tauto x\n\tx = x\n}\nauto y\ny = y\n", []string{
			"3: self-assignment: x = x has no effect",
			"6: self-assignment: y = y has no effect",
		}},
		{"nested blocks", "if (1) {\n\twhile (0) {\n\t\treturn\n\t\tputint(1)\n\t}\n}\n", []string{"4: unreachable code"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := vetMessages(t, tc.src, x)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("VetSource mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVetSourceNilExterns(t *testing.T) {
	got := vetMessages(t, "putint(1)\n", nil)
	if len(got) != 1 || !strings.Contains(got[0], "undefined function putint") {
		t.Errorf("expected putint to be unknown without externs, got: %v", got)
	}
}

func TestVetSourceParseError(t *testing.T) {
	_, err := VetSource("auto a\n}\n", nil)
	if err == nil {
		t.Error("expected parse error for invalid source")
	}
}

func TestVetIssueString(t *testing.T) {
	issue := VetIssue{Line: 5, Message: "something wrong"}
	if got := issue.String(); got != "5: something wrong" {
		t.Errorf("VetIssue.String() = %q, unexpected format", got)
	}
}

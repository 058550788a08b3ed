// Package testutil provides stand-ins for the external converter in tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// argsPrelude makes $out hold the value of --output and records the argument
// list and a few environment variables next to the script.
const argsPrelude = `#!/bin/sh
dir=$(dirname "$0")
: > "$dir/args.txt"
out=""
prev=""
for a in "$@"; do
  printf '%s\n' "$a" >> "$dir/args.txt"
  if [ "$prev" = "--output" ]; then out="$a"; fi
  prev="$a"
done
printf 'TEXMFVAR=%s\nTEXINPUTS=%s\nPWD=%s\n' "$TEXMFVAR" "$TEXINPUTS" "$(pwd)" > "$dir/env.txt"
`

// Script writes an executable shell script with the given body (after the
// argument prelude) and returns its path.
func Script(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fake-pandoc")
	if err := os.WriteFile(p, []byte(argsPrelude+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake converter: %v", err)
	}
	return p
}

// SuccessScript produces a small PDF at the --output path.
func SuccessScript(t *testing.T) string {
	return Script(t, `printf '%%PDF-1.4\n%%fake\n' > "$out"`)
}

// FailScript writes diagnostics to both streams and exits with code 43.
func FailScript(t *testing.T, stderr, stdout string) string {
	return Script(t, "printf '%s' '"+stderr+"' >&2\nprintf '%s' '"+stdout+"'\nexit 43")
}

// NoOutputScript exits 0 without writing the output file.
func NoOutputScript(t *testing.T) string {
	return Script(t, "exit 0")
}

// SleepScript blocks far longer than any test timeout.
func SleepScript(t *testing.T) string {
	return Script(t, "sleep 30 &\necho $! > \"$dir/child.pid\"\nwait")
}

// RecordedArgs returns the arguments of the last run of script.
func RecordedArgs(t *testing.T, script string) []string {
	t.Helper()
	return readLines(t, filepath.Join(filepath.Dir(script), "args.txt"))
}

// RecordedEnv returns the environment captured by the last run of script.
func RecordedEnv(t *testing.T, script string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, l := range readLines(t, filepath.Join(filepath.Dir(script), "env.txt")) {
		if k, v, ok := strings.Cut(l, "="); ok {
			out[k] = v
		}
	}
	return out
}

func readLines(t *testing.T, p string) []string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

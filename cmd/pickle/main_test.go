package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func script(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runPickle(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("PICKLE_MODULES_DISABLED", "httpc,sntp")
	return dir
}

func TestRun_Files(t *testing.T) {
	dir := isolate(t)
	tests := []struct {
		name  string
		files []string
		out   string
		code  int
	}{
		{
			name:  "puts",
			files: []string{script(t, dir, "a.tcl", "puts [expr \"1 + 2\"]\n")},
			out:   "3\n",
		},
		{
			name: "in order",
			files: []string{
				script(t, dir, "one.tcl", "puts one\n"),
				script(t, dir, "two.tcl", "puts two\n"),
			},
			out: "one\ntwo\n",
		},
		{
			name:  "error text",
			files: []string{script(t, dir, "bad.tcl", "set missing\nputs unreachable\n")},
			out:   "[eval] not found \"missing\": no such variable\n",
			code:  1,
		},
		{
			name:  "exit code",
			files: []string{script(t, dir, "exit.tcl", "puts bye\nexit 7\n"), script(t, dir, "after.tcl", "puts after\n")},
			out:   "bye\n",
			code:  7,
		},
		{
			name:  "break stops",
			files: []string{script(t, dir, "brk.tcl", "break\n"), script(t, dir, "skipped.tcl", "puts skipped\n")},
			out:   "",
		},
		{
			name:  "argv",
			files: []string{script(t, dir, "argv.tcl", "puts [llength $argv]\n")},
			out:   "1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runPickle(t, "", tt.files...)
			if code != tt.code {
				t.Errorf("exit = %d, want %d (stderr %q)", code, tt.code, errOut)
			}
			if out != tt.out {
				t.Errorf("stdout = %q, want %q", out, tt.out)
			}
		})
	}
}

func TestRun_Stdin(t *testing.T) {
	isolate(t)
	code, out, _ := runPickle(t, "puts [utf8 length héllo]\n")
	if code != 0 || out != "5\n" {
		t.Fatalf("exit %d, stdout %q", code, out)
	}
}

func TestRun_CDBScenario(t *testing.T) {
	dir := isolate(t)
	src := `set w [cdb open db.cdb w]
cdb write $w alpha 1
cdb write $w beta 2
cdb close $w
set r [cdb open db.cdb r]
puts [cdb read $r beta]
puts [cdb count $r alpha]
`
	code, out, errOut := runPickle(t, "", script(t, dir, "kv.tcl", src))
	if code != 0 {
		t.Fatalf("exit %d: %s%s", code, out, errOut)
	}
	if out != "2\n1\n" {
		t.Errorf("stdout = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "db.cdb")); err != nil {
		t.Errorf("database not written: %v", err)
	}
}

func TestRun_FSRoot(t *testing.T) {
	dir := isolate(t)
	root := filepath.Join(dir, "jail")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	script(t, root, "inner.tcl", "puts inside\n")
	t.Setenv("PICKLE_FS_ROOT", root)

	code, out, _ := runPickle(t, "", "/inner.tcl")
	if code != 0 || out != "inside\n" {
		t.Fatalf("exit %d, stdout %q", code, out)
	}
}

func TestRun_HeapReport(t *testing.T) {
	dir := isolate(t)
	code, _, errOut := runPickle(t, "", "--heap-report", script(t, dir, "h.tcl", "set x 1\n"))
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(errOut, "allocations=") || !strings.Contains(errOut, "frees=") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	isolate(t)
	code, _, errOut := runPickle(t, "", "--config", "missing.yaml")
	if code != 1 || !strings.Contains(errOut, "cannot read config") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}

	t.Setenv("PICKLE_MODULES_DISABLED", "sys")
	code, _, errOut = runPickle(t, "")
	if code != 1 || !strings.Contains(errOut, "sys module is disabled") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestRun_Shell(t *testing.T) {
	isolate(t)
	code, out, _ := runPickle(t, "set x 5\nset y\n", "shell")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	want := "[0] psh> 5\n[0] psh> [eval] not found \"y\": no such variable\n[1] psh> "
	if out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}

	code, _, _ = runPickle(t, "exit 3\n", "shell")
	if code != 3 {
		t.Errorf("exit = %d, want 3", code)
	}
}

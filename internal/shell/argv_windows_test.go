//go:build windows

package shell

import (
	"reflect"
	"testing"
)

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{`C:\tools\x.exe /c dir`, []string{`C:\tools\x.exe`, "/c", "dir"}},
		{`"C:\Program Files\x.exe" /q`, []string{`C:\Program Files\x.exe`, "/q"}},
		{`cmd /c "echo hi"`, []string{"cmd", "/c", "echo hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitCommandLine(tt.line)
			if err != nil {
				t.Fatalf("splitCommandLine: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgv_BackslashPath(t *testing.T) {
	path, argv, err := buildArgv("", `C:\tools\x.exe /c dir`)
	if err != nil {
		t.Fatal(err)
	}
	if path != `C:\tools\x.exe` {
		t.Errorf("path = %q, want %q", path, `C:\tools\x.exe`)
	}
	if len(argv) != 3 {
		t.Errorf("argv = %q", argv)
	}
}

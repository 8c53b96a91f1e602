package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsTerminalRejectsNonTTYs(t *testing.T) {
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()

	regular, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer regular.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	tests := []struct {
		name string
		f    *os.File
	}{
		{"dev null", devNull},
		{"regular file", regular},
		{"pipe", w},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if isTerminal(tt.f) {
				t.Errorf("isTerminal(%s) = true, want false", tt.name)
			}
		})
	}
}

func TestBatchError(t *testing.T) {
	if err := batchError(0, 3); err != nil {
		t.Errorf("batchError(0, 3) = %v, want nil", err)
	}
	if err := batchError(2, 3); err == nil || err.Error() != "2 of 3 files failed" {
		t.Errorf("batchError(2, 3) = %v", err)
	}
}

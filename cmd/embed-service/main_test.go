package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadChunks_fromArgs(t *testing.T) {
	chunks, err := readChunks("", []string{"alpha text", "beta text"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(chunks, []string{"alpha text", "beta text"}) {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestReadChunks_fromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.txt")
	content := "alpha text\n\n  beta text  \n\ngamma text\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	chunks, err := readChunks(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha text", "beta text", "gamma text"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("readChunks() = %v, want %v", chunks, want)
	}
}

func TestReadChunks_missingFile(t *testing.T) {
	if _, err := readChunks(filepath.Join(t.TempDir(), "nope.txt"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

package handler

import (
	"os"
	"testing"
)

func TestSave(t *testing.T) {
	name := t.TempDir() + "/fixture"
	if err := os.WriteFile(name, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := save(name, []byte("y")); err != nil {
		t.Fatal(err)
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/keithlinneman/docserve/internal/cfg"
	"github.com/keithlinneman/docserve/internal/log"
)

func TestOpenStore_Dir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.json"), []byte(`{"msg": "hi"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	store, backend, err := openStore(context.Background(), log.Nop(), cfg.App{ContentBackend: cfg.BackendDir, ContentDir: dir})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if backend != cfg.BackendDir {
		t.Fatalf("backend = %q", backend)
	}
	doc, err := store.GetDocument(context.Background(), "hello.json")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if string(doc) != `{"msg":"hi"}` {
		t.Fatalf("doc = %s", doc)
	}
}

func TestOpenStore_DirMissing(t *testing.T) {
	_, _, err := openStore(context.Background(), log.Nop(), cfg.App{
		ContentBackend: cfg.BackendDir,
		ContentDir:     filepath.Join(t.TempDir(), "nope"),
	})
	if err == nil {
		t.Fatal("expected error for missing content dir")
	}
}

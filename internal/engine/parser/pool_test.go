package parser

import (
	"sync"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

func pythonLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

func TestParserPool_Leases(t *testing.T) {
	pool := NewParserPool(pythonLanguage())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected a parser")
	}
	if pool.Leased() != 1 {
		t.Fatalf("expected one lease, got %d", pool.Leased())
	}
	pool.Put(sp)
	pool.Put(nil)
	if pool.Leased() != 0 {
		t.Fatalf("expected no leases, got %d", pool.Leased())
	}
}

func TestParserPool_Parse(t *testing.T) {
	pool := NewParserPool(pythonLanguage())

	tree := pool.Parse([]byte("def step_1():\n    factory.add_new_point(0, 0, 0)\n"))
	if tree == nil {
		t.Fatal("expected a parse tree")
	}
	defer tree.Close()

	if root := tree.RootNode(); root.HasError() {
		t.Fatal("expected error-free tree")
	}
	if pool.Leased() != 0 {
		t.Fatalf("Parse must return its parser, got %d leases", pool.Leased())
	}
}

func TestParserPool_ResetParserStillParses(t *testing.T) {
	pool := NewParserPool(pythonLanguage())

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	tree := pool.Parse([]byte("x = 1\n"))
	if tree == nil {
		t.Fatal("expected a parse tree after reset")
	}
	tree.Close()
}

func TestParserPool_Concurrent(t *testing.T) {
	pool := NewParserPool(pythonLanguage())
	src := []byte("part.update()\n")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tree := pool.Parse(src)
				if tree == nil {
					t.Errorf("expected a parse tree")
					return
				}
				tree.Close()
			}
		}()
	}
	wg.Wait()

	if pool.Leased() != 0 {
		t.Fatalf("expected every parser returned, got %d", pool.Leased())
	}
}

package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool hands out tree-sitter parsers bound to one grammar. Source units
// are parsed concurrently by the batch workers, one parser per lease.
type ParserPool struct {
	lang   *sitter.Language
	idle   sync.Pool
	leased atomic.Int64
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.idle.New = func() any {
		return sitter.NewParser()
	}
	return p
}

// Parse leases a parser for one source buffer. The caller owns the returned
// tree and must Close it; nil means tree-sitter gave up on the input.
func (p *ParserPool) Parse(content []byte) *sitter.Tree {
	sp := p.Get()
	defer p.Put(sp)
	return sp.Parse(content, nil)
}

// Get leases a parser with the pool's grammar already selected.
func (p *ParserPool) Get() *sitter.Parser {
	sp := p.idle.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)
	p.leased.Add(1)
	return sp
}

// Put ends a lease. sp must not be used afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leased.Add(-1)
	sp.Reset()
	p.idle.Put(sp)
}

// Leased is the number of parsers currently handed out.
func (p *ParserPool) Leased() int {
	return int(p.leased.Load())
}

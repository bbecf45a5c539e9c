package parser

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/shared/util"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// TypeOracle answers type questions from the API catalog during inference.
// A nil oracle limits inference to naming heuristics.
type TypeOracle interface {
	ReturnType(receiverType, method string) string
	ClassForNoun(noun string) string
	HasClass(name string) bool
}

type Parser struct {
	pool       *ParserPool
	extractor  *PythonExtractor
	extensions map[string]bool
}

// NewParser builds a Python call-site parser. extensions defaults to ".py".
func NewParser(oracle TypeOracle, extensions ...string) *Parser {
	p := &Parser{
		pool:       NewParserPool(sitter.NewLanguage(tree_sitter_python.Language())),
		extractor:  &PythonExtractor{oracle: oracle},
		extensions: make(map[string]bool),
	}
	if len(extensions) == 0 {
		extensions = []string{".py"}
	}
	for _, ext := range extensions {
		p.extensions[strings.ToLower(ext)] = true
	}
	return p
}

// ParseFile extracts the call sites of one source unit. A syntax error yields
// a PARSE_ERROR so the caller can skip the unit and continue.
func (p *Parser) ParseFile(path string, content []byte) (*Unit, error) {
	tree := p.pool.Parse(content)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeParseError, "parse failed"), errors.CtxPath, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		msg := "syntax error"
		if bad := firstError(root); bad != nil {
			msg = fmt.Sprintf("syntax error at line %d", bad.StartPosition().Row+1)
		}
		return nil, errors.AddContext(errors.New(errors.CodeParseError, msg), errors.CtxPath, path)
	}

	unit := &Unit{
		Path:          path,
		Hash:          util.ContentHash(content),
		VariableTypes: make(map[string]string),
		StepTitles:    make(map[int]string),
		ParsedAt:      time.Now(),
	}
	p.extractor.Extract(root, content, unit)
	return unit, nil
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func firstError(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

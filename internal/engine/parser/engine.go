package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler reacts to one node kind. Returning true means the handler has
// visited the children it cares about itself.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext is the state of one extraction pass. step and function
// track the enclosing step function while handlers descend.
type ExtractionContext struct {
	Source []byte
	Unit   *Unit
	Oracle TypeOracle

	handlers map[string]NodeHandler
	step     int
	lastStep int
	function string
	lastCall string
}

func newExtractionContext(source []byte, unit *Unit, oracle TypeOracle, handlers map[string]NodeHandler) *ExtractionContext {
	return &ExtractionContext{Source: source, Unit: unit, Oracle: oracle, handlers: handlers}
}

// Walk visits node depth-first in source order.
func (c *ExtractionContext) Walk(node *sitter.Node) {
	if node == nil {
		return
	}
	if h := c.handlers[node.Kind()]; h != nil && h(c, node) {
		return
	}
	n := node.ChildCount()
	for i := uint(0); i < n; i++ {
		c.Walk(node.Child(i))
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// Location is 1-based in both line and column.
func (c *ExtractionContext) Location(node *sitter.Node) Location {
	pos := node.StartPosition()
	return Location{File: c.Unit.Path, Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
}

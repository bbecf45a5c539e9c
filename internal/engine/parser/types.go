package parser

import (
	"time"
)

// Unknown marks a variable whose type could not be inferred.
const Unknown = "unknown"

// Unit is everything extracted from one source file.
type Unit struct {
	Path          string
	Hash          string
	Calls         []CallSite
	Assignments   []Assignment
	VariableTypes map[string]string
	// StepTitles maps a step number to a readable title derived from the
	// step function's name and docstring.
	StepTitles map[int]string
	ParsedAt   time.Time
}

// CallSite is one `receiver.method(...)` invocation.
type CallSite struct {
	ObjectChain  string
	MethodName   string
	Arguments    []Argument
	StepNumber   int
	FunctionName string
	Location     Location
	// ReceiverType is the inferred type of the receiver when the call was
	// seen, empty when unknown.
	ReceiverType string
	Text         string
}

// BaseVariable is the first segment of the object chain.
func (c CallSite) BaseVariable() string {
	chain := c.ObjectChain
	if i := indexAny(chain, ".(["); i >= 0 {
		chain = chain[:i]
	}
	return chain
}

// Assignment records `name = ...` with the type inferred at that point.
type Assignment struct {
	Name       string
	Type       string
	Method     string
	StepNumber int
	Location   Location
}

type ArgumentKind string

const (
	ArgConstant  ArgumentKind = "constant"
	ArgVariable  ArgumentKind = "variable"
	ArgAttribute ArgumentKind = "attribute"
	ArgComplex   ArgumentKind = "complex"
)

type Argument struct {
	Kind    ArgumentKind
	Value   string
	Keyword string
	// NodeKind is the syntax node kind for complex arguments.
	NodeKind string
}

type Location struct {
	File   string
	Line   int
	Column int
}

func indexAny(s, chars string) int {
	for i, r := range s {
		for _, c := range chars {
			if r == c {
				return i
			}
		}
	}
	return -1
}

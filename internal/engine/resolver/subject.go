package resolver

import (
	"apimatch/internal/core/ports"
	"apimatch/internal/engine/parser"
	"fmt"
	"strings"
)

type SubjectKind string

const (
	SubjectStep SubjectKind = "step"
	SubjectCall SubjectKind = "call"
)

// Subject is what one resolution call tries to map onto a catalog method:
// a design step, or a call site framed by its enclosing step.
type Subject struct {
	Kind SubjectKind
	Key  string
	Step ports.DesignStep
	Call *parser.CallSite
}

func StepSubject(step ports.DesignStep) Subject {
	return Subject{
		Kind: SubjectStep,
		Key:  fmt.Sprintf("step %d", step.StepNumber),
		Step: step,
	}
}

// CallSubject frames call under the title of the step it belongs to.
func CallSubject(call parser.CallSite, stepTitle string) Subject {
	c := call
	title := strings.TrimSpace(stepTitle)
	if title == "" {
		title = humanize(call.FunctionName)
	}
	return Subject{
		Kind: SubjectCall,
		Key:  fmt.Sprintf("%s:%d:%d", call.Location.File, call.Location.Line, call.Location.Column),
		Step: ports.DesignStep{
			StepNumber:  call.StepNumber,
			Title:       title,
			Description: call.Text,
		},
		Call: &c,
	}
}

// Text is everything the scorer reads about the subject.
func (s Subject) Text() string {
	if s.Call == nil {
		return s.Step.Text()
	}
	parts := []string{s.Step.Title, humanize(s.Call.MethodName)}
	if s.Call.ObjectChain != parser.Unknown {
		parts = append(parts, humanize(s.Call.ObjectChain))
	}
	return strings.Join(parts, " ")
}

// Title is the human label used in reasoning strings.
func (s Subject) Title() string {
	if s.Step.Title != "" {
		return s.Step.Title
	}
	if s.Call != nil {
		return s.Call.ObjectChain + "." + s.Call.MethodName
	}
	return s.Key
}

// MethodName is the called method for call subjects, empty for steps.
func (s Subject) MethodName() string {
	if s.Call == nil {
		return ""
	}
	return s.Call.MethodName
}

func humanize(name string) string {
	return strings.TrimSpace(strings.NewReplacer("_", " ", ".", " ").Replace(name))
}

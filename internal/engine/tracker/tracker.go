package tracker

import (
	"apimatch/internal/core/ports"
	"fmt"
	"regexp"
	"strings"
)

// ObjectContext is one object created by an earlier step.
type ObjectContext struct {
	Name           string
	InferredType   string
	CreationStep   int
	CreationMethod string
	Properties     map[string]string
}

// elementTypes maps created-element nouns to the type recorded for them.
var elementTypes = map[string]string{
	"plane":        "reference_plane",
	"point":        "reference_point",
	"line":         "reference_line",
	"spline":       "curve",
	"curve":        "curve",
	"surface":      "surface",
	"thicksurface": "surface",
	"extrude":      "surface",
	"join":         "surface",
	"sketch":       "sketch",
	"pad":          "solid",
	"pocket":       "solid",
	"axis":         "axis_system",
}

var (
	numberedElement = regexp.MustCompile(`(?i)\b(thicksurface|surface|spline|curve|plane|point|line|extrude|join|sketch|pad|pocket|axis)[ ._]?(\d+)\b`)
	bareElement     = regexp.MustCompile(`(?i)\b(thicksurface|surface|spline|curve|plane|point|line|extrude|join|sketch|pad|pocket|axis)\b`)
)

// maxSummaryObjects caps the earlier objects listed by ContextFor.
const maxSummaryObjects = 5

// Tracker is an append-only log of objects created by resolved steps. It is
// owned by one sequential resolution run and is not safe for concurrent use.
type Tracker struct {
	entries []ObjectContext
}

func New() *Tracker {
	return &Tracker{}
}

// Record appends the objects mentioned as created by step, named exactly as
// the text writes them (spline1, Plane.1, point 2). The top match's method
// becomes the creation method of each, "unknown" without matches.
func (t *Tracker) Record(step ports.DesignStep, matches []ports.MethodMatch) []ObjectContext {
	method := "unknown"
	if len(matches) > 0 {
		method = matches[0].MethodName
	}
	text := step.Description + " " + step.ExpectedOutcome

	var added []ObjectContext
	for _, m := range mentionedObjects(text) {
		obj := ObjectContext{
			Name:           m.name,
			InferredType:   typeForNoun(m.noun),
			CreationStep:   step.StepNumber,
			CreationMethod: method,
			Properties:     map[string]string{"description": step.Description},
		}
		t.entries = append(t.entries, obj)
		added = append(added, obj)
	}
	return added
}

// Add appends an explicitly known object such as a typed source variable.
func (t *Tracker) Add(obj ObjectContext) {
	if obj.Properties == nil {
		obj.Properties = map[string]string{}
	}
	t.entries = append(t.entries, obj)
}

// Lookup returns the most recently recorded object with exactly this name.
func (t *Tracker) Lookup(name string) (ObjectContext, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Name == name {
			return t.entries[i], true
		}
	}
	return ObjectContext{}, false
}

// Before lists the objects created strictly before step, in recording order.
func (t *Tracker) Before(step int) []ObjectContext {
	var out []ObjectContext
	for _, obj := range t.entries {
		if obj.CreationStep < step {
			out = append(out, obj)
		}
	}
	return out
}

// Referenced lists the visible objects from earlier steps whose name appears
// in the step text. Shadowed entries are skipped.
func (t *Tracker) Referenced(step ports.DesignStep) []ObjectContext {
	text := strings.ToLower(step.Text())
	var out []ObjectContext
	seen := map[string]bool{}
	for i := len(t.entries) - 1; i >= 0; i-- {
		obj := t.entries[i]
		if obj.CreationStep >= step.StepNumber || seen[obj.Name] {
			continue
		}
		seen[obj.Name] = true
		if mentions(text, strings.ToLower(obj.Name)) {
			out = append(out, obj)
		}
	}
	// oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ContextFor summarizes the objects available to step.
func (t *Tracker) ContextFor(step ports.DesignStep) string {
	var parts []string

	previous := t.Before(step.StepNumber)
	if len(previous) > maxSummaryObjects {
		previous = previous[len(previous)-maxSummaryObjects:]
	}
	if len(previous) > 0 {
		names := make([]string, 0, len(previous))
		for _, obj := range previous {
			names = append(names, obj.Name)
		}
		parts = append(parts, "Available objects from previous steps: "+strings.Join(names, ", "))
	}

	referenced := t.Referenced(step)
	if len(referenced) > 0 {
		refs := make([]string, 0, len(referenced))
		for _, obj := range referenced {
			refs = append(refs, fmt.Sprintf("%s (created in step %d)", obj.Name, obj.CreationStep))
		}
		parts = append(parts, "Referenced objects: "+strings.Join(refs, ", "))
	}
	return strings.Join(parts, " | ")
}

// Entries returns a copy of the log in recording order.
func (t *Tracker) Entries() []ObjectContext {
	return append([]ObjectContext(nil), t.entries...)
}

func (t *Tracker) Len() int {
	return len(t.entries)
}

type mention struct {
	name string
	noun string
}

func mentionedObjects(text string) []mention {
	var out []mention
	seen := map[string]bool{}
	numbered := map[string]bool{}
	for _, m := range numberedElement.FindAllStringSubmatch(text, -1) {
		noun := strings.ToLower(m[1])
		numbered[noun] = true
		if key := strings.ToLower(m[0]); !seen[key] {
			seen[key] = true
			out = append(out, mention{name: m[0], noun: noun})
		}
	}
	for _, m := range bareElement.FindAllStringSubmatch(text, -1) {
		noun := strings.ToLower(m[1])
		if numbered[noun] || seen[noun] {
			continue
		}
		seen[noun] = true
		out = append(out, mention{name: noun, noun: noun})
	}
	return out
}

func typeForNoun(noun string) string {
	if t, ok := elementTypes[noun]; ok {
		return t
	}
	return "geometric_element"
}

// mentions matches name as a whole token so "plane.1" does not hit "plane.12".
func mentions(text, name string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], name)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(name)
		before := i == 0 || !isWordByte(text[i-1])
		after := end == len(text) || !(isWordByte(text[end]) || continuesNumber(text, end))
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// continuesNumber reports a ".<digit>" suffix at i, as in plane.1 within plane.1.2.
func continuesNumber(text string, i int) bool {
	return text[i] == '.' && i+1 < len(text) && text[i+1] >= '0' && text[i+1] <= '9'
}

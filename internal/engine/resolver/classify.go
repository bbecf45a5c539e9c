package resolver

import (
	"math/bits"
	"sort"
	"strings"
	"unicode"
)

// Action is a closed category of intended operation.
type Action uint8

const (
	ActionCreate Action = iota
	ActionInitialize
	ActionAccess
	ActionConfigure
	ActionDefine
	ActionConnect
	ActionModify
)

var actionNames = [...]string{"create", "initialize", "access", "configure", "define", "connect", "modify"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// Domain is a closed category of object noun.
type Domain uint8

const (
	DomainGeometry Domain = iota
	DomainCreation
	DomainStructure
	DomainReference
	DomainOperations
)

var domainNames = [...]string{"geometry", "creation", "structure", "reference", "operations"}

func (d Domain) String() string {
	if int(d) < len(domainNames) {
		return domainNames[d]
	}
	return "unknown"
}

// Set is a bit set over a closed category enumeration.
type Set[T ~uint8] uint32

func (s Set[T]) Has(v T) bool { return s&(1<<v) != 0 }

func (s Set[T]) With(v T) Set[T] { return s | 1<<v }

func (s Set[T]) Len() int { return bits.OnesCount32(uint32(s)) }

func (s Set[T]) And(o Set[T]) Set[T] { return s & o }

// Members lists the set in enumeration order.
func (s Set[T]) Members() []T {
	var out []T
	for v := 0; v < 32; v++ {
		if s&(1<<v) != 0 {
			out = append(out, T(v))
		}
	}
	return out
}

var actionVocabulary = map[Action][]string{
	ActionCreate:     {"create", "add", "new", "generate", "build", "make", "insert"},
	ActionInitialize: {"initialize", "init", "start", "begin", "setup", "launch", "open"},
	ActionAccess:     {"access", "get", "retrieve", "obtain", "fetch", "item", "find", "search"},
	ActionConfigure:  {"configure", "set", "setup", "adjust", "option", "parameter"},
	ActionDefine:     {"define", "specify", "establish", "determine"},
	ActionConnect:    {"connect", "join", "link", "attach", "assemble"},
	ActionModify:     {"modify", "change", "update", "edit", "alter", "remove", "delete", "replace"},
}

var domainVocabulary = map[Domain][]string{
	DomainGeometry:   {"plane", "point", "line", "surface", "curve", "spline", "axis", "coordinate", "vector", "circle", "sketch"},
	DomainCreation:   {"factory", "hybrid", "shape", "element", "feature"},
	DomainStructure:  {"document", "part", "body", "bodies", "assembly", "component", "product"},
	DomainReference:  {"reference", "datum", "origin", "system", "frame"},
	DomainOperations: {"project", "extrude", "revolve", "sweep", "loft", "blend", "offset", "pad", "pocket", "fillet"},
}

var (
	actionStems = invert(actionVocabulary)
	domainStems = invert(domainVocabulary)
)

func invert[T ~uint8](vocab map[T][]string) map[string]Set[T] {
	out := make(map[string]Set[T])
	for category, words := range vocab {
		for _, w := range words {
			s := stem(w)
			out[s] = out[s].With(category)
		}
	}
	return out
}

// ClassifyActions maps free text to its action categories.
func ClassifyActions(text string) Set[Action] {
	return classify(stems(tokenize(text)), actionStems)
}

// ClassifyDomains maps free text to its domain categories.
func ClassifyDomains(text string) Set[Domain] {
	return classify(stems(tokenize(text)), domainStems)
}

func classify[T ~uint8](tokens map[string]bool, vocab map[string]Set[T]) Set[T] {
	var out Set[T]
	for tok := range tokens {
		out |= vocab[tok]
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "into": true,
	"onto": true, "this": true, "that": true, "its": true, "are": true, "was": true,
	"will": true, "use": true, "using": true, "then": true, "each": true, "all": true,
	"any": true, "via": true, "which": true, "should": true, "step": true, "self": true,
}

// tokenize splits text into lower-case words at non-letters, snake_case and
// camelCase boundaries. Acronyms stay together: "XYPlane" -> xy, plane.
func tokenize(text string) []string {
	var out []string
	runes := []rune(text)
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			out = append(out, strings.ToLower(string(runes[start:end])))
		}
		start = -1
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		if unicode.IsUpper(r) && unicode.IsLower(prev) {
			flush(i)
			start = i
			continue
		}
		if unicode.IsLower(r) && unicode.IsUpper(prev) && i-1 > start {
			flush(i - 1)
			start = i - 1
		}
	}
	flush(len(runes))
	return out
}

// stem is a light suffix stripper: plurals, -ing, -ed and a trailing e, so
// "creating", "created" and "create" meet at "creat".
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		w = w[:len(w)-3] + "y"
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		w = w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		w = w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		w = w[:len(w)-1]
	}
	if len(w) > 3 && strings.HasSuffix(w, "e") {
		w = w[:len(w)-1]
	}
	return w
}

func stems(tokens []string) map[string]bool {
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[stem(t)] = true
	}
	return out
}

// keywords are the distinctive stems of text: no stopwords, nothing shorter
// than three letters, sorted for deterministic iteration.
func keywords(text string) []string {
	seen := map[string]bool{}
	for _, t := range tokenize(text) {
		if len(t) < 3 || stopwords[t] {
			continue
		}
		seen[stem(t)] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

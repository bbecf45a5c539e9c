package catalog

import (
	"apimatch/internal/core/errors"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

// rootClass is the universal base every reflected class inherits from.
const rootClass = "object"

type Class struct {
	Name         string
	FullPath     string
	Domain       string
	Parents      []string
	Methods      []*Method
	Purpose      string
	Docstring    string
	IsFactory    bool
	IsCollection bool

	methodIndex map[string]*Method
}

// Method returns the method declared directly on c, or nil.
func (c *Class) Method(name string) *Method {
	return c.methodIndex[name]
}

// DocumentedPurposes counts declared methods carrying purpose text.
func (c *Class) DocumentedPurposes() int {
	n := 0
	for _, m := range c.Methods {
		if strings.TrimSpace(m.Purpose) != "" {
			n++
		}
	}
	return n
}

type Method struct {
	Name       string
	Class      string
	Signature  string
	Parameters []string
	ReturnType string
	Purpose    string
	Kind       string
}

type Stats struct {
	Classes     int
	Methods     int
	Domains     int
	Factories   int
	Collections int
	Documented  int
}

// KnowledgeGraph is the immutable catalog model. Every index is built by
// Build; values handed out must be treated as read-only.
type KnowledgeGraph struct {
	classes     map[string]*Class
	order       []string
	byMethod    map[string][]string
	children    map[string][]string
	bySignature map[string]*Method
	domains     []string
	fingerprint string
	stats       Stats
}

// Build validates m and constructs every index up front.
func Build(m *Manifest) (*KnowledgeGraph, error) {
	if m == nil || len(m.Classes) == 0 {
		return nil, errors.New(errors.CodeCatalogUnavailable, "catalog manifest has no classes")
	}
	if m.Version != ManifestVersion {
		return nil, errors.New(errors.CodeCatalogUnavailable, fmt.Sprintf("unsupported manifest version %d", m.Version))
	}

	g := &KnowledgeGraph{
		classes:     make(map[string]*Class, len(m.Classes)),
		byMethod:    make(map[string][]string),
		children:    make(map[string][]string),
		bySignature: make(map[string]*Method),
	}

	for name, entry := range m.Classes {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New(errors.CodeCatalogUnavailable, "catalog contains a class without a name")
		}
		if _, dup := g.classes[name]; dup {
			err := errors.New(errors.CodeCatalogUnavailable, fmt.Sprintf("duplicate class %q after trimming", name))
			return nil, errors.AddContext(err, errors.CtxClass, name)
		}
		cls, err := buildClass(name, entry)
		if err != nil {
			return nil, err
		}
		for _, method := range cls.Methods {
			if prev, dup := g.bySignature[method.Signature]; dup {
				err := errors.New(errors.CodeCatalogUnavailable, fmt.Sprintf("duplicate signature %q on %s and %s", method.Signature, prev.Class, name))
				return nil, errors.AddContext(err, errors.CtxSignature, method.Signature)
			}
			g.bySignature[method.Signature] = method
		}
		g.classes[name] = cls
		g.order = append(g.order, name)
	}
	sort.Strings(g.order)

	domains := make(map[string]bool)
	for _, name := range g.order {
		cls := g.classes[name]
		for _, method := range cls.Methods {
			g.byMethod[method.Name] = append(g.byMethod[method.Name], name)
		}
		for _, parent := range cls.Parents {
			if _, known := g.classes[parent]; known {
				g.children[parent] = append(g.children[parent], name)
			}
		}
		if cls.Domain != "" {
			domains[cls.Domain] = true
		}
		g.stats.Methods += len(cls.Methods)
		g.stats.Documented += cls.DocumentedPurposes()
		if cls.IsFactory {
			g.stats.Factories++
		}
		if cls.IsCollection {
			g.stats.Collections++
		}
	}
	for d := range domains {
		g.domains = append(g.domains, d)
	}
	sort.Strings(g.domains)
	g.stats.Classes = len(g.order)
	g.stats.Domains = len(g.domains)

	fp, err := fingerprint(m)
	if err != nil {
		return nil, err
	}
	g.fingerprint = fp
	return g, nil
}

func buildClass(name string, entry ClassEntry) (*Class, error) {
	cls := &Class{
		Name:        name,
		FullPath:    strings.TrimSpace(entry.FullPath),
		Domain:      strings.TrimSpace(entry.Domain),
		Purpose:     strings.TrimSpace(entry.Purpose),
		Docstring:   strings.TrimSpace(entry.Docstring),
		methodIndex: make(map[string]*Method, len(entry.Methods)),
	}
	if cls.FullPath == "" {
		cls.FullPath = name
	}
	if cls.Domain == "" {
		cls.Domain = domainFromPath(cls.FullPath)
	}
	if entry.IsFactory != nil {
		cls.IsFactory = *entry.IsFactory
	} else {
		cls.IsFactory = strings.Contains(name, "Factory")
	}
	if entry.IsCollection != nil {
		cls.IsCollection = *entry.IsCollection
	} else {
		cls.IsCollection = looksLikeCollection(name)
	}

	for _, parent := range entry.ParentClasses {
		parent = strings.TrimSpace(parent)
		if parent == "" || parent == rootClass || parent == name {
			continue
		}
		cls.Parents = append(cls.Parents, parent)
	}

	names := make([]string, 0, len(entry.Methods))
	for methodName := range entry.Methods {
		if strings.HasPrefix(methodName, "_") {
			continue
		}
		names = append(names, methodName)
	}
	sort.Strings(names)

	for _, methodName := range names {
		sig := strings.TrimSpace(entry.Methods[methodName])
		if sig == "" {
			err := errors.New(errors.CodeCatalogUnavailable, fmt.Sprintf("method %s.%s has an empty signature", name, methodName))
			return nil, errors.AddContext(err, errors.CtxClass, name)
		}
		detail := entry.MethodDetails[methodName]
		m := &Method{
			Name:       methodName,
			Class:      name,
			Signature:  sig,
			Parameters: append([]string(nil), detail.Parameters...),
			ReturnType: strings.TrimSpace(detail.ReturnType),
			Purpose:    strings.TrimSpace(detail.Purpose),
			Kind:       detail.Kind,
		}
		if m.Kind == "" {
			m.Kind = "instance"
		}
		cls.Methods = append(cls.Methods, m)
		cls.methodIndex[methodName] = m
	}
	return cls, nil
}

// domainFromPath takes the second dotted segment, e.g. "api.geometry.Point" -> "geometry".
func domainFromPath(fullPath string) string {
	parts := strings.Split(fullPath, ".")
	if len(parts) > 2 {
		return parts[1]
	}
	return "general"
}

func looksLikeCollection(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"collection", "list", "set"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func fingerprint(m *Manifest) (string, error) {
	// encoding/json sorts map keys, so the encoding is canonical.
	data, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "encode manifest fingerprint")
	}
	h := xxh3.New()
	if _, err := h.Write(data); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "hash manifest")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (g *KnowledgeGraph) Class(name string) (*Class, bool) {
	cls, ok := g.classes[name]
	return cls, ok
}

func (g *KnowledgeGraph) HasClass(name string) bool {
	_, ok := g.classes[name]
	return ok
}

// Classes returns every class sorted by name.
func (g *KnowledgeGraph) Classes() []*Class {
	out := make([]*Class, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.classes[name])
	}
	return out
}

// ClassesWithMethod lists the classes declaring methodName, sorted by name.
func (g *KnowledgeGraph) ClassesWithMethod(methodName string) []string {
	return append([]string(nil), g.byMethod[methodName]...)
}

func (g *KnowledgeGraph) Domain(class string) string {
	if cls, ok := g.classes[class]; ok {
		return cls.Domain
	}
	return ""
}

func (g *KnowledgeGraph) Domains() []string {
	return append([]string(nil), g.domains...)
}

// Parents returns the declared parents of class, known or opaque.
func (g *KnowledgeGraph) Parents(class string) []string {
	if cls, ok := g.classes[class]; ok {
		return append([]string(nil), cls.Parents...)
	}
	return nil
}

// Children returns the known direct subclasses of class, sorted by name.
func (g *KnowledgeGraph) Children(class string) []string {
	return append([]string(nil), g.children[class]...)
}

// Ancestors walks parents breadth-first and returns the known ancestors of
// class, nearest first. Opaque parents are skipped.
func (g *KnowledgeGraph) Ancestors(class string) []string {
	cls, ok := g.classes[class]
	if !ok {
		return nil
	}
	seen := map[string]bool{class: true}
	queue := append([]string(nil), cls.Parents...)
	var out []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		parent, known := g.classes[name]
		if !known {
			continue
		}
		out = append(out, name)
		queue = append(queue, parent.Parents...)
	}
	return out
}

// IsSubclass reports whether ancestor appears in the known ancestry of class.
func (g *KnowledgeGraph) IsSubclass(class, ancestor string) bool {
	for _, a := range g.Ancestors(class) {
		if a == ancestor {
			return true
		}
	}
	return false
}

// MethodsOf lists the methods available on class. Declared methods come first
// in name order; with inherited set, ancestor methods follow in ancestry order
// and names already seen are shadowed.
func (g *KnowledgeGraph) MethodsOf(class string, inherited bool) []*Method {
	cls, ok := g.classes[class]
	if !ok {
		return nil
	}
	out := append([]*Method(nil), cls.Methods...)
	if !inherited {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, m := range out {
		seen[m.Name] = true
	}
	for _, ancestor := range g.Ancestors(class) {
		for _, m := range g.classes[ancestor].Methods {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			out = append(out, m)
		}
	}
	return out
}

// Method looks a method up by its full signature.
func (g *KnowledgeGraph) Method(signature string) (*Method, bool) {
	m, ok := g.bySignature[signature]
	return m, ok
}

// ReturnType reports the annotated return type of method when called on
// receiverType. Without a receiver type the answer is only given when every
// owner of that method name agrees.
func (g *KnowledgeGraph) ReturnType(receiverType, method string) string {
	if receiverType != "" {
		if _, ok := g.classes[receiverType]; ok {
			for _, m := range g.MethodsOf(receiverType, true) {
				if m.Name == method {
					return m.ReturnType
				}
			}
			return ""
		}
	}
	result := ""
	for _, owner := range g.byMethod[method] {
		rt := g.classes[owner].methodIndex[method].ReturnType
		if rt == "" {
			return ""
		}
		if result != "" && result != rt {
			return ""
		}
		result = rt
	}
	return result
}

// ClassForNoun maps a snake_case or free noun such as "hybrid_shape_plane" to
// a catalog class. An exact match wins, otherwise the shortest class name
// ending in the noun, alphabetical on ties.
func (g *KnowledgeGraph) ClassForNoun(noun string) string {
	camel := CamelCase(noun)
	if camel == "" {
		return ""
	}
	if _, ok := g.classes[camel]; ok {
		return camel
	}
	lower := strings.ToLower(camel)
	best := ""
	for _, name := range g.order {
		ln := strings.ToLower(name)
		if ln == lower {
			return name
		}
		if strings.HasSuffix(ln, lower) && (best == "" || len(name) < len(best)) {
			best = name
		}
	}
	return best
}

func (g *KnowledgeGraph) Stats() Stats {
	return g.stats
}

// Fingerprint identifies the manifest content the graph was built from.
func (g *KnowledgeGraph) Fingerprint() string {
	return g.fingerprint
}

// CamelCase converts snake_case or spaced words to CamelCase.
func CamelCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range strings.TrimSpace(s) {
		if r == '_' || r == ' ' || r == '-' || r == '.' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

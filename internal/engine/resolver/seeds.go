package resolver

import (
	"apimatch/internal/engine/catalog"
	"sort"
	"strings"
)

// productiveClasses picks the classes worth searching first. Classes under
// the method floor never qualify; the rest are ranked by naming pattern, key
// domain, size, documentation and factory/collection flags. When nothing
// qualifies every class is a seed.
func productiveClasses(g *catalog.KnowledgeGraph, opts Options) []string {
	type seed struct {
		name string
		rank int
	}
	var seeds []seed
	for _, cls := range g.Classes() {
		n := len(cls.Methods)
		if n < opts.MinMethods {
			continue
		}
		rank := 0
		if containsAnyFold(cls.Name, opts.ProductivePatterns) {
			rank += 2
		}
		if n >= opts.KeyDomainMinMethods && containsAnyFold(cls.Domain, opts.KeyDomains) {
			rank += 2
		}
		if opts.LargeClassMethods > 0 && n >= opts.LargeClassMethods {
			rank++
		}
		if cls.Purpose != "" || cls.DocumentedPurposes() > 0 {
			rank++
		}
		if cls.IsFactory || cls.IsCollection {
			rank++
		}
		if rank > 0 {
			seeds = append(seeds, seed{name: cls.Name, rank: rank})
		}
	}

	if len(seeds) == 0 {
		all := g.Classes()
		out := make([]string, 0, len(all))
		for _, cls := range all {
			out = append(out, cls.Name)
		}
		return out
	}

	// Classes() is name ordered, so equal ranks stay alphabetical.
	sort.SliceStable(seeds, func(i, j int) bool { return seeds[i].rank > seeds[j].rank })
	if len(seeds) > opts.MaxSeedClasses {
		seeds = seeds[:opts.MaxSeedClasses]
	}
	out := make([]string, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, s.name)
	}
	return out
}

// seeds returns the level-0 classes for subject. A call whose method name is
// in the catalog starts from the declaring classes and their descendants.
func (r *Resolver) seeds(subject Subject) ([]string, bool) {
	if name := subject.MethodName(); name != "" {
		if owners := r.graph.ClassesWithMethod(name); len(owners) > 0 {
			return r.withDescendants(owners), true
		}
	}
	return r.productive, false
}

func (r *Resolver) withDescendants(roots []string) []string {
	seen := make(map[string]bool, len(roots))
	var out []string
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		queue = append(queue, r.graph.Children(name)...)
	}
	return out
}

func containsAnyFold(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

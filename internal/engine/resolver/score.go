package resolver

import (
	"apimatch/internal/shared/util"
	"strings"
)

// Weights combine the four sub-scores. Boosts scale a raw overlap ratio
// before it is capped at 1.
type Weights struct {
	Lexical      float64
	Action       float64
	Domain       float64
	Context      float64
	LexicalBoost float64
	ActionBoost  float64
	DomainBoost  float64
}

func defaultWeights() Weights {
	return Weights{
		Lexical:      0.25,
		Action:       0.30,
		Domain:       0.30,
		Context:      0.15,
		LexicalBoost: 1.5,
		ActionBoost:  1.2,
		DomainBoost:  1.3,
	}
}

// Features is the pre-analysed form of a piece of text.
type Features struct {
	Keywords []string
	Stems    map[string]bool
	Actions  Set[Action]
	Domains  Set[Domain]
}

func Analyze(text string) Features {
	st := stems(tokenize(text))
	return Features{
		Keywords: keywords(text),
		Stems:    st,
		Actions:  classify(st, actionStems),
		Domains:  classify(st, domainStems),
	}
}

// merge returns the union of f and the stems of extra words.
func (f Features) merge(extra string) Features {
	if extra == "" {
		return f
	}
	add := stems(tokenize(extra))
	out := Features{Keywords: f.Keywords, Stems: make(map[string]bool, len(f.Stems)+len(add))}
	for s := range f.Stems {
		out.Stems[s] = true
	}
	for s := range add {
		out.Stems[s] = true
	}
	out.Actions = f.Actions | classify(add, actionStems)
	out.Domains = f.Domains | classify(add, domainStems)
	return out
}

// Breakdown is one scored candidate with every contribution kept for
// reporting. All sub-scores lie in [0,1].
type Breakdown struct {
	Lexical float64
	Action  float64
	Domain  float64
	Context float64
	Total   float64
	Reasons []string
}

type Scorer struct {
	Weights              Weights
	HighConfidenceAbove  float64
	HighConfidenceFactor float64
}

// Score rates candidate against subject. bonus is the summed context bonus,
// capped at 1 before weighting.
func (s Scorer) Score(subject, candidate Features, bonus float64, reasons []string) Breakdown {
	w := s.Weights
	b := Breakdown{
		Lexical: lexicalOverlap(subject.Keywords, candidate.Stems, w.LexicalBoost),
		Action:  categoryOverlap(subject.Actions.Len(), subject.Actions.And(candidate.Actions).Len(), w.ActionBoost),
		Domain:  categoryOverlap(subject.Domains.Len(), subject.Domains.And(candidate.Domains).Len(), w.DomainBoost),
		Context: util.Clamp01(bonus),
		Reasons: reasons,
	}

	sum := w.Lexical + w.Action + w.Domain + w.Context
	if sum <= 0 {
		return b
	}
	total := (w.Lexical*b.Lexical + w.Action*b.Action + w.Domain*b.Domain + w.Context*b.Context) / sum
	if s.HighConfidenceFactor > 1 && total > s.HighConfidenceAbove {
		total *= s.HighConfidenceFactor
	}
	b.Total = util.Clamp01(total)
	return b
}

func lexicalOverlap(keywords []string, candidate map[string]bool, boost float64) float64 {
	if len(keywords) == 0 || len(candidate) == 0 {
		return 0
	}
	hits := 0
	for _, k := range keywords {
		if stemMatches(k, candidate) {
			hits++
		}
	}
	return util.Clamp01(float64(hits) / float64(len(keywords)) * boost)
}

// stemMatches accepts an exact stem or, for stems of four letters or more,
// a shared prefix in either direction ("config" and "configur").
func stemMatches(k string, candidate map[string]bool) bool {
	if candidate[k] {
		return true
	}
	if len(k) < 4 {
		return false
	}
	for c := range candidate {
		if len(c) < 4 {
			continue
		}
		if strings.HasPrefix(c, k) || strings.HasPrefix(k, c) {
			return true
		}
	}
	return false
}

func categoryOverlap(subject, shared int, boost float64) float64 {
	if subject == 0 || shared == 0 {
		return 0
	}
	return util.Clamp01(float64(shared) / float64(subject) * boost)
}

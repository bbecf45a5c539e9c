package resolver

import (
	"apimatch/internal/core/ports"
	"apimatch/internal/engine/catalog"
	"apimatch/internal/engine/reasoning"
	"apimatch/internal/engine/tracker"
	"apimatch/internal/shared/observability"
	"apimatch/internal/shared/util"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ClassScore is one ranked class at a search level.
type ClassScore struct {
	Class     string
	Score     float64
	Breakdown Breakdown
	Reasoning string

	// InheritedFrom names the ancestor whose score was credited, if any.
	InheritedFrom string
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Matches  []ports.MethodMatch
	Explored int
	Levels   int

	// FallbackUsed is set when a reasoning port is configured but the
	// matches rest on heuristic scores alone, because the port failed or
	// no level needed it.
	FallbackUsed  bool
	ReasoningUsed bool
}

// Resolver maps steps and call sites onto catalog methods. It holds only
// read-only state and is safe for concurrent use; the tracker passed to
// Resolve is not.
type Resolver struct {
	graph      *catalog.KnowledgeGraph
	port       reasoning.Port
	opts       Options
	productive []string
	classes    map[string]Features
	methods    map[string]Features
	nameStems  map[string]map[string]bool
	methodName map[string]map[string]bool
}

func New(graph *catalog.KnowledgeGraph, port reasoning.Port, opts Options) *Resolver {
	if port == nil {
		port = reasoning.Null{}
	}
	opts = opts.withDefaults()
	r := &Resolver{
		graph:      graph,
		port:       port,
		opts:       opts,
		classes:    make(map[string]Features),
		methods:    make(map[string]Features),
		nameStems:  make(map[string]map[string]bool),
		methodName: make(map[string]map[string]bool),
	}
	for _, cls := range graph.Classes() {
		r.classes[cls.Name] = Analyze(classText(cls))
		r.nameStems[cls.Name] = stems(tokenize(cls.Name))
		for _, m := range cls.Methods {
			r.methods[m.Signature] = Analyze(methodText(m))
			if _, ok := r.methodName[m.Name]; !ok {
				r.methodName[m.Name] = stems(tokenize(m.Name))
			}
		}
	}
	r.productive = productiveClasses(graph, opts)
	return r
}

func classText(cls *catalog.Class) string {
	parts := []string{cls.Name, cls.Purpose, cls.Docstring}
	for _, m := range cls.Methods {
		parts = append(parts, m.Name, m.Purpose)
	}
	return strings.Join(parts, " ")
}

func methodText(m *catalog.Method) string {
	return strings.Join([]string{m.Name, m.Purpose, m.Class, m.ReturnType}, " ")
}

type frame struct {
	class string
	depth int
}

type candidate struct {
	method    *catalog.Method
	via       string
	score     float64
	breakdown Breakdown
	note      string
}

// search is the per-call state of one resolution.
type search struct {
	r        *Resolver
	subject  Subject
	features Features
	ev       evidence
	context  string
	restrict bool
	own      map[string]Breakdown
	contexts map[string]classContext
	portDown bool
	fallback bool
	reasoned bool
}

func (r *Resolver) newSearch(subject Subject, tr *tracker.Tracker) *search {
	if tr == nil {
		tr = tracker.New()
	}
	s := &search{
		r:        r,
		subject:  subject,
		features: Analyze(subject.Text()),
		ev:       r.gather(subject, tr),
		context:  tr.ContextFor(subject.Step),
		own:      make(map[string]Breakdown),
		contexts: make(map[string]classContext),
	}
	if s.ev.receiverVar != "" && s.ev.receiverType != "" {
		receiver := fmt.Sprintf("Receiver: %s (%s)", s.ev.receiverVar, s.ev.receiverType)
		if s.context == "" {
			s.context = receiver
		} else {
			s.context += " | " + receiver
		}
	}
	return s
}

// Resolve runs the bounded hierarchical search for subject. It never fails:
// an empty Matches slice means nothing cleared the threshold, and a reasoning
// failure only sets FallbackUsed. Cancelling ctx stops the search after the
// current level.
func (r *Resolver) Resolve(ctx context.Context, subject Subject, tr *tracker.Tracker) Resolution {
	ctx, span := observability.Tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.String("subject.kind", string(subject.Kind)),
		attribute.String("subject.key", subject.Key),
		attribute.Int("subject.step", subject.Step.StepNumber),
	))
	defer span.End()
	start := time.Now()

	s := r.newSearch(subject, tr)
	seeds, restrict := r.seeds(subject)
	s.restrict = restrict

	queue := make([]frame, 0, len(seeds))
	for _, name := range seeds {
		queue = append(queue, frame{class: name})
	}
	visited := make(map[string]bool)
	var found []candidate
	var res Resolution

	for len(queue) > 0 {
		if ctx.Err() != nil {
			slog.Debug("resolution cancelled", "subject", subject.Key, "levels", res.Levels)
			break
		}
		depth := queue[0].depth
		var level []string
		for len(queue) > 0 && queue[0].depth == depth {
			f := queue[0]
			queue = queue[1:]
			if visited[f.class] {
				continue
			}
			visited[f.class] = true
			level = append(level, f.class)
		}
		if len(level) == 0 {
			continue
		}
		res.Levels++
		res.Explored += len(level)

		ranked := s.rankLevel(ctx, level, depth)
		top := ranked
		if len(top) > r.opts.TopClasses {
			top = top[:r.opts.TopClasses]
		}
		slog.Debug("resolver level", "subject", subject.Key, "depth", depth, "classes", len(level), "best", ranked[0].Class, "score", ranked[0].Score)

		for _, cs := range top {
			if cs.Score < r.opts.ClassFloor {
				break
			}
			found = append(found, s.expand(ctx, cs, depth)...)
		}

		if depth+1 >= r.opts.MaxDepth || !s.ambiguous(ranked) {
			continue
		}
		for _, cs := range top {
			if cs.Score < r.opts.Threshold/2 {
				break
			}
			for _, child := range r.graph.Children(cs.Class) {
				if !visited[child] {
					queue = append(queue, frame{class: child, depth: depth + 1})
				}
			}
		}
	}

	res.Matches = s.aggregate(found)
	res.FallbackUsed = s.fallback || (r.port.Enabled() && !s.reasoned)
	res.ReasoningUsed = s.reasoned

	kind := string(subject.Kind)
	observability.ResolutionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	observability.ClassesExplored.Observe(float64(res.Explored))
	if len(res.Matches) == 0 {
		observability.UnmatchedTotal.WithLabelValues(kind).Inc()
	} else {
		observability.MatchesEmittedTotal.WithLabelValues(kind).Add(float64(len(res.Matches)))
	}
	if res.FallbackUsed {
		observability.FallbacksTotal.Inc()
	}
	span.SetAttributes(
		attribute.Int("resolver.matches", len(res.Matches)),
		attribute.Int("resolver.explored", res.Explored),
		attribute.Int("resolver.levels", res.Levels),
		attribute.Bool("resolver.fallback", res.FallbackUsed),
	)
	return res
}

// RankClasses scores every catalog class against subject without consulting
// the reasoning port, best first.
func (r *Resolver) RankClasses(ctx context.Context, subject Subject, tr *tracker.Tracker) []ClassScore {
	s := r.newSearch(subject, tr)
	classes := r.graph.Classes()
	out := make([]ClassScore, 0, len(classes))
	for _, cls := range classes {
		if ctx.Err() != nil {
			break
		}
		out = append(out, s.classScore(cls.Name))
	}
	sortClassScores(out)
	return out
}

func (s *search) ownScore(name string) Breakdown {
	if bd, ok := s.own[name]; ok {
		return bd
	}
	cls, _ := s.r.graph.Class(name)
	cc := s.classContext(cls)
	bd := s.r.opts.Scorer.Score(s.features, s.r.classes[name], cc.bonus, cc.reasons)
	if cc.mismatch {
		bd.Total *= 1 - s.r.opts.TypeMismatchPenalty
		bd.Reasons = append(append([]string(nil), bd.Reasons...), "receiver_type_mismatch")
	}
	s.own[name] = bd
	return bd
}

// classScore adds inheritance credit: a share of the best ancestor's own
// score, since its methods are available on the subclass.
func (s *search) classScore(name string) ClassScore {
	own := s.ownScore(name)
	cs := ClassScore{Class: name, Score: own.Total, Breakdown: own}
	best := 0.0
	for _, ancestor := range s.r.graph.Ancestors(name) {
		if sc := s.ownScore(ancestor).Total; sc > best {
			best = sc
			cs.InheritedFrom = ancestor
		}
	}
	if best > 0 {
		cs.Score = util.Clamp01(own.Total + s.r.opts.InheritanceCredit*best)
	}
	return cs
}

func (s *search) rankLevel(ctx context.Context, level []string, depth int) []ClassScore {
	ranked := make([]ClassScore, 0, len(level))
	for _, name := range level {
		ranked = append(ranked, s.classScore(name))
	}
	sortClassScores(ranked)

	scores := make([]float64, len(ranked))
	for i, cs := range ranked {
		scores[i] = cs.Score
	}
	ratings := s.rate(ctx, reasoning.KindClass, depth, scores, func(i int) reasoning.Candidate {
		return s.describeClass(ranked[i].Class)
	})
	if ratings == nil {
		return ranked
	}
	w := s.r.opts.ReasoningWeight
	for idx, rt := range ratings {
		ranked[idx].Score = util.Clamp01((1-w)*ranked[idx].Score + w*rt.Score)
		ranked[idx].Reasoning = rt.Reasoning
	}
	sortClassScores(ranked)
	return ranked
}

// ambiguous reports whether a level should descend into child classes.
func (s *search) ambiguous(ranked []ClassScore) bool {
	if len(ranked) == 0 {
		return false
	}
	if ranked[0].Score < s.r.opts.Threshold {
		return true
	}
	scores := make([]float64, 0, len(ranked))
	for _, cs := range ranked {
		scores = append(scores, cs.Score)
	}
	return s.flat(scores)
}

// flat reports whether the leading scores are too close to discriminate.
func (s *search) flat(scores []float64) bool {
	n := len(scores)
	if n > s.r.opts.MaxCandidates {
		n = s.r.opts.MaxCandidates
	}
	if n < 2 {
		return false
	}
	hi, lo := scores[0], scores[0]
	for _, v := range scores[1:n] {
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	return hi-lo <= s.r.opts.FlatSpread
}

// expand scores the methods available on a ranked class, inherited ones
// included, and keeps the best TopMethods.
func (s *search) expand(ctx context.Context, cs ClassScore, depth int) []candidate {
	cls, _ := s.r.graph.Class(cs.Class)
	cc := s.classContext(cls)
	share := s.r.opts.ClassShare
	name := s.subject.MethodName()

	var out []candidate
	for _, m := range s.r.graph.MethodsOf(cs.Class, true) {
		if s.restrict && m.Name != name {
			continue
		}
		features := s.r.methods[m.Signature]
		reasons := append([]string(nil), cc.reasons...)
		bonus := cc.bonus
		if m.Class != cs.Class {
			features = features.merge(cs.Class)
			reasons = append(reasons, "inherited")
		}
		if name != "" && m.Name == name {
			bonus += s.r.opts.Bonuses.ExactMethod
			reasons = append(reasons, "exact_method")
		}
		if s.keywordIn(s.r.methodName[m.Name]) {
			bonus += s.r.opts.Bonuses.NameKeyword
			reasons = append(reasons, "method_name_keyword")
		}
		bd := s.r.opts.Scorer.Score(s.features, features, bonus, reasons)
		if cc.mismatch {
			bd.Total *= 1 - s.r.opts.TypeMismatchPenalty
			bd.Reasons = append(bd.Reasons, "receiver_type_mismatch")
		}
		out = append(out, candidate{
			method:    m,
			via:       cs.Class,
			score:     util.Clamp01((1-share)*bd.Total + share*cs.Score),
			breakdown: bd,
		})
	}
	sortCandidates(out)

	scores := make([]float64, len(out))
	for i, c := range out {
		scores[i] = c.score
	}
	ratings := s.rate(ctx, reasoning.KindMethod, depth, scores, func(i int) reasoning.Candidate {
		return describeMethod(out[i].method)
	})
	if ratings != nil {
		w := s.r.opts.ReasoningWeight
		for idx, rt := range ratings {
			out[idx].score = util.Clamp01((1-w)*out[idx].score + w*rt.Score)
			out[idx].note = rt.Reasoning
		}
		sortCandidates(out)
	}

	if len(out) > s.r.opts.TopMethods {
		out = out[:s.r.opts.TopMethods]
	}
	return out
}

// rate consults the reasoning port for the leading candidates when the
// level is flat or reasoning is always on. It returns nil when the port was
// not asked or failed; a failure disables the port for the rest of the
// search.
func (s *search) rate(ctx context.Context, kind reasoning.Kind, depth int, scores []float64, describe func(int) reasoning.Candidate) map[int]reasoning.Rating {
	if !s.r.port.Enabled() || s.portDown || len(scores) == 0 {
		return nil
	}
	if !s.r.opts.ReasoningAlways && !s.flat(scores) {
		return nil
	}
	n := len(scores)
	if n > s.r.opts.MaxCandidates {
		n = s.r.opts.MaxCandidates
	}
	req := reasoning.Request{
		Kind:    kind,
		Subject: s.describeSubject(),
		Context: s.context,
		Level:   depth,
	}
	for i := 0; i < n; i++ {
		req.Candidates = append(req.Candidates, describe(i))
	}

	ratings, err := s.r.port.Rate(ctx, req)
	if err != nil {
		s.portDown = true
		s.fallback = true
		slog.Warn("reasoning port unavailable, keeping heuristic scores", "subject", s.subject.Key, "error", err)
		return nil
	}
	s.reasoned = true
	out := make(map[int]reasoning.Rating, len(ratings))
	for _, rt := range ratings {
		if rt.Index >= 0 && rt.Index < n {
			out[rt.Index] = rt
		}
	}
	return out
}

// aggregate dedupes by signature, keeping the higher score and the first
// discovery position, then stable-sorts and applies the threshold.
func (s *search) aggregate(found []candidate) []ports.MethodMatch {
	index := make(map[string]int, len(found))
	var merged []candidate
	for _, c := range found {
		if i, ok := index[c.method.Signature]; ok {
			if c.score > merged[i].score {
				merged[i] = c
			}
			continue
		}
		index[c.method.Signature] = len(merged)
		merged = append(merged, c)
	}
	sortCandidates(merged)

	referenced := s.ev.referencedNames()
	var out []ports.MethodMatch
	for _, c := range merged {
		if c.score < s.r.opts.Threshold || c.score <= 0 {
			break
		}
		out = append(out, ports.MethodMatch{
			FullSignature:     c.method.Signature,
			OwningClass:       c.method.Class,
			MethodName:        c.method.Name,
			Confidence:        c.score,
			Reasoning:         s.explain(c),
			StepNumber:        s.subject.Step.StepNumber,
			ReferencedObjects: referenced,
			ViaClass:          c.via,
		})
	}
	return out
}

func (s *search) explain(c candidate) string {
	level := "LOW"
	switch {
	case c.score > 0.7:
		level = "HIGH"
	case c.score > 0.4:
		level = "MEDIUM"
	}
	because := util.Truncate(c.method.Purpose, 150)
	if because == "" {
		because = evidenceSummary(c.breakdown)
	}
	text := fmt.Sprintf("%s confidence match: Method '%s' aligns with step '%s' because %s (Semantic alignment: %.3f)",
		level, c.method.Name, s.subject.Title(), because, c.score)
	if c.via != c.method.Class {
		text += fmt.Sprintf("; inherited by %s from %s", c.via, c.method.Class)
	}
	if c.note != "" {
		text += "; reasoning: " + c.note
	}
	return text
}

func evidenceSummary(bd Breakdown) string {
	summary := fmt.Sprintf("lexical %.2f, action %.2f, domain %.2f, context %.2f", bd.Lexical, bd.Action, bd.Domain, bd.Context)
	if len(bd.Reasons) > 0 {
		summary += " [" + strings.Join(bd.Reasons, ", ") + "]"
	}
	return summary
}

func (s *search) describeSubject() string {
	step := s.subject.Step
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d: %s", step.StepNumber, step.Title)
	if s.subject.Call != nil {
		fmt.Fprintf(&b, "\nCall: %s", s.subject.Call.Text)
		return b.String()
	}
	if step.Description != "" {
		fmt.Fprintf(&b, "\nWhat needs to be accomplished: %s", step.Description)
	}
	if step.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "\nExpected outcome: %s", step.ExpectedOutcome)
	}
	return b.String()
}

func (s *search) describeClass(name string) reasoning.Candidate {
	cls, _ := s.r.graph.Class(name)
	c := reasoning.Candidate{Label: name, Description: cls.Purpose}
	if c.Description == "" {
		c.Description = cls.Docstring
	}
	c.Details = append(c.Details, "Domain: "+cls.Domain)
	shown := 0
	for _, m := range cls.Methods {
		if m.Purpose == "" {
			continue
		}
		c.Details = append(c.Details, fmt.Sprintf("Purpose %d: %s", shown+1, m.Purpose))
		if shown++; shown == 5 {
			break
		}
	}
	c.Details = append(c.Details, fmt.Sprintf("Total methods: %d", len(cls.Methods)))
	return c
}

func describeMethod(m *catalog.Method) reasoning.Candidate {
	return reasoning.Candidate{
		Label:       m.Class + "." + m.Name,
		Description: m.Purpose,
		Details:     []string{"Signature: " + m.Signature},
	}
}

func sortClassScores(scores []ClassScore) {
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
}

func sortCandidates(c []candidate) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].score > c[j].score })
}

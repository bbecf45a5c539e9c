package resolver

import (
	"apimatch/internal/engine/catalog"
	"apimatch/internal/engine/parser"
	"apimatch/internal/engine/tracker"
	"strings"
)

// evidence is what the tracker and the call site say about the subject,
// gathered once per resolution.
type evidence struct {
	receiverVar   string
	receiverType  string
	receiverClass bool
	referenced    []tracker.ObjectContext
	earlierTypes  []string
}

func (r *Resolver) gather(subject Subject, tr *tracker.Tracker) evidence {
	var ev evidence
	if subject.Call == nil {
		ev.referenced = tr.Referenced(subject.Step)
	} else {
		call := subject.Call
		base := call.BaseVariable()
		single := base == call.ObjectChain && base != parser.Unknown
		if single {
			ev.receiverVar = base
		}
		ev.receiverType = call.ReceiverType
		if single {
			if obj, ok := tr.Lookup(base); ok {
				ev.referenced = append(ev.referenced, obj)
				if ev.receiverType == "" && obj.InferredType != parser.Unknown {
					ev.receiverType = obj.InferredType
				}
			}
		}
		for _, arg := range call.Arguments {
			if arg.Kind != parser.ArgVariable {
				continue
			}
			if obj, ok := tr.Lookup(arg.Value); ok {
				ev.referenced = append(ev.referenced, obj)
			}
		}
	}
	ev.receiverClass = ev.receiverType != "" && r.graph.HasClass(ev.receiverType)

	seen := map[string]bool{}
	for _, obj := range tr.Before(subject.Step.StepNumber) {
		if obj.InferredType != "" && obj.InferredType != parser.Unknown && !seen[obj.InferredType] {
			seen[obj.InferredType] = true
			ev.earlierTypes = append(ev.earlierTypes, obj.InferredType)
		}
	}
	return ev
}

func (ev evidence) referencedNames() []string {
	if len(ev.referenced) == 0 {
		return nil
	}
	out := make([]string, 0, len(ev.referenced))
	for _, obj := range ev.referenced {
		out = append(out, obj.Name)
	}
	return out
}

// classContext is the context bonus a class earns for this subject. mismatch
// reports a receiver of known catalog type that cannot be an instance of cls.
type classContext struct {
	bonus    float64
	reasons  []string
	mismatch bool
}

func (s *search) classContext(cls *catalog.Class) classContext {
	if cc, ok := s.contexts[cls.Name]; ok {
		return cc
	}
	b := s.r.opts.Bonuses
	g := s.r.graph
	ev := s.ev
	var cc classContext
	add := func(v float64, reason string) {
		cc.bonus += v
		cc.reasons = append(cc.reasons, reason)
	}

	if ev.receiverType != "" {
		switch {
		case !ev.receiverClass:
			if s.r.typeFits(ev.receiverType, cls) {
				add(b.ReceiverNoun, "receiver_noun")
			}
		case cls.Name == ev.receiverType:
			add(b.ReceiverType, "receiver_type")
		case g.IsSubclass(ev.receiverType, cls.Name):
			add(b.ReceiverAncestor, "receiver_ancestor")
		case g.IsSubclass(cls.Name, ev.receiverType):
			// the receiver may hold a subclass instance
		default:
			cc.mismatch = true
		}
	}

	if s.subject.Call == nil {
		for _, obj := range ev.referenced {
			if s.r.typeFits(obj.InferredType, cls) {
				add(b.ReferencedType, "referenced_object")
				break
			}
		}
	}

	if ev.receiverVar != "" && s.r.nameFits(ev.receiverVar, cls.Name) {
		add(b.ReceiverName, "receiver_name")
	}
	if s.keywordIn(s.r.nameStems[cls.Name]) {
		add(b.NameKeyword, "class_name_keyword")
	}

	step := s.subject.Step.StepNumber
	switch {
	case step <= s.r.opts.EarlyStepLimit && cls.IsFactory:
		add(b.WorkflowPosition, "early_factory")
	case step >= s.r.opts.LateStepStart:
		for _, t := range ev.earlierTypes {
			if s.r.typeFits(t, cls) {
				add(b.WorkflowPosition, "late_created_type")
				break
			}
		}
	}

	if cls.IsCollection && (s.features.Actions.Has(ActionCreate) || s.features.Actions.Has(ActionAccess)) && hasCollectionMethod(cls) {
		add(b.CollectionAccess, "collection_access")
	}

	s.contexts[cls.Name] = cc
	return cc
}

func (s *search) keywordIn(stems map[string]bool) bool {
	for _, k := range s.features.Keywords {
		if len(k) >= 3 && stemMatches(k, stems) {
			return true
		}
	}
	return false
}

// typeFits reports whether an object of inferred type t can be served by
// cls: the same class, a catalog subclass of it, or a free type whose head
// noun ("plane" in "reference_plane") names the class.
func (r *Resolver) typeFits(t string, cls *catalog.Class) bool {
	if t == "" || t == parser.Unknown {
		return false
	}
	if t == cls.Name {
		return true
	}
	if r.graph.HasClass(t) {
		return r.graph.IsSubclass(t, cls.Name)
	}
	noun := t
	if i := strings.LastIndexAny(noun, "_."); i >= 0 {
		noun = noun[i+1:]
	}
	tokens := tokenize(noun)
	if len(tokens) == 0 {
		return false
	}
	return r.nameStems[cls.Name][stem(tokens[len(tokens)-1])]
}

// nameFits matches a variable name against a class name: "spline1" fits
// SplineCurve, "hsf" does not.
func (r *Resolver) nameFits(variable, class string) bool {
	tokens := tokenize(variable)
	if len(tokens) == 0 {
		return false
	}
	joined := strings.Join(tokens, "")
	if len(joined) >= 3 && strings.Contains(strings.ToLower(class), joined) {
		return true
	}
	names := r.nameStems[class]
	for _, t := range tokens {
		if len(t) < 3 || !names[stem(t)] {
			return false
		}
	}
	return true
}

func hasCollectionMethod(cls *catalog.Class) bool {
	for _, m := range cls.Methods {
		lower := strings.ToLower(m.Name)
		if strings.HasPrefix(lower, "add") || lower == "item" || strings.HasPrefix(lower, "remove") {
			return true
		}
	}
	return false
}

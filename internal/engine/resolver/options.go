package resolver

import (
	"apimatch/internal/core/config"
)

type Options struct {
	Threshold           float64
	MaxDepth            int
	TopClasses          int
	TopMethods          int
	MaxSeedClasses      int
	MinMethods          int
	KeyDomainMinMethods int
	LargeClassMethods   int
	ClassFloor          float64
	FlatSpread          float64
	InheritanceCredit   float64
	// ClassShare is the part of a method's confidence taken from the score
	// of the class it was reached through.
	ClassShare          float64
	TypeMismatchPenalty float64
	EarlyStepLimit      int
	LateStepStart       int
	ProductivePatterns  []string
	KeyDomains          []string
	Scorer              Scorer
	Bonuses             ContextBonuses

	// ReasoningAlways consults the port at every level instead of only on
	// flat levels.
	ReasoningAlways bool
	ReasoningWeight float64
	MaxCandidates   int
}

// ContextBonuses are the additive context evidence amounts. Their sum is
// capped at 1 by the scorer; the zero value disables context evidence.
type ContextBonuses struct {
	ReceiverType     float64
	ReceiverAncestor float64
	ReceiverNoun     float64
	ReferencedType   float64
	ReceiverName     float64
	ExactMethod      float64
	NameKeyword      float64
	WorkflowPosition float64
	CollectionAccess float64
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

func OptionsFromConfig(cfg *config.Config) Options {
	r := cfg.Resolver
	w := r.Weights
	return Options{
		Threshold:           r.Threshold,
		MaxDepth:            r.MaxDepth,
		TopClasses:          r.TopClasses,
		TopMethods:          r.TopMethods,
		MaxSeedClasses:      r.MaxSeedClasses,
		MinMethods:          r.MinMethods,
		KeyDomainMinMethods: r.KeyDomainMinMethods,
		LargeClassMethods:   r.LargeClassMethods,
		ClassFloor:          r.ClassFloor,
		FlatSpread:          r.FlatSpread,
		InheritanceCredit:   r.InheritanceCredit,
		ClassShare:          r.ClassShare,
		TypeMismatchPenalty: r.TypeMismatchPenalty,
		EarlyStepLimit:      r.EarlyStepLimit,
		LateStepStart:       r.LateStepStart,
		ProductivePatterns:  append([]string(nil), r.ProductivePatterns...),
		KeyDomains:          append([]string(nil), r.KeyDomains...),
		Scorer: Scorer{
			Weights: Weights{
				Lexical:      w.Lexical,
				Action:       w.Action,
				Domain:       w.Domain,
				Context:      w.Context,
				LexicalBoost: w.LexicalBoost,
				ActionBoost:  w.ActionBoost,
				DomainBoost:  w.DomainBoost,
			},
			HighConfidenceAbove:  r.HighConfidenceAbove,
			HighConfidenceFactor: r.HighConfidenceFactor,
		},
		Bonuses: ContextBonuses{
			ReceiverType:     r.Bonuses.ReceiverType,
			ReceiverAncestor: r.Bonuses.ReceiverAncestor,
			ReceiverNoun:     r.Bonuses.ReceiverNoun,
			ReferencedType:   r.Bonuses.ReferencedType,
			ReceiverName:     r.Bonuses.ReceiverName,
			ExactMethod:      r.Bonuses.ExactMethod,
			NameKeyword:      r.Bonuses.NameKeyword,
			WorkflowPosition: r.Bonuses.WorkflowPosition,
			CollectionAccess: r.Bonuses.CollectionAccess,
		},
		ReasoningAlways: cfg.Reasoning.Mode == config.ModeAlways,
		ReasoningWeight: cfg.Reasoning.Weight,
		MaxCandidates:   cfg.Reasoning.MaxCandidates,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxDepth < 1 {
		o.MaxDepth = 1
	}
	if o.TopClasses < 1 {
		o.TopClasses = 1
	}
	if o.TopMethods < 1 {
		o.TopMethods = 1
	}
	if o.MaxSeedClasses < 1 {
		o.MaxSeedClasses = 1
	}
	if o.MaxCandidates < 1 {
		o.MaxCandidates = 10
	}
	if o.Scorer.Weights == (Weights{}) {
		o.Scorer.Weights = defaultWeights()
	}
	return o
}

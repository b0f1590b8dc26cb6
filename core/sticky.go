package core

// StickyOutcomeKind discriminates the one-of ResolveWithStickyResponse
// shape from spec §6.1.
type StickyOutcomeKind int

const (
	StickySuccess StickyOutcomeKind = iota
	StickyMissingMaterializations
)

// MissingMaterializationItem names a single unresolved sticky dependency
// surfaced back to the caller so it can fetch and retry.
type MissingMaterializationItem struct {
	Unit                string
	RuleName            string
	ReadMaterialization string
}

// ResolveWithStickyRequest is the request shape for the C5 orchestrator.
type ResolveWithStickyRequest struct {
	Flags                   []string
	EvaluationContext       EvaluationContext
	ClientSecret            string
	Apply                   bool
	SDKID                   string
	SDKVersion              string
	MaterializationsPerUnit map[string]map[string]MaterializationInfo
	FailFastOnSticky        bool
}

// StickyResult is the one-of response: either a completed resolution or
// a request for the caller to supply missing materializations.
type StickyResult struct {
	Kind StickyOutcomeKind

	Response ResolveFlagsResponse
	Updates  []MaterializationUpdate

	MissingItems []MissingMaterializationItem
}

// flagEvaluationRecord is the internal per-flag bookkeeping record used
// both to build the public response and to feed the exposure
// accumulator.
type flagEvaluationRecord struct {
	Flag    string
	Variant string
	Value   Value
	Rule    string
	Reason  ResolveReason
}

// resolveWithSticky runs the C5 discovery/evaluation pipeline against an
// immutable state snapshot. It performs no I/O and records nothing
// itself; the caller (C7) decides whether and how to persist exposure
// records for the returned per-flag evaluations.
func resolveWithSticky(state *ResolverState, client *ClientCredential, req ResolveWithStickyRequest) (StickyResult, []flagEvaluationRecord, int) {
	unit := req.EvaluationContext.TargetingKey

	lookup := func(u, matName string) (MaterializationInfo, bool) {
		byUnit, ok := req.MaterializationsPerUnit[u]
		if !ok {
			return MaterializationInfo{}, false
		}
		info, ok := byUnit[matName]
		return info, ok
	}

	type visibleFlag struct {
		name string
		flag *Flag
	}
	var visible []visibleFlag
	for _, name := range req.Flags {
		flag, ok := state.FlagByName(name)
		if !ok {
			continue
		}
		if !visibleToClient(flag, client) {
			continue
		}
		visible = append(visible, visibleFlag{name, flag})
	}

	var missing []MissingMaterializationItem
	var records []flagEvaluationRecord
	var updates []MaterializationUpdate
	anyMissing := false
	staleFallthroughs := 0

	for _, vf := range visible {
		opts := evalOptions{skipOnNotMissing: anyMissing && req.FailFastOnSticky}

		var writeUpdates []MaterializationUpdate
		outcome := evaluateFlag(vf.flag, state, req.EvaluationContext, unit, lookup, &writeUpdates, &staleFallthroughs, opts)

		switch outcome.Kind {
		case OutcomeMissingMaterialization:
			missing = append(missing, MissingMaterializationItem{
				Unit:                outcome.MissingUnit,
				RuleName:            outcome.MissingRuleName,
				ReadMaterialization: outcome.MissingReadMaterialization,
			})
			anyMissing = true
		case OutcomeAssigned:
			if opts.skipOnNotMissing {
				continue
			}
			records = append(records, flagEvaluationRecord{
				Flag:    vf.name,
				Variant: outcome.VariantName,
				Value:   outcome.VariantValue,
				Rule:    outcome.RuleName,
				Reason:  ResolveReasonMatch,
			})
			updates = append(updates, writeUpdates...)
		case OutcomeNoRuleMatched:
			if opts.skipOnNotMissing {
				continue
			}
			records = append(records, flagEvaluationRecord{
				Flag:   vf.name,
				Value:  vf.flag.DefaultValue,
				Reason: outcome.Reason,
			})
		}
	}

	if len(missing) == 0 {
		resolved := make([]ResolvedFlag, len(records))
		for i, r := range records {
			resolved[i] = ResolvedFlag{Flag: r.Flag, Variant: r.Variant, Value: r.Value, Reason: r.Reason}
		}
		return StickyResult{
			Kind: StickySuccess,
			Response: ResolveFlagsResponse{
				ResolvedFlags: resolved,
			},
			Updates: updates,
		}, records, staleFallthroughs
	}

	if req.FailFastOnSticky {
		return StickyResult{Kind: StickyMissingMaterializations, MissingItems: missing}, nil, staleFallthroughs
	}

	var exhaustive []MissingMaterializationItem
	for _, vf := range visible {
		exhaustive = append(exhaustive, collectMissingMaterializations(vf.flag, unit, lookup)...)
	}
	return StickyResult{Kind: StickyMissingMaterializations, MissingItems: exhaustive}, nil, staleFallthroughs
}

// collectMissingMaterializations runs only the materialization lookup
// step for every rule of flag, without any segment/bucket evaluation,
// gathering every unresolved read dependency rather than stopping at
// the first one. This backs the exhaustive (non-fail-fast) discovery
// path.
func collectMissingMaterializations(flag *Flag, unit string, lookup materializationLookup) []MissingMaterializationItem {
	if flag.State == FlagStateArchived {
		return nil
	}
	var out []MissingMaterializationItem
	for i := range flag.Rules {
		rule := &flag.Rules[i]
		if !rule.MaterializationSpec.HasRead() {
			continue
		}
		if _, ok := lookup(unit, rule.MaterializationSpec.ReadMaterialization); !ok {
			out = append(out, MissingMaterializationItem{
				Unit:                unit,
				RuleName:            rule.Name,
				ReadMaterialization: rule.MaterializationSpec.ReadMaterialization,
			})
		}
	}
	return out
}

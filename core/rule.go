package core

// FlagOutcomeKind discriminates the tagged union returned by
// evaluateFlag.
type FlagOutcomeKind int

const (
	OutcomeAssigned FlagOutcomeKind = iota
	OutcomeNoRuleMatched
	OutcomeMissingMaterialization
)

// FlagOutcome is the result of evaluating a single flag's rules against
// a context, possibly gated by sticky materializations.
type FlagOutcome struct {
	Kind FlagOutcomeKind

	// Populated when Kind == OutcomeAssigned.
	VariantName string
	VariantValue Value
	RuleName    string

	// Populated when Kind == OutcomeNoRuleMatched.
	Reason ResolveReason

	// Populated when Kind == OutcomeMissingMaterialization.
	MissingUnit                string
	MissingRuleName             string
	MissingReadMaterialization string
}

// evalOptions configures a single evaluateFlag call.
type evalOptions struct {
	// skipOnNotMissing is the discovery-mode toggle (§4.4): when set,
	// only the materialization lookup step runs; segment matching,
	// bucketing, and successful Assigned returns are suppressed. Only
	// a MissingMaterialization registration can still surface.
	skipOnNotMissing bool
}

// materializationLookup resolves a (unit, materialization name) pair to
// previously stored assignment info. It is supplied per-call by the
// sticky orchestrator, sourced from the request's
// materializations_per_unit map.
type materializationLookup func(unit, materialization string) (MaterializationInfo, bool)

// evaluateFlag runs flag's rules in declaration order against ctx. The
// first rule that yields Assigned wins. Archived flags short-circuit
// before any rule runs.
func evaluateFlag(
	flag *Flag,
	state *ResolverState,
	ctx EvaluationContext,
	unit string,
	lookup materializationLookup,
	writeUpdates *[]MaterializationUpdate,
	staleFallthroughs *int,
	opts evalOptions,
) FlagOutcome {
	if flag.State == FlagStateArchived {
		return FlagOutcome{Kind: OutcomeNoRuleMatched, Reason: ResolveReasonFlagArchived}
	}

	sawSegmentMatchFailure := false

	for i := range flag.Rules {
		rule := &flag.Rules[i]

		if rule.MaterializationSpec.HasRead() {
			info, ok := lookup(unit, rule.MaterializationSpec.ReadMaterialization)
			if !ok {
				return FlagOutcome{
					Kind:                       OutcomeMissingMaterialization,
					MissingUnit:                unit,
					MissingRuleName:            rule.Name,
					MissingReadMaterialization: rule.MaterializationSpec.ReadMaterialization,
				}
			}

			if opts.skipOnNotMissing {
				// Discovery mode already confirmed presence; nothing
				// further to do for this rule, move to the next.
				continue
			}

			if info.UnitInMaterialization {
				if rule.MaterializationSpec.Mode.CanIgnoreSegment {
					variantName, found := info.RuleToVariant[rule.Name]
					if found {
						if vi, ok := variantIndexByName(flag, variantName); ok {
							return FlagOutcome{
								Kind:        OutcomeAssigned,
								VariantName: variantName,
								VariantValue: flag.Variants[vi].Value,
								RuleName:    rule.Name,
							}
						}
						// Variant referenced by the stored assignment no
						// longer exists: fall through to segment
						// evaluation per the resolved Open Question.
						if staleFallthroughs != nil {
							*staleFallthroughs++
						}
					}
					// No stored variant for this rule: fall through to
					// SEGMENT_MATCH below.
				}
				// can_ignore_segment false: fall through to SEGMENT_MATCH.
			} else {
				if rule.MaterializationSpec.Mode.MustMatch {
					continue
				}
				// must_match false: fall through to SEGMENT_MATCH.
			}
		}

		if opts.skipOnNotMissing {
			continue
		}

		var segResult SegmentMatchResult = SegmentMatch
		if rule.segmentIdx >= 0 {
			seg := state.segments[rule.segmentIdx]
			segResult = matchSegment(seg, state, ctx)
		}

		switch segResult {
		case SegmentTargetingKeyError:
			return FlagOutcome{Kind: OutcomeNoRuleMatched, Reason: ResolveReasonTargetingKeyError}
		case SegmentNoMatch:
			sawSegmentMatchFailure = true
			continue
		}

		if unit == "" {
			return FlagOutcome{Kind: OutcomeNoRuleMatched, Reason: ResolveReasonTargetingKeyError}
		}
		b := bucket(segmentSaltFor(state, rule), unit, rule.BucketCount)
		assignment, found := findAssignment(rule, b)
		if !found {
			continue
		}

		if rule.MaterializationSpec.HasWrite() {
			*writeUpdates = append(*writeUpdates, MaterializationUpdate{
				Unit:                 unit,
				WriteMaterialization: rule.MaterializationSpec.WriteMaterialization,
				Rule:                 rule.Name,
				Variant:              assignment.VariantRef,
			})
		}

		return FlagOutcome{
			Kind:        OutcomeAssigned,
			VariantName: assignment.VariantRef,
			VariantValue: flag.Variants[assignment.variantIdx].Value,
			RuleName:    rule.Name,
		}
	}

	if sawSegmentMatchFailure {
		return FlagOutcome{Kind: OutcomeNoRuleMatched, Reason: ResolveReasonNoSegmentMatch}
	}
	return FlagOutcome{Kind: OutcomeNoRuleMatched, Reason: ResolveReasonNoTreatmentMatch}
}

func segmentSaltFor(state *ResolverState, rule *Rule) []byte {
	if rule.segmentIdx < 0 {
		return nil
	}
	return state.segments[rule.segmentIdx].Salt
}

func findAssignment(rule *Rule, b uint32) (Assignment, bool) {
	for _, a := range rule.Assignments {
		if a.Contains(b) {
			return a, true
		}
	}
	return Assignment{}, false
}

func variantIndexByName(flag *Flag, name string) (int, bool) {
	for i, v := range flag.Variants {
		if v.Name == name {
			return i, true
		}
	}
	return 0, false
}

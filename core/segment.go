package core

// SegmentMatchResult is the outcome of evaluating a Segment against an
// EvaluationContext.
type SegmentMatchResult int

const (
	SegmentNoMatch SegmentMatchResult = iota
	SegmentMatch
	SegmentTargetingKeyError
)

// matchSegment evaluates a segment's allocation and criteria against
// ctx. Allocation is checked first (it always depends on the targeting
// key); criteria are a conjunction, each independently typed.
func matchSegment(seg *Segment, state *ResolverState, ctx EvaluationContext) SegmentMatchResult {
	dependsOnTargetingKey := seg.Allocation != nil
	for _, crit := range seg.Criteria {
		if crit.AttributePath == "targeting_key" {
			dependsOnTargetingKey = true
			break
		}
	}
	if dependsOnTargetingKey && ctx.TargetingKey == "" {
		return SegmentTargetingKeyError
	}

	if seg.Allocation != nil {
		frac := fractionalBucket(seg.Salt, ctx.TargetingKey)
		if frac >= *seg.Allocation {
			return SegmentNoMatch
		}
	}

	for _, crit := range seg.Criteria {
		if evaluateCriterion(crit, state, ctx) == criterionNoMatch {
			return SegmentNoMatch
		}
	}

	return SegmentMatch
}

type criterionResult int

const (
	criterionNoMatch criterionResult = iota
	criterionMatch
)

// evaluateCriterion assumes the caller has already handled the
// targeting-key-error case (matchSegment checks it up front for every
// criterion that reads "targeting_key", since an empty unit must never
// reach the hasher).
func evaluateCriterion(crit Criterion, state *ResolverState, ctx EvaluationContext) criterionResult {
	val, present := ctx.Get(crit.AttributePath)

	if crit.Operator == OpSegmentMember {
		if !present || val.Kind != KindString {
			return criterionNoMatch
		}
		bs, ok := state.bitsetAt(crit.bitsetIdx)
		if !ok {
			return criterionNoMatch
		}
		idx := segmentMemberBitIndex(val.Str, bs.Bits.Len())
		if bs.Bits.Test(idx) {
			return criterionMatch
		}
		return criterionNoMatch
	}

	if !present {
		if crit.Operator == OpNEQ {
			return criterionMatch
		}
		return criterionNoMatch
	}

	switch crit.Operator {
	case OpEQ:
		if valuesEqual(val, crit.Operand) {
			return criterionMatch
		}
		return criterionNoMatch
	case OpNEQ:
		if !valuesEqual(val, crit.Operand) {
			return criterionMatch
		}
		return criterionNoMatch
	case OpLT, OpLE, OpGT, OpGE:
		cmp, ok := compareValues(val, crit.Operand)
		if !ok {
			return criterionNoMatch
		}
		switch crit.Operator {
		case OpLT:
			if cmp < 0 {
				return criterionMatch
			}
		case OpLE:
			if cmp <= 0 {
				return criterionMatch
			}
		case OpGT:
			if cmp > 0 {
				return criterionMatch
			}
		case OpGE:
			if cmp >= 0 {
				return criterionMatch
			}
		}
		return criterionNoMatch
	case OpInSet:
		if crit.Operand.Kind == KindList {
			for _, member := range crit.Operand.List {
				if valuesEqual(val, member) {
					return criterionMatch
				}
			}
		}
		return criterionNoMatch
	case OpRegexMatch:
		if val.Kind != KindString || crit.compiledRegex == nil {
			return criterionNoMatch
		}
		if crit.compiledRegex.MatchString(val.Str) {
			return criterionMatch
		}
		return criterionNoMatch
	default:
		return criterionNoMatch
	}
}

func (s *ResolverState) bitsetAt(idx int) (*NamedBitset, bool) {
	if idx < 0 || idx >= len(s.bitsets) {
		return nil, false
	}
	return s.bitsets[idx], true
}

// valuesEqual compares two scalar values, tolerating int<->float
// coercion for numeric equality.
func valuesEqual(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return numericOf(a) == numericOf(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.Bool == b.Bool
	case KindString:
		return a.Str == b.Str
	case KindNull:
		return true
	case KindTimestamp:
		return a.TimestampUnixNano == b.TimestampUnixNano
	default:
		return false
	}
}

func isNumeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func numericOf(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// compareValues orders two values of the same comparable family:
// numbers, strings (lexicographic), or timestamps. The second return
// value is false when the pair is not ordered comparable.
func compareValues(a, b Value) (int, bool) {
	if isNumeric(a) && isNumeric(b) {
		x, y := numericOf(a), numericOf(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch {
		case a.Str < b.Str:
			return -1, true
		case a.Str > b.Str:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.Kind == KindTimestamp && b.Kind == KindTimestamp {
		switch {
		case a.TimestampUnixNano < b.TimestampUnixNano:
			return -1, true
		case a.TimestampUnixNano > b.TimestampUnixNano:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

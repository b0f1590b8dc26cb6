package core

// Package core implements the flag resolution engine: the rule
// evaluation state machine, segment/targeting matching, deterministic
// bucket assignment, sticky-materialization dependency handling, and
// the exposure-log accumulator described by the resolver's wire
// contract. The package performs no network calls, no disk access, and
// reads the current time only through an injected Clock.

import "regexp"

// FlagState is the lifecycle state of a Flag.
type FlagState int

const (
	FlagStateUnspecified FlagState = iota
	FlagStateActive
	FlagStateArchived
)

// Value is a typed value as it can appear in an EvaluationContext or a
// Variant's value struct. Exactly one field is meaningful, selected by
// Kind; this mirrors the tagged union described for operators, reasons
// and criteria operand types.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindStruct
	KindTimestamp
)

// Value is an immutable, typed attribute value.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	List   []Value
	Struct map[string]Value
	// TimestampUnixNano holds a Unix nanosecond timestamp when Kind ==
	// KindTimestamp.
	TimestampUnixNano int64
}

// NullValue is the zero Value with Kind KindNull.
var NullValue = Value{Kind: KindNull}

func BoolValue(b bool) Value   { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value   { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func ListValue(vs []Value) Value { return Value{Kind: KindList, List: vs} }
func StructValue(m map[string]Value) Value { return Value{Kind: KindStruct, Struct: m} }
func TimestampValue(unixNano int64) Value {
	return Value{Kind: KindTimestamp, TimestampUnixNano: unixNano}
}

// EvaluationContext is the unordered mapping from attribute name
// (dotted path) to typed value supplied by a caller. TargetingKey is a
// distinguished attribute; an empty TargetingKey means the context has
// no identifiable unit.
type EvaluationContext struct {
	TargetingKey string
	Attributes   map[string]Value
}

// Get resolves a dotted attribute path against the context, descending
// through nested structs. A missing intermediate or final key yields
// (NullValue, false).
func (c EvaluationContext) Get(path string) (Value, bool) {
	if path == "targeting_key" {
		if c.TargetingKey == "" {
			return NullValue, false
		}
		return StringValue(c.TargetingKey), true
	}
	segments := splitDotted(path)
	if len(segments) == 0 {
		return NullValue, false
	}
	cur, ok := c.Attributes[segments[0]]
	if !ok {
		return NullValue, false
	}
	for _, seg := range segments[1:] {
		if cur.Kind != KindStruct {
			return NullValue, false
		}
		cur, ok = cur.Struct[seg]
		if !ok {
			return NullValue, false
		}
	}
	return cur, true
}

func splitDotted(path string) []string {
	if path == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	out = append(out, path[start:])
	return out
}

// Variant is a named, typed value belonging to a Flag.
type Variant struct {
	Name  string
	Value Value
}

// Assignment maps a half-open bucket range to a variant within a Rule.
type Assignment struct {
	VariantRef  string
	RangeStart  uint32
	RangeEnd    uint32 // exclusive
	Weight      float64

	// variantIdx is the resolved index into the owning Flag's Variants
	// slice, filled in at state-build time so evaluation never does a
	// string lookup on the hot path.
	variantIdx int
}

// Contains reports whether bucket b falls within [RangeStart, RangeEnd).
func (a Assignment) Contains(b uint32) bool {
	return b >= a.RangeStart && b < a.RangeEnd
}

// MaterializationMode controls how a rule's sticky read is interpreted.
type MaterializationMode struct {
	MustMatch       bool
	CanIgnoreSegment bool
}

// MaterializationSpec describes a rule's optional dependency on an
// externally materialized assignment.
type MaterializationSpec struct {
	ReadMaterialization  string // empty means "no read dependency"
	WriteMaterialization string // empty means "no write emission"
	Mode                 MaterializationMode
}

func (m MaterializationSpec) HasRead() bool  { return m.ReadMaterialization != "" }
func (m MaterializationSpec) HasWrite() bool { return m.WriteMaterialization != "" }

// Operator is the closed set of segment-criterion operators.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEQ
	OpNEQ
	OpLT
	OpLE
	OpGT
	OpGE
	OpInSet
	OpSegmentMember
	OpRegexMatch
)

// Criterion is a single attribute predicate within a Segment.
type Criterion struct {
	AttributePath string
	Operator      Operator
	// Operand carries the scalar/list operand for comparison operators.
	Operand Value
	// BitsetRef names the bitset referenced by a SEGMENT_MEMBER criterion.
	BitsetRef string
	// RegexPattern holds the RE2 pattern for REGEX_MATCH criteria
	// (kept separate from Operand so it can be precompiled at build time).
	RegexPattern string

	// bitsetIdx is the resolved index into ResolverState.bitsets for a
	// SEGMENT_MEMBER criterion, filled in at build time.
	bitsetIdx int
	// compiledRegex is the precompiled pattern for REGEX_MATCH criteria.
	compiledRegex *regexp.Regexp
}

// Segment groups targeting criteria and an optional allocation fraction
// under a salt used for bucket hashing.
type Segment struct {
	Name       string
	Salt       []byte
	Allocation *float64 // nil means "always match on allocation"
	Criteria   []Criterion
}

// Rule is a single ordered evaluation step within a Flag.
type Rule struct {
	Name                 string
	SegmentRef           string
	BucketCount          uint32
	Assignments          []Assignment
	MaterializationSpec  MaterializationSpec

	// segmentIdx is the resolved index into ResolverState.segments,
	// filled in at build time.
	segmentIdx int
}

// Flag is the unit of configuration resolved by name.
type Flag struct {
	Name                  string
	State                 FlagState
	Variants              []Variant
	Rules                 []Rule
	Schema                map[string]ValueKind
	DefaultValue          Value
	ClientVisibilityRules []string // decoded from the snapshot but not consulted; visibility uses ClientCredential.AllowedFlagPrefixes
}

// ClientCredential associates a client secret with an account's client
// and SDK identity and flag-prefix visibility.
type ClientCredential struct {
	ClientID            string
	Secret               string
	AllowedFlagPrefixes []string
	SDKID               string
}

// NamedBitset is an immutable named membership set referenced by
// SEGMENT_MEMBER criteria.
type NamedBitset struct {
	Name string
	Bits Bitset
}

// ResolveReason is the externally visible per-flag reason enumeration.
type ResolveReason int

const (
	ResolveReasonUnspecified ResolveReason = iota
	ResolveReasonMatch
	ResolveReasonNoSegmentMatch
	ResolveReasonNoTreatmentMatch
	ResolveReasonFlagArchived
	ResolveReasonTargetingKeyError
	ResolveReasonError
)

func (r ResolveReason) String() string {
	switch r {
	case ResolveReasonMatch:
		return "MATCH"
	case ResolveReasonNoSegmentMatch:
		return "NO_SEGMENT_MATCH"
	case ResolveReasonNoTreatmentMatch:
		return "NO_TREATMENT_MATCH"
	case ResolveReasonFlagArchived:
		return "FLAG_ARCHIVED"
	case ResolveReasonTargetingKeyError:
		return "TARGETING_KEY_ERROR"
	case ResolveReasonError:
		return "ERROR"
	default:
		return "UNSPECIFIED"
	}
}

// MaterializationInfo is the input-side record of a previously stored
// assignment for a given (unit, materialization) pair.
type MaterializationInfo struct {
	UnitInMaterialization bool
	RuleToVariant         map[string]string
}

// MaterializationUpdate is an output-side instruction to persist a new
// (rule, unit) -> variant assignment.
type MaterializationUpdate struct {
	Unit                string
	WriteMaterialization string
	Rule                string
	Variant             string
}

// ResolvedFlag is a single flag's resolution outcome as seen by a caller.
type ResolvedFlag struct {
	Flag   string
	Variant string
	Value  Value
	Reason ResolveReason
}

// ResolveFlagsRequest is the public request shape for a single resolve.
type ResolveFlagsRequest struct {
	Flags             []string
	EvaluationContext EvaluationContext
	ClientSecret      string
	Apply             bool
	SDKID             string
	SDKVersion        string
}

// ResolveFlagsResponse is the public response shape for a single resolve.
type ResolveFlagsResponse struct {
	ResolvedFlags []ResolvedFlag
	ResolveID     string
	ResolveToken  []byte
}

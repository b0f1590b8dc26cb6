package core

import "encoding/json"

// The wire schema for a ResolverState snapshot is externally owned (see
// spec §9, Serialization compatibility). Without a protobuf toolchain
// available in this environment, snapshots are realized as JSON: a
// snapshotDoc decodes straight off the wire and buildResolverState
// indexes it into the immutable, handle-resolved ResolverState used on
// the hot path. Unknown JSON fields are dropped on decode; preserving
// them is unnecessary here since the engine never re-serializes a
// snapshot — only WriteFlagLogsRequest goes back out.

type snapshotDoc struct {
	AccountID         string                 `json:"account_id"`
	Flags             []snapshotFlag         `json:"flags"`
	Segments          []snapshotSegment      `json:"segments"`
	Bitsets           []snapshotBitset       `json:"bitsets"`
	ClientCredentials []snapshotCredential   `json:"client_credentials"`
}

type snapshotFlag struct {
	Name                  string               `json:"name"`
	State                 string               `json:"state"` // "ACTIVE" | "ARCHIVED"
	Variants              []snapshotVariant    `json:"variants"`
	Rules                 []snapshotRule       `json:"rules"`
	DefaultValue          json.RawMessage      `json:"default_value"`
	ClientVisibilityRules []string             `json:"client_visibility_rules"`
}

type snapshotVariant struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type snapshotRule struct {
	Name                 string                    `json:"name"`
	SegmentRef           string                    `json:"segment_ref"`
	BucketCount          uint32                    `json:"bucket_count"`
	Assignments          []snapshotAssignment      `json:"assignments"`
	ReadMaterialization  string                    `json:"read_materialization"`
	WriteMaterialization string                    `json:"write_materialization"`
	MustMatch            bool                      `json:"must_match"`
	CanIgnoreSegment     bool                      `json:"can_ignore_segment"`
}

type snapshotAssignment struct {
	VariantRef string  `json:"variant_ref"`
	RangeStart uint32  `json:"range_start"`
	RangeEnd   uint32  `json:"range_end"`
	Weight     float64 `json:"weight"`
}

type snapshotSegment struct {
	Name       string              `json:"name"`
	Salt       []byte              `json:"salt"`
	Allocation *float64            `json:"allocation"`
	Criteria   []snapshotCriterion `json:"criteria"`
}

type snapshotCriterion struct {
	AttributePath string          `json:"attribute_path"`
	Operator      string          `json:"operator"`
	Operand       json.RawMessage `json:"operand"`
	BitsetRef     string          `json:"bitset_ref"`
	RegexPattern  string          `json:"regex_pattern"`
}

type snapshotBitset struct {
	Name string `json:"name"`
	Size uint   `json:"size"`
	Bits []uint `json:"bits"`
}

type snapshotCredential struct {
	ClientID            string   `json:"client_id"`
	Secret              string   `json:"secret"`
	AllowedFlagPrefixes []string `json:"allowed_flag_prefixes"`
	SDKID               string   `json:"sdk_id"`
}

func decodeSnapshot(data []byte) (*snapshotDoc, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Reason: "malformed json", Err: err}
	}
	return &doc, nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 {
		return NullValue, nil
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return NullValue, &DecodeError{Reason: "malformed value", Err: err}
	}
	return valueFromGeneric(generic), nil
}

func valueFromGeneric(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return NullValue
	case bool:
		return BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []interface{}:
		vals := make([]Value, len(t))
		for i, e := range t {
			vals[i] = valueFromGeneric(e)
		}
		return ListValue(vals)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = valueFromGeneric(e)
		}
		return StructValue(m)
	default:
		return NullValue
	}
}

func operatorFromString(s string) Operator {
	switch s {
	case "EQ":
		return OpEQ
	case "NEQ":
		return OpNEQ
	case "LT":
		return OpLT
	case "LE":
		return OpLE
	case "GT":
		return OpGT
	case "GE":
		return OpGE
	case "IN_SET":
		return OpInSet
	case "SEGMENT_MEMBER":
		return OpSegmentMember
	case "REGEX_MATCH":
		return OpRegexMatch
	default:
		return OpUnspecified
	}
}

func flagStateFromString(s string) FlagState {
	switch s {
	case "ACTIVE":
		return FlagStateActive
	case "ARCHIVED":
		return FlagStateArchived
	default:
		return FlagStateUnspecified
	}
}

package core

import (
	"fmt"
	"regexp"
)

// ResolverState is the decoded, indexed, immutable view of a snapshot.
// It is build-once, read-many: once returned from buildResolverState it
// is never mutated, so any number of goroutines may hold a reference
// and evaluate against it concurrently without synchronization.
type ResolverState struct {
	AccountID string

	flags      []*Flag
	flagIndex  map[string]int
	segments   []*Segment
	segmentIndex map[string]int
	bitsets    []*NamedBitset
	bitsetIndex map[string]int
	clients    []*ClientCredential
	clientIndex map[string]int // secret -> index
}

// FlagByName returns the flag with the given name, if present.
func (s *ResolverState) FlagByName(name string) (*Flag, bool) {
	i, ok := s.flagIndex[name]
	if !ok {
		return nil, false
	}
	return s.flags[i], true
}

// SegmentByRef resolves a segment reference to its handle.
func (s *ResolverState) SegmentByRef(ref string) (*Segment, bool) {
	i, ok := s.segmentIndex[ref]
	if !ok {
		return nil, false
	}
	return s.segments[i], true
}

// BitsetByRef resolves a bitset reference to its handle.
func (s *ResolverState) BitsetByRef(ref string) (*NamedBitset, bool) {
	i, ok := s.bitsetIndex[ref]
	if !ok {
		return nil, false
	}
	return s.bitsets[i], true
}

// ClientBySecret resolves a client secret to its credential record.
func (s *ResolverState) ClientBySecret(secret string) (*ClientCredential, bool) {
	i, ok := s.clientIndex[secret]
	if !ok {
		return nil, false
	}
	return s.clients[i], true
}

// buildResolverState decodes a JSON snapshot and constructs an
// immutable, integrity-checked ResolverState. All reference handles
// (segment, variant, bitset) are resolved to direct indices so
// evaluation needs no further string lookups.
func buildResolverState(snapshotBytes []byte, accountID string) (*ResolverState, error) {
	doc, err := decodeSnapshot(snapshotBytes)
	if err != nil {
		return nil, err
	}

	st := &ResolverState{
		AccountID:    accountID,
		segmentIndex: make(map[string]int, len(doc.Segments)),
		bitsetIndex:  make(map[string]int, len(doc.Bitsets)),
		flagIndex:    make(map[string]int, len(doc.Flags)),
		clientIndex:  make(map[string]int, len(doc.ClientCredentials)),
	}

	for _, b := range doc.Bitsets {
		st.bitsetIndex[b.Name] = len(st.bitsets)
		st.bitsets = append(st.bitsets, &NamedBitset{Name: b.Name, Bits: NewBitset(b.Size, b.Bits)})
	}

	for _, sg := range doc.Segments {
		if len(sg.Salt) == 0 {
			return nil, &IntegrityError{Reason: fmt.Sprintf("segment %q has empty salt", sg.Name)}
		}
		seg := &Segment{Name: sg.Name, Salt: sg.Salt, Allocation: sg.Allocation}
		for _, c := range sg.Criteria {
			crit := Criterion{
				AttributePath: c.AttributePath,
				Operator:      operatorFromString(c.Operator),
				BitsetRef:     c.BitsetRef,
				RegexPattern:  c.RegexPattern,
			}
			if crit.Operator == OpUnspecified {
				return nil, &IntegrityError{Reason: fmt.Sprintf("segment %q: unknown operator %q", sg.Name, c.Operator)}
			}
			if crit.Operator == OpSegmentMember {
				idx, ok := st.bitsetIndex[crit.BitsetRef]
				if !ok {
					return nil, &IntegrityError{Reason: fmt.Sprintf("segment %q: dangling bitset_ref %q", sg.Name, crit.BitsetRef)}
				}
				crit.bitsetIdx = idx
			}
			if crit.Operator == OpRegexMatch {
				re, err := regexp.Compile(crit.RegexPattern)
				if err != nil {
					return nil, &IntegrityError{Reason: fmt.Sprintf("segment %q: invalid regex %q: %v", sg.Name, crit.RegexPattern, err)}
				}
				crit.compiledRegex = re
			}
			if crit.Operator != OpSegmentMember && crit.Operator != OpRegexMatch {
				operand, err := decodeValue(c.Operand)
				if err != nil {
					return nil, err
				}
				crit.Operand = operand
			}
			seg.Criteria = append(seg.Criteria, crit)
		}
		st.segmentIndex[seg.Name] = len(st.segments)
		st.segments = append(st.segments, seg)
	}

	for _, f := range doc.Flags {
		flag := &Flag{
			Name:                  f.Name,
			State:                 flagStateFromString(f.State),
			ClientVisibilityRules: f.ClientVisibilityRules,
		}
		variantIndex := make(map[string]int, len(f.Variants))
		for _, v := range f.Variants {
			val, err := decodeValue(v.Value)
			if err != nil {
				return nil, err
			}
			variantIndex[v.Name] = len(flag.Variants)
			flag.Variants = append(flag.Variants, Variant{Name: v.Name, Value: val})
		}
		if len(f.DefaultValue) > 0 {
			dv, err := decodeValue(f.DefaultValue)
			if err != nil {
				return nil, err
			}
			flag.DefaultValue = dv
		}

		for _, r := range f.Rules {
			if r.BucketCount == 0 {
				return nil, &IntegrityError{Reason: fmt.Sprintf("flag %q rule %q: bucket_count must be > 0", f.Name, r.Name)}
			}
			segIdx := -1
			if r.SegmentRef != "" {
				i, ok := st.segmentIndex[r.SegmentRef]
				if !ok {
					return nil, &IntegrityError{Reason: fmt.Sprintf("flag %q rule %q: dangling segment_ref %q", f.Name, r.Name, r.SegmentRef)}
				}
				segIdx = i
			}
			rule := Rule{
				Name:        r.Name,
				SegmentRef:  r.SegmentRef,
				BucketCount: r.BucketCount,
				segmentIdx:  segIdx,
				MaterializationSpec: MaterializationSpec{
					ReadMaterialization:  r.ReadMaterialization,
					WriteMaterialization: r.WriteMaterialization,
					Mode: MaterializationMode{
						MustMatch:        r.MustMatch,
						CanIgnoreSegment: r.CanIgnoreSegment,
					},
				},
			}
			if err := validateAssignmentRanges(f.Name, r.Name, r.Assignments, r.BucketCount); err != nil {
				return nil, err
			}
			for _, a := range r.Assignments {
				vi, ok := variantIndex[a.VariantRef]
				if !ok {
					return nil, &IntegrityError{Reason: fmt.Sprintf("flag %q rule %q: dangling variant_ref %q", f.Name, r.Name, a.VariantRef)}
				}
				rule.Assignments = append(rule.Assignments, Assignment{
					VariantRef: a.VariantRef,
					RangeStart: a.RangeStart,
					RangeEnd:   a.RangeEnd,
					Weight:     a.Weight,
					variantIdx: vi,
				})
			}
			flag.Rules = append(flag.Rules, rule)
		}

		st.flagIndex[flag.Name] = len(st.flags)
		st.flags = append(st.flags, flag)
	}

	for _, c := range doc.ClientCredentials {
		if _, dup := st.clientIndex[c.Secret]; dup {
			return nil, &IntegrityError{Reason: fmt.Sprintf("duplicate client secret for client %q", c.ClientID)}
		}
		st.clientIndex[c.Secret] = len(st.clients)
		st.clients = append(st.clients, &ClientCredential{
			ClientID:            c.ClientID,
			Secret:              c.Secret,
			AllowedFlagPrefixes: c.AllowedFlagPrefixes,
			SDKID:               c.SDKID,
		})
	}

	return st, nil
}

// validateAssignmentRanges checks that every assignment's range is
// within [0, bucketCount), half-open, and that no two assignments in
// the same rule overlap.
func validateAssignmentRanges(flagName, ruleName string, assignments []snapshotAssignment, bucketCount uint32) error {
	type span struct{ start, end uint32 }
	var spans []span
	for _, a := range assignments {
		if a.RangeStart >= a.RangeEnd {
			return &IntegrityError{Reason: fmt.Sprintf("flag %q rule %q: assignment range [%d,%d) is not non-empty", flagName, ruleName, a.RangeStart, a.RangeEnd)}
		}
		if a.RangeEnd > bucketCount {
			return &IntegrityError{Reason: fmt.Sprintf("flag %q rule %q: assignment range [%d,%d) exceeds bucket_count %d", flagName, ruleName, a.RangeStart, a.RangeEnd, bucketCount)}
		}
		spans = append(spans, span{a.RangeStart, a.RangeEnd})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				return &IntegrityError{Reason: fmt.Sprintf("flag %q rule %q: overlapping assignment ranges [%d,%d) and [%d,%d)", flagName, ruleName, spans[i].start, spans[i].end, spans[j].start, spans[j].end)}
			}
		}
	}
	return nil
}

// visibleToClient reports whether flag is within the client's allowed
// flag-name prefixes. An empty AllowedFlagPrefixes list means "all
// flags visible" (no client-level narrowing configured).
func visibleToClient(flag *Flag, client *ClientCredential) bool {
	if client == nil || len(client.AllowedFlagPrefixes) == 0 {
		return true
	}
	for _, prefix := range client.AllowedFlagPrefixes {
		if len(flag.Name) >= len(prefix) && flag.Name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

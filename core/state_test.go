package core

import (
	"errors"
	"testing"
)

func validSnapshotJSON() []byte {
	return []byte(`{
		"account_id": "acct-1",
		"bitsets": [
			{"name": "holdout", "size": 64, "bits": [1, 2, 3]}
		],
		"segments": [
			{
				"name": "seg-sweden",
				"salt": "c2FsdA==",
				"criteria": [
					{"attribute_path": "country", "operator": "EQ", "operand": "SE"}
				]
			}
		],
		"flags": [
			{
				"name": "checkout.new_flow",
				"state": "ACTIVE",
				"variants": [
					{"name": "control", "value": false},
					{"name": "treatment", "value": true}
				],
				"default_value": false,
				"rules": [
					{
						"name": "r1",
						"segment_ref": "seg-sweden",
						"bucket_count": 100,
						"assignments": [
							{"variant_ref": "treatment", "range_start": 0, "range_end": 50}
						]
					}
				]
			}
		],
		"client_credentials": [
			{"client_id": "c1", "secret": "sekrit", "allowed_flag_prefixes": []}
		]
	}`)
}

func TestBuildResolverStateValid(t *testing.T) {
	st, err := buildResolverState(validSnapshotJSON(), "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flag, ok := st.FlagByName("checkout.new_flow")
	if !ok {
		t.Fatal("expected flag to be indexed")
	}
	if len(flag.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(flag.Rules))
	}
	if flag.Rules[0].segmentIdx != 0 {
		t.Fatalf("expected resolved segment index 0, got %d", flag.Rules[0].segmentIdx)
	}
	client, ok := st.ClientBySecret("sekrit")
	if !ok || client.ClientID != "c1" {
		t.Fatalf("expected client c1 to resolve by secret")
	}
}

func TestBuildResolverStateDanglingSegmentRef(t *testing.T) {
	bad := []byte(`{
		"flags": [
			{"name": "f", "state": "ACTIVE",
			 "variants": [{"name": "v", "value": 1}],
			 "rules": [{"name": "r", "segment_ref": "nope", "bucket_count": 10,
			            "assignments": [{"variant_ref": "v", "range_start": 0, "range_end": 10}]}]}
		]
	}`)
	_, err := buildResolverState(bad, "acct")
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestBuildResolverStateZeroBucketCount(t *testing.T) {
	bad := []byte(`{
		"flags": [
			{"name": "f", "state": "ACTIVE",
			 "variants": [{"name": "v", "value": 1}],
			 "rules": [{"name": "r", "bucket_count": 0, "assignments": []}]}
		]
	}`)
	_, err := buildResolverState(bad, "acct")
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for zero bucket_count, got %v", err)
	}
}

func TestBuildResolverStateOverlappingAssignments(t *testing.T) {
	bad := []byte(`{
		"flags": [
			{"name": "f", "state": "ACTIVE",
			 "variants": [{"name": "a", "value": 1}, {"name": "b", "value": 2}],
			 "rules": [{"name": "r", "bucket_count": 100, "assignments": [
			   {"variant_ref": "a", "range_start": 0, "range_end": 50},
			   {"variant_ref": "b", "range_start": 40, "range_end": 60}
			 ]}]}
		]
	}`)
	_, err := buildResolverState(bad, "acct")
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for overlapping ranges, got %v", err)
	}
}

func TestBuildResolverStateDuplicateClientSecret(t *testing.T) {
	bad := []byte(`{
		"client_credentials": [
			{"client_id": "c1", "secret": "dup"},
			{"client_id": "c2", "secret": "dup"}
		]
	}`)
	_, err := buildResolverState(bad, "acct")
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for duplicate client secret, got %v", err)
	}
}

func TestBuildResolverStateMalformedJSON(t *testing.T) {
	_, err := buildResolverState([]byte(`{not json`), "acct")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestVisibleToClientEmptyPrefixesMeansAll(t *testing.T) {
	flag := &Flag{Name: "anything"}
	if !visibleToClient(flag, &ClientCredential{AllowedFlagPrefixes: nil}) {
		t.Fatal("empty allowed prefixes should mean visible to all")
	}
}

func TestVisibleToClientPrefixFilter(t *testing.T) {
	flag := &Flag{Name: "checkout.new_flow"}
	client := &ClientCredential{AllowedFlagPrefixes: []string{"checkout."}}
	if !visibleToClient(flag, client) {
		t.Fatal("expected flag to be visible under matching prefix")
	}
	other := &Flag{Name: "billing.invoice"}
	if visibleToClient(other, client) {
		t.Fatal("expected flag outside allowed prefixes to be invisible")
	}
}

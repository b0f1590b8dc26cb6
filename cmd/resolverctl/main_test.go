package main

import (
	"testing"

	"github.com/flagresolve/engine/internal/testutil"
)

const sampleSnapshot = `{
	"account_id": "acct-1",
	"flags": [
		{
			"name": "checkout.flow",
			"state": "ACTIVE",
			"variants": [{"name": "control", "value": false}, {"name": "treatment", "value": true}],
			"default_value": false,
			"rules": [
				{"name": "r1", "bucket_count": 100, "assignments": [
					{"variant_ref": "treatment", "range_start": 0, "range_end": 100}
				]}
			]
		}
	],
	"client_credentials": [
		{"client_id": "c1", "secret": "sekrit"}
	]
}`

func TestLoadEngineFromSandboxedSnapshot(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	if err := sb.WriteFile("snapshot.json", []byte(sampleSnapshot), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	engine, err := loadEngine(sb.Path("snapshot.json"), "acct-1")
	if err != nil {
		t.Fatalf("loadEngine: %v", err)
	}
	if engine == nil {
		t.Fatal("expected a non-nil engine")
	}
}

func TestLoadEngineMissingFile(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	if _, err := loadEngine(sb.Path("does-not-exist.json"), "acct-1"); err == nil {
		t.Fatal("expected an error reading a missing state file")
	}
}

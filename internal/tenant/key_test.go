package tenant

import "testing"

func TestPartitionKey(t *testing.T) {
	cases := map[string]string{
		"AcmeCo":        "tenant_acmeco",
		"AcmeCo, Inc.":  "tenant_acmeco__inc_",
		"acme-co":       "tenant_acme_co",
		"ACME CO":       "tenant_acme_co",
		"org42":         "tenant_org42",
		"tenant_acmeco": "tenant_acmeco",
		"Ünïcode Org":   "tenant__n_code_org",
	}
	for in, want := range cases {
		if got := PartitionKey(in); got != want {
			t.Errorf("PartitionKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPartitionKeyIdempotent(t *testing.T) {
	inputs := []string{"AcmeCo", "Acme Co, Ltd.", "tenant_already", "WeIrD--Name!!"}
	for _, in := range inputs {
		once := PartitionKey(in)
		twice := PartitionKey(once)
		if once != twice {
			t.Errorf("PartitionKey not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestPartitionKeyCollisions(t *testing.T) {
	// Case and punctuation variants of the same name map to one partition.
	if PartitionKey("AcmeCo") != PartitionKey("ACMECO") {
		t.Error("case variants should collide")
	}
	if PartitionKey("acme co") != PartitionKey("acme-co") {
		t.Error("punctuation variants should collide")
	}
	if PartitionKey("AcmeCo, Inc.") != PartitionKey("acmeco__inc_") {
		t.Error("pre-sanitized form should map to the same partition")
	}
}

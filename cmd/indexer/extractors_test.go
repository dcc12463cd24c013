package main

import "testing"

func TestParseExtractorFlag(t *testing.T) {
	spec, err := parseExtractorFlag("uniswap-v2:ethereum:map_changes:contract")
	if err != nil {
		t.Fatalf("parseExtractorFlag: %v", err)
	}
	if spec.Name != "uniswap-v2" || spec.Chain != "ethereum" || spec.Module != "map_changes" || spec.Kind != "contract" {
		t.Errorf("spec = %+v, unexpected fields", spec)
	}
}

func TestParseExtractorFlagRejectsUnknownChain(t *testing.T) {
	if _, err := parseExtractorFlag("x:not-a-chain:m:contract"); err == nil {
		t.Error("expected error for unknown chain")
	}
}

func TestParseExtractorFlagRejectsBadKind(t *testing.T) {
	if _, err := parseExtractorFlag("x:ethereum:m:bogus"); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestParseExtractorFlagRejectsWrongShape(t *testing.T) {
	if _, err := parseExtractorFlag("too:few:parts"); err == nil {
		t.Error("expected error for malformed flag value")
	}
}

func TestParseExtractorFlagsMultiple(t *testing.T) {
	specs, err := parseExtractorFlags([]string{
		"a:ethereum:m1:contract",
		"b:starknet:m2:entity",
	})
	if err != nil {
		t.Fatalf("parseExtractorFlags: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
}

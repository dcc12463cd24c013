package main

import (
	"fmt"
	"strings"

	"github.com/synnergy-labs/chain-indexer/internal/config"
	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// parseExtractorFlag turns one "--extractor name:chain:module:kind" value
// into a config.Extractor. kind is "contract" or "entity", matching the two
// Decoders the extractor package ships.
func parseExtractorFlag(raw string) (config.Extractor, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return config.Extractor{}, fmt.Errorf("invalid --extractor %q: want name:chain:module:kind", raw)
	}
	e := config.Extractor{Name: parts[0], Chain: parts[1], Module: parts[2], Kind: parts[3]}
	if !models.Chain(e.Chain).Valid() {
		return config.Extractor{}, fmt.Errorf("invalid --extractor %q: unknown chain %q", raw, e.Chain)
	}
	switch e.Kind {
	case "contract", "entity":
	default:
		return config.Extractor{}, fmt.Errorf("invalid --extractor %q: kind must be contract or entity", raw)
	}
	return e, nil
}

func parseExtractorFlags(raws []string) ([]config.Extractor, error) {
	specs := make([]config.Extractor, 0, len(raws))
	for _, raw := range raws {
		spec, err := parseExtractorFlag(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

package normalize

import (
	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// mandatoryAttributes is the per-protocol-system registry of attribute
// names every newly created component of that family must carry, zero-
// filled if the upstream message didn't supply them (§4.2 transform 4,
// "Default-attribute injection"). Names and families are grounded on the
// original extractor's uniswap v2/v3 post-processors.
var mandatoryAttributes = map[models.ProtocolSystem][]string{
	"uniswap_v3": {"liquidity", "tick", "sqrt_price_x96"},
	"uniswap_v2": {"reserve0", "reserve1"},
}

// zeroBytes32 is the default value injected for a missing mandatory
// attribute: a 32-byte zero, matching the original's U256::zero() default.
var zeroBytes32 = make(models.Bytes, 32)

// applyDefaultAttributes injects zero-valued mandatory attributes for every
// newly created component whose protocol system has a registered set, onto
// that component's own state delta (creating one if the wire message
// didn't carry any attribute update for it at all).
func applyDefaultAttributes(changes *models.BlockChanges) {
	if len(changes.NewComponents) == 0 {
		return
	}
	deltaByComponent := make(map[models.ComponentID]*models.TxProtocolStateDelta, len(changes.ProtocolStateDeltas))
	for i := range changes.ProtocolStateDeltas {
		deltaByComponent[changes.ProtocolStateDeltas[i].Delta.Component] = &changes.ProtocolStateDeltas[i]
	}

	for _, c := range changes.NewComponents {
		mandatory, ok := mandatoryAttributes[c.ID.ProtocolSystem]
		if !ok {
			continue
		}
		existing, hasDelta := deltaByComponent[c.ID]
		if !hasDelta {
			changes.ProtocolStateDeltas = append(changes.ProtocolStateDeltas, models.TxProtocolStateDelta{
				TxHash: c.CreationTx,
				Delta: models.ProtocolStateDelta{
					Component:         c.ID,
					UpdatedAttributes: make(map[string]models.Bytes),
				},
			})
			existing = &changes.ProtocolStateDeltas[len(changes.ProtocolStateDeltas)-1]
			deltaByComponent[c.ID] = existing
		}
		for _, name := range mandatory {
			if _, present := existing.Delta.UpdatedAttributes[name]; !present {
				existing.Delta.UpdatedAttributes[name] = zeroBytes32
			}
		}
	}
}

// stableSwapFactory and plainPool identify the static-attribute values
// zero-token trimming watches for, grounded on the original's curve
// stable-swap plain-pool post-processor.
const (
	stableSwapFactory = "stable_swap_factory"
	plainPool         = "plain_pool"
)

// applyZeroTokenTrimming strips every all-zero-address token entry
// from newly observed components tagged as a stable-swap plain-pool
// factory variant (§4.2 transform 4, "Zero-token trimming").
func applyZeroTokenTrimming(changes *models.BlockChanges) {
	for i := range changes.NewComponents {
		c := &changes.NewComponents[i]
		factory, ok := c.StaticAttributes["factory_name"]
		if !ok || string(factory) != stableSwapFactory {
			continue
		}
		poolType, ok := c.StaticAttributes["pool_type"]
		if !ok || string(poolType) != plainPool {
			continue
		}
		trimmed := c.Tokens[:0]
		for _, t := range c.Tokens {
			if t != (models.Address{}) {
				trimmed = append(trimmed, t)
			}
		}
		c.Tokens = trimmed
	}
}

// applyPostProcessors runs every post-processor in turn, matching §4.2's
// "Post-processors (pluggable), each a pure function BlockChanges ->
// BlockChanges" framing even though this implementation mutates in place
// for efficiency (no other code path observes the pre-processed value).
func applyPostProcessors(changes *models.BlockChanges) {
	applyDefaultAttributes(changes)
	applyZeroTokenTrimming(changes)
}

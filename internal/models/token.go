package models

// Token is immutable once inserted (§3). It is always backed by an Account
// row; add_tokens deduplicates accounts by (chain, address) rather than
// inserting a second account row for a token on an address already known.
type Token struct {
	Account  AccountID
	Symbol   string
	Decimals uint8
	Tax      uint32
	GasCost  []uint64
}

// ExtractionState is the single row per (extractor_name, chain), mutated
// only by the owning Extractor Runtime.
type ExtractionState struct {
	ExtractorName string
	Chain         Chain
	Attributes    map[string]string
	Cursor        string
}

// ExtractorIdentity is the (name, chain) pair used wherever an extractor is
// referenced: cursor storage keys, fan-out hub registry keys, metrics
// labels. Carried as a struct rather than a formatted string so callers
// can't typo a separator (grounded on the original Rust's ExtractorIdentity).
type ExtractorIdentity struct {
	Name  string
	Chain Chain
}

func (e ExtractorIdentity) String() string { return e.Name + "@" + string(e.Chain) }

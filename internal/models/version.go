package models

import "time"

// VersionKind disambiguates which row wins when several rows share the same
// valid_from (i.e. several transactions in the same block touched the same
// identity key). See store/version.go for the resolution algorithm; not
// every read path implements every kind (§9 Open Questions).
type VersionKind int

const (
	// VersionLast selects the row with the maximum modify_tx.index within
	// the target block — the block's own tail state.
	VersionLast VersionKind = iota
	// VersionFirst selects the state as of the end of the *previous*
	// block: equivalent to Index(-1) relative to the target block.
	VersionFirst
	// VersionIndex selects the state after transaction index N within the
	// target block.
	VersionIndex
)

func (k VersionKind) String() string {
	switch k {
	case VersionLast:
		return "Last"
	case VersionFirst:
		return "First"
	case VersionIndex:
		return "Index"
	default:
		return "Unknown"
	}
}

// Version combines a point in time (either an explicit timestamp or a block
// reference) with a VersionKind that resolves ties within that block.
type Version struct {
	Timestamp *time.Time
	Block     *BlockIdentifier
	Kind      VersionKind
	Index     int64 // only meaningful when Kind == VersionIndex
}

// VersionLatest is the zero-value "no version given" sentinel used
// throughout the store's public contract: nil timestamp and block resolve
// to the latest state.
var VersionLatest = Version{}

func (v Version) IsLatest() bool { return v.Timestamp == nil && v.Block == nil }

func AtTimestamp(ts time.Time) Version {
	return Version{Timestamp: &ts}
}

func AtBlock(b BlockIdentifier, kind VersionKind) Version {
	return Version{Block: &b, Kind: kind}
}

func AtBlockIndex(b BlockIdentifier, index int64) Version {
	return Version{Block: &b, Kind: VersionIndex, Index: index}
}

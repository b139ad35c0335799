package types

import "fmt"

// heightKind discriminates the Height variants.
type heightKind uint8

const (
	heightPending heightKind = iota
	heightLatest
	heightStable
)

// Height selects which state a read resolves against: the in-flight pending
// state, the most recent committed snapshot, or the snapshot committed at a
// specific 1-based height.
//
// Stable(0) is reinterpreted as Latest, matching the query convention of the
// consensus boundary where height 0 means "whatever is newest".
type Height struct {
	kind heightKind
	n    uint64
}

// Pending selects the in-flight working state.
func Pending() Height { return Height{kind: heightPending} }

// Latest selects the most recent committed snapshot.
func Latest() Height { return Height{kind: heightLatest} }

// Stable selects the snapshot committed at height n. Stable(0) is Latest.
func Stable(n uint64) Height {
	if n == 0 {
		return Height{kind: heightLatest}
	}
	return Height{kind: heightStable, n: n}
}

// IsPending reports whether the height selects the pending state.
func (h Height) IsPending() bool { return h.kind == heightPending }

// IsLatest reports whether the height selects the latest committed snapshot.
func (h Height) IsLatest() bool { return h.kind == heightLatest }

// Committed returns the committed height selected, and whether the variant
// is Stable. It returns (0, false) for Pending and Latest.
func (h Height) Committed() (uint64, bool) {
	if h.kind != heightStable {
		return 0, false
	}
	return h.n, true
}

// String implements fmt.Stringer.
func (h Height) String() string {
	switch h.kind {
	case heightPending:
		return "pending"
	case heightLatest:
		return "latest"
	default:
		return fmt.Sprintf("stable(%d)", h.n)
	}
}

package contracts

import "fmt"

type Classification int

const (
	OldSnapshot Classification = iota
	Stable
	CurrentStable
	Snapshot
	DowngradeTarget
)

func (this Classification) String() string {
	switch this {
	case OldSnapshot:
		return "old-snapshot"
	case Stable:
		return "stable"
	case CurrentStable:
		return "current-stable"
	case Snapshot:
		return "snapshot"
	case DowngradeTarget:
		return "downgrade-target"
	default:
		return fmt.Sprintf("unknown(%d)", int(this))
	}
}

const (
	ReleasePointerLabel  = "current"
	LatestStableLabel    = "LatestStable"
	CurrentStableLabel   = "CurrentStable"
	LatestSnapshotLabel  = "LatestSnapshot"
	maximumAliasHopCount = 8
)

func IsSymbolicLabel(label string) bool {
	switch label {
	case LatestStableLabel, CurrentStableLabel, LatestSnapshotLabel:
		return true
	default:
		return false
	}
}

// VersionEntry describes one installable version. Symbolic entries set AliasOf
// and carry no data of their own; the accessors always read through the alias.
type VersionEntry struct {
	Label          string
	Classification Classification
	Timestamp      int64
	DownloadURL    string
	ContentTag     string
	AliasOf        *VersionEntry
	PatchSource    string // DowngradeTarget only: the version the patches apply to
	Synthetic      bool
}

// Resolved follows AliasOf to the concrete entry. The hop limit keeps a
// malformed chain from looping; the last entry reached is returned.
func (this *VersionEntry) Resolved() *VersionEntry {
	current := this
	for hops := 0; current.AliasOf != nil && hops < maximumAliasHopCount; hops++ {
		current = current.AliasOf
	}
	return current
}

func (this *VersionEntry) IsAlias() bool        { return this.AliasOf != nil }
func (this *VersionEntry) URL() string          { return this.Resolved().DownloadURL }
func (this *VersionEntry) Tag() string          { return this.Resolved().ContentTag }
func (this *VersionEntry) Time() int64          { return this.Resolved().Timestamp }
func (this *VersionEntry) Kind() Classification { return this.Resolved().Classification }

// Flatten copies the concrete entry so callers can hold a value that no
// longer depends on the catalog it came from.
func (this *VersionEntry) Flatten() VersionEntry {
	resolved := *this.Resolved()
	resolved.AliasOf = nil
	return resolved
}

func (this VersionEntry) Title() string {
	return fmt.Sprintf("[%s @ %d]", this.Label, this.Timestamp)
}

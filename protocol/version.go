package protocol

import (
	"fmt"

	"github.com/scylladb/go-set/i32set"
)

// snapshotBit is set on the wire id of every snapshot protocol so snapshot ids never collide with
// release ids.
const snapshotBit = 30

// Flag is a single capability flag attached to a Version.
type Flag uint8

const (
	FlagRelease Flag = 1 << iota
	FlagSnapshot
	FlagCombatTest
)

// Flags is the set of capability flags of a Version.
type Flags uint8

// Has reports whether the flag passed is part of the set.
func (f Flags) Has(flag Flag) bool {
	return Flags(flag)&f != 0
}

// Version is a single Minecraft: Java Edition protocol revision. Versions are ordered by their
// position in the version table rather than by their wire id, as combat test revisions use ids out
// of chronological order.
type Version struct {
	ordinal  int
	protocol int32
	snapshot int32
	name     string
	flags    Flags
}

func newVersion(protocol int32, name string) *Version {
	return &Version{protocol: protocol, snapshot: -1, name: name, flags: Flags(FlagRelease)}
}

func newFlaggedVersion(protocol int32, name string, flag Flag) *Version {
	return &Version{protocol: protocol, snapshot: -1, name: name, flags: Flags(flag)}
}

func newSnapshotVersion(protocol, snapshot int32, name string) *Version {
	return &Version{protocol: protocol, snapshot: 1<<snapshotBit | snapshot, name: name, flags: Flags(FlagSnapshot)}
}

var (
	Unknown = newFlaggedVersion(-1, "Unknown", 0)
	Legacy  = newFlaggedVersion(-2, "Legacy", 0)

	Minecraft1_7_2       = newVersion(4, "1.7.2")
	Minecraft1_7_6       = newVersion(5, "1.7.6")
	Minecraft1_8         = newVersion(47, "1.8")
	Minecraft1_9         = newVersion(107, "1.9")
	Minecraft1_9_1       = newVersion(108, "1.9.1")
	Minecraft1_9_2       = newVersion(109, "1.9.2")
	Minecraft1_9_4       = newVersion(110, "1.9.4")
	Minecraft1_10        = newVersion(210, "1.10")
	Minecraft1_11        = newVersion(315, "1.11")
	Minecraft1_11_1      = newVersion(316, "1.11.1")
	Minecraft1_12        = newVersion(335, "1.12")
	Minecraft1_12_1      = newVersion(338, "1.12.1")
	Minecraft1_12_2      = newVersion(340, "1.12.2")
	Minecraft1_13        = newVersion(393, "1.13")
	Minecraft1_13_1      = newVersion(401, "1.13.1")
	Minecraft1_13_2      = newVersion(404, "1.13.2")
	Minecraft1_14        = newVersion(477, "1.14")
	Minecraft1_14_1      = newVersion(480, "1.14.1")
	Minecraft1_14_2      = newVersion(485, "1.14.2")
	Minecraft1_14_3      = newVersion(490, "1.14.3")
	Minecraft1_14Combat1 = newFlaggedVersion(500, "1.14_combat-212796", FlagCombatTest)
	Minecraft1_14_4      = newVersion(498, "1.14.4")
	Minecraft1_14Combat2 = newFlaggedVersion(501, "1.14_combat-0", FlagCombatTest)
	Minecraft1_14Combat3 = newFlaggedVersion(502, "1.14_combat-3", FlagCombatTest)
	Minecraft1_15        = newVersion(573, "1.15")
	Minecraft1_15Combat4 = newFlaggedVersion(600, "1.15_combat-0", FlagCombatTest)
	Minecraft1_15_1      = newVersion(575, "1.15.1")
	Minecraft1_15_2      = newVersion(578, "1.15.2")
	Minecraft1_15Combat5 = newFlaggedVersion(601, "1.15_combat-6", FlagCombatTest)
	Minecraft1_16        = newVersion(735, "1.16")
	Minecraft1_16_1      = newVersion(736, "1.16.1")
	Minecraft1_16_2      = newVersion(751, "1.16.2")
	Minecraft1_16Combat6 = newFlaggedVersion(801, "1.16_combat-0", FlagCombatTest)
	Minecraft1_16Combat7 = newFlaggedVersion(802, "1.16_combat-3", FlagCombatTest)
	Minecraft1_16Combat8 = newFlaggedVersion(803, "1.16_combat-5", FlagCombatTest)
	Minecraft1_16_3      = newVersion(753, "1.16.3")
	Minecraft1_16_4      = newVersion(754, "1.16.4")
)

// versions holds every version in declaration order. The order is significant: it defines the
// result of Compare, AtLeast and Before.
var versions = []*Version{
	Unknown,
	Legacy,
	Minecraft1_7_2,
	Minecraft1_7_6,
	Minecraft1_8,
	Minecraft1_9,
	Minecraft1_9_1,
	Minecraft1_9_2,
	Minecraft1_9_4,
	Minecraft1_10,
	Minecraft1_11,
	Minecraft1_11_1,
	Minecraft1_12,
	Minecraft1_12_1,
	Minecraft1_12_2,
	Minecraft1_13,
	Minecraft1_13_1,
	Minecraft1_13_2,
	Minecraft1_14,
	Minecraft1_14_1,
	Minecraft1_14_2,
	Minecraft1_14_3,
	Minecraft1_14Combat1,
	Minecraft1_14_4,
	Minecraft1_14Combat2,
	Minecraft1_14Combat3,
	Minecraft1_15,
	Minecraft1_15Combat4,
	Minecraft1_15_1,
	Minecraft1_15_2,
	Minecraft1_15Combat5,
	Minecraft1_16,
	Minecraft1_16_1,
	Minecraft1_16_2,
	Minecraft1_16Combat6,
	Minecraft1_16Combat7,
	Minecraft1_16Combat8,
	Minecraft1_16_3,
	Minecraft1_16_4,
}

var (
	// Minimum is the oldest version supported.
	Minimum = versions[2]
	// Maximum is the newest version supported.
	Maximum = versions[len(versions)-1]
	// SupportedVersionString is the user-friendly range of supported versions, such as "1.7.2-1.16.4".
	SupportedVersionString = fmt.Sprintf("%s-%s", Minimum, Maximum)
)

// idToVersion maps every wire id to its version. It is built once and never mutated afterwards.
var idToVersion = indexVersions(versions)

// indexVersions assigns each version its ordinal and returns the wire id lookup table of the
// versions passed.
func indexVersions(table []*Version) map[int32]*Version {
	m := make(map[int32]*Version, len(table))
	for i, v := range table {
		v.ordinal = i

		// Snapshots compatible with a prior release reuse its id, so the first version registered
		// keeps the primary id while the snapshot id always points at its own version. Snapshot only
		// versions have no primary id, so -1 belongs to Unknown alone.
		if _, ok := m[v.protocol]; !ok && (v.protocol != -1 || v == Unknown) {
			m[v.protocol] = v
		}
		if v.snapshot != -1 {
			m[v.snapshot] = v
		}
	}
	return m
}

// VersionForID returns the version using the wire id passed, or Unknown if no version uses it.
func VersionForID(id int32) *Version {
	if v, ok := idToVersion[id]; ok {
		return v
	}
	return Unknown
}

// IsSupportedID reports whether the wire id passed belongs to a supported version.
func IsSupportedID(id int32) bool {
	return IsSupported(VersionForID(id))
}

// IsSupported reports whether the version passed is a real, supported protocol revision.
func IsSupported(v *Version) bool {
	return v != nil && v != Unknown && v != Legacy
}

// SupportedVersions returns every supported version in declaration order.
func SupportedVersions() []*Version {
	return append([]*Version(nil), versions[2:]...)
}

// Protocol returns the wire id of the version. Snapshot-only versions return their snapshot id.
func (v *Version) Protocol() int32 {
	if v.protocol == -1 {
		return v.snapshot
	}
	return v.protocol
}

// SnapshotProtocol returns the snapshot wire id of the version, or -1 if it has none.
func (v *Version) SnapshotProtocol() int32 {
	return v.snapshot
}

// Name ...
func (v *Version) Name() string {
	return v.name
}

// Flags ...
func (v *Version) Flags() Flags {
	return v.flags
}

// Compare returns -1, 0 or 1 depending on whether v was declared before, as or after o.
func (v *Version) Compare(o *Version) int {
	switch {
	case v.ordinal < o.ordinal:
		return -1
	case v.ordinal > o.ordinal:
		return 1
	}
	return 0
}

// AtLeast reports whether v is o or was declared after it.
func (v *Version) AtLeast(o *Version) bool {
	return v.ordinal >= o.ordinal
}

// Before reports whether v was declared before o.
func (v *Version) Before(o *Version) bool {
	return v.ordinal < o.ordinal
}

// String implements fmt.Stringer.
func (v *Version) String() string {
	return v.name
}

// VersionPolicy restricts which supported versions are accepted by a proxy.
type VersionPolicy struct {
	allowed *i32set.Set
	min     *Version
	max     *Version
}

// NewVersionPolicy creates a policy accepting every supported version between min and max, both
// inclusive. Nil bounds default to Minimum and Maximum.
func NewVersionPolicy(min, max *Version) (*VersionPolicy, error) {
	if min == nil {
		min = Minimum
	}
	if max == nil {
		max = Maximum
	}
	if !IsSupported(min) || !IsSupported(max) {
		return nil, fmt.Errorf("%w: policy bounds must be supported versions", ErrUnsupportedVersion)
	}
	if max.Before(min) {
		return nil, fmt.Errorf("invalid version policy: %s is older than %s", max, min)
	}

	allowed := i32set.New()
	for _, v := range versions[min.ordinal : max.ordinal+1] {
		allowed.Add(v.Protocol())
	}
	return &VersionPolicy{allowed: allowed, min: min, max: max}, nil
}

// VersionByName returns the supported version with the display name passed.
func VersionByName(name string) (*Version, bool) {
	for _, v := range versions[2:] {
		if v.name == name {
			return v, true
		}
	}
	return nil, false
}

// Allows reports whether the version passed is accepted by the policy.
func (p *VersionPolicy) Allows(v *Version) bool {
	return IsSupported(v) && p.allowed.Has(v.Protocol())
}

// String returns the range accepted by the policy.
func (p *VersionPolicy) String() string {
	return fmt.Sprintf("%s-%s", p.min, p.max)
}

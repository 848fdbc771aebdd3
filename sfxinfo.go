package soundengine

import "github.com/maxtraxv3/soundengine/sndbackend"

// NoLink marks a terminal sfxinfo: following link stops here.
const NoLink = -1

// NoLump marks an sfxinfo with no backing resource (lump is absent).
const NoLump = -1

// Default attenuation constants (§6).
const (
	AttnNone   = 0.0
	AttnNorm   = 1.0
	AttnIdle   = 1.001
	AttnStatic = 3.0
)

const (
	defaultNearLimit   = 2
	defaultLimitRange  = 65536 // squared distance
	defaultPitch       = 128
	maxLinkChainDepth  = 32
	maxRandomPickDepth = 32
)

// sfxFlags packs the boolean attributes of an sfxinfo.
type sfxFlags uint16

const (
	sfxRandomHeader sfxFlags = 1 << iota
	sfxLoadRAW
	sfxUsed
	sfxSingular
	sfxTentative
	sfxPlayerReserve
	sfxPlayerSilent
	sfx16Bit
)

func (f sfxFlags) has(bit sfxFlags) bool { return f&bit != 0 }

// sfxinfo is one logical sound's metadata and cached decoded handles.
// Index 0 in a SoundRegistry is always the reserved null sound.
type sfxinfo struct {
	Name string // case-insensitive, unique

	ResID  int // resource id, or -1 if not registered
	Lump   int // opaque loader handle, NoLump if absent
	data   sndbackend.SoundHandle
	data3D sndbackend.SoundHandle // may alias data

	Link int // NoLink, an sfxinfo index, or a random-list index

	Volume      float32
	Attenuation float32
	NearLimit   int32 // 0 = unlimited, <0 = inherit from resolved target
	LimitRange  float32
	PitchMask   int32
	Rolloff     sndbackend.Rolloff
	Flags       sfxFlags
	RawRate     int
	LoopStart   int

	// hash chain, rebuilt by HashSounds
	hashNext int
}

func (s *sfxinfo) IsRandomHeader() bool { return s.Flags.has(sfxRandomHeader) }
func (s *sfxinfo) IsSingular() bool     { return s.Flags.has(sfxSingular) }
func (s *sfxinfo) IsLoadRAW() bool      { return s.Flags.has(sfxLoadRAW) }
func (s *sfxinfo) IsTentative() bool    { return s.Flags.has(sfxTentative) }

func defaultSfxinfo(name string) sfxinfo {
	return sfxinfo{
		Name:        name,
		ResID:       -1,
		Lump:        NoLump,
		Link:        NoLink,
		Volume:      1,
		Attenuation: 1,
		NearLimit:   defaultNearLimit,
		LimitRange:  defaultLimitRange,
		Rolloff:     sndbackend.Rolloff{Type: sndbackend.RolloffDoom},
		LoopStart:   -1,
	}
}

// FRandomSoundList is an ordered sequence of sfxinfo indices, picked
// uniformly at random when the owning sfxinfo's link is followed. Picks
// may themselves be random headers, requiring iterative resolution.
type FRandomSoundList struct {
	Owner   int
	Choices []int
}

package soundengine

import "github.com/maxtraxv3/soundengine/sndbackend"

// ChanFlags encodes both public playback behavior and internal
// lifecycle state for a channel.
type ChanFlags uint32

const (
	Chan3D ChanFlags = 1 << iota
	ChanEvicted
	ChanForgettable
	ChanLoop
	ChanArea
	ChanUI
	ChanNoPause
	ChanListenerZ
	ChanJustStarted
	ChanAbsTime
	ChanVirtual
)

func (f ChanFlags) Has(bit ChanFlags) bool { return f&bit != 0 }

// Public channel-flag bit layout (§6): the low three bits are the slot
// (0 = auto, 1..7 explicit), and named high bits carry behavior flags
// that get translated into ChanFlags after the slot is extracted.
const (
	PublicSlotMask   = 0x07
	PublicListenerZ  = 1 << 3
	PublicMaybeLocal = 1 << 4
	PublicUI         = 1 << 5
	PublicNoPause    = 1 << 6
	PublicArea       = 1 << 7
	PublicLoop       = 1 << 8
)

// sourceRef is the discriminated union backing FSoundChan's emitter:
// either an opaque caller-owned pointer (an actor, sector, polyobj) or a
// fixed 3-float point (for Unattached sounds). SourceType is the tag;
// the two representations are never aliased without it.
type sourceRef struct {
	Type   sndbackend.SourceType
	Actor  any // valid iff Type is Actor/Sector/Polyobj
	Point  sndbackend.Vec3
	UsePoint bool // true iff Type == SourceUnattached
}

// FSoundChan is one active or parked playback channel. It lives in
// exactly one of a ChannelPool's Active or Free lists at a time; list
// membership is tracked by the pool via intrusive prev/next pointers
// (see pool.go), not stored on the channel itself, so a single struct
// definition doesn't have to special-case which list it's in.
type FSoundChan struct {
	SysChannel sndbackend.VoiceHandle // non-nil iff currently playing on the backend

	SoundID int // resolved, after link/random
	OrgID   int // as originally requested

	Volume float32
	Pitch  int // 128 = neutral

	EntChannel int // per-emitter slot, 0..7 (0 = auto, resolved before storage)
	Priority   int

	NearLimit  int32
	LimitRange float32

	Source sourceRef
	Pos    sndbackend.Vec3 // position at last start/refresh, for near-limit distance checks
	Vel    sndbackend.Vec3

	DistanceScale float32
	Rolloff       sndbackend.Rolloff

	Flags ChanFlags

	StartTime int64 // absolute sample position when parked (AbsTime set)

	id   uint64       // stable identity, for the object-graph serializer
	pool *ChannelPool // non-nil iff currently linked into a pool's Active list
}

func (c *FSoundChan) IsPlaying() bool { return c.SysChannel != nil }

// sameEmitter reports whether c belongs to the same (source_type, source)
// pair as ref, ignoring slot — used to build the auto-slot-selection
// occupancy bitmask, where every slot the emitter already owns matters
// regardless of which one.
func (c *FSoundChan) sameEmitter(ref sourceRef) bool {
	if c.Source.Type != ref.Type {
		return false
	}
	switch ref.Type {
	case sndbackend.SourceUnattached:
		return c.Source.Point == ref.Point
	case sndbackend.SourceNone:
		return true
	default:
		return c.Source.Actor == ref.Actor
	}
}

// matchesSource reports whether this channel represents the same
// (source_type, source, slot) tuple as the given request — used for
// collision detection and the "restarting the same emitter" near-limit
// exemption. Unattached sounds compare by exact point coordinates
// instead of identity, per spec §4.3 step 14.
func (c *FSoundChan) matchesSource(ref sourceRef, slot int) bool {
	if c.EntChannel != slot {
		return false
	}
	if c.Source.Type != ref.Type {
		return false
	}
	switch ref.Type {
	case sndbackend.SourceUnattached:
		return c.Source.Point == ref.Point
	case sndbackend.SourceNone:
		return true
	default:
		return c.Source.Actor == ref.Actor
	}
}

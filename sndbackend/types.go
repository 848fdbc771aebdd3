// Package sndbackend defines the interfaces the sound engine consumes from
// its surrounding systems: the mixing/output backend and the game client
// providing positions and raw lump bytes. Nothing in this package depends
// on the engine itself, so a concrete backend (see ebitenbackend) or a test
// double can be built without importing it.
package sndbackend

// Vec3 is a position or velocity in world space.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v minus o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// LengthSquared returns the squared Euclidean length, avoiding a sqrt for
// the distance comparisons the engine does most often (near-limit radius
// checks, limit-range checks).
func (v Vec3) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// SourceType tags which kind of emitter a channel or a start request is
// attached to.
type SourceType int

const (
	SourceNone SourceType = iota
	SourceActor
	SourceSector
	SourcePolyobj
	SourceUnattached
)

func (t SourceType) String() string {
	switch t {
	case SourceNone:
		return "none"
	case SourceActor:
		return "actor"
	case SourceSector:
		return "sector"
	case SourcePolyobj:
		return "polyobj"
	case SourceUnattached:
		return "unattached"
	default:
		return "unknown"
	}
}

// RolloffType selects the volume-vs-distance curve.
type RolloffType int

const (
	RolloffDoom RolloffType = iota
	RolloffLinear
	RolloffLogarithmic
	RolloffCustom
)

// Rolloff describes a volume-vs-distance curve. MinDistance == 0 means
// "unset", and callers resolving a chain should inherit from the nearest
// ancestor that sets one.
type Rolloff struct {
	Type        RolloffType
	MinDistance float32
	MaxDistance float32
	Factor      float32
}

// IsUnset reports whether this descriptor has never been configured.
func (r Rolloff) IsUnset() bool {
	return r.MinDistance == 0
}

// StartFlags are the flags passed down to the backend when starting a
// voice; they are a translation of the channel's public ChanFlags, not the
// same bit layout.
type StartFlags uint32

const (
	StartLoop StartFlags = 1 << iota
	StartArea
	StartNoPause
	StartNoReverb
)

// VoiceHandle identifies a backend voice. Nil means no voice (parked or
// never started).
type VoiceHandle interface{}

// SoundHandle identifies a decoded, backend-resident sound resource.
type SoundHandle interface {
	IsNull() bool
}

// Driver is the audio backend: it mixes, starts/stops voices, reports
// playback position, and decodes raw lump bytes into SoundHandles. The
// engine calls back into LifecycleManager via ChannelEnded/ChannelVirtualized;
// the driver is responsible for marshalling those calls onto the engine's
// single-threaded context (see spec §5).
type Driver interface {
	StartSound(handle SoundHandle, volume float32, pitch int, flags StartFlags, channel *VoiceHandle) VoiceHandle
	StartSound3D(handle3D SoundHandle, listener Vec3, volume float32, rolloff Rolloff, distanceScale float32,
		pitch int, priority int, pos, vel Vec3, slot int, flags StartFlags, channel *VoiceHandle) VoiceHandle
	StopChannel(chan_ VoiceHandle)
	ChannelVolume(chan_ VoiceHandle, volume float32)
	ChannelPitch(chan_ VoiceHandle, pitch int)
	UpdateSoundParams3D(listener Vec3, chan_ VoiceHandle, area int, pos, vel Vec3)
	UpdateListener(listener Vec3)
	UpdateSounds()
	GetPosition(chan_ VoiceHandle) (samples int, ok bool)
	GetSampleLength(handle SoundHandle) int
	MarkStartTime(chan_ VoiceHandle)

	LoadSound(data []byte) (SoundHandle, error)
	LoadSound3D(data []byte) (SoundHandle, error)
	LoadSoundVoc(data []byte) (SoundHandle, error)
	LoadSoundRaw(data []byte, rate int, channels, bits int, loopStart int) (SoundHandle, error)
	LoadSoundBuffered(data []byte, rate int, channels, bits int) (SoundHandle, error)
	UnloadSound(handle SoundHandle)

	GetMSLength(handle SoundHandle) int
}

// Client is the game-side collaborator: it knows where emitters are and
// can hand the engine raw lump bytes by id.
type Client interface {
	CalcPosVel(sourceType SourceType, source any, point *Vec3, slot int, flags StartFlags) (pos, vel Vec3, ok bool)
	ValidatePosVel(sourceType SourceType, source any, pos, vel Vec3) bool
	ReadSound(lump int) ([]byte, error)
}

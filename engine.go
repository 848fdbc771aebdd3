package soundengine

import (
	"math/rand"

	"golang.org/x/time/rate"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

// EngineConfig carries the tunables a caller sets once at construction,
// the same role the teacher's versioned settings struct (gsdef) plays
// for the rest of the client.
type EngineConfig struct {
	DefaultNearLimit  int32
	DefaultLimitRange float32
	Debug             bool

	// RestoreEventsPerSecond throttles RestoreEvictedChannels retries so
	// a backend reset that evicts hundreds of channels at once doesn't
	// thunder-herd the driver on the very next UpdateSounds call.
	RestoreEventsPerSecond float64
	RestoreBurst           int
}

// DefaultEngineConfig returns the documented defaults from spec §6.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultNearLimit:       defaultNearLimit,
		DefaultLimitRange:      defaultLimitRange,
		RestoreEventsPerSecond: 30,
		RestoreBurst:           8,
	}
}

// SoundEngine is the explicit engine instance: registry, resource cache,
// channel pool, and the scheduler/lifecycle logic that operate on them.
// Spec §9 calls out that the original's global soundEngine/sfx_empty
// must become an instance passed to clients rather than process state;
// this type is that instance.
type SoundEngine struct {
	cfg EngineConfig
	log *engineLogger

	Registry *SoundRegistry
	Cache    *ResourceCache
	Pool     *ChannelPool

	client sndbackend.Client
	driver sndbackend.Driver

	emptySoundID int
	curve        SoundCurve

	listenerPos Vec3Provider
	paused      bool
	disabled    bool

	// RestartEvictionsAt is the "do not attempt restart before this
	// tick" fence (spec §5): UpdateSounds runs RestoreEvictedChannels
	// once now reaches it. NoPendingRestore, not zero, marks "nothing
	// pending" so that a caller can legitimately fence at tick 0 (spec
	// §8 scenario 4 sets it to exactly 0 before the next UpdateSounds
	// call).
	RestartEvictionsAt int64
	restoreLimiter     *rate.Limiter

	nextChanID uint64
	prng       *rand.Rand
}

// NoPendingRestore is the RestartEvictionsAt sentinel meaning "no
// eviction restore is pending" (as opposed to 0, a legitimate fence
// time).
const NoPendingRestore = int64(-1 << 63)

// Vec3Provider supplies the current listener position/velocity and
// decides whether a given source is "the listener" for the purposes of
// spec §4.3 step 8's unlimited-copies exemption.
type Vec3Provider interface {
	Listener() (pos, vel sndbackend.Vec3)
	IsListenerSource(sourceType sndbackend.SourceType, source any) bool
}

// NewEngine wires a registry, cache, client, and driver into a running
// engine. emptySoundID is the registry index of the sfx_empty sentinel
// (commonly the result of FindSoundTentative("dsempty") or similar,
// registered by the caller before NewEngine runs).
func NewEngine(reg *SoundRegistry, cache *ResourceCache, client sndbackend.Client, driver sndbackend.Driver, emptySoundID int, cfg EngineConfig) *SoundEngine {
	return &SoundEngine{
		cfg:                cfg,
		log:                newEngineLogger(cfg.Debug),
		Registry:           reg,
		Cache:              cache,
		Pool:               NewChannelPool(),
		client:             client,
		driver:             driver,
		emptySoundID:       emptySoundID,
		restoreLimiter:     rate.NewLimiter(rate.Limit(cfg.RestoreEventsPerSecond), cfg.RestoreBurst),
		RestartEvictionsAt: NoPendingRestore,
	}
}

// SetListenerProvider installs the callback used to resolve the current
// listener position and the "is this source the listener" exemption.
func (e *SoundEngine) SetListenerProvider(p Vec3Provider) { e.listenerPos = p }

// SetSoundCurve installs the sample table Custom rolloff indexes into.
func (e *SoundEngine) SetSoundCurve(c SoundCurve) { e.curve = c }

// SetPaused toggles the global pause gate (spec §4.3 step 15).
func (e *SoundEngine) SetPaused(p bool) { e.paused = p }

// SetGloballyDisabled toggles the guard in spec §4.3 step 1.
func (e *SoundEngine) SetGloballyDisabled(d bool) { e.disabled = d }

func (e *SoundEngine) listener() (pos, vel sndbackend.Vec3) {
	if e.listenerPos == nil {
		return sndbackend.Vec3{}, sndbackend.Vec3{}
	}
	return e.listenerPos.Listener()
}

func (e *SoundEngine) isListener(sourceType sndbackend.SourceType, source any) bool {
	if e.listenerPos == nil {
		return false
	}
	return e.listenerPos.IsListenerSource(sourceType, source)
}

func (e *SoundEngine) nextChannelID() uint64 {
	e.nextChanID++
	return e.nextChanID
}

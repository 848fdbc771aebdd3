package soundengine

import "github.com/maxtraxv3/soundengine/sndbackend"

// StartRequest is the public surface of StartSound: everything a caller
// supplies before the scheduler resolves links, applies policy, and
// asks the backend to start a voice.
type StartRequest struct {
	SourceType sndbackend.SourceType
	Source     any              // actor/sector/polyobj handle; nil for None/Unattached
	Point      *sndbackend.Vec3 // set iff SourceType == SourceUnattached

	// Channel packs the emitter slot (low bits) and public behavior
	// flags (high bits), per the §6 bit layout.
	Channel int

	SoundID     int
	Volume      float32
	Attenuation float32

	// ForcedRolloff overrides the resolved sfx's rolloff unless it is
	// itself unset.
	ForcedRolloff *sndbackend.Rolloff

	DistanceScale float32

	// CustomSampleRate re-pitches playback against the sfx's authored
	// rate when nonzero (e.g. a caller resampling a voice line).
	CustomSampleRate int

	// Now is the caller's current absolute time, recorded on a channel
	// parked by the evicted-park fallback (step 18) so it can later be
	// compared against a backend position on restart.
	Now int64
}

package soundengine

import (
	"math"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

// SoundCurve supplies the sample table Custom rolloff indexes into; it
// is supplied by the client since the curve data isn't part of the
// sound engine's own data model.
type SoundCurve []byte

// GetRolloff evaluates a rolloff descriptor at distance d, returning a
// volume multiplier in [0, 1]. Below min the sound is at full volume;
// Logarithmic has no max cutoff (it asymptotically approaches zero); the
// other curve types clamp to zero at or beyond max.
func GetRolloff(r sndbackend.Rolloff, d float32, curve SoundCurve) float32 {
	if r.MinDistance <= 0 && r.Type != sndbackend.RolloffLogarithmic {
		// Unset descriptors behave as "always audible" until a caller
		// resolves them against an ancestor; treat as full volume
		// rather than dividing by zero below.
		return 1
	}
	if d <= r.MinDistance {
		return 1
	}
	if r.Type == sndbackend.RolloffLogarithmic {
		denom := r.MinDistance + r.Factor*(d-r.MinDistance)
		if denom <= 0 {
			return 0
		}
		return r.MinDistance / denom
	}
	if d >= r.MaxDistance {
		return 0
	}
	span := r.MaxDistance - r.MinDistance
	if span <= 0 {
		return 0
	}
	fraction := (r.MaxDistance - d) / span

	switch r.Type {
	case sndbackend.RolloffLinear:
		return fraction
	case sndbackend.RolloffCustom:
		if len(curve) == 0 {
			return fraction
		}
		idx := int(float32(len(curve)) * (1 - fraction))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(curve) {
			idx = len(curve) - 1
		}
		return float32(curve[idx]) / 127
	default: // RolloffDoom
		return float32((math.Pow(10, float64(fraction)) - 1) / 9)
	}
}

// resolve3DVolume computes a 3D sound's effective playback volume:
// baseVolume scaled by GetRolloff at the listener's distance, mirroring
// the original's S_GetRolloff call inside S_StartSound. distanceScale
// <= 0 is treated as 1 (unscaled), matching the backend's own
// distance-scale handling.
func resolve3DVolume(baseVolume float32, r sndbackend.Rolloff, pos, listener sndbackend.Vec3, distanceScale float32, curve SoundCurve) float32 {
	if distanceScale <= 0 {
		distanceScale = 1
	}
	dist := float32(math.Sqrt(pos.Sub(listener).LengthSquared())) * distanceScale
	return baseVolume * GetRolloff(r, dist, curve)
}

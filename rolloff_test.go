package soundengine

import (
	"math"
	"testing"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

func TestGetRolloffBelowMinIsFullVolume(t *testing.T) {
	r := sndbackend.Rolloff{Type: sndbackend.RolloffLinear, MinDistance: 10, MaxDistance: 100}
	if got := GetRolloff(r, 5, nil); got != 1 {
		t.Fatalf("expected full volume below min, got %f", got)
	}
}

func TestGetRolloffLinearAtMaxIsZero(t *testing.T) {
	r := sndbackend.Rolloff{Type: sndbackend.RolloffLinear, MinDistance: 10, MaxDistance: 100}
	if got := GetRolloff(r, 100, nil); got != 0 {
		t.Fatalf("expected zero at max, got %f", got)
	}
	if got := GetRolloff(r, 200, nil); got != 0 {
		t.Fatalf("expected zero beyond max, got %f", got)
	}
}

func TestGetRolloffLogarithmicHasNoMaxCutoff(t *testing.T) {
	r := sndbackend.Rolloff{Type: sndbackend.RolloffLogarithmic, MinDistance: 10, MaxDistance: 100, Factor: 1}
	got := GetRolloff(r, 100000, nil)
	if got <= 0 {
		t.Fatalf("logarithmic rolloff should stay positive at any distance, got %f", got)
	}
}

func TestGetRolloffDoomMonotonicDecrease(t *testing.T) {
	r := sndbackend.Rolloff{Type: sndbackend.RolloffDoom, MinDistance: 10, MaxDistance: 110}
	prev := float32(math.Inf(1))
	for d := float32(10); d <= 110; d += 10 {
		v := GetRolloff(r, d, nil)
		if v > prev {
			t.Fatalf("expected non-increasing volume as distance grows, got %f after %f at d=%f", v, prev, d)
		}
		prev = v
	}
}

func TestGetRolloffCustomSamplesCurve(t *testing.T) {
	curve := SoundCurve{127, 64, 0}
	r := sndbackend.Rolloff{Type: sndbackend.RolloffCustom, MinDistance: 0, MaxDistance: 30}
	r.MinDistance = 1 // force "set" (IsUnset checks MinDistance==0)
	got := GetRolloff(r, 1, curve)
	if got != 1 {
		t.Fatalf("expected full volume at min distance, got %f", got)
	}
	// Halfway between min and max: fraction 0.5 indexes curve[int(3*0.5)] = curve[1].
	if got := GetRolloff(r, 15.5, curve); got != float32(64)/127 {
		t.Fatalf("expected curve[1]/127 halfway between min and max, got %f", got)
	}
}

func TestResolve3DVolumeScalesByRolloffAtDistance(t *testing.T) {
	r := sndbackend.Rolloff{Type: sndbackend.RolloffLinear, MinDistance: 10, MaxDistance: 110}
	pos := sndbackend.Vec3{X: 60}
	listener := sndbackend.Vec3{}

	got := resolve3DVolume(1, r, pos, listener, 1, nil)
	want := GetRolloff(r, 60, nil)
	if got != want {
		t.Fatalf("expected resolve3DVolume to match GetRolloff(60)=%f, got %f", want, got)
	}

	// A distanceScale <= 0 falls back to 1 (unscaled), not to a
	// divide-by-zero distance.
	if got := resolve3DVolume(1, r, pos, listener, 0, nil); got != want {
		t.Fatalf("expected distanceScale<=0 to behave as 1, got %f want %f", got, want)
	}

	// Scaling distance up should move the sound closer to silence.
	scaled := resolve3DVolume(1, r, pos, listener, 2, nil)
	if scaled >= want {
		t.Fatalf("expected a larger distanceScale to attenuate further, got %f vs unscaled %f", scaled, want)
	}
}

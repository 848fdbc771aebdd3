package soundengine

import (
	"testing"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

func TestNewEngineDefaults(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if e.Registry == nil || e.Cache == nil || e.Pool == nil {
		t.Fatalf("expected registry/cache/pool to be wired")
	}
	if e.paused || e.disabled {
		t.Fatalf("expected a fresh engine to start unpaused and enabled")
	}
}

func TestSetPausedGatesStartSound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := setupSound(t, e, "a", 1)

	e.SetPaused(true)
	if ch, err := e.StartSound(StartRequest{SoundID: id, Volume: 1}); ch != nil || err != nil {
		t.Fatalf("expected paused engine to block a plain sound, got %v %v", ch, err)
	}
	e.SetPaused(false)
	if ch, err := e.StartSound(StartRequest{SoundID: id, Volume: 1}); ch == nil || err != nil {
		t.Fatalf("expected unpaused engine to start the sound, got %v %v", ch, err)
	}
}

func TestSetGloballyDisabledGatesStartSound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := setupSound(t, e, "a", 1)

	e.SetGloballyDisabled(true)
	if ch, err := e.StartSound(StartRequest{SoundID: id, Volume: 1}); ch != nil || err != nil {
		t.Fatalf("expected disabled engine to reject, got %v %v", ch, err)
	}
	e.SetGloballyDisabled(false)
	if ch, err := e.StartSound(StartRequest{SoundID: id, Volume: 1}); ch == nil || err != nil {
		t.Fatalf("expected re-enabled engine to start the sound, got %v %v", ch, err)
	}
}

// fakeListener is a minimal Vec3Provider: every source in isListener is
// treated as the listener, exercising the near-limit unlimited exemption
// (spec §4.3 step 8).
type fakeListener struct {
	isListener any
}

func (l *fakeListener) Listener() (pos, vel sndbackend.Vec3) { return sndbackend.Vec3{}, sndbackend.Vec3{} }
func (l *fakeListener) IsListenerSource(sourceType sndbackend.SourceType, source any) bool {
	return source == l.isListener
}

func TestSetListenerProviderExemptsFromNearLimit(t *testing.T) {
	e, _, client := newTestEngine(t)
	id := e.Registry.AddSoundLump("limited", 1, 0, -1)
	sfx := e.Registry.get(id)
	sfx.NearLimit = 1
	sfx.LimitRange = 100
	e.Registry.HashSounds()

	actor := new(int)
	client.posFor[actor] = sndbackend.Vec3{}
	e.SetListenerProvider(&fakeListener{isListener: actor})

	for i := 0; i < 5; i++ {
		ch, err := e.StartSound(StartRequest{SoundID: id, Volume: 1, SourceType: sndbackend.SourceActor, Source: actor, Channel: i + 1})
		if err != nil {
			t.Fatalf("StartSound %d: %v", i, err)
		}
		if ch == nil {
			t.Fatalf("expected the listener's own sounds to bypass near-limit, instance %d was rejected", i)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := setupSound(t, e, "a", 1)

	ch, err := e.StartSound(StartRequest{SoundID: id, Volume: 0.5, Channel: 3})
	if err != nil || ch == nil {
		t.Fatalf("StartSound: %v %v", ch, err)
	}
	wantSoundID, wantEntChannel := ch.SoundID, ch.EntChannel

	data, err := e.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected a non-empty snapshot")
	}

	if err := e.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if e.Pool.ActiveLen() != 1 {
		t.Fatalf("expected exactly one restored channel, got %d", e.Pool.ActiveLen())
	}

	var restored *FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		restored = c
		return false
	})
	if restored == nil {
		t.Fatalf("expected a restored channel")
	}
	if restored.SoundID != wantSoundID {
		t.Fatalf("expected restored SoundID %d, got %d", wantSoundID, restored.SoundID)
	}
	if restored.EntChannel != wantEntChannel {
		t.Fatalf("expected restored EntChannel %d, got %d", wantEntChannel, restored.EntChannel)
	}
	if !restored.Flags.Has(ChanEvicted) {
		t.Fatalf("expected a restored channel to start parked")
	}

	if ok := e.RestartChannel(restored); !ok {
		t.Fatalf("expected RestartChannel to succeed for a restored channel")
	}
	if restored.Flags.Has(ChanEvicted) {
		t.Fatalf("expected the channel to be playing again after a successful restart")
	}
}

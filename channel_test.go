package soundengine

import (
	"testing"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

func TestPublicBitLayoutMatchesSpecLiterals(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"ListenerZ", PublicListenerZ, 8},
		{"MaybeLocal", PublicMaybeLocal, 16},
		{"UI", PublicUI, 32},
		{"NoPause", PublicNoPause, 64},
		{"Area", PublicArea, 128},
		{"Loop", PublicLoop, 256},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}

func TestMatchesSourceBySlotTypeAndActor(t *testing.T) {
	actor := new(int)
	ch := &FSoundChan{EntChannel: 3, Source: sourceRef{Type: sndbackend.SourceActor, Actor: actor}}

	if !ch.matchesSource(sourceRef{Type: sndbackend.SourceActor, Actor: actor}, 3) {
		t.Fatalf("expected match on same actor+slot")
	}
	if ch.matchesSource(sourceRef{Type: sndbackend.SourceActor, Actor: actor}, 4) {
		t.Fatalf("expected no match on different slot")
	}
	if ch.matchesSource(sourceRef{Type: sndbackend.SourceActor, Actor: new(int)}, 3) {
		t.Fatalf("expected no match on different actor identity")
	}
}

func TestMatchesSourceUnattachedComparesPoint(t *testing.T) {
	pt := sndbackend.Vec3{X: 1, Y: 2, Z: 3}
	ch := &FSoundChan{EntChannel: 0, Source: sourceRef{Type: sndbackend.SourceUnattached, Point: pt, UsePoint: true}}

	if !ch.matchesSource(sourceRef{Type: sndbackend.SourceUnattached, Point: pt, UsePoint: true}, 0) {
		t.Fatalf("expected match on identical point")
	}
	other := sndbackend.Vec3{X: 9, Y: 9, Z: 9}
	if ch.matchesSource(sourceRef{Type: sndbackend.SourceUnattached, Point: other, UsePoint: true}, 0) {
		t.Fatalf("expected no match on different point")
	}
}

func TestSameEmitterIgnoresSlot(t *testing.T) {
	actor := new(int)
	ch := &FSoundChan{EntChannel: 5, Source: sourceRef{Type: sndbackend.SourceActor, Actor: actor}}
	if !ch.sameEmitter(sourceRef{Type: sndbackend.SourceActor, Actor: actor}) {
		t.Fatalf("sameEmitter should ignore slot")
	}
}

// Command sndenginedemo exercises the sound engine end to end against a
// real ebiten audio.Context: it registers a couple of synthesized tones,
// starts them through the public StartSound API, and ticks UpdateSounds
// on a timer for about three seconds, or until interrupted — the same
// shape as the teacher's own
// signal.NotifyContext-driven main loop, stripped down to the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"

	soundengine "github.com/maxtraxv3/soundengine"
	"github.com/maxtraxv3/soundengine/sndbackend"
	"github.com/maxtraxv3/soundengine/sndbackend/ebitenbackend"
)

const sampleRate = 44100

var debug = flag.Bool("debug", false, "verbose engine logging")

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	audioCtx := audio.NewContext(sampleRate)

	reg := soundengine.NewSoundRegistry(nil)
	empty := reg.AddSoundLump("dsempty", soundengine.NoLump, 0, -1)

	beepLump := 1
	bufferLump := 2
	client := newToneClient(map[int][]byte{
		beepLump:   dmxTone(880, time.Second/2, sampleRate),
		bufferLump: rawTone(440, time.Second, sampleRate),
	})

	beep := reg.AddSoundLump("beep", beepLump, 0, -1)
	buffer := reg.AddSoundLump("buffer", bufferLump, 0, -1)
	reg.MarkRaw(buffer, sampleRate)
	reg.HashSounds()

	driver := ebitenbackend.New(audioCtx)
	cache := soundengine.NewResourceCache(reg, client, driver, empty)

	engine := soundengine.NewEngine(reg, cache, client, driver, empty, soundengine.EngineConfig{
		DefaultNearLimit:       2,
		DefaultLimitRange:      65536,
		Debug:                  *debug,
		RestoreEventsPerSecond: 30,
		RestoreBurst:           8,
	})
	driver.SetEndedCallback(engine.ChannelEnded)

	fmt.Println("starting beep...")
	if _, err := engine.StartSound(soundengine.StartRequest{SoundID: beep, Volume: 1}); err != nil {
		log.Fatalf("start beep: %v", err)
	}

	fmt.Println("starting looping buffer tone...")
	if _, err := engine.StartSound(soundengine.StartRequest{
		SoundID: buffer,
		Volume:  0.6,
		Channel: int(soundengine.PublicLoop),
	}); err != nil {
		log.Fatalf("start buffer: %v", err)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("shutting down")
			return
		case now := <-ticker.C:
			engine.UpdateSounds(now.UnixMilli())
			if time.Since(start) > 3*time.Second {
				fmt.Println("demo sequence complete")
				return
			}
		}
	}
}

// toneClient is the Client collaborator for this demo: fixed lump bytes,
// no real emitter positions (every sound plays 2D, at the listener).
type toneClient struct {
	lumps map[int][]byte
}

func newToneClient(lumps map[int][]byte) *toneClient {
	return &toneClient{lumps: lumps}
}

func (c *toneClient) CalcPosVel(sourceType sndbackend.SourceType, source any, point *sndbackend.Vec3, slot int, flags sndbackend.StartFlags) (sndbackend.Vec3, sndbackend.Vec3, bool) {
	return sndbackend.Vec3{}, sndbackend.Vec3{}, true
}

func (c *toneClient) ValidatePosVel(sourceType sndbackend.SourceType, source any, pos, vel sndbackend.Vec3) bool {
	return true
}

func (c *toneClient) ReadSound(lump int) ([]byte, error) {
	data, ok := c.lumps[lump]
	if !ok {
		return nil, fmt.Errorf("sndenginedemo: no lump %d", lump)
	}
	return data, nil
}

// dmxTone synthesizes a DMX-format mono 8-bit sine lump: a 2-byte magic
// (3, 0), the sample rate, the payload length, then unsigned 8-bit PCM —
// the same header ResourceCache.decode sniffs for via isDMX.
func dmxTone(freq float64, dur time.Duration, rate int) []byte {
	samples := int(dur.Seconds() * float64(rate))
	payload := make([]byte, samples)
	for i := range payload {
		t := float64(i) / float64(rate)
		v := math.Sin(2 * math.Pi * freq * t)
		payload[i] = byte(v*96 + 128)
	}
	out := make([]byte, 8+len(payload))
	out[0], out[1] = 3, 0
	out[2] = byte(rate)
	out[3] = byte(rate >> 8)
	n := len(payload)
	out[4] = byte(n)
	out[5] = byte(n >> 8)
	out[6] = byte(n >> 16)
	out[7] = byte(n >> 24)
	copy(out[8:], payload)
	return out
}

// rawTone synthesizes headerless 8-bit PCM for the MarkRaw dispatch path.
func rawTone(freq float64, dur time.Duration, rate int) []byte {
	samples := int(dur.Seconds() * float64(rate))
	out := make([]byte, samples)
	for i := range out {
		t := float64(i) / float64(rate)
		v := math.Sin(2 * math.Pi * freq * t)
		out[i] = byte(v*96 + 128)
	}
	return out
}

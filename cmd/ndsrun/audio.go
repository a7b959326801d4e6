// audio.go - oto-backed AudioSink implementation

/*
audio.go - Audio Output

Grounded on the teacher's `audio_backend_oto.go`: oto pulls samples
through an io.Reader rather than accepting pushed ones, so otoSink
bridges ndscore.Mixer's push model (`PushSample` called once per
AudioTickPeriod from inside RunFrame) to oto's pull model with a small
ring buffer, the same role the teacher's `OtoPlayer.Read` plays for its
own `SoundChip.ReadSampleFromRing`.
*/

package main

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

const otoSampleRate = 32768 // matches ndscore.AudioTickPeriod's ~32.7kHz tick rate

type otoSink struct {
	ctx    *oto.Context
	player *oto.Player

	mu   sync.Mutex
	ring []int16 // interleaved L,R int16 samples
	head int
	tail int
}

func newOtoSink(ringCapacity int) (*otoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   otoSampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &otoSink{ring: make([]int16, ringCapacity*2)}
	s.player = ctx.NewPlayer(s)
	s.ctx = ctx
	return s, nil
}

// PushSample implements ndscore.AudioSink. Samples are dropped (not
// blocked) if the ring fills, since the emulator's timing must never
// stall waiting on the host audio device.
func (s *otoSink) PushSample(left, right int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := (s.tail + 2) % len(s.ring)
	if next == s.head {
		return
	}
	s.ring[s.tail] = left
	s.ring[s.tail+1] = right
	s.tail = next
}

// Read implements io.Reader for oto.NewPlayer: it fills p with whatever
// interleaved samples are queued, padding the remainder with silence
// rather than blocking, matching the teacher's OtoPlayer.Read zero-fill
// fallback when its chip pointer is unset.
func (s *otoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for n+1 < len(p) && s.head != s.tail {
		v := s.ring[s.head]
		p[n] = byte(v)
		p[n+1] = byte(v >> 8)
		n += 2
		s.head = (s.head + 1) % len(s.ring)
	}
	for ; n < len(p); n++ {
		p[n] = 0
	}
	return len(p), nil
}

func (s *otoSink) Start() { s.player.Play() }

func (s *otoSink) Close() {
	s.player.Close()
}

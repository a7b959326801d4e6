package ndscore

import "testing"

type fakeSink struct{ l, r int16 }

func (f *fakeSink) PushSample(l, r int16) { f.l, f.r = l, r }

func TestMixerSilentWhenMasterDisabled(t *testing.T) {
	m := NewMixer()
	sink := &fakeSink{l: 1, r: 1}
	m.SetSink(sink)
	m.MasterEnable = false
	m.Tick()
	if sink.l != 0 || sink.r != 0 {
		t.Fatalf("expected silence with master disabled, got %d/%d", sink.l, sink.r)
	}
}

func TestMixerMixesPannedChannel(t *testing.T) {
	m := NewMixer()
	sink := &fakeSink{}
	m.SetSink(sink)
	m.MasterEnable = true
	m.MasterVolume = 127

	ch := &m.Channels[0]
	ch.KeyOn(FormatPCM16, []byte{0x00, 0x40}, 0, 1, RepeatOneShot, 0)
	ch.volumeMul = 127
	ch.pan = 127 // fully right

	m.Tick()
	if sink.r == 0 {
		t.Fatal("expected nonzero right channel output for a fully-right-panned tone")
	}
}

func TestADPCMDecodeStaysWithinRange(t *testing.T) {
	ch := &SoundChannel{}
	header := []byte{0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	ch.KeyOn(FormatADPCM, header, 0, 8, RepeatOneShot, 1<<16)
	for i := 0; i < 8; i++ {
		v := ch.sampleADPCM()
		if v > 32767 || v < -32768 {
			t.Fatalf("adpcm decode out of int16 range: %d", v)
		}
		ch.advance()
	}
}

func TestPSGDutyCycleGatesOutput(t *testing.T) {
	ch := &SoundChannel{}
	ch.KeyOn(FormatPSG, nil, 0, 0, RepeatOneShot, 1<<13) // 8 samples per duty step, 64 per cycle
	ch.dutyCycle = 0                                     // 12.5% duty: 1/8 high
	high, low := 0, 0
	for i := 0; i < 16; i++ {
		if ch.samplePSG() > 0 {
			high++
		} else {
			low++
		}
	}
	if high == 0 || low == 0 {
		t.Fatalf("expected a mix of high/low samples, got high=%d low=%d", high, low)
	}
}

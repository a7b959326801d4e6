package main

import "testing"

func TestOtoSinkRingRoundTripsSamples(t *testing.T) {
	s := &otoSink{ring: make([]int16, 8)}
	s.PushSample(100, -200)
	s.PushSample(300, -400)

	buf := make([]byte, 8) // two stereo pairs
	n, err := s.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("Read returned %d bytes, want %d", n, len(buf))
	}
	got := int16(uint16(buf[0]) | uint16(buf[1])<<8)
	if got != 100 {
		t.Fatalf("first sample = %d, want 100", got)
	}
}

func TestOtoSinkReadPadsSilenceWhenEmpty(t *testing.T) {
	s := &otoSink{ring: make([]int16, 8)}
	buf := make([]byte, 4)
	if _, err := s.Read(buf); err != nil {
		t.Fatal(err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatal("expected silence when the ring is empty")
		}
	}
}

func TestOtoSinkDropsSamplesWhenRingFull(t *testing.T) {
	s := &otoSink{ring: make([]int16, 4)}
	for i := 0; i < 10; i++ {
		s.PushSample(int16(i), int16(i))
	}
	// Should not panic or deadlock; ring capacity is 4 int16s (one pair,
	// minus one reserved slot to distinguish empty from full).
}

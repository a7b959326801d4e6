package ndscore

import "testing"

type stubClock struct{}

func (stubClock) Now() (year, month, day, weekday, hour, minute, second int) {
	return 26, 7, 30, 4, 15, 42, 8
}

func TestRTCDateTimeReadIsBCDEncoded(t *testing.T) {
	r := NewRTC(stubClock{})
	r.HandleByte(byte(rtcRegDateTime<<4)|0x1, true, false)
	var out [7]byte
	for i := range out {
		out[i] = r.HandleByte(0, false, false)
	}
	if out[0] != 0x26 {
		t.Fatalf("year byte = %#x, want BCD 0x26", out[0])
	}
	if out[1] != 0x07 {
		t.Fatalf("month byte = %#x, want BCD 0x07", out[1])
	}
	if out[5] != 0x42 {
		t.Fatalf("minute byte = %#x, want BCD 0x42", out[5])
	}
}

func TestRTCStatusRegisterRoundTrips(t *testing.T) {
	r := NewRTC(stubClock{})
	r.HandleByte(byte(rtcRegStatus1<<4)|0x0, true, false) // write direction
	r.HandleByte(0x02, false, false)
	r.HandleByte(0, false, true)

	r.HandleByte(byte(rtcRegStatus1<<4)|0x1, true, false) // read direction
	got := r.HandleByte(0, false, false)
	if got != 0x02 {
		t.Fatalf("status1 readback = %#x, want 0x02", got)
	}
}

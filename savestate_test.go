package ndscore

import (
	"bytes"
	"testing"
)

func TestSaveStateRoundTripsRegisterFileAndIRQ(t *testing.T) {
	rf := NewRegisterFile()
	rf.R[0] = 0xDEADBEEF
	rf.CPSR.setMode(ModeIRQ)

	irqc := NewIRQController()
	irqc.SetIE(0x1234)
	irqc.SetIME(true)

	w := NewStateWriter()
	if err := w.Put("REGS", encodeRegisterFile(rf)); err != nil {
		t.Fatal(err)
	}
	if err := w.Put("IRQC", encodeIRQController(irqc)); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}

	gotRF := &RegisterFile{}
	if err := r.Get("REGS", decodeRegisterFile(gotRF)); err != nil {
		t.Fatal(err)
	}
	if gotRF.R[0] != 0xDEADBEEF {
		t.Fatalf("R0 = %#x after round trip, want 0xDEADBEEF", gotRF.R[0])
	}

	gotIRQ := NewIRQController()
	if err := r.Get("IRQC", decodeIRQController(gotIRQ)); err != nil {
		t.Fatal(err)
	}
	if gotIRQ.IE() != 0x1234 {
		t.Fatalf("IE = %#x after round trip, want 0x1234", gotIRQ.IE())
	}
}

func TestSaveStateMissingSectionLeavesComponentUntouched(t *testing.T) {
	w := NewStateWriter()
	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	irqc := NewIRQController()
	irqc.SetIE(0x55)
	if err := r.Get("IRQC", decodeIRQController(irqc)); err != nil {
		t.Fatal(err)
	}
	if irqc.IE() != 0x55 {
		t.Fatal("absent section should leave the component's existing state alone")
	}
}

func TestSaveStateRoundTripsDMAController(t *testing.T) {
	irqc := NewIRQController()
	bus := NewBus(16384)
	d := NewDMAController(bus, irqc)
	d.Configure(2, 0x06000000, 0x06800000, 256, AddrIncrement, AddrDecrement, true, true, TriggerHBlank, true, true)

	w := NewStateWriter()
	if err := w.Put("DMA", encodeDMAController(d)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	got := NewDMAController(bus, irqc)
	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Get("DMA", decodeDMAController(got)); err != nil {
		t.Fatal(err)
	}
	ch := got.channels[2]
	if ch.srcAddr != 0x06000000 || ch.dstAddr != 0x06800000 || ch.count != 256 || !ch.repeat || ch.trigger != TriggerHBlank {
		t.Fatalf("DMA channel 2 did not round trip: %+v", ch)
	}
}

func TestSaveStateRoundTripsTimerBank(t *testing.T) {
	sch := NewScheduler()
	irqc := NewIRQController()
	tb := NewTimerBank(sch, irqc)
	tb.SetReload(1, 0xF000)
	tb.SetControl(1, 2, false, true, true)

	w := NewStateWriter()
	if err := w.Put("TIM", encodeTimerBank(tb)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	got := NewTimerBank(NewScheduler(), NewIRQController())
	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Get("TIM", decodeTimerBank(got)); err != nil {
		t.Fatal(err)
	}
	prescaler, _, irqOn, enabled := got.Control(1)
	if prescaler != 2 || !irqOn || !enabled {
		t.Fatalf("timer 1 control did not round trip: prescaler=%d irq=%v enabled=%v", prescaler, irqOn, enabled)
	}
}

func TestSaveStateRoundTripsRTC(t *testing.T) {
	c := NewRTC(stubClock{})
	c.status1 = 0x40
	c.reg = 5
	c.pos = 3

	w := NewStateWriter()
	if err := w.Put("RTC", encodeRTC(c)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	got := NewRTC(stubClock{})
	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Get("RTC", decodeRTC(got)); err != nil {
		t.Fatal(err)
	}
	if got.status1 != 0x40 || got.reg != 5 || got.pos != 3 {
		t.Fatalf("RTC state did not round trip: %+v", got)
	}
}

func TestSaveStateRoundTripsGeometryEngineFIFOAndLighting(t *testing.T) {
	g := NewGeometryEngine()
	g.Push(gxColor, []uint32{0x1234})
	g.lightsEnabled[0] = true
	g.lights[0] = light{dir: [3]float64{0, 0, -1}, color: [3]float64{1, 1, 1}}
	g.curTexFormat = Tex256Color
	g.curTexWidth = 32

	w := NewStateWriter()
	if err := w.Put("GEOM", encodeGeometryEngine(g)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	got := NewGeometryEngine()
	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Get("GEOM", decodeGeometryEngine(got)); err != nil {
		t.Fatal(err)
	}
	if len(got.fifo) != 1 || got.fifo[0].opcode != gxColor || got.fifo[0].params[0] != 0x1234 {
		t.Fatalf("queued FIFO command did not round trip: %+v", got.fifo)
	}
	if !got.lightsEnabled[0] || got.lights[0].color[0] != 1 {
		t.Fatalf("lighting state did not round trip: %+v", got.lights[0])
	}
	if got.curTexFormat != Tex256Color || got.curTexWidth != 32 {
		t.Fatalf("texture latch state did not round trip: format=%v width=%d", got.curTexFormat, got.curTexWidth)
	}
}

func TestSaveStateRoundTripsVRAMBankContents(t *testing.T) {
	v := NewVRAM()
	v.MapBank(0, UsageBGEngineA, 0)
	v.Write8(UsageBGEngineA, 0, 0x42)

	w := NewStateWriter()
	if err := w.Put("VRAM", encodeVRAM(v)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	r, err := ReadStateFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got := NewVRAM()
	if err := r.Get("VRAM", decodeVRAM(got)); err != nil {
		t.Fatal(err)
	}
	if got.Read8(UsageBGEngineA, 0) != 0x42 {
		t.Fatal("expected VRAM bank contents to survive the round trip")
	}
}

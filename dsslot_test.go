package ndscore

import "testing"

func writeCommand(c *CartROM, cmd [8]byte) {
	c.Reset()
	for _, b := range cmd {
		raw := b ^ byte(c.keySeed>>((c.cmdLen%4)*8))
		c.WriteCommand(raw)
	}
}

func TestCartROMDummyCommandReturnsFFFill(t *testing.T) {
	c := NewCartROM(make([]byte, 0x1000), 0)
	writeCommand(c, [8]byte{cmdDummy})
	w := c.ReadResponseWord()
	if w != 0xFFFFFFFF {
		t.Fatalf("dummy command response = %#x, want all-FF", w)
	}
}

func TestCartROMReadDataReturnsROMBytes(t *testing.T) {
	rom := make([]byte, 0x1000)
	rom[0x100] = 0xAB
	rom[0x101] = 0xCD
	c := NewCartROM(rom, 0)
	writeCommand(c, [8]byte{cmdReadData, 0x00, 0x00, 0x01, 0x00})
	w := c.ReadResponseWord()
	if byte(w) != 0xAB || byte(w>>8) != 0xCD {
		t.Fatalf("read-data response = %#x, want low bytes AB CD", w)
	}
}

func TestCartROMChipIDCommands(t *testing.T) {
	c := NewCartROM(make([]byte, 0x1000), 0)
	writeCommand(c, [8]byte{cmdChipID1})
	id1 := c.ReadResponseWord()
	writeCommand(c, [8]byte{cmdChipID2})
	id2 := c.ReadResponseWord()
	if id1 != id2 {
		t.Fatalf("chip id commands disagree: %#x vs %#x", id1, id2)
	}
}

type fakeSPI struct{ lastFirst, lastLast bool }

func (f *fakeSPI) HandleByte(value byte, first, last bool) byte {
	f.lastFirst, f.lastLast = first, last
	return value + 1
}

func TestSaveSPIRoutesToSelectedDevice(t *testing.T) {
	bus := NewSaveSPI()
	dev := &fakeSPI{}
	bus.Attach(0, dev)
	bus.Select(0)
	out := bus.Transfer(0x10, false)
	if out != 0x11 {
		t.Fatalf("transfer result = %#x, want 0x11", out)
	}
	if !dev.lastFirst {
		t.Fatal("expected first byte of transaction to be marked first")
	}
}

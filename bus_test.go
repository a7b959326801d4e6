package ndscore

import "testing"

func TestBusRAMRoundTrip(t *testing.T) {
	buf := make([]byte, 0x1000)
	b := NewBus(0x1000)
	b.MapRAM(0x02000000, 0x02000FFF, buf, uint32(len(buf)), AttrWriteByte|AttrWriteHWord)

	b.Write(0x02000010, 4, 0xCAFEBABE, AccessData)
	got := b.Read(0x02000010, 4, AccessData)
	if got != 0xCAFEBABE {
		t.Fatalf("read back 0x%08X, want 0xCAFEBABE", got)
	}
}

func TestBusUnmappedReadIsOpenBus(t *testing.T) {
	b := NewBus(0x1000)
	if got := b.Read(0x02000000, 4, AccessData); got != 0 {
		t.Fatalf("unmapped read = 0x%08X, want 0", got)
	}
}

func TestBusUnmappedWriteDiscarded(t *testing.T) {
	b := NewBus(0x1000)
	// Must not panic even though nothing is mapped there.
	b.Write(0x02000000, 4, 0x11223344, AccessData)
}

func TestBusMMIODispatch(t *testing.T) {
	b := NewBus(0x1000)
	var lastWrite uint32
	b.MapMMIO(0x04000000, 0x04000FFF, &MMIOHandler{
		Read:  func(addr uint32, width int) uint32 { return 0x42 },
		Write: func(addr uint32, width int, value uint32) { lastWrite = value },
	})
	if got := b.Read(0x04000004, 4, AccessData); got != 0x42 {
		t.Fatalf("MMIO read = 0x%X, want 0x42", got)
	}
	b.Write(0x04000004, 4, 0x99, AccessData)
	if lastWrite != 0x99 {
		t.Fatalf("MMIO write not observed, got %d", lastWrite)
	}
}

func TestBusRemapInvalidatesPriorMapping(t *testing.T) {
	buf1 := make([]byte, 0x1000)
	buf2 := make([]byte, 0x1000)
	buf2[0] = 0xAB

	b := NewBus(0x1000)
	b.MapRAM(0x03000000, 0x03000FFF, buf1, uint32(len(buf1)), AttrWriteByte|AttrWriteHWord)
	b.MapRAM(0x03000000, 0x03000FFF, buf2, uint32(len(buf2)), AttrWriteByte|AttrWriteHWord)

	if got := b.Read(0x03000000, 1, AccessData); got != 0xAB {
		t.Fatalf("remap not observed, got 0x%X", got)
	}
}

func TestBusInvalidateHookFiresOnRemap(t *testing.T) {
	b := NewBus(0x1000)
	var gotStart, gotEnd uint32
	b.SetInvalidateHook(func(start, end uint32) { gotStart, gotEnd = start, end })
	b.MapRAM(0x06000000, 0x06001FFF, make([]byte, 0x2000), 0x2000, AttrWriteByte|AttrWriteHWord)
	if gotStart != 0x06000000 || gotEnd != 0x06001FFF {
		t.Fatalf("invalidate(%#x,%#x), want (0x06000000,0x06001FFF)", gotStart, gotEnd)
	}
}

func TestBusByteWriteRespectsWriteByteAttr(t *testing.T) {
	buf := make([]byte, 0x1000)
	b := NewBus(0x1000)
	// Readable, but not byte-writable (e.g. a region that only accepts
	// halfword/word writes).
	b.MapRAM(0x02000000, 0x02000FFF, buf, uint32(len(buf)), AttrWriteHWord)
	b.Write(0x02000000, 1, 0xFF, AccessData)
	if buf[0] != 0 {
		t.Fatalf("byte write went through despite missing AttrWriteByte")
	}
	b.Write(0x02000000, 2, 0xFFFF, AccessData)
	if buf[0] != 0xFF || buf[1] != 0xFF {
		t.Fatalf("halfword write did not apply")
	}
}

package ndscore

import "testing"

func TestFlashJEDECIDCommand(t *testing.T) {
	f := NewFlash(0x10000, [3]byte{0x20, 0x40, 0x12})
	f.HandleByte(flashCmdRDID, true, false)
	b0 := f.HandleByte(0, false, false)
	b1 := f.HandleByte(0, false, false)
	b2 := f.HandleByte(0, false, false)
	if b0 != 0x20 || b1 != 0x40 || b2 != 0x12 {
		t.Fatalf("jedec id = %02x %02x %02x, want 20 40 12", b0, b1, b2)
	}
}

func TestFlashWriteRequiresWriteEnable(t *testing.T) {
	f := NewFlash(0x1000, [3]byte{})

	f.HandleByte(flashCmdPageWrite, true, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x42, false, false)
	f.HandleByte(0, false, true)
	if f.readAt(0) == 0x42 {
		t.Fatal("page write should be ignored without a prior WREN")
	}

	f.HandleByte(flashCmdWREN, true, false)
	f.HandleByte(0, false, true)

	f.HandleByte(flashCmdPageWrite, true, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x42, false, false)
	f.HandleByte(0, false, true)
	if f.readAt(0) != 0x42 {
		t.Fatalf("expected write-enabled page write to land, got %#x", f.readAt(0))
	}
}

func TestFlashReadReturnsWrittenByte(t *testing.T) {
	f := NewFlash(0x1000, [3]byte{})
	f.LoadContents([]byte{0, 0, 0xAA})

	f.HandleByte(flashCmdRead, true, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x00, false, false)
	f.HandleByte(0x02, false, false)
	b := f.HandleByte(0, false, false)
	if b != 0xAA {
		t.Fatalf("read byte = %#x, want 0xAA", b)
	}
}

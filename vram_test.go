package ndscore

import "testing"

func TestVRAMWriteBroadcastsToAllMappedBanks(t *testing.T) {
	v := NewVRAM()
	v.MapBank(0, UsageBGEngineA, 0) // bank A, 128K
	v.MapBank(1, UsageBGEngineA, 0) // bank B, also mapped at offset 0

	v.Write8(UsageBGEngineA, 0x100, 0b0000_1111)
	if v.banks[0][0x100] != 0b0000_1111 || v.banks[1][0x100] != 0b0000_1111 {
		t.Fatal("write did not broadcast to all mapped banks")
	}
}

func TestVRAMReadIsORofMappedBanks(t *testing.T) {
	v := NewVRAM()
	v.MapBank(0, UsageBGEngineA, 0)
	v.MapBank(1, UsageBGEngineA, 0)

	v.banks[0][0x200] = 0b0000_1100
	v.banks[1][0x200] = 0b0000_0011

	if got := v.Read8(UsageBGEngineA, 0x200); got != 0b0000_1111 {
		t.Fatalf("Read8 = %08b, want OR = %08b", got, 0b0000_1111)
	}
}

func TestVRAMUnmappedUsageReadsZero(t *testing.T) {
	v := NewVRAM()
	if got := v.Read32(UsageTextureImage, 0); got != 0 {
		t.Fatalf("unmapped usage read = %#x, want 0", got)
	}
}

func TestVRAMOffsetWindowsBank(t *testing.T) {
	v := NewVRAM()
	v.MapBank(2, UsageBGEngineA, 0x20000) // bank C placed at +128K within the A window
	v.Write8(UsageBGEngineA, 0x20010, 0x7A)
	if v.banks[2][0x10] != 0x7A {
		t.Fatalf("offset mapping did not land in bank-local address 0x10")
	}
	if got := v.Read8(UsageBGEngineA, 0x10); got != 0 {
		t.Fatalf("read outside bank C's window leaked through: got %#x", got)
	}
}

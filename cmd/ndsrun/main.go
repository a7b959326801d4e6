// main.go - ndsrun: command-line front end for the ndscore emulator

/*
main.go - ndsrun

Mirrors main.go's shape in the teacher repo: parse a small fixed set of
flags, construct peripherals and wire them to the core, then hand control
to whichever front end was selected, GUI or headless. Unlike the
teacher's positional `[-ie32|-m68k] filename` arguments, ndsrun takes
named flags (`-rom`, `-bios7`, `-bios9`, `-firmware`, `-headless`) since
the DS core always needs four independent images rather than one.
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	ndscore "github.com/twindrive/ndscore"
)

type wallClock struct{}

func (wallClock) Now() (year, month, day, weekday, hour, minute, second int) {
	t := time.Now()
	return t.Year() % 100, int(t.Month()), t.Day(), int(t.Weekday()), t.Hour(), t.Minute(), t.Second()
}

func mustReadFile(path string, label string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read %s %q: %v\n", label, path, err)
		os.Exit(1)
	}
	return data
}

func main() {
	romPath := flag.String("rom", "", "path to the NDS ROM image")
	bios7Path := flag.String("bios7", "", "path to the ARM7 BIOS image")
	bios9Path := flag.String("bios9", "", "path to the ARM9 BIOS image")
	firmwarePath := flag.String("firmware", "", "path to the firmware image (optional)")
	headless := flag.Bool("headless", false, "run without a display/audio front end")
	frames := flag.Uint64("frames", 0, "in -headless mode, stop after this many frames (0 = run forever)")
	flag.Parse()

	if *bios9Path == "" || *bios7Path == "" {
		fmt.Println("Usage: ndsrun -bios9 <file> -bios7 <file> [-rom <file>] [-firmware <file>] [-headless]")
		os.Exit(1)
	}

	bios9 := mustReadFile(*bios9Path, "ARM9 BIOS")
	bios7 := mustReadFile(*bios7Path, "ARM7 BIOS")
	firmware := mustReadFile(*firmwarePath, "firmware")
	rom := mustReadFile(*romPath, "ROM")

	var headerID uint32
	if len(rom) >= 0x10 {
		headerID = uint32(rom[0x0C]) | uint32(rom[0x0D])<<8 | uint32(rom[0x0E])<<16 | uint32(rom[0x0F])<<24
	}

	emu, err := ndscore.NewEmulator(bios9, bios7, firmware, rom, nil, headerID, wallClock{})
	if err != nil {
		fmt.Printf("Failed to construct emulator: %v\n", err)
		os.Exit(1)
	}

	if *headless {
		runHeadless(emu, *frames)
		return
	}

	sink, err := newOtoSink(32768)
	if err != nil {
		fmt.Printf("Failed to initialise audio, continuing silently: %v\n", err)
	} else {
		emu.SetAudioSink(sink)
		sink.Start()
		defer sink.Close()
	}

	runDisplay(emu)
}

// runHeadless drives the emulator with no display/audio attached, for CI
// and scripted test-ROM runs; -frames bounds it, otherwise it runs until
// killed, printing a status line whenever stdout is an interactive
// terminal (statusReporter, term.go).
func runHeadless(emu *ndscore.Emulator, limit uint64) {
	report := newStatusReporter()
	var n uint64
	for limit == 0 || n < limit {
		emu.RunFrame()
		n++
		report.tick(n)
	}
}

// audio_channel.go - One of sixteen DS sound channels

/*
audio_channel.go - Sound Channel

Generalises the teacher's single oscillator-per-channel model
(audio_chip.go's Channel, one of square/triangle/sine/noise with an ADSR
envelope) to the DS's per-channel format switch: PCM8, PCM16 and 4-bit
ADPCM sample playback (channels 0-13), plus two special source kinds only
channels 8-13 and 14-15 respectively can select - PSG square wave (8 duty
settings) and PSG white noise, spec 4.8. Every channel still exposes a
volume/pan pair and a hardware envelope-less "volume divider" stepped at
SOUND_CNT's interval, rather than the teacher's full attack/decay/sustain/
release envelope - DS channels have no ADSR, matching spec 4.8's simpler
volume model.
*/

package ndscore

type ChannelFormat uint8

const (
	FormatPCM8 ChannelFormat = iota
	FormatPCM16
	FormatADPCM
	FormatPSG   // square, channels 8-13 only
	FormatNoise // channels 14-15 only
)

type RepeatMode uint8

const (
	RepeatManual RepeatMode = iota
	RepeatLoopInfinite
	RepeatOneShot
)

// adpcmStepTable/adpcmIndexTable are the fixed IMA-ADPCM step and
// index-adjust tables spec 4.8 names (the standard 89-entry IMA step table).
var adpcmStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143, 157, 173, 190, 209, 230,
	253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658, 724, 796, 876, 963,
	1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493,
	10442, 11487, 12635, 13899, 15289, 16818, 18500, 20350, 22385, 24623,
	27086, 29794, 32767,
}

var adpcmIndexTable = [8]int32{-1, -1, -1, -1, 2, 4, 6, 8}

// SoundChannel is one of the sixteen DS sound generator channels.
type SoundChannel struct {
	// Hot fields touched every output sample.
	format    ChannelFormat
	posFrac   uint32 // 16.16 fixed-point sample position for non-PSG rate conversion
	rate      uint32 // 16.16 playback rate (source samples per output sample)
	adpcmPred int32
	adpcmIdx  int32
	psgPhase  uint32
	noiseSR   uint16

	// Source and loop bookkeeping.
	sampleData   []byte
	loopStart    uint32 // in sample units for PCM, nibble-pairs for ADPCM
	totalLength  uint32
	repeat       RepeatMode
	adpcmLoopPred int32
	adpcmLoopIdx  int32

	// Mixer-facing parameters.
	volumeMul uint8 // 0-127
	volumeDiv uint8 // 0-3, right-shift applied after volumeMul
	pan       uint8 // 0-127, 64 = center
	dutyCycle uint8 // PSG only, 0-7 selects one of 8 duty ratios

	enabled bool
	hold    bool // freeze envelope-equivalent output at current sample, spec 4.8
}

func (c *SoundChannel) KeyOn(format ChannelFormat, data []byte, loopStart, totalLength uint32, repeat RepeatMode, rate uint32) {
	c.format = format
	c.sampleData = data
	c.loopStart = loopStart
	c.totalLength = totalLength
	c.repeat = repeat
	c.rate = rate
	c.posFrac = 0
	c.enabled = true
	c.hold = false
	if format == FormatADPCM && len(data) >= 4 {
		header := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		c.adpcmPred = int32(int16(header & 0xFFFF))
		c.adpcmIdx = int32((header >> 16) & 0x7F)
		if c.adpcmIdx > 88 {
			c.adpcmIdx = 88
		}
	}
	if format == FormatPSG {
		c.psgPhase = 0
	}
	if format == FormatNoise {
		c.noiseSR = 0x7FFF
	}
}

func (c *SoundChannel) KeyOff() { c.enabled = false }

// Sample produces one channel output sample (-0x8000..0x7FFF range,
// pre-volume) and advances playback position by one output-sample tick.
func (c *SoundChannel) Sample() int32 {
	if !c.enabled {
		return 0
	}
	var raw int32
	switch c.format {
	case FormatPCM8:
		raw = c.samplePCM8()
	case FormatPCM16:
		raw = c.samplePCM16()
	case FormatADPCM:
		raw = c.sampleADPCM()
	case FormatPSG:
		raw = c.samplePSG()
	case FormatNoise:
		raw = c.sampleNoise()
	}
	if c.hold {
		return raw
	}
	c.advance()
	return raw
}

func (c *SoundChannel) advance() {
	if c.format == FormatPSG || c.format == FormatNoise {
		return // advanced inline by their own sample functions
	}
	c.posFrac += c.rate
	unit := c.sourceUnitIndex()
	if unit >= c.totalLength {
		c.handleEnd()
	}
}

func (c *SoundChannel) sourceUnitIndex() uint32 { return c.posFrac >> 16 }

func (c *SoundChannel) handleEnd() {
	switch c.repeat {
	case RepeatLoopInfinite:
		c.posFrac = c.loopStart << 16
		if c.format == FormatADPCM {
			c.adpcmPred, c.adpcmIdx = c.adpcmLoopPred, c.adpcmLoopIdx
		}
	default:
		c.enabled = false
	}
}

func (c *SoundChannel) samplePCM8() int32 {
	idx := c.sourceUnitIndex()
	if int(idx) >= len(c.sampleData) {
		return 0
	}
	return int32(int8(c.sampleData[idx])) << 8
}

func (c *SoundChannel) samplePCM16() int32 {
	idx := c.sourceUnitIndex()
	byteIdx := idx * 2
	if int(byteIdx+1) >= len(c.sampleData) {
		return 0
	}
	return int32(int16(uint16(c.sampleData[byteIdx]) | uint16(c.sampleData[byteIdx+1])<<8))
}

// sampleADPCM decodes one 4-bit nibble at the current source position.
// Unlike PCM8/16 this mutates predictor state as a side effect of
// reading, so it cannot be read twice for the same position - matching
// real ADPCM decode, which is inherently sequential.
func (c *SoundChannel) sampleADPCM() int32 {
	idx := c.sourceUnitIndex()
	byteOffset := 4 + idx/2
	if int(byteOffset) >= len(c.sampleData) {
		return int32(c.adpcmPred)
	}
	b := c.sampleData[byteOffset]
	var nibble uint8
	if idx%2 == 0 {
		nibble = b & 0xF
	} else {
		nibble = b >> 4
	}

	step := adpcmStepTable[c.adpcmIdx]
	diff := step >> 3
	if nibble&1 != 0 {
		diff += step >> 2
	}
	if nibble&2 != 0 {
		diff += step >> 1
	}
	if nibble&4 != 0 {
		diff += step
	}
	if nibble&8 != 0 {
		c.adpcmPred -= diff
	} else {
		c.adpcmPred += diff
	}
	if c.adpcmPred > 32767 {
		c.adpcmPred = 32767
	}
	if c.adpcmPred < -32768 {
		c.adpcmPred = -32768
	}
	c.adpcmIdx += adpcmIndexTable[nibble&0x7]
	if c.adpcmIdx < 0 {
		c.adpcmIdx = 0
	}
	if c.adpcmIdx > 88 {
		c.adpcmIdx = 88
	}

	if idx == c.loopStart*2 {
		c.adpcmLoopPred, c.adpcmLoopIdx = c.adpcmPred, c.adpcmIdx
	}
	return int32(c.adpcmPred)
}

// dutyThreshold returns the PSG phase fraction (of 8) below which the
// square wave outputs high: dutyCycle 0-7 gives 12.5%..100% in 12.5% steps
// (7 is always high).
func dutyThreshold(duty uint8) uint32 { return uint32(duty) + 1 }

func (c *SoundChannel) samplePSG() int32 {
	c.psgPhase += c.rate
	step := (c.psgPhase >> 16) % 8
	if step < dutyThreshold(c.dutyCycle) {
		return 0x7FFF
	}
	return -0x8000
}

func (c *SoundChannel) sampleNoise() int32 {
	c.psgPhase += c.rate
	for c.psgPhase>>16 > 0 {
		c.psgPhase -= 1 << 16
		bit := (c.noiseSR ^ (c.noiseSR >> 1)) & 1
		c.noiseSR = (c.noiseSR >> 1) | (bit << 14)
	}
	if c.noiseSR&1 != 0 {
		return -0x8000
	}
	return 0x7FFF
}

func (c *SoundChannel) Reset() { *c = SoundChannel{} }

// cpu_thumb_ops.go - 16-bit Thumb instruction decode and execute

/*
Covers the common Thumb format classes: shifted-register move, add/sub,
immediate move/cmp/add/sub, ALU operations, hi-register ops/BX(/BLX),
PC-relative load, register-offset load/store, immediate-offset load/store,
halfword load/store, SP-relative load/store, load address, add-offset-to-
SP, push/pop, multiple load/store, conditional branch, SWI, unconditional
branch, long branch with link. Not implemented: BKPT, the v5TE BLX
(immediate) long-branch form (ARM7 doesn't have it and the ARM9 path here
only models BLX register, see cpu_arm_ops.go).
*/

package ndscore

func (c *Core) execThumb(instr uint16) {
	switch {
	case instr&0xF800 == 0x1800: // add/sub register or immediate (format 2)
		c.thumbAddSub(instr)
	case instr&0xE000 == 0x0000: // move shifted register (format 1)
		c.thumbShift(instr)
	case instr&0xE000 == 0x2000: // move/cmp/add/sub immediate (format 3)
		c.thumbImmediateOp(instr)
	case instr&0xFC00 == 0x4000: // ALU operations (format 4)
		c.thumbALU(instr)
	case instr&0xFC00 == 0x4400: // hi register operations / BX (format 5)
		c.thumbHiRegOps(instr)
	case instr&0xF800 == 0x4800: // PC-relative load (format 6)
		c.thumbPCRelativeLoad(instr)
	case instr&0xF200 == 0x5000: // load/store with register offset (format 7)
		c.thumbRegOffsetTransfer(instr)
	case instr&0xF200 == 0x5200: // load/store sign-extended byte/halfword (format 8)
		c.thumbSignExtTransfer(instr)
	case instr&0xE000 == 0x6000: // load/store with immediate offset (format 9)
		c.thumbImmOffsetTransfer(instr)
	case instr&0xF000 == 0x8000: // load/store halfword (format 10)
		c.thumbHalfwordTransfer(instr)
	case instr&0xF000 == 0x9000: // SP-relative load/store (format 11)
		c.thumbSPRelativeTransfer(instr)
	case instr&0xF000 == 0xA000: // load address (format 12)
		c.thumbLoadAddress(instr)
	case instr&0xFF00 == 0xB000: // add offset to SP (format 13)
		c.thumbAddSPOffset(instr)
	case instr&0xF600 == 0xB400: // push/pop (format 14)
		c.thumbPushPop(instr)
	case instr&0xF000 == 0xC000: // multiple load/store (format 15)
		c.thumbMultipleTransfer(instr)
	case instr&0xFF00 == 0xDF00: // SWI (format 17)
		c.raiseSWI()
	case instr&0xF000 == 0xD000: // conditional branch (format 16)
		c.thumbCondBranch(instr)
	case instr&0xF800 == 0xE000: // unconditional branch (format 18)
		c.thumbBranch(instr)
	case instr&0xF000 == 0xF000: // long branch with link (format 19)
		c.thumbBranchLink(instr)
	default:
		c.raiseUndefined()
	}
}

func (c *Core) thumbShift(instr uint16) {
	op := (instr >> 11) & 0x3
	amount := uint32((instr >> 6) & 0x1F)
	rs := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)
	val := c.Regs.R[rs]
	carry := c.Regs.CPSR.flag(FlagC)

	switch op {
	case 0: // LSL
		if amount == 0 {
			// carry unchanged
		} else if amount < 32 {
			carry = (val>>(32-amount))&1 != 0
			val <<= amount
		} else {
			carry = amount == 32 && val&1 != 0
			val = 0
		}
	case 1: // LSR
		if amount == 0 {
			amount = 32
		}
		if amount < 32 {
			carry = (val>>(amount-1))&1 != 0
			val >>= amount
		} else {
			carry = val&0x80000000 != 0
			val = 0
		}
	case 2: // ASR
		if amount == 0 {
			amount = 32
		}
		if amount < 32 {
			carry = (val>>(amount-1))&1 != 0
			val = uint32(int32(val) >> amount)
		} else {
			if val&0x80000000 != 0 {
				val = 0xFFFFFFFF
				carry = true
			} else {
				val = 0
				carry = false
			}
		}
	}

	c.Regs.R[rd] = val
	c.Regs.CPSR.setFlag(FlagN, val&0x80000000 != 0)
	c.Regs.CPSR.setFlag(FlagZ, val == 0)
	c.Regs.CPSR.setFlag(FlagC, carry)
	c.Bus.Charge(1)
}

func (c *Core) thumbAddSub(instr uint16) {
	immediate := instr&0x0400 != 0
	subtract := instr&0x0200 != 0
	rnOrImm := uint32((instr >> 6) & 0x7)
	rs := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)

	op1 := c.Regs.R[rs]
	var op2 uint32
	if immediate {
		op2 = rnOrImm
	} else {
		op2 = c.Regs.R[rnOrImm]
	}

	var result uint32
	var carry, overflow bool
	if subtract {
		result, carry, overflow = subWithFlags(op1, op2)
	} else {
		result, carry, overflow = addWithFlags(op1, op2)
	}
	c.Regs.R[rd] = result
	c.Regs.CPSR.setFlag(FlagN, result&0x80000000 != 0)
	c.Regs.CPSR.setFlag(FlagZ, result == 0)
	c.Regs.CPSR.setFlag(FlagC, carry)
	c.Regs.CPSR.setFlag(FlagV, overflow)
	c.Bus.Charge(1)
}

func (c *Core) thumbImmediateOp(instr uint16) {
	op := (instr >> 11) & 0x3
	rd := uint32((instr >> 8) & 0x7)
	imm := uint32(instr & 0xFF)

	op1 := c.Regs.R[rd]
	var result uint32
	var carry, overflow bool
	writes := true

	switch op {
	case 0: // MOV
		result = imm
	case 1: // CMP
		result, carry, overflow = subWithFlags(op1, imm)
		writes = false
	case 2: // ADD
		result, carry, overflow = addWithFlags(op1, imm)
	case 3: // SUB
		result, carry, overflow = subWithFlags(op1, imm)
	}

	c.Regs.CPSR.setFlag(FlagN, result&0x80000000 != 0)
	c.Regs.CPSR.setFlag(FlagZ, result == 0)
	if op != 0 {
		c.Regs.CPSR.setFlag(FlagC, carry)
		c.Regs.CPSR.setFlag(FlagV, overflow)
	}
	if writes {
		c.Regs.R[rd] = result
	}
	c.Bus.Charge(1)
}

func (c *Core) thumbALU(instr uint16) {
	op := (instr >> 6) & 0xF
	rs := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)
	op1 := c.Regs.R[rd]
	op2 := c.Regs.R[rs]

	var result uint32
	carry := c.Regs.CPSR.flag(FlagC)
	overflow := c.Regs.CPSR.flag(FlagV)
	writes := true
	setNZ := true

	switch op {
	case 0x0: // AND
		result = op1 & op2
	case 0x1: // EOR
		result = op1 ^ op2
	case 0x2: // LSL
		result, carry = thumbShiftLSL(op1, op2)
	case 0x3: // LSR
		result, carry = thumbShiftLSR(op1, op2)
	case 0x4: // ASR
		result, carry = thumbShiftASR(op1, op2)
	case 0x5: // ADC
		result, carry, overflow = addWithFlags(op1, op2+boolToU32(c.Regs.CPSR.flag(FlagC)))
	case 0x6: // SBC
		result, carry, overflow = subWithFlags(op1, op2+1-boolToU32(c.Regs.CPSR.flag(FlagC)))
	case 0x7: // ROR
		amt := op2 & 0xFF
		if amt == 0 {
			result = op1
		} else {
			amt &= 31
			result = (op1 >> amt) | (op1 << (32 - amt))
			carry = (op1>>(amt-1))&1 != 0
		}
	case 0x8: // TST
		result = op1 & op2
		writes = false
	case 0x9: // NEG
		result, carry, overflow = subWithFlags(0, op2)
	case 0xA: // CMP
		result, carry, overflow = subWithFlags(op1, op2)
		writes = false
	case 0xB: // CMN
		result, carry, overflow = addWithFlags(op1, op2)
		writes = false
	case 0xC: // ORR
		result = op1 | op2
	case 0xD: // MUL
		result = op1 * op2
		setNZ = true
	case 0xE: // BIC
		result = op1 &^ op2
	case 0xF: // MVN
		result = ^op2
	}

	if setNZ {
		c.Regs.CPSR.setFlag(FlagN, result&0x80000000 != 0)
		c.Regs.CPSR.setFlag(FlagZ, result == 0)
	}
	switch op {
	case 0x2, 0x3, 0x4, 0x7:
		c.Regs.CPSR.setFlag(FlagC, carry)
	case 0x5, 0x6, 0x9, 0xA, 0xB:
		c.Regs.CPSR.setFlag(FlagC, carry)
		c.Regs.CPSR.setFlag(FlagV, overflow)
	}
	if writes {
		c.Regs.R[rd] = result
	}
	c.Bus.Charge(1)
}

func thumbShiftLSL(val, amount uint32) (uint32, bool) {
	amount &= 0xFF
	if amount == 0 {
		return val, false
	}
	if amount >= 32 {
		if amount == 32 {
			return 0, val&1 != 0
		}
		return 0, false
	}
	return val << amount, (val>>(32-amount))&1 != 0
}

func thumbShiftLSR(val, amount uint32) (uint32, bool) {
	amount &= 0xFF
	if amount == 0 {
		return val, false
	}
	if amount >= 32 {
		if amount == 32 {
			return 0, val&0x80000000 != 0
		}
		return 0, false
	}
	return val >> amount, (val>>(amount-1))&1 != 0
}

func thumbShiftASR(val, amount uint32) (uint32, bool) {
	amount &= 0xFF
	if amount == 0 {
		return val, false
	}
	if amount >= 32 {
		if val&0x80000000 != 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}
	return uint32(int32(val) >> amount), (val>>(amount-1))&1 != 0
}

func (c *Core) thumbHiRegOps(instr uint16) {
	op := (instr >> 8) & 0x3
	h1 := instr&0x80 != 0
	h2 := instr&0x40 != 0
	rs := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)
	if h1 {
		rd += 8
	}
	if h2 {
		rs += 8
	}

	switch op {
	case 0: // ADD
		c.Regs.R[rd] = c.reg(rd) + c.reg(rs)
		if rd == 15 {
			c.setPC(c.Regs.R[15]&^1, false)
		}
	case 1: // CMP
		result, carry, overflow := subWithFlags(c.reg(rd), c.reg(rs))
		c.Regs.CPSR.setFlag(FlagN, result&0x80000000 != 0)
		c.Regs.CPSR.setFlag(FlagZ, result == 0)
		c.Regs.CPSR.setFlag(FlagC, carry)
		c.Regs.CPSR.setFlag(FlagV, overflow)
	case 2: // MOV
		c.setReg(rd, c.reg(rs))
	case 3: // BX / BLX
		if h1 && c.Variant == VariantArm9 {
			c.Regs.R[14] = c.Regs.R[15] - 1
		}
		c.setPC(c.reg(rs)&^1, true)
	}
	c.Bus.Charge(1)
}

func (c *Core) thumbPCRelativeLoad(instr uint16) {
	rd := uint32((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) * 4
	base := (c.Regs.R[15] &^ 3)
	c.Regs.R[rd] = c.Bus.Read32(base + imm)
	c.Bus.Charge(3)
}

func (c *Core) thumbRegOffsetTransfer(instr uint16) {
	load := instr&0x0800 != 0
	byteAccess := instr&0x0400 != 0
	ro := uint32((instr >> 6) & 0x7)
	rb := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)
	addr := c.Regs.R[rb] + c.Regs.R[ro]

	if load {
		if byteAccess {
			c.Regs.R[rd] = uint32(c.Bus.Read8(addr))
		} else {
			c.Regs.R[rd] = c.readAligned32(addr)
		}
	} else {
		if byteAccess {
			c.Bus.Write8(addr, uint8(c.Regs.R[rd]))
		} else {
			c.Bus.Write32(addr&^3, c.Regs.R[rd])
		}
	}
	c.Bus.Charge(3)
}

func (c *Core) thumbSignExtTransfer(instr uint16) {
	hFlag := instr&0x0800 != 0
	sFlag := instr&0x0400 != 0
	ro := uint32((instr >> 6) & 0x7)
	rb := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)
	addr := c.Regs.R[rb] + c.Regs.R[ro]

	switch {
	case !sFlag && !hFlag: // STRH
		c.Bus.Write16(addr&^1, uint16(c.Regs.R[rd]))
	case !sFlag && hFlag: // LDRH
		c.Regs.R[rd] = uint32(c.Bus.Read16(addr &^ 1))
	case sFlag && !hFlag: // LDSB
		c.Regs.R[rd] = uint32(int32(int8(c.Bus.Read8(addr))))
	default: // LDSH
		c.Regs.R[rd] = uint32(int32(int16(c.Bus.Read16(addr &^ 1))))
	}
	c.Bus.Charge(3)
}

func (c *Core) thumbImmOffsetTransfer(instr uint16) {
	byteAccess := instr&0x1000 != 0
	load := instr&0x0800 != 0
	imm := uint32((instr >> 6) & 0x1F)
	rb := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)

	var addr uint32
	if byteAccess {
		addr = c.Regs.R[rb] + imm
	} else {
		addr = c.Regs.R[rb] + imm*4
	}

	if load {
		if byteAccess {
			c.Regs.R[rd] = uint32(c.Bus.Read8(addr))
		} else {
			c.Regs.R[rd] = c.readAligned32(addr)
		}
	} else {
		if byteAccess {
			c.Bus.Write8(addr, uint8(c.Regs.R[rd]))
		} else {
			c.Bus.Write32(addr&^3, c.Regs.R[rd])
		}
	}
	c.Bus.Charge(3)
}

func (c *Core) thumbHalfwordTransfer(instr uint16) {
	load := instr&0x0800 != 0
	imm := uint32((instr>>6)&0x1F) * 2
	rb := uint32((instr >> 3) & 0x7)
	rd := uint32(instr & 0x7)
	addr := c.Regs.R[rb] + imm

	if load {
		c.Regs.R[rd] = uint32(c.Bus.Read16(addr &^ 1))
	} else {
		c.Bus.Write16(addr&^1, uint16(c.Regs.R[rd]))
	}
	c.Bus.Charge(3)
}

func (c *Core) thumbSPRelativeTransfer(instr uint16) {
	load := instr&0x0800 != 0
	rd := uint32((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) * 4
	addr := c.Regs.R[13] + imm

	if load {
		c.Regs.R[rd] = c.readAligned32(addr)
	} else {
		c.Bus.Write32(addr&^3, c.Regs.R[rd])
	}
	c.Bus.Charge(3)
}

func (c *Core) thumbLoadAddress(instr uint16) {
	usesSP := instr&0x0800 != 0
	rd := uint32((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) * 4
	var base uint32
	if usesSP {
		base = c.Regs.R[13]
	} else {
		base = c.Regs.R[15] &^ 3
	}
	c.Regs.R[rd] = base + imm
	c.Bus.Charge(1)
}

func (c *Core) thumbAddSPOffset(instr uint16) {
	neg := instr&0x80 != 0
	imm := uint32(instr&0x7F) * 4
	if neg {
		c.Regs.R[13] -= imm
	} else {
		c.Regs.R[13] += imm
	}
	c.Bus.Charge(1)
}

func (c *Core) thumbPushPop(instr uint16) {
	pop := instr&0x0800 != 0
	includePCLR := instr&0x0100 != 0
	regList := uint8(instr & 0xFF)

	if pop {
		addr := c.Regs.R[13]
		for i := 0; i < 8; i++ {
			if regList&(1<<i) != 0 {
				c.Regs.R[i] = c.Bus.Read32(addr)
				addr += 4
			}
		}
		if includePCLR {
			val := c.Bus.Read32(addr)
			addr += 4
			c.setPC(val&^1, true)
		}
		c.Regs.R[13] = addr
	} else {
		count := 0
		for i := 0; i < 8; i++ {
			if regList&(1<<i) != 0 {
				count++
			}
		}
		if includePCLR {
			count++
		}
		addr := c.Regs.R[13] - uint32(count)*4
		c.Regs.R[13] = addr
		for i := 0; i < 8; i++ {
			if regList&(1<<i) != 0 {
				c.Bus.Write32(addr, c.Regs.R[i])
				addr += 4
			}
		}
		if includePCLR {
			c.Bus.Write32(addr, c.Regs.R[14])
		}
	}
	c.Bus.Charge(3)
}

func (c *Core) thumbMultipleTransfer(instr uint16) {
	load := instr&0x0800 != 0
	rb := uint32((instr >> 8) & 0x7)
	regList := uint8(instr & 0xFF)
	addr := c.Regs.R[rb]

	for i := 0; i < 8; i++ {
		if regList&(1<<i) != 0 {
			if load {
				c.Regs.R[i] = c.Bus.Read32(addr)
			} else {
				c.Bus.Write32(addr, c.Regs.R[i])
			}
			addr += 4
		}
	}
	c.Regs.R[rb] = addr
	c.Bus.Charge(3)
}

func (c *Core) thumbCondBranch(instr uint16) {
	cond := uint32((instr >> 8) & 0xF)
	if !condPasses(c.Regs.CPSR, cond) {
		c.Bus.Charge(1)
		return
	}
	offset := int32(int8(instr&0xFF)) * 2
	target := uint32(int32(c.Regs.R[15]) + offset)
	c.setPC(target, false)
	c.Bus.Charge(3)
}

func (c *Core) thumbBranch(instr uint16) {
	offset := (int32(instr&0x7FF) << 21) >> 20 // sign-extend 11-bit halfword offset to a byte offset
	target := uint32(int32(c.Regs.R[15]) + offset)
	c.setPC(target, false)
	c.Bus.Charge(3)
}

func (c *Core) thumbBranchLink(instr uint16) {
	low := instr&0x0800 != 0
	offset := uint32(instr & 0x7FF)
	if !low {
		signed := (int32(offset) << 21) >> 9 // bits [22:11] of a 23-bit signed offset
		c.Regs.R[14] = uint32(int32(c.Regs.R[15]) + signed)
		c.Bus.Charge(1)
		return
	}
	target := c.Regs.R[14] + offset*2
	c.Regs.R[14] = (c.Regs.R[15] - 2) | 1
	c.setPC(target, false)
	c.Bus.Charge(3)
}

package vm

import (
	"github.com/holiman/uint256"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/crypto"
)

const maxCallDepth = 1024

// frame is one interpreter activation: its own code, program counter,
// stack, and memory. CALL/CREATE recurse into Host.Call, which in turn
// calls back into Execute for a fresh frame — the interpreter itself never
// manages a call stack of frames directly.
type frame struct {
	code   []byte
	pc     uint64
	stack  *stack
	mem    *memory
	gas    uint64
	msg    *Message
	self   common.Address
	host   Host
}

// Execute runs code as the given message's recipient (self) against host,
// returning the outcome. self is the contract whose storage/balance SLOAD,
// SSTORE, BALANCE, and ADDRESS observe — it is msg.Destination for a CALL
// and the newly derived address for a CREATE.
func Execute(host Host, msg *Message, self common.Address, code []byte) *Result {
	if msg.Depth > maxCallDepth {
		return &Result{Status: StatusFailure}
	}
	f := &frame{
		code:  code,
		stack: newStack(),
		mem:   newMemory(),
		gas:   msg.Gas,
		msg:   msg,
		self:  self,
		host:  host,
	}
	return f.run()
}

func (f *frame) run() *Result {
	for {
		if f.pc >= uint64(len(f.code)) {
			return &Result{Status: StatusSuccess, GasLeft: f.gas}
		}
		op := OpCode(f.code[f.pc])

		cost := gasCost(op)
		if f.gas < cost {
			return &Result{Status: StatusFailure, Output: []byte("out of gas")}
		}

		res, advance, done := f.step(op)
		if done {
			if res != nil {
				return res
			}
			return &Result{Status: StatusFailure}
		}
		f.gas -= cost
		if advance {
			f.pc++
		}
	}
}

// step executes one opcode. It returns (result, advancePC, terminal).
// terminal=true means execution of this frame is over and result (possibly
// nil, meaning generic failure) should be returned by run.
func (f *frame) step(op OpCode) (*Result, bool, bool) {
	switch {
	case isPush(op):
		n := pushSize(op)
		end := f.pc + 1 + uint64(n)
		var buf [32]byte
		var src []byte
		if end <= uint64(len(f.code)) {
			src = f.code[f.pc+1 : end]
		} else if f.pc+1 < uint64(len(f.code)) {
			src = f.code[f.pc+1:]
		}
		copy(buf[32-n:], src)
		var v uint256.Int
		v.SetBytes(buf[:])
		f.stack.push(&v)
		f.pc += uint64(1 + n)
		return nil, false, false
	case isDup(op):
		f.stack.dup(dupDepth(op))
		return nil, true, false
	case isSwap(op):
		f.stack.swap(swapDepth(op))
		return nil, true, false
	case isLog(op):
		n := logTopics(op)
		offset := f.stack.pop()
		size := f.stack.pop()
		topics := make([]common.Hash, n)
		for i := 0; i < n; i++ {
			t := f.stack.pop()
			b := t.Bytes32()
			topics[i] = common.BytesToHash(b[:])
		}
		data := f.mem.get(offset.Uint64(), size.Uint64())
		f.host.EmitLog(f.self, topics, data)
		return nil, true, false
	}

	switch op {
	case STOP:
		return &Result{Status: StatusSuccess, GasLeft: f.gas}, false, true

	case ADD:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Add(&a, &b)
		f.stack.push(&r)
	case MUL:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Mul(&a, &b)
		f.stack.push(&r)
	case SUB:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Sub(&a, &b)
		f.stack.push(&r)
	case DIV:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Div(&a, &b)
		f.stack.push(&r)
	case MOD:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Mod(&a, &b)
		f.stack.push(&r)
	case ADDMOD:
		a, b, m := f.stack.pop(), f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.AddMod(&a, &b, &m)
		f.stack.push(&r)
	case MULMOD:
		a, b, m := f.stack.pop(), f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.MulMod(&a, &b, &m)
		f.stack.push(&r)
	case EXP:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Exp(&a, &b)
		f.stack.push(&r)
	case SIGNEXTEND:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.ExtendSign(&b, &a)
		f.stack.push(&r)

	case LT:
		a, b := f.stack.pop(), f.stack.pop()
		f.pushBool(a.Lt(&b))
	case GT:
		a, b := f.stack.pop(), f.stack.pop()
		f.pushBool(a.Gt(&b))
	case EQ:
		a, b := f.stack.pop(), f.stack.pop()
		f.pushBool(a.Eq(&b))
	case ISZERO:
		a := f.stack.pop()
		f.pushBool(a.IsZero())
	case AND:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.And(&a, &b)
		f.stack.push(&r)
	case OR:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Or(&a, &b)
		f.stack.push(&r)
	case XOR:
		a, b := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Xor(&a, &b)
		f.stack.push(&r)
	case NOT:
		a := f.stack.pop()
		var r uint256.Int
		r.Not(&a)
		f.stack.push(&r)
	case BYTE:
		i, x := f.stack.pop(), f.stack.pop()
		b := x.Bytes32()
		if i.LtUint64(32) {
			var z uint256.Int
			z.SetUint64(uint64(b[i.Uint64()]))
			f.stack.push(&z)
		} else {
			var z uint256.Int
			f.stack.push(&z)
		}
	case SHL:
		shift, val := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Lsh(&val, uint(shift.Uint64()))
		if shift.GtUint64(255) {
			r.Clear()
		}
		f.stack.push(&r)
	case SHR:
		shift, val := f.stack.pop(), f.stack.pop()
		var r uint256.Int
		r.Rsh(&val, uint(shift.Uint64()))
		if shift.GtUint64(255) {
			r.Clear()
		}
		f.stack.push(&r)

	case SHA3:
		offset, size := f.stack.pop(), f.stack.pop()
		data := f.mem.get(offset.Uint64(), size.Uint64())
		h := crypto.Keccak256(data)
		var r uint256.Int
		r.SetBytes(h[:])
		f.stack.push(&r)

	case ADDRESS:
		f.pushAddress(f.self)
	case BALANCE:
		a := f.stack.pop()
		addr := addressFromWord(&a)
		bal := f.host.GetBalance(addr)
		var r uint256.Int
		r.SetBytes(bal.Bytes32()[:])
		f.stack.push(&r)
	case ORIGIN:
		f.pushAddress(f.host.GetTxContext().Origin)
	case CALLER:
		f.pushAddress(f.msg.Sender)
	case CALLVALUE:
		var r uint256.Int
		b := f.msg.Value.Bytes32()
		r.SetBytes(b[:])
		f.stack.push(&r)
	case CALLDATALOAD:
		off := f.stack.pop()
		var buf [32]byte
		o := off.Uint64()
		for i := 0; i < 32; i++ {
			idx := o + uint64(i)
			if idx < uint64(len(f.msg.Input)) {
				buf[i] = f.msg.Input[idx]
			}
		}
		var r uint256.Int
		r.SetBytes(buf[:])
		f.stack.push(&r)
	case CALLDATASIZE:
		var r uint256.Int
		r.SetUint64(uint64(len(f.msg.Input)))
		f.stack.push(&r)
	case CALLDATACOPY:
		destOff, off, size := f.stack.pop(), f.stack.pop(), f.stack.pop()
		data := readPadded(f.msg.Input, off.Uint64(), size.Uint64())
		f.mem.set(destOff.Uint64(), data)
	case CODESIZE:
		var r uint256.Int
		r.SetUint64(uint64(len(f.code)))
		f.stack.push(&r)
	case CODECOPY:
		destOff, off, size := f.stack.pop(), f.stack.pop(), f.stack.pop()
		data := readPadded(f.code, off.Uint64(), size.Uint64())
		f.mem.set(destOff.Uint64(), data)
	case EXTCODESIZE:
		a := f.stack.pop()
		addr := addressFromWord(&a)
		var r uint256.Int
		r.SetUint64(uint64(f.host.GetCodeSize(addr)))
		f.stack.push(&r)
	case EXTCODEHASH:
		a := f.stack.pop()
		addr := addressFromWord(&a)
		h := f.host.GetCodeHash(addr)
		var r uint256.Int
		r.SetBytes(h[:])
		f.stack.push(&r)
	case BLOCKHASH:
		d := f.stack.pop()
		h := f.host.GetBlockHash(d.Uint64())
		var r uint256.Int
		r.SetBytes(h[:])
		f.stack.push(&r)
	case COINBASE:
		f.pushAddress(f.host.GetTxContext().Coinbase)
	case TIMESTAMP:
		var r uint256.Int
		r.SetUint64(uint64(f.host.GetTxContext().Timestamp))
		f.stack.push(&r)
	case NUMBER:
		var r uint256.Int
		r.SetUint64(f.host.GetTxContext().BlockDepth)
		f.stack.push(&r)
	case DIFFICULTY:
		var r uint256.Int
		d := f.host.GetTxContext().Difficulty
		r.SetBytes(d[:])
		f.stack.push(&r)

	case POP:
		f.stack.pop()
	case MLOAD:
		off := f.stack.pop()
		data := f.mem.get(off.Uint64(), 32)
		var r uint256.Int
		r.SetBytes(data)
		f.stack.push(&r)
	case MSTORE:
		off, val := f.stack.pop(), f.stack.pop()
		f.mem.set32(off.Uint64(), val.Bytes32())
	case MSTORE8:
		off, val := f.stack.pop(), f.stack.pop()
		f.mem.set8(off.Uint64(), byte(val.Uint64()))
	case SLOAD:
		k := f.stack.pop()
		kb := k.Bytes32()
		v := f.host.GetStorage(f.self, common.BytesToHash(kb[:]))
		var r uint256.Int
		r.SetBytes(v[:])
		f.stack.push(&r)
	case SSTORE:
		if f.msg.Flags&FlagStatic != 0 {
			return Failed("sstore in static call"), false, true
		}
		k, v := f.stack.pop(), f.stack.pop()
		kb := k.Bytes32()
		f.host.SetStorage(f.self, common.BytesToHash(kb[:]), v.Bytes32())
	case JUMP:
		dest := f.stack.pop()
		if !f.validJumpDest(dest.Uint64()) {
			return Failed("invalid jump destination"), false, true
		}
		f.pc = dest.Uint64()
		return nil, false, false
	case JUMPI:
		dest, cond := f.stack.pop(), f.stack.pop()
		if !cond.IsZero() {
			if !f.validJumpDest(dest.Uint64()) {
				return Failed("invalid jump destination"), false, true
			}
			f.pc = dest.Uint64()
			return nil, false, false
		}
	case PC:
		var r uint256.Int
		r.SetUint64(f.pc)
		f.stack.push(&r)
	case MSIZE:
		var r uint256.Int
		r.SetUint64(uint64(f.mem.len()))
		f.stack.push(&r)
	case GAS:
		var r uint256.Int
		r.SetUint64(f.gas)
		f.stack.push(&r)
	case JUMPDEST:
		// no-op marker

	case CREATE:
		if f.msg.Flags&FlagStatic != 0 {
			return Failed("create in static call"), false, true
		}
		value, off, size := f.stack.pop(), f.stack.pop(), f.stack.pop()
		initCode := f.mem.get(off.Uint64(), size.Uint64())
		bal := common.BalanceFromBig(value.Bytes32()[:])
		res := f.host.Call(&Message{
			Kind:   CallKindCreate,
			Depth:  f.msg.Depth + 1,
			Gas:    f.gas,
			Sender: f.self,
			Value:  bal,
			Input:  initCode,
		})
		if res.Status != StatusSuccess {
			var z uint256.Int
			f.stack.push(&z)
		} else {
			f.pushAddress(res.CreateAddress)
		}
	case CALL:
		gasArg, addrW, value, argOff, argSize, retOff, retSize :=
			f.stack.pop(), f.stack.pop(), f.stack.pop(), f.stack.pop(), f.stack.pop(), f.stack.pop(), f.stack.pop()
		addr := addressFromWord(&addrW)
		input := f.mem.get(argOff.Uint64(), argSize.Uint64())
		bal := common.BalanceFromBig(value.Bytes32()[:])
		res := f.host.Call(&Message{
			Kind:        CallKindCall,
			Flags:       f.msg.Flags,
			Depth:       f.msg.Depth + 1,
			Gas:         gasArg.Uint64(),
			Destination: addr,
			Sender:      f.self,
			Value:       bal,
			Input:       input,
		})
		f.mem.set(retOff.Uint64(), padOrTrim(res.Output, retSize.Uint64()))
		f.pushBool(res.Status == StatusSuccess)
	case RETURN:
		off, size := f.stack.pop(), f.stack.pop()
		out := f.mem.get(off.Uint64(), size.Uint64())
		return &Result{Status: StatusSuccess, GasLeft: f.gas, Output: out}, false, true
	case REVERT:
		off, size := f.stack.pop(), f.stack.pop()
		out := f.mem.get(off.Uint64(), size.Uint64())
		return &Result{Status: StatusRevert, GasLeft: f.gas, Output: out}, false, true
	case INVALID:
		return &Result{Status: StatusFailure}, false, true
	case SELFDESTRUCT:
		if f.msg.Flags&FlagStatic != 0 {
			return Failed("selfdestruct in static call"), false, true
		}
		a := f.stack.pop()
		beneficiary := addressFromWord(&a)
		f.host.SelfDestruct(f.self, beneficiary)
		return &Result{Status: StatusSuccess, GasLeft: f.gas}, false, true

	default:
		return &Result{Status: StatusFailure}, false, true
	}
	return nil, true, false
}

func (f *frame) pushBool(b bool) {
	var r uint256.Int
	if b {
		r.SetOne()
	}
	f.stack.push(&r)
}

func (f *frame) pushAddress(a common.Address) {
	var r uint256.Int
	var buf [32]byte
	copy(buf[32-common.AddressLength:], a[:])
	r.SetBytes(buf[:])
	f.stack.push(&r)
}

// validJumpDest requires dest to point directly at a JUMPDEST opcode that
// is not itself inside a PUSH's immediate-data span.
func (f *frame) validJumpDest(dest uint64) bool {
	if dest >= uint64(len(f.code)) {
		return false
	}
	if OpCode(f.code[dest]) != JUMPDEST {
		return false
	}
	i := uint64(0)
	for i < dest {
		op := OpCode(f.code[i])
		if isPush(op) {
			i += uint64(1 + pushSize(op))
		} else {
			i++
		}
	}
	return i == dest
}

func addressFromWord(w *uint256.Int) common.Address {
	b := w.Bytes32()
	return common.BytesToAddress(b[32-common.AddressLength:])
}

func readPadded(src []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	for i := uint64(0); i < size; i++ {
		idx := offset + i
		if idx < uint64(len(src)) {
			out[i] = src[idx]
		}
	}
	return out
}

func padOrTrim(b []byte, size uint64) []byte {
	out := make([]byte, size)
	copy(out, b)
	return out
}

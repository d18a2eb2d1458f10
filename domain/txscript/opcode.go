// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// These constants are the values of the opcodes this package understands.
// Opcodes that are not listed here are still tokenized, but render as
// OP_UNKNOWN and make a script nonstandard.
const (
	OP_0                   = 0x00 // 0
	OP_FALSE               = 0x00 // 0 - AKA OP_0
	OP_DATA_1              = 0x01 // 1
	OP_DATA_20             = 0x14 // 20
	OP_DATA_32             = 0x20 // 32
	OP_DATA_65             = 0x41 // 65
	OP_DATA_75             = 0x4b // 75
	OP_PUSHDATA1           = 0x4c // 76
	OP_PUSHDATA2           = 0x4d // 77
	OP_PUSHDATA4           = 0x4e // 78
	OP_1NEGATE             = 0x4f // 79
	OP_RESERVED            = 0x50 // 80
	OP_1                   = 0x51 // 81 - AKA OP_TRUE
	OP_TRUE                = 0x51 // 81
	OP_16                  = 0x60 // 96
	OP_NOP                 = 0x61 // 97
	OP_VERIFY              = 0x69 // 105
	OP_RETURN              = 0x6a // 106
	OP_DUP                 = 0x76 // 118
	OP_EQUAL               = 0x87 // 135
	OP_EQUALVERIFY         = 0x88 // 136
	OP_HASH160             = 0xa9 // 169
	OP_CHECKSIG            = 0xac // 172
	OP_CHECKSIGVERIFY      = 0xad // 173
	OP_CHECKMULTISIG       = 0xae // 174
	OP_CHECKMULTISIGVERIFY = 0xaf // 175
)

// opcodeNames maps the named opcodes to the names used by DisasmString.
var opcodeNames = map[byte]string{
	OP_PUSHDATA1:           "OP_PUSHDATA1",
	OP_PUSHDATA2:           "OP_PUSHDATA2",
	OP_PUSHDATA4:           "OP_PUSHDATA4",
	OP_RESERVED:            "OP_RESERVED",
	OP_NOP:                 "OP_NOP",
	OP_VERIFY:              "OP_VERIFY",
	OP_RETURN:              "OP_RETURN",
	OP_DUP:                 "OP_DUP",
	OP_EQUAL:               "OP_EQUAL",
	OP_EQUALVERIFY:         "OP_EQUALVERIFY",
	OP_HASH160:             "OP_HASH160",
	OP_CHECKSIG:            "OP_CHECKSIG",
	OP_CHECKSIGVERIFY:      "OP_CHECKSIGVERIFY",
	OP_CHECKMULTISIG:       "OP_CHECKMULTISIG",
	OP_CHECKMULTISIGVERIFY: "OP_CHECKMULTISIGVERIFY",
}

// parsedOpcode represents an opcode that has been parsed and includes any
// potential data associated with it.
type parsedOpcode struct {
	opcode byte
	data   []byte
}

// isPush returns whether the opcode pushes data (including the small
// integer opcodes) onto the stack.
func (pop *parsedOpcode) isPush() bool {
	return pop.opcode <= OP_16
}

// isDataPush returns whether the opcode pushes an explicit run of bytes.
func (pop *parsedOpcode) isDataPush() bool {
	return pop.opcode <= OP_PUSHDATA4
}

// bytes returns any data associated with the opcode encoded as it would be
// in a script.
func (pop *parsedOpcode) bytes() []byte {
	switch {
	case pop.opcode == OP_0 || pop.opcode > OP_PUSHDATA4:
		return []byte{pop.opcode}
	case pop.opcode <= OP_DATA_75:
		return append([]byte{pop.opcode}, pop.data...)
	}

	var prefix []byte
	switch pop.opcode {
	case OP_PUSHDATA1:
		prefix = []byte{pop.opcode, byte(len(pop.data))}
	case OP_PUSHDATA2:
		prefix = make([]byte, 3)
		prefix[0] = pop.opcode
		binary.LittleEndian.PutUint16(prefix[1:], uint16(len(pop.data)))
	default:
		prefix = make([]byte, 5)
		prefix[0] = pop.opcode
		binary.LittleEndian.PutUint32(prefix[1:], uint32(len(pop.data)))
	}
	return append(prefix, pop.data...)
}

// print returns a human-readable string representation of the opcode for
// use in script disassembly.
func (pop *parsedOpcode) print() string {
	switch {
	case pop.opcode == OP_0:
		return "0"
	case pop.opcode == OP_1NEGATE:
		return "-1"
	case pop.opcode >= OP_1 && pop.opcode <= OP_16:
		return fmt.Sprintf("%d", pop.opcode-(OP_1-1))
	case pop.isDataPush():
		return hex.EncodeToString(pop.data)
	}
	if name, ok := opcodeNames[pop.opcode]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN%d", pop.opcode)
}

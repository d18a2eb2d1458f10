// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// parseScript tokenizes script into parsed opcodes. On failure it returns the
// opcodes parsed before the malformed one along with the error.
func parseScript(script []byte) ([]parsedOpcode, error) {
	retScript := make([]parsedOpcode, 0, len(script))
	for i := 0; i < len(script); {
		opcode := script[i]
		i++

		var dataLen int
		switch {
		case opcode >= OP_DATA_1 && opcode <= OP_DATA_75:
			dataLen = int(opcode)

		case opcode == OP_PUSHDATA1 || opcode == OP_PUSHDATA2 || opcode == OP_PUSHDATA4:
			prefixLen := pushDataPrefixLen(opcode)
			if len(script)-i < prefixLen {
				str := fmt.Sprintf("opcode 0x%02x requires %d bytes, but script "+
					"only has %d remaining", opcode, prefixLen, len(script)-i)
				return retScript, scriptError(ErrMalformedPush, str)
			}
			var length uint32
			switch prefixLen {
			case 1:
				length = uint32(script[i])
			case 2:
				length = uint32(binary.LittleEndian.Uint16(script[i:]))
			default:
				length = binary.LittleEndian.Uint32(script[i:])
			}
			if length > MaxScriptSize {
				str := fmt.Sprintf("opcode 0x%02x pushes %d bytes, which "+
					"exceeds the max script size of %d", opcode, length, MaxScriptSize)
				return retScript, scriptError(ErrMalformedPush, str)
			}
			dataLen = int(length)
			i += prefixLen

		default:
			retScript = append(retScript, parsedOpcode{opcode: opcode})
			continue
		}

		if len(script)-i < dataLen {
			str := fmt.Sprintf("opcode 0x%02x pushes %d bytes, but script "+
				"only has %d remaining", opcode, dataLen, len(script)-i)
			return retScript, scriptError(ErrMalformedPush, str)
		}
		retScript = append(retScript, parsedOpcode{opcode: opcode, data: script[i : i+dataLen]})
		i += dataLen
	}
	return retScript, nil
}

func pushDataPrefixLen(opcode byte) int {
	switch opcode {
	case OP_PUSHDATA1:
		return 1
	case OP_PUSHDATA2:
		return 2
	}
	return 4
}

// unparseScript reverses the action of parseScript and returns the
// parsedOpcodes as a list of bytes.
func unparseScript(pops []parsedOpcode) []byte {
	script := make([]byte, 0, len(pops))
	for i := range pops {
		script = append(script, pops[i].bytes()...)
	}
	return script
}

// isPushOnly returns true if the script only pushes data, false otherwise.
func isPushOnly(pops []parsedOpcode) bool {
	for i := range pops {
		if !pops[i].isPush() {
			return false
		}
	}
	return true
}

// IsPushOnlyScript returns whether or not the passed script only pushes data.
//
// False will be returned when the script does not parse.
func IsPushOnlyScript(script []byte) bool {
	pops, err := parseScript(script)
	if err != nil {
		return false
	}
	return isPushOnly(pops)
}

// getSigOpCount counts the signature operations of the opcodes. Multisig
// opcodes always count as MaxPubKeysPerMultiSig operations.
func getSigOpCount(pops []parsedOpcode) int {
	nSigs := 0
	for _, pop := range pops {
		switch pop.opcode {
		case OP_CHECKSIG, OP_CHECKSIGVERIFY:
			nSigs++
		case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
			nSigs += MaxPubKeysPerMultiSig
		}
	}
	return nSigs
}

// GetSigOpCount provides a quick count of the number of signature operations
// in a script. If the script fails to parse, then the count up to the point
// of failure is returned.
func GetSigOpCount(script []byte) int {
	// Don't check error since parseScript returns the parsed-up-to-error
	// list of pops.
	pops, _ := parseScript(script)
	return getSigOpCount(pops)
}

// DisasmString formats a disassembled script for one line printing. When the
// script fails to parse, the returned string will contain the disassembled
// script up to the point the failure occurred along with the string '[error]'
// appended. In addition, the reason the script failed to parse is returned
// if the caller wants more information about the failure.
func DisasmString(script []byte) (string, error) {
	pops, err := parseScript(script)
	parts := make([]string, 0, len(pops)+1)
	for i := range pops {
		parts = append(parts, pops[i].print())
	}
	if err != nil {
		parts = append(parts, "[error]")
	}
	return strings.Join(parts, " "), err
}

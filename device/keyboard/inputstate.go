// Package keyboard holds the HID keyboard usages understood by the controller
// and the N-key rollover report the pipeline emits for them.
package keyboard

// ReportSize is the length of a keyboard input report.
const ReportSize = 34

// InputState is the set of keys currently held on one keyboard output.
// Internally uses a 256-bit bitmap for N-key rollover support.
type InputState struct {
	Modifiers uint8     // bit 0-7: LCtrl, LShift, LAlt, LGui, RCtrl, RShift, RAlt, RGui
	KeyBitmap [32]uint8 // 256 bits for HID usage codes 0x00-0xFF
}

// Press marks code as held. Modifier usages set their modifier bit instead of
// a bitmap bit. It reports whether the state changed.
func (st *InputState) Press(code uint8) bool {
	if IsModifier(code) {
		bit := uint8(1) << (code - KeyLeftCtrl)
		if st.Modifiers&bit != 0 {
			return false
		}
		st.Modifiers |= bit
		return true
	}
	if st.Pressed(code) {
		return false
	}
	st.KeyBitmap[code/8] |= 1 << (code % 8)
	return true
}

// Release clears code. It reports whether the state changed.
func (st *InputState) Release(code uint8) bool {
	if IsModifier(code) {
		bit := uint8(1) << (code - KeyLeftCtrl)
		if st.Modifiers&bit == 0 {
			return false
		}
		st.Modifiers &^= bit
		return true
	}
	if !st.Pressed(code) {
		return false
	}
	st.KeyBitmap[code/8] &^= 1 << (code % 8)
	return true
}

// Pressed reports whether code is currently held.
func (st *InputState) Pressed(code uint8) bool {
	if IsModifier(code) {
		return st.Modifiers&(1<<(code-KeyLeftCtrl)) != 0
	}
	return st.KeyBitmap[code/8]&(1<<(code%8)) != 0
}

// Reset releases every key and modifier.
func (st *InputState) Reset() {
	*st = InputState{}
}

// Keys lists the held non-modifier usages in ascending order.
func (st *InputState) Keys() []uint8 {
	var keys []uint8
	for i := 0; i < 256; i++ {
		if st.KeyBitmap[i/8]&(1<<uint(i%8)) != 0 {
			keys = append(keys, uint8(i))
		}
	}
	return keys
}

// BuildReport encodes an InputState into the 34-byte HID keyboard report.
//
// Report layout (34 bytes):
//
//	Byte 0: Modifiers (8 bits)
//	Byte 1: Reserved (0x00)
//	Bytes 2-33: Key bitmap (256 bits, 32 bytes)
func (st InputState) BuildReport() []byte {
	b := make([]byte, ReportSize)
	b[0] = st.Modifiers
	b[1] = 0x00 // Reserved
	copy(b[2:34], st.KeyBitmap[:])
	return b
}

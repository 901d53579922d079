package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsense-kb/commonsense/device/keyboard"
)

func TestInputReports(t *testing.T) {
	type testCase struct {
		name           string
		press          []uint8
		release        []uint8
		expectedReport func() []byte
	}

	cases := []testCase{
		{
			name: "empty",
			expectedReport: func() []byte {
				return make([]byte, keyboard.ReportSize)
			},
		},
		{
			name:  "single key",
			press: []uint8{keyboard.KeyA},
			expectedReport: func() []byte {
				b := make([]byte, keyboard.ReportSize)
				b[2] = 0x10 // 0x04 -> byte 0, bit 4
				return b
			},
		},
		{
			name:  "modifier goes to modifier byte",
			press: []uint8{keyboard.KeyLeftShift, keyboard.KeyRightGUI},
			expectedReport: func() []byte {
				b := make([]byte, keyboard.ReportSize)
				b[0] = keyboard.ModLeftShift | keyboard.ModRightGUI
				return b
			},
		},
		{
			name:    "press and release",
			press:   []uint8{keyboard.KeyA, keyboard.KeyB},
			release: []uint8{keyboard.KeyA},
			expectedReport: func() []byte {
				b := make([]byte, keyboard.ReportSize)
				b[2] = 0x20
				return b
			},
		},
		{
			name:  "high usage",
			press: []uint8{keyboard.KeyMediaStop},
			expectedReport: func() []byte {
				b := make([]byte, keyboard.ReportSize)
				b[2+0xE9/8] = 1 << (0xE9 % 8)
				return b
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var st keyboard.InputState
			for _, k := range tc.press {
				st.Press(k)
			}
			for _, k := range tc.release {
				st.Release(k)
			}
			assert.Equal(t, tc.expectedReport(), st.BuildReport())
		})
	}
}

func TestPressReportsChange(t *testing.T) {
	var st keyboard.InputState
	assert.True(t, st.Press(keyboard.KeyZ))
	assert.False(t, st.Press(keyboard.KeyZ))
	assert.True(t, st.Pressed(keyboard.KeyZ))
	assert.Equal(t, []uint8{keyboard.KeyZ}, st.Keys())
	assert.True(t, st.Release(keyboard.KeyZ))
	assert.False(t, st.Release(keyboard.KeyZ))

	st.Press(keyboard.KeyLeftCtrl)
	st.Press(keyboard.KeyQ)
	st.Reset()
	assert.Equal(t, make([]byte, keyboard.ReportSize), st.BuildReport())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		expected uint8
		wantErr  bool
	}{
		{in: "A", expected: keyboard.KeyA},
		{in: "lshift", expected: keyboard.KeyLeftShift},
		{in: "Fn2", expected: keyboard.KeyFn2},
		{in: "_", expected: keyboard.KeyTransparent},
		{in: "0xE8", expected: keyboard.KeyMediaPlayPause},
		{in: "1", expected: keyboard.Key1},
		{in: "nope", wantErr: true},
		{in: "0x1FF", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			code, err := keyboard.Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestNameRoundTrip(t *testing.T) {
	for code := range keyboard.KeyName {
		got, err := keyboard.Parse(keyboard.Name(code))
		require.NoError(t, err)
		assert.Equal(t, code, got, "code 0x%02X", code)
	}
	assert.Equal(t, "0xFE", keyboard.Name(0xFE))
}

func TestRanges(t *testing.T) {
	assert.True(t, keyboard.IsControl(keyboard.KeyExpToggle))
	assert.False(t, keyboard.IsControl(keyboard.KeyA))
	assert.True(t, keyboard.IsLayerMod(keyboard.KeyFn1))
	assert.True(t, keyboard.IsLayerMod(keyboard.KeyLLck4))
	assert.False(t, keyboard.IsLayerMod(keyboard.KeySystemWake))
	assert.True(t, keyboard.IsSystem(keyboard.KeySystemPower))
	assert.True(t, keyboard.IsConsumer(keyboard.KeyMediaMail))
	assert.False(t, keyboard.IsConsumer(keyboard.KeyRightGUI))
}

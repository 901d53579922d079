package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsense-kb/commonsense/internal/status"
)

func TestRegister(t *testing.T) {
	var r status.Register
	assert.False(t, r.SetupMode())

	r.Set(status.SetupMode)
	r.Set(status.OutputEnabled)
	assert.True(t, r.SetupMode())
	assert.True(t, r.Test(status.OutputEnabled))
	assert.False(t, r.Test(status.MatrixMonitor))

	r.Force(status.SetupMode, false)
	assert.Equal(t, status.OutputEnabled, r.Bits())
	assert.Equal(t, "output", status.OutputEnabled.String())
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		packet  []byte
		monitor bool
		wantErr error
	}{
		{name: "monitor on", packet: []byte{0x07, 0x01}, monitor: true},
		{name: "monitor off", packet: []byte{0x07, 0x00}, monitor: false},
		{name: "status query is not ours", packet: []byte{0x01, 0x00}, wantErr: status.ErrNotHandled},
		{name: "commit is not ours", packet: []byte{0x06, 0x00}, wantErr: status.ErrNotHandled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r status.Register
			r.Set(status.MatrixMonitor)
			packet := make([]byte, status.PacketSize)
			copy(packet, tt.packet)
			cmd, err := status.ParseCommand(packet)
			require.NoError(t, err)
			err = r.Apply(cmd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, r.Test(status.MatrixMonitor), "register untouched")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.monitor, r.Test(status.MatrixMonitor))
		})
	}

	_, err := status.ParseCommand([]byte{0x07})
	assert.ErrorIs(t, err, status.ErrPacketShort)
}

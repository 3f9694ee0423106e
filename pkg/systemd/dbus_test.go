package systemd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockDbusConn struct {
	connected bool
	props     map[string]interface{}
	err       error
	units     []string
}

func (m *mockDbusConn) Close() {}

func (m *mockDbusConn) Connected() bool {
	return m.connected
}

func (m *mockDbusConn) GetUnitPropertiesContext(_ context.Context, unit string) (map[string]interface{}, error) {
	m.units = append(m.units, unit)
	if m.err != nil {
		return nil, m.err
	}
	return m.props, nil
}

func TestFormatUnitName(t *testing.T) {
	assert.Equal(t, "multipathd.service", formatUnitName("multipathd"))
	assert.Equal(t, "multipathd.service", formatUnitName("multipathd.service"))
	assert.Equal(t, "remote-fs.target", formatUnitName("remote-fs.target"))
	assert.Equal(t, "multipathd.socket.service", formatUnitName("multipathd.socket"))
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		name     string
		conn     *mockDbusConn
		expected bool
		errorMsg string
	}{
		{
			name:     "nil connection",
			errorMsg: "connection not initialized",
		},
		{
			name:     "disconnected",
			conn:     &mockDbusConn{},
			errorMsg: "connection disconnected",
		},
		{
			name:     "properties error",
			conn:     &mockDbusConn{connected: true, err: errors.New("dbus error")},
			errorMsg: "unable to get unit properties for multipathd.service: dbus error",
		},
		{
			name:     "missing ActiveState",
			conn:     &mockDbusConn{connected: true, props: map[string]interface{}{}},
			errorMsg: "ActiveState property not found for unit multipathd.service",
		},
		{
			name:     "ActiveState not a string",
			conn:     &mockDbusConn{connected: true, props: map[string]interface{}{"ActiveState": 1}},
			errorMsg: "ActiveState property is not a string for unit multipathd.service",
		},
		{
			name:     "active",
			conn:     &mockDbusConn{connected: true, props: map[string]interface{}{"ActiveState": "active"}},
			expected: true,
		},
		{
			name: "failed",
			conn: &mockDbusConn{connected: true, props: map[string]interface{}{"ActiveState": "failed"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &DbusConn{}
			if tt.conn != nil {
				c.conn = tt.conn
			}

			active, err := c.IsActive(context.Background(), "multipathd")
			if tt.errorMsg != "" {
				assert.EqualError(t, err, tt.errorMsg)
				assert.False(t, active)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, active)
			assert.Equal(t, []string{"multipathd.service"}, tt.conn.units)
		})
	}
}

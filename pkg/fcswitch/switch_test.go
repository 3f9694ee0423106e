package fcswitch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/fcswitch/session"
	"github.com/leptonai/portbounce/pkg/log"
)

const switchshowFixed = `switchName:     sw0
switchType:     71.2
switchState:    Online
switchMode:     Native
switchRole:     Principal
switchDomain:   1
switchId:       fffc01
switchWwn:      10:00:00:05:33:aa:bb:cc
zoning:         ON (cfg0)
switchBeacon:   OFF

Index Port Address Media Speed State     Proto
==================================================
0   0   010000   id    N8   No_Light    FC
12  12   010c00   id    N8   Online      FC  F-Port  10:00:00:90:FA:1B:2C:3D
13  13   010d00   id    N8   Disabled    FC  F-Port  10:00:00:90:fa:1b:2c:3e
112 112  017000   id    N16  Online      FC  F-Port  20:00:00:90:fa:1b:2c:3f`

const switchshowBladed = `switchName:     dcx0
switchState:    Online

Index Slot Port Address Media Speed State     Proto
=======================================================
 16    1    0   011000   id    N8   Online      FC  F-Port  10:00:00:90:fa:00:00:01
 17    1    1   011100   id    N8   No_Light    FC`

type fakeChannel struct {
	responses map[string]string
	err       error
	commands  []string
}

var _ session.Channel = &fakeChannel{}

func (f *fakeChannel) Run(_ context.Context, command string) (string, error) {
	f.commands = append(f.commands, command)
	if f.err != nil {
		return "", f.err
	}
	return f.responses[command], nil
}

func (f *fakeChannel) Close() error { return nil }

func TestBrocadeCommands(t *testing.T) {
	b := &Brocade{}
	assert.Equal(t, "switchshow", b.StatusCommand())
	assert.Equal(t, "portdisable 12 13", b.DisableCommand([]string{"12", "13"}))
	assert.Equal(t, "portenable 12", b.EnableCommand([]string{"12"}))
	assert.Equal(t, "Disabled", b.StateToken(PortDisabled))
	assert.Equal(t, "Online", b.StateToken(PortOnline))
}

func TestBrocadeParse(t *testing.T) {
	b := &Brocade{}
	tests := []struct {
		name  string
		raw   string
		port  string
		state string
		want  bool
	}{
		{name: "disabled found", raw: "12  Disabled", port: "12", state: "Disabled", want: true},
		{name: "online when disabled expected", raw: "12  Online", port: "12", state: "Disabled", want: false},
		{name: "state before port", raw: "Disabled 12", port: "12", state: "Disabled", want: false},
		{name: "full dump online", raw: switchshowFixed, port: "12", state: "Online", want: true},
		{name: "full dump disabled", raw: switchshowFixed, port: "13", state: "Disabled", want: true},
		{name: "state on another line", raw: "12  010c00\nDisabled", port: "12", state: "Disabled", want: false},
		{name: "empty dump", raw: "", port: "12", state: "Online", want: false},
		{name: "empty port", raw: "12 Online", port: "", state: "Online", want: false},
		{name: "regex metacharacters are literal", raw: "1/0 Online", port: "1.0", state: "Online", want: false},
		{name: "slot port token", raw: switchshowBladed, port: "1", state: "Online", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Parse(tt.raw, tt.port, tt.state))
		})
	}
}

func TestBrocadePortForWWPN(t *testing.T) {
	b := &Brocade{}

	port, ok := b.PortForWWPN(switchshowFixed, "10:00:00:90:fa:1b:2c:3d")
	require.True(t, ok)
	assert.Equal(t, "12", port)

	port, ok = b.PortForWWPN(switchshowFixed, "10:00:00:90:FA:1B:2C:3E")
	require.True(t, ok)
	assert.Equal(t, "13", port)

	port, ok = b.PortForWWPN(switchshowFixed, "20:00:00:90:fa:1b:2c:3f")
	require.True(t, ok)
	assert.Equal(t, "112", port)

	_, ok = b.PortForWWPN(switchshowFixed, "10:00:00:90:fa:ff:ff:ff")
	assert.False(t, ok)

	_, ok = b.PortForWWPN(switchshowFixed, "")
	assert.False(t, ok)

	port, ok = b.PortForWWPN(switchshowBladed, "10:00:00:90:fa:00:00:01")
	require.True(t, ok)
	assert.Equal(t, "1/0", port)

	// no header, falls back to the second column
	port, ok = b.PortForWWPN("5  7  010700 id N8 Online FC F-Port 10:00:00:00:00:00:00:07", "10:00:00:00:00:00:00:07")
	require.True(t, ok)
	assert.Equal(t, "7", port)
}

func TestBrocadeRows(t *testing.T) {
	b := &Brocade{}

	rows := b.Rows(switchshowFixed)
	require.Len(t, rows, 4)
	assert.Equal(t, PortRow{Index: "0", Port: "0", Address: "010000", Speed: "N8", State: "No_Light", Proto: "FC"}, rows[0])
	assert.Equal(t, "12", rows[1].Port)
	assert.Equal(t, "Online", rows[1].State)
	assert.Equal(t, "10:00:00:90:fa:1b:2c:3d", rows[1].WWPN)
	assert.Equal(t, "F-Port 10:00:00:90:FA:1B:2C:3D", rows[1].Comment)

	rows = b.Rows(switchshowBladed)
	require.Len(t, rows, 2)
	assert.Equal(t, "1/0", rows[0].Port)
	assert.Equal(t, "16", rows[0].Index)
	assert.Equal(t, "No_Light", rows[1].State)

	assert.Empty(t, b.Rows("no table here"))
}

func TestBrocadeCheckOutput(t *testing.T) {
	b := &Brocade{}
	require.NoError(t, b.CheckOutput("portdisable 12", ""))

	for _, out := range []string{
		"Error: port 99 invalid",
		"Port 99 out of range",
		"Operation not permitted",
		"rbash: portdisble: command not found",
		"Usage: portdisable [slot/]port",
	} {
		err := b.CheckOutput("portdisable 99", out)
		var cerr *CommandError
		require.ErrorAs(t, err, &cerr, out)
		assert.Equal(t, "portdisable 99", cerr.Command)
		assert.Equal(t, out, cerr.Output)
	}
}

func TestNewDialect(t *testing.T) {
	d, err := NewDialect(config.DialectBrocade)
	require.NoError(t, err)
	assert.Equal(t, "brocade", d.Name())

	_, err = NewDialect("cisco")
	require.Error(t, err)
}

func TestSwitchPortStates(t *testing.T) {
	ch := &fakeChannel{responses: map[string]string{"switchshow": switchshowFixed}}
	sw := New(ch, &Brocade{})

	found, err := sw.PortStates(context.Background(), []string{"12", "13", "0"}, PortOnline)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"12": true, "13": false, "0": false}, found)

	// one status dump per call
	assert.Equal(t, []string{"switchshow"}, ch.commands)
}

func TestSwitchMutations(t *testing.T) {
	ch := &fakeChannel{responses: map[string]string{
		"portdisable 99": "Error: invalid port 99",
	}}
	sw := New(ch, &Brocade{})

	require.NoError(t, sw.Disable(context.Background(), []string{"12", "13"}))
	require.NoError(t, sw.Enable(context.Background(), []string{"12", "13"}))

	err := sw.Disable(context.Background(), []string{"99"})
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "portdisable 99")

	assert.Equal(t, []string{"portdisable 12 13", "portenable 12 13", "portdisable 99"}, ch.commands)
}

func TestSwitchSessionFailure(t *testing.T) {
	ch := &fakeChannel{err: session.ErrClosed}
	sw := New(ch, &Brocade{})

	_, err := sw.PortStates(context.Background(), []string{"12"}, PortDisabled)
	require.ErrorIs(t, err, session.ErrClosed)

	err = sw.Enable(context.Background(), []string{"12"})
	require.ErrorIs(t, err, session.ErrClosed)
	var cerr *CommandError
	assert.False(t, errors.As(err, &cerr))
}

func TestSwitchPortForWWPN(t *testing.T) {
	ch := &fakeChannel{responses: map[string]string{"switchshow": switchshowFixed}}
	sw := New(ch, &Brocade{})

	port, err := sw.PortForWWPN(context.Background(), "10:00:00:90:fa:1b:2c:3d")
	require.NoError(t, err)
	assert.Equal(t, "12", port)

	_, err = sw.PortForWWPN(context.Background(), "10:00:00:90:fa:ff:ff:ff")
	require.ErrorIs(t, err, ErrWWPNNotFound)

	rows, err := sw.Rows(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

type recordingAudit struct {
	entries []log.AuditLog
}

func (r *recordingAudit) Log(opts ...log.AuditOption) {
	ev := log.AuditLog{}
	for _, opt := range opts {
		opt(&ev)
	}
	r.entries = append(r.entries, ev)
}

func TestSwitchAuditTrail(t *testing.T) {
	ch := &fakeChannel{responses: map[string]string{
		"portenable 99": "Error: invalid port 99",
	}}
	audit := &recordingAudit{}
	sw := New(ch, &Brocade{}, WithAuditLogger(audit))

	require.NoError(t, sw.Disable(context.Background(), []string{"12"}))
	require.Error(t, sw.Enable(context.Background(), []string{"99"}))

	// status dumps are not audited
	_, err := sw.Status(context.Background())
	require.NoError(t, err)

	stages := make([]string, 0, len(audit.entries))
	for _, e := range audit.entries {
		stages = append(stages, e.Verb+"/"+e.Stage)
	}
	assert.Equal(t, []string{
		"disable/" + log.AuditStageSent,
		"disable/" + log.AuditStageCompleted,
		"enable/" + log.AuditStageSent,
		"enable/" + log.AuditStageRejected,
	}, stages)
	assert.Equal(t, "portdisable 12", audit.entries[0].Command)
	assert.Equal(t, []string{"12"}, audit.entries[0].Data)
	assert.Equal(t, "Error: invalid port 99", audit.entries[3].Data)

	ch.err = session.ErrClosed
	require.Error(t, sw.Disable(context.Background(), []string{"12"}))
	last := audit.entries[len(audit.entries)-1]
	assert.Equal(t, log.AuditStageFailed, last.Stage)
}

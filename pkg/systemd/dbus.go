// Package systemd talks to the host service manager: unit state over
// dbus and service notifications.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// the subset of *dbus.Conn used here
type dbusConn interface {
	Close()
	Connected() bool
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
}

type DbusConn struct {
	conn dbusConn
}

// Caller should explicitly close the connection by calling Close() on returned connection object
func NewDbusConn(ctx context.Context) (*DbusConn, error) {
	dbc, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed connect to systemd dbus: %w", err)
	}
	return &DbusConn{
		conn: dbc,
	}, nil
}

func (c *DbusConn) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsActive returns true if the unit's ActiveState is "active".
// A bare name is taken as a service unit.
func (c *DbusConn) IsActive(ctx context.Context, unitName string) (bool, error) {
	if c.conn == nil {
		return false, errors.New("connection not initialized")
	}
	if !c.conn.Connected() {
		return false, errors.New("connection disconnected")
	}
	unitName = formatUnitName(unitName)
	props, err := c.conn.GetUnitPropertiesContext(ctx, unitName)
	if err != nil {
		return false, fmt.Errorf("unable to get unit properties for %s: %w", unitName, err)
	}
	activeState, ok := props["ActiveState"]
	if !ok {
		return false, fmt.Errorf("ActiveState property not found for unit %s", unitName)
	}
	s, ok := activeState.(string)
	if !ok {
		return false, fmt.Errorf("ActiveState property is not a string for unit %s", unitName)
	}
	return s == "active", nil
}

func formatUnitName(unitName string) string {
	if !strings.HasSuffix(unitName, ".target") && !strings.HasSuffix(unitName, ".service") {
		return unitName + ".service"
	}
	return unitName
}

// UnitActive connects to systemd once and checks the unit.
func UnitActive(ctx context.Context, unitName string) (bool, error) {
	conn, err := NewDbusConn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	return conn.IsActive(ctx, unitName)
}

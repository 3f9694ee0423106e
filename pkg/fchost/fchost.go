// Package fchost reads Fibre Channel host adapter state from the
// fc_host sysfs class.
package fchost

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

const (
	// Linux reports "Online" for an up link and "Linkdown" once the
	// switch port is disabled.
	StateOnline   = "Online"
	StateLinkdown = "Linkdown"
)

var (
	ErrHostNotFound     = errors.New("no fc_host for bus address")
	ErrInvalidPortName  = errors.New("invalid fc_host port_name")
	ErrEmptyBusAddress  = errors.New("bus address is empty")
	ErrAmbiguousAddress = errors.New("bus address matches more than one fc_host")
)

// Host is one fc_host class entry.
type Host struct {
	// e.g., "host1"
	Name string `json:"name"`
	// symlink target, e.g., "../../devices/pci0000:00/0000:00:02.0/0000:01:00.0/host1/fc_host/host1"
	Device string `json:"device"`
}

// Attributes are the per-port files that identify and describe a host port.
type Attributes struct {
	Host       string `json:"host"`
	PortName   string `json:"port_name"`
	WWPN       string `json:"wwpn"`
	NodeName   string `json:"node_name,omitempty"`
	PortState  string `json:"port_state"`
	PortID     string `json:"port_id,omitempty"`
	Speed      string `json:"speed,omitempty"`
	FabricName string `json:"fabric_name,omitempty"`
}

// Reader reads the fc_host class directory.
type Reader struct {
	cd classDirInterface
}

// New returns a reader for the class directory (e.g., "/sys/class/fc_host").
func New(rootDir string) (*Reader, error) {
	cd, err := newClassDirInterface(rootDir)
	if err != nil {
		return nil, err
	}
	return &Reader{cd: cd}, nil
}

// Hosts lists every fc_host entry, sorted by name.
func (r *Reader) Hosts() ([]Host, error) {
	entries, err := r.cd.listDir(".")
	if err != nil {
		return nil, err
	}

	hosts := make([]Host, 0, len(entries))
	for _, e := range entries {
		target, err := r.cd.readLink(e.Name())
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, Host{Name: e.Name(), Device: target})
	}
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Name < hosts[j].Name
	})
	return hosts, nil
}

// FindHost returns the fc_host whose device path carries the bus address,
// compared case-insensitively.
func (r *Reader) FindHost(busAddress string) (string, error) {
	busAddress = strings.ToLower(strings.TrimSpace(busAddress))
	if busAddress == "" {
		return "", ErrEmptyBusAddress
	}

	hosts, err := r.Hosts()
	if err != nil {
		return "", err
	}

	var matched []string
	for _, h := range hosts {
		if pathHasComponent(strings.ToLower(h.Device), busAddress) {
			matched = append(matched, h.Name)
		}
	}
	switch len(matched) {
	case 0:
		return "", fmt.Errorf("%w %q", ErrHostNotFound, busAddress)
	case 1:
		return matched[0], nil
	default:
		return "", fmt.Errorf("%w %q: %v", ErrAmbiguousAddress, busAddress, matched)
	}
}

// pathHasComponent matches whole path elements so that "0000:01:00.1"
// never matches a device under "0000:01:00.10".
func pathHasComponent(p string, component string) bool {
	for _, elem := range strings.Split(path.Clean(p), "/") {
		if elem == component {
			return true
		}
	}
	return false
}

// PortState returns the trimmed content of "<host>/port_state".
func (r *Reader) PortState(host string) (string, error) {
	return r.cd.readFile(path.Join(host, "port_state"))
}

// PortName returns the raw "<host>/port_name" (e.g., "0x10000090fa1b2c3d").
func (r *Reader) PortName(host string) (string, error) {
	return r.cd.readFile(path.Join(host, "port_name"))
}

// WWPN returns the port name in switch notation.
func (r *Reader) WWPN(host string) (string, error) {
	pn, err := r.PortName(host)
	if err != nil {
		return "", err
	}
	return FormatWWPN(pn)
}

// Describe reads every identifying attribute of the host port.
// Optional attributes that do not exist are left empty.
func (r *Reader) Describe(host string) (Attributes, error) {
	attrs := Attributes{Host: host}

	var err error
	attrs.PortName, err = r.PortName(host)
	if err != nil {
		return attrs, err
	}
	attrs.WWPN, err = FormatWWPN(attrs.PortName)
	if err != nil {
		return attrs, err
	}
	attrs.PortState, err = r.PortState(host)
	if err != nil {
		return attrs, err
	}

	for file, dst := range map[string]*string{
		"node_name":   &attrs.NodeName,
		"port_id":     &attrs.PortID,
		"speed":       &attrs.Speed,
		"fabric_name": &attrs.FabricName,
	} {
		p := path.Join(host, file)
		ok, err := r.cd.exists(p)
		if err != nil || !ok {
			continue
		}
		if v, err := r.cd.readFile(p); err == nil {
			*dst = v
		}
	}
	return attrs, nil
}

// FormatWWPN turns "0x10000090fa1b2c3d" into "10:00:00:90:fa:1b:2c:3d".
func FormatWWPN(portName string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(portName))
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 16 {
		return "", fmt.Errorf("%w %q", ErrInvalidPortName, portName)
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w %q", ErrInvalidPortName, portName)
		}
	}

	pairs := make([]string, 0, 8)
	for i := 0; i < len(s); i += 2 {
		pairs = append(pairs, s[i:i+2])
	}
	return strings.Join(pairs, ":"), nil
}

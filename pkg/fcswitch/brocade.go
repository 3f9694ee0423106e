package fcswitch

import (
	"regexp"
	"strings"
)

var _ Dialect = &Brocade{}

// Brocade speaks the Fabric OS command line
// (switchshow, portdisable, portenable).
type Brocade struct{}

var (
	wwpnRegex = regexp.MustCompile(`(?i)\b([0-9a-f]{2}:){7}[0-9a-f]{2}\b`)

	// lower-cased markers FOS prints when a port command is rejected
	brocadeFailureMarkers = []string{
		"error",
		"invalid",
		"not permitted",
		"not found",
		"out of range",
		"usage:",
	}
)

func (b *Brocade) Name() string { return "brocade" }

func (b *Brocade) StatusCommand() string { return "switchshow" }

func (b *Brocade) DisableCommand(ports []string) string {
	return "portdisable " + strings.Join(ports, " ")
}

func (b *Brocade) EnableCommand(ports []string) string {
	return "portenable " + strings.Join(ports, " ")
}

func (b *Brocade) StateToken(state PortState) string {
	return state.String()
}

// Parse matches any line that carries the port token followed, anywhere
// later on the same line, by the state token.
func (b *Brocade) Parse(raw string, port string, stateToken string) bool {
	if port == "" || stateToken == "" {
		return false
	}
	re, err := regexp.Compile(regexp.QuoteMeta(port) + `.*` + regexp.QuoteMeta(stateToken))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(raw, "\n") {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// PortForWWPN returns the port column of the first row that carries the
// WWPN, compared case-insensitively. On bladed switches the token is
// "<slot>/<port>", as the port commands expect it.
func (b *Brocade) PortForWWPN(raw string, wwpn string) (string, bool) {
	wwpn = strings.ToLower(strings.TrimSpace(wwpn))
	if wwpn == "" {
		return "", false
	}

	cols := parseHeader(raw)
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), wwpn) {
			continue
		}
		fields := strings.Fields(line)
		if tok := cols.portToken(fields); tok != "" {
			return tok, true
		}
	}
	return "", false
}

func (b *Brocade) Rows(raw string) []PortRow {
	cols := parseHeader(raw)
	if !cols.found {
		return nil
	}

	var rows []PortRow
	inTable := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !inTable {
			if strings.HasPrefix(line, "===") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) <= cols.state {
			continue
		}

		row := PortRow{
			Index: fields[cols.index],
			Port:  cols.portToken(fields),
			State: fields[cols.state],
		}
		if cols.address >= 0 {
			row.Address = fields[cols.address]
		}
		if cols.speed >= 0 {
			row.Speed = fields[cols.speed]
		}
		if cols.proto >= 0 && cols.proto < len(fields) {
			row.Proto = fields[cols.proto]
		}
		rest := cols.state + 1
		if cols.proto > cols.state {
			rest = cols.proto + 1
		}
		if rest < len(fields) {
			row.Comment = strings.Join(fields[rest:], " ")
		}
		row.WWPN = strings.ToLower(wwpnRegex.FindString(line))
		rows = append(rows, row)
	}
	return rows
}

// CheckOutput treats any output line with a failure marker as a failed
// command. portdisable and portenable print nothing on success.
func (b *Brocade) CheckOutput(command string, output string) error {
	lower := strings.ToLower(output)
	for _, marker := range brocadeFailureMarkers {
		if strings.Contains(lower, marker) {
			return &CommandError{Command: command, Output: output}
		}
	}
	return nil
}

// switchshow column positions, -1 if absent
type columns struct {
	found bool

	index   int
	slot    int
	port    int
	address int
	speed   int
	state   int
	proto   int
}

// parseHeader locates the port table header
// ("Index Port Address Media Speed State Proto", or with a "Slot"
// column on bladed switches). Without one it falls back to the
// fixed-switch layout.
func parseHeader(raw string) columns {
	cols := columns{index: 0, slot: -1, port: 1, address: 2, speed: 4, state: 5, proto: 6}
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "Index" {
			continue
		}

		found := columns{found: true, index: 0, slot: -1, port: -1, address: -1, speed: -1, state: -1, proto: -1}
		for i, f := range fields {
			switch f {
			case "Slot":
				found.slot = i
			case "Port":
				found.port = i
			case "Address":
				found.address = i
			case "Speed":
				found.speed = i
			case "State":
				found.state = i
			case "Proto":
				found.proto = i
			}
		}
		if found.port < 0 || found.state < 0 {
			break
		}
		return found
	}
	return cols
}

func (c columns) portToken(fields []string) string {
	if c.port < 0 || c.port >= len(fields) {
		return ""
	}
	if c.slot >= 0 && c.slot < len(fields) {
		return fields[c.slot] + "/" + fields[c.port]
	}
	return fields[c.port]
}

// Package multipath reads the per-path state of the device-mapper
// multipath topology and the storage paths behind an FC adapter.
package multipath

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/process"
)

// dm_st and chk_st values a bounce expects to see.
const (
	DMStateFailed = "failed"
	DMStateActive = "active"

	CheckerFaulty = "faulty"
	CheckerReady  = "ready"
)

// PathStatus is the multipathd view of one path device.
// A device absent from the topology has empty states.
type PathStatus struct {
	Device       string `json:"dev"`
	Map          string `json:"map,omitempty"`
	DMState      string `json:"dm_st"`
	DevState     string `json:"dev_st"`
	CheckerState string `json:"chk_st"`
}

// Matches compares the device-mapper and checker states.
func (s PathStatus) Matches(dmState string, checkerState string) bool {
	return s.DMState == dmState && s.CheckerState == checkerState
}

func (s PathStatus) String() string {
	if s.DMState == "" && s.CheckerState == "" {
		return s.Device + " (not in multipath topology)"
	}
	return fmt.Sprintf("%s (%s/%s)", s.Device, s.DMState, s.CheckerState)
}

// Reader queries multipathd through the host command runner.
type Reader struct {
	runner  process.Runner
	command string
}

// New returns a reader that runs "<command> show maps json".
func New(runner process.Runner, command string) *Reader {
	return &Reader{
		runner:  runner,
		command: command,
	}
}

// Topology returns every path in the multipath topology, keyed by device.
func (r *Reader) Topology(ctx context.Context) (map[string]PathStatus, error) {
	out, exitCode, err := r.runner.RunUntilCompletion(ctx, r.command, "show", "maps", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to run %s show maps json (exit code %d): %w", r.command, exitCode, err)
	}
	return ParseMaps(out)
}

// PathStatuses runs multipathd once and returns the status of each
// requested device.
func (r *Reader) PathStatuses(ctx context.Context, devices []string) (map[string]PathStatus, error) {
	topo, err := r.Topology(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]PathStatus, len(devices))
	for _, dev := range devices {
		st, ok := topo[dev]
		if !ok {
			log.Logger.Debugw("device not in multipath topology", "device", dev)
			st = PathStatus{Device: dev}
		}
		statuses[dev] = st
	}
	return statuses, nil
}

// ParseMaps parses the output of "multipathd show maps json".
func ParseMaps(b []byte) (map[string]PathStatus, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty multipathd output")
	}

	var root map[string]any
	decoder := json.NewDecoder(bytes.NewReader(b))
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode multipathd output: %w", err)
	}

	paths := make(map[string]PathStatus)

	maps, err := readJSONPath(root, "$.maps[*]")
	if err != nil {
		return nil, err
	}
	for _, m := range asSlice(maps) {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}
		name, _ := mm["name"].(string)

		devs, err := readJSONPath(mm, "$.path_groups[*].paths[*]")
		if err != nil {
			return nil, err
		}
		for _, p := range asSlice(devs) {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			st := PathStatus{
				Device:       stringField(pm, "dev"),
				Map:          name,
				DMState:      stringField(pm, "dm_st"),
				DevState:     stringField(pm, "dev_st"),
				CheckerState: stringField(pm, "chk_st"),
			}
			if st.Device == "" {
				continue
			}
			paths[st.Device] = st
		}
	}
	return paths, nil
}

// readJSONPath returns nil and no error when a key is missing.
func readJSONPath(input map[string]any, path string) (any, error) {
	v, err := jsonpath.Get(path, input)
	if err != nil {
		if strings.Contains(err.Error(), "unknown key") {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// SortedDevices returns the map keys in order.
func SortedDevices(statuses map[string]PathStatus) []string {
	devs := make([]string, 0, len(statuses))
	for d := range statuses {
		devs = append(devs, d)
	}
	sort.Strings(devs)
	return devs
}

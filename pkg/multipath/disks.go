package multipath

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrEmptyBusAddress = errors.New("bus address is empty")

// Disks lists the by-path links (e.g., "pci-0000:01:00.0-fc-0x500...-lun-0")
// under the adapter's bus address and returns the kernel device names
// they resolve to (e.g., "sdb"), sorted and without duplicates.
// Partition links are skipped.
func Disks(byPathDir string, busAddress string) ([]string, error) {
	busAddress = strings.ToLower(strings.TrimSpace(busAddress))
	if busAddress == "" {
		return nil, ErrEmptyBusAddress
	}

	entries, err := os.ReadDir(byPathDir)
	if err != nil {
		if os.IsNotExist(err) {
			// no block devices yet
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]struct{})
	var devs []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if !strings.Contains(name, busAddress+"-") {
			continue
		}
		if strings.Contains(name, "-part") {
			continue
		}

		link := filepath.Join(byPathDir, e.Name())
		target, err := os.Readlink(link)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(byPathDir, target)
		}
		dev := filepath.Base(filepath.Clean(target))

		if _, ok := seen[dev]; ok {
			continue
		}
		seen[dev] = struct{}{}
		devs = append(devs, dev)
	}
	sort.Strings(devs)
	return devs, nil
}

// Package network answers whether the active connection is Wi-Fi.
package network

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Modes accepted by configuration.
const (
	ModeAuto    = "auto"
	ModeWifi    = "wifi"
	ModeMetered = "metered"
)

// Probe is a point-in-time, best-effort network check.
type Probe interface {
	IsOnWifi() bool
}

// Static always gives the same answer.
type Static bool

func (s Static) IsOnWifi() bool { return bool(s) }

// SysfsProbe finds the default route in procfs and checks whether its
// interface is wireless in sysfs.
type SysfsProbe struct {
	RouteFile string
	NetClass  string
}

// NewSysfsProbe returns a probe reading the standard Linux locations.
func NewSysfsProbe() *SysfsProbe {
	return &SysfsProbe{
		RouteFile: "/proc/net/route",
		NetClass:  "/sys/class/net",
	}
}

// IsOnWifi returns false whenever anything cannot be read.
func (p *SysfsProbe) IsOnWifi() bool {
	iface, ok := p.DefaultInterface()
	if !ok {
		return false
	}
	return p.isWireless(iface)
}

// DefaultInterface returns the interface of the default route with the
// lowest metric.
func (p *SysfsProbe) DefaultInterface() (string, bool) {
	f, err := os.Open(p.RouteFile)
	if err != nil {
		return "", false
	}
	defer f.Close()

	best := ""
	bestMetric := -1

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		// Iface Destination Gateway Flags RefCnt Use Metric Mask ...
		if len(fields) < 8 {
			continue
		}
		if fields[1] != "00000000" || fields[7] != "00000000" {
			continue
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil || flags&0x1 == 0 {
			continue
		}
		metric, err := strconv.Atoi(fields[6])
		if err != nil {
			continue
		}
		if bestMetric < 0 || metric < bestMetric {
			best, bestMetric = fields[0], metric
		}
	}

	return best, best != ""
}

func (p *SysfsProbe) isWireless(iface string) bool {
	for _, marker := range []string{"wireless", "phy80211"} {
		if _, err := os.Stat(filepath.Join(p.NetClass, iface, marker)); err == nil {
			return true
		}
	}
	return false
}

// FromMode builds the probe for a configured mode. Unknown modes fall back
// to auto detection.
func FromMode(mode string) Probe {
	switch mode {
	case ModeWifi:
		return Static(true)
	case ModeMetered:
		return Static(false)
	default:
		return NewSysfsProbe()
	}
}

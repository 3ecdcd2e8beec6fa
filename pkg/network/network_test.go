package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeHeader = "Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n"

func setupProbe(t *testing.T, routes string, wireless ...string) *SysfsProbe {
	t.Helper()
	root := t.TempDir()

	routeFile := filepath.Join(root, "route")
	require.NoError(t, os.WriteFile(routeFile, []byte(routeHeader+routes), 0644))

	netClass := filepath.Join(root, "net")
	for _, iface := range wireless {
		require.NoError(t, os.MkdirAll(filepath.Join(netClass, iface, "wireless"), 0755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(netClass, "eth0"), 0755))

	return &SysfsProbe{RouteFile: routeFile, NetClass: netClass}
}

func TestSysfsProbe(t *testing.T) {
	tests := []struct {
		name      string
		routes    string
		wireless  []string
		wantIface string
		wantWifi  bool
	}{
		{
			name:      "wifi_default",
			routes:    "wlan0\t00000000\t0101A8C0\t0003\t0\t0\t600\t00000000\t0\t0\t0\n",
			wireless:  []string{"wlan0"},
			wantIface: "wlan0",
			wantWifi:  true,
		},
		{
			name:      "ethernet_default",
			routes:    "eth0\t00000000\t0101A8C0\t0003\t0\t0\t100\t00000000\t0\t0\t0\n",
			wireless:  []string{"wlan0"},
			wantIface: "eth0",
			wantWifi:  false,
		},
		{
			name: "lowest_metric_wins",
			routes: "wlan0\t00000000\t0101A8C0\t0003\t0\t0\t600\t00000000\t0\t0\t0\n" +
				"eth0\t00000000\t0101A8C0\t0003\t0\t0\t100\t00000000\t0\t0\t0\n",
			wireless:  []string{"wlan0"},
			wantIface: "eth0",
			wantWifi:  false,
		},
		{
			name:     "no_default_route",
			routes:   "wlan0\t0000A8C0\t00000000\t0001\t0\t0\t600\t00FFFFFF\t0\t0\t0\n",
			wireless: []string{"wlan0"},
			wantWifi: false,
		},
		{
			name:     "route_down",
			routes:   "wlan0\t00000000\t0101A8C0\t0002\t0\t0\t600\t00000000\t0\t0\t0\n",
			wireless: []string{"wlan0"},
			wantWifi: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := setupProbe(t, tt.routes, tt.wireless...)

			iface, ok := p.DefaultInterface()
			assert.Equal(t, tt.wantIface != "", ok)
			assert.Equal(t, tt.wantIface, iface)
			assert.Equal(t, tt.wantWifi, p.IsOnWifi())
		})
	}
}

func TestSysfsProbe_MissingFiles(t *testing.T) {
	p := &SysfsProbe{RouteFile: filepath.Join(t.TempDir(), "nope"), NetClass: t.TempDir()}
	assert.False(t, p.IsOnWifi())
}

func TestFromMode(t *testing.T) {
	assert.True(t, FromMode(ModeWifi).IsOnWifi())
	assert.False(t, FromMode(ModeMetered).IsOnWifi())
	assert.IsType(t, &SysfsProbe{}, FromMode(ModeAuto))
	assert.IsType(t, &SysfsProbe{}, FromMode(""))
}

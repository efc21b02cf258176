package config

import (
	"fmt"
	"strings"

	"github.com/san-kum/jointlink/internal/registry"
)

// curl drives curled joints close to, but short of, their upper stop.
const curl = 0.95

var (
	fingers     = []string{"i", "m", "r", "p"}
	fingerLinks = []string{"1_MCP", "2_PIP", "3_DIP"}
	thumbLinks  = []string{"t1_TM", "t2_CMC", "t3_DIP"}
)

// Presets lists the hand poses in menu order.
var Presets = []registry.Preset{
	handPose("Fist", ""),
	handPose("Open Hand", "imrp"),
	handPose("Scissor", "im"),
	handPose("Index Finger", "i"),
	handPose("Middle Finger", "m"),
	handPose("Ring Finger", "r"),
	handPose("Pinky Finger", "p"),
}

// GetPreset finds a preset by name, ignoring case and spaces.
func GetPreset(name string) (registry.Preset, error) {
	key := presetKey(name)
	for _, p := range Presets {
		if presetKey(p.Name) == key {
			return p, nil
		}
	}
	return registry.Preset{}, fmt.Errorf("config: unknown preset %q", name)
}

func presetKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(name, " ", ""), "_", ""))
}

// handPose starts from neutral abduction, opens the listed fingers and curls
// the rest. The thumb is curled only when no finger is open.
func handPose(name, open string) registry.Preset {
	var ts []registry.Target
	for _, f := range fingers {
		ts = append(ts, registry.Absolute(f+"0_CMC_abd", 0))
	}
	ts = append(ts, registry.Absolute("t0_TM_abd", 0))

	for _, f := range fingers {
		for _, link := range fingerLinks {
			if strings.Contains(open, f) {
				ts = append(ts, registry.Absolute(f+link, 0))
			} else {
				ts = append(ts, registry.Fraction(f+link, curl))
			}
		}
	}
	for _, link := range thumbLinks {
		if open == "" {
			ts = append(ts, registry.Fraction(link, curl))
		} else {
			ts = append(ts, registry.Absolute(link, 0))
		}
	}
	return registry.Preset{Name: name, Targets: ts}
}

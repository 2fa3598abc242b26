package mapview

import (
	"math"

	"warroom/internal/warroom"
)

const (
	// Below this zoom factor pins render as a bare logo.
	LogoOnlyBelow = 1.2
	// At or above this zoom factor pins render label, body and halo.
	FullDetailFrom = 2.5
)

type Detail string

const (
	DetailLogo    Detail = "logo"
	DetailCompact Detail = "compact"
	DetailFull    Detail = "full"
)

// PinState is the level of detail a marker renders with.
type PinState struct {
	Detail    Detail `json:"detail"`
	LogoOnly  bool   `json:"logoOnly"`
	Compact   bool   `json:"compact"`
	Full      bool   `json:"full"`
	ShowLabel bool   `json:"showLabel"`
	ShowHalo  bool   `json:"showHalo"`
}

// PinLOD depends only on the zoom factor and whether the pin is selected.
// A selected pin is always full detail.
func PinLOD(zoom float64, selected bool) PinState {
	switch {
	case selected || zoom >= FullDetailFrom:
		return PinState{Detail: DetailFull, Full: true, ShowLabel: true, ShowHalo: true}
	case math.IsNaN(zoom) || zoom < LogoOnlyBelow:
		return PinState{Detail: DetailLogo, LogoOnly: true}
	default:
		return PinState{Detail: DetailCompact, Compact: true}
	}
}

// FocusScale is the zoom factor used when focusing an entity of a level.
func FocusScale(level warroom.Level) float64 {
	switch level {
	case warroom.LevelFactory:
		return 4
	case warroom.LevelSubsidiary:
		return 3
	default:
		return 2
	}
}

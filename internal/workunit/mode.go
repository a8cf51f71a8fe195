package workunit

import (
	"fmt"
	"slices"
	"strings"
)

// Mode is a biometric modality.
type Mode string

const (
	ModeFace   Mode = "face"
	ModeFinger Mode = "finger"
	ModeIris   Mode = "iris"
	ModeSpeech Mode = "speech"
)

// Engine selects the scoring backend.
type Engine string

const (
	EngineOBQE   Engine = "obqe"
	EngineOFIQ   Engine = "ofiq"
	EngineBIQT   Engine = "biqt"
	EngineFusion Engine = "fusion"
)

// DefaultFusionCode combines OBQE (4) and OFIQ (2).
const DefaultFusionCode = 6

// fusionCodes lists the accepted engine combinations (OBQE:4, OFIQ:2, BIQT:1).
var fusionCodes = []int{7, 6, 5, 3}

var imageTypes = []string{"jpg", "jpeg", "png", "bmp", "jp2"}

// ParseMode canonicalises a modality name. "fingerprint" is accepted as an
// alias for finger.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "face":
		return ModeFace, nil
	case "finger", "fingerprint":
		return ModeFinger, nil
	case "iris":
		return ModeIris, nil
	case "speech":
		return ModeSpeech, nil
	default:
		return "", fmt.Errorf("mode %q not supported", value)
	}
}

// ParseEngine canonicalises an engine name.
func ParseEngine(value string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(value))); e {
	case "":
		return EngineOBQE, nil
	case EngineOBQE, EngineOFIQ, EngineBIQT, EngineFusion:
		return e, nil
	default:
		return "", fmt.Errorf("engine %q not recognised", value)
	}
}

// ValidFusionCode reports whether code names a supported engine combination.
func ValidFusionCode(code int) bool {
	return slices.Contains(fusionCodes, code)
}

// FusionCodes returns the accepted fusion codes in descending order.
func FusionCodes() []int {
	return slices.Clone(fusionCodes)
}

// DefaultTypes returns the file extensions scanned when the caller does not
// name any. Speech only reads wav; fingerprint additionally reads wsq.
func (m Mode) DefaultTypes() []string {
	switch m {
	case ModeSpeech:
		return []string{"wav"}
	case ModeFinger:
		return append([]string{"wsq"}, imageTypes...)
	default:
		return slices.Clone(imageTypes)
	}
}

// FailureMarker is the diagnostic key an engine writes when it could not load
// an input. Entries carrying it count as failed inputs.
func (m Mode) FailureMarker() string {
	if m == ModeSpeech {
		return "load audio"
	}
	return "load image"
}

// BatchOriented reports whether the mode/engine pair scores whole folders
// rather than single files. Speech always does; face does when the engine is
// OFIQ or a fusion that includes it.
func BatchOriented(mode Mode, engine Engine) bool {
	if mode == ModeSpeech {
		return true
	}
	return mode == ModeFace && (engine == EngineOFIQ || engine == EngineFusion)
}

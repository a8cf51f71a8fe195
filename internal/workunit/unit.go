package workunit

import (
	"errors"
	"strings"
)

// Conversion carries the optional fingerprint format-conversion hints.
type Conversion struct {
	Source []string `json:"source,omitempty"`
	Target string   `json:"target,omitempty"`
}

// Empty reports whether no conversion was requested.
func (c Conversion) Empty() bool {
	return len(c.Source) == 0 && strings.TrimSpace(c.Target) == ""
}

// WorkUnit is one dispatched job of scoring work. Exactly one of File and
// Folder is set; Inputs is the number of input files the unit covers.
type WorkUnit struct {
	File       string     `json:"file,omitempty"`
	Folder     string     `json:"folder,omitempty"`
	Inputs     int        `json:"inputs"`
	Mode       Mode       `json:"mode"`
	Engine     Engine     `json:"engine"`
	FusionCode int        `json:"fusion,omitempty"`
	Conversion Conversion `json:"conversion,omitzero"`
}

// Target returns the file path or batch folder the unit refers to.
func (u WorkUnit) Target() string {
	if u.Folder != "" {
		return u.Folder
	}
	return u.File
}

// IsBatch reports whether the unit refers to a batch folder.
func (u WorkUnit) IsBatch() bool {
	return u.Folder != ""
}

// Validate checks the descriptor invariants before the unit is scored.
func (u WorkUnit) Validate() error {
	hasFile := strings.TrimSpace(u.File) != ""
	hasFolder := strings.TrimSpace(u.Folder) != ""
	switch {
	case hasFile == hasFolder:
		return errors.New("work unit must set exactly one of file or folder")
	case hasFolder != BatchOriented(u.Mode, u.Engine):
		return errors.New("work unit target kind does not match engine")
	case u.Inputs <= 0:
		return errors.New("work unit covers no inputs")
	case !u.Conversion.Empty() && u.Mode != ModeFinger:
		return errors.New("conversion hints only apply to fingerprint mode")
	case u.Engine == EngineFusion && !ValidFusionCode(u.FusionCode):
		return errors.New("invalid fusion code")
	}
	return nil
}

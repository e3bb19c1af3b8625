package models

import (
	"fmt"
	"strings"
)

// NumControlPoints is the number of control points of a fitted biventricular model.
const NumControlPoints = 388

// Component identifies the anatomical surface a mesh element belongs to.
// The numeric values follow the sorted order of the material names stored
// in the template, with the synthetic thru-wall patch appended last.
type Component int

const (
	AortaValve Component = iota
	AortaValveCut
	LVEndocardial
	LVEpicardial
	MitralValve
	MitralValveCut
	PulmonaryValve
	PulmonaryValveCut
	RVEpicardial
	RVFreewall
	RVSeptum
	TricuspidValve
	TricuspidValveCut
	ThruWall
)

// NumComponents is the number of anatomical components in the template.
const NumComponents = int(ThruWall) + 1

var componentNames = [NumComponents]string{
	"AORTA_VALVE",
	"AORTA_VALVE_CUT",
	"LV_ENDOCARDIAL",
	"LV_EPICARDIAL",
	"MITRAL_VALVE",
	"MITRAL_VALVE_CUT",
	"PULMONARY_VALVE",
	"PULMONARY_VALVE_CUT",
	"RV_EPICARDIAL",
	"RV_FREEWALL",
	"RV_SEPTUM",
	"TRICUSPID_VALVE",
	"TRICUSPID_VALVE_CUT",
	"THRU_WALL",
}

// String returns the display name of the component.
func (c Component) String() string {
	if c < 0 || int(c) >= NumComponents {
		return fmt.Sprintf("Component(%d)", int(c))
	}
	return componentNames[c]
}

// Valid reports whether c is one of the known components.
func (c Component) Valid() bool {
	return c >= 0 && int(c) < NumComponents
}

// ParseComponent returns the component with the given display name.
// Matching is case-insensitive.
func ParseComponent(name string) (Component, error) {
	for i, n := range componentNames {
		if strings.EqualFold(n, name) {
			return Component(i), nil
		}
	}
	return 0, fmt.Errorf("unknown component %q", name)
}

// Surface groups. Each group lists the materials of an open surface and the
// extra materials that close it for volume integration.
type Surface struct {
	// Label names the extracted mesh
	Label string

	// Open holds the materials of the surface with the valves left open
	Open []Component

	// Closing holds the valve planes and cuts that close the surface
	Closing []Component
}

// Materials returns the materials of the surface. When openValve is false
// the closing materials are included.
func (s Surface) Materials(openValve bool) []Component {
	out := make([]Component, 0, len(s.Open)+len(s.Closing))
	out = append(out, s.Open...)
	if !openValve {
		out = append(out, s.Closing...)
	}
	return out
}

var (
	LVEndo = Surface{
		Label:   "LV_ENDO",
		Open:    []Component{LVEndocardial},
		Closing: []Component{AortaValve, MitralValve},
	}

	RVEndo = Surface{
		Label:   "RV_ENDO",
		Open:    []Component{RVFreewall, RVSeptum},
		Closing: []Component{PulmonaryValve, TricuspidValve},
	}

	RVLVEpi = Surface{
		Label: "RVLV_EPI",
		Open:  []Component{LVEpicardial, RVEpicardial},
		Closing: []Component{
			AortaValve, AortaValveCut,
			MitralValve, MitralValveCut,
			PulmonaryValve, PulmonaryValveCut,
			TricuspidValve, TricuspidValveCut,
		},
	}

	LVEpi = Surface{
		Label:   "LV_EPI",
		Open:    []Component{LVEpicardial, RVSeptum, ThruWall},
		Closing: []Component{AortaValve, AortaValveCut, MitralValve, MitralValveCut},
	}

	RVEpi = Surface{
		Label:   "RV_EPI",
		Open:    []Component{RVEpicardial, RVSeptum, ThruWall},
		Closing: []Component{PulmonaryValve, PulmonaryValveCut, TricuspidValve, TricuspidValveCut},
	}
)

package models

import (
	"fmt"
	"strings"
)

// View is a long-axis view used for longitudinal strain.
type View string

// Slice is a short-axis level used for circumferential strain.
type Slice string

// WallSurface is the myocardial wall a strain landmark polyline runs along.
type WallSurface string

const (
	View2CH View = "2CH"
	View4CH View = "4CH"

	SliceApex Slice = "APEX"
	SliceMid  Slice = "MID"
	SliceBase Slice = "BASE"

	WallLV   WallSurface = "LV"
	WallRVS  WallSurface = "RVS"
	WallRVFW WallSurface = "RVFW"
)

// ParseView validates a long-axis view name.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToUpper(s)); v {
	case View2CH, View4CH:
		return v, nil
	}
	return "", fmt.Errorf("invalid view %q (expected 2CH or 4CH)", s)
}

// ParseSlice validates a short-axis slice name.
func ParseSlice(s string) (Slice, error) {
	switch v := Slice(strings.ToUpper(s)); v {
	case SliceApex, SliceMid, SliceBase:
		return v, nil
	}
	return "", fmt.Errorf("invalid slice %q (expected APEX, MID or BASE)", s)
}

// ParseWallSurface validates a wall surface name.
func ParseWallSurface(s string) (WallSurface, error) {
	switch v := WallSurface(strings.ToUpper(s)); v {
	case WallLV, WallRVS, WallRVFW:
		return v, nil
	}
	return "", fmt.Errorf("invalid surface %q (expected LV, RVS or RVFW)", s)
}

// LandmarkKey identifies one strain polyline: a view or slice name paired
// with a wall surface.
type LandmarkKey struct {
	Section string
	Surface WallSurface
}

// LongKey builds the key of a longitudinal polyline.
func LongKey(v View, s WallSurface) LandmarkKey {
	return LandmarkKey{Section: string(v), Surface: s}
}

// CircKey builds the key of a circumferential polyline.
func CircKey(sl Slice, s WallSurface) LandmarkKey {
	return LandmarkKey{Section: string(sl), Surface: s}
}

// StrainCurve pairs a wall surface with the section it is measured on,
// and the column name used when reporting it.
type StrainCurve struct {
	Key  LandmarkKey
	Name string
}

// GLSCurves lists the longitudinal strain curves in reporting order.
var GLSCurves = []StrainCurve{
	{LongKey(View2CH, WallLV), "LV_GLS_2CH"},
	{LongKey(View4CH, WallLV), "LV_GLS_4CH"},
	{LongKey(View4CH, WallRVS), "RVS_GLS_4CH"},
	{LongKey(View4CH, WallRVFW), "RVFW_GLS_4CH"},
}

// GCSCurves lists the circumferential strain curves in reporting order.
var GCSCurves = []StrainCurve{
	{CircKey(SliceApex, WallLV), "LV_GCS_APEX"},
	{CircKey(SliceMid, WallLV), "LV_GCS_MID"},
	{CircKey(SliceBase, WallLV), "LV_GCS_BASE"},
	{CircKey(SliceApex, WallRVFW), "RVFW_GCS_APEX"},
	{CircKey(SliceMid, WallRVFW), "RVFW_GCS_MID"},
	{CircKey(SliceBase, WallRVFW), "RVFW_GCS_BASE"},
	{CircKey(SliceApex, WallRVS), "RVS_GCS_APEX"},
	{CircKey(SliceMid, WallRVS), "RVS_GCS_MID"},
	{CircKey(SliceBase, WallRVS), "RVS_GCS_BASE"},
}

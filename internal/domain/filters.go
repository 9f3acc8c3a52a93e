package domain

import (
	"fmt"
	"strings"
)

type FilterPreset string

const (
	PresetNone      FilterPreset = "none"
	PresetGrayscale FilterPreset = "grayscale"
	PresetSepia     FilterPreset = "sepia"
	PresetVintage   FilterPreset = "vintage"
	PresetVivid     FilterPreset = "vivid"
	PresetClassic   FilterPreset = "classic"
	PresetBright    FilterPreset = "bright"
	PresetDark      FilterPreset = "dark"
)

// ColorOp is the stylistic colour operation a preset adds after the
// brightness/contrast/saturation stages.
type ColorOp string

const (
	ColorOpNone      ColorOp = "none"
	ColorOpGrayscale ColorOp = "grayscale"
	ColorOpSepia     ColorOp = "sepia"
)

type Recipe struct {
	Brightness int
	Contrast   int
	Saturation int
	Op         ColorOp
}

var presetRecipes = map[FilterPreset]Recipe{
	PresetNone:      {Brightness: 100, Contrast: 100, Saturation: 100, Op: ColorOpNone},
	PresetGrayscale: {Brightness: 100, Contrast: 100, Saturation: 100, Op: ColorOpGrayscale},
	PresetSepia:     {Brightness: 100, Contrast: 100, Saturation: 100, Op: ColorOpSepia},
	PresetVintage:   {Brightness: 110, Contrast: 90, Saturation: 80, Op: ColorOpSepia},
	PresetVivid:     {Brightness: 110, Contrast: 120, Saturation: 150, Op: ColorOpNone},
	PresetClassic:   {Brightness: 100, Contrast: 120, Saturation: 100, Op: ColorOpGrayscale},
	PresetBright:    {Brightness: 130, Contrast: 100, Saturation: 100, Op: ColorOpNone},
	PresetDark:      {Brightness: 70, Contrast: 110, Saturation: 100, Op: ColorOpNone},
}

// Presets lists every preset in display order.
func Presets() []FilterPreset {
	return []FilterPreset{
		PresetNone,
		PresetGrayscale,
		PresetSepia,
		PresetVintage,
		PresetVivid,
		PresetClassic,
		PresetBright,
		PresetDark,
	}
}

func ParsePreset(raw string) (FilterPreset, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return PresetNone, nil
	}
	p := FilterPreset(raw)
	if !p.Valid() {
		return PresetNone, fmt.Errorf("unknown filter preset: %s", raw)
	}
	return p, nil
}

func (p FilterPreset) Valid() bool {
	_, ok := presetRecipes[p]
	return ok
}

func (p FilterPreset) Recipe() Recipe {
	if r, ok := presetRecipes[p]; ok {
		return r
	}
	return presetRecipes[PresetNone]
}

func (p FilterPreset) Op() ColorOp {
	return p.Recipe().Op
}

// Filters is the resolved filter parameter set sent alongside an edit.
type Filters struct {
	Brightness int          `json:"brightness"`
	Contrast   int          `json:"contrast"`
	Saturation int          `json:"saturation"`
	Filter     FilterPreset `json:"filter"`
}

func NeutralFilters() Filters {
	return Filters{
		Brightness: NeutralLevel,
		Contrast:   NeutralLevel,
		Saturation: NeutralLevel,
		Filter:     PresetNone,
	}
}

func (f Filters) IsIdentity() bool {
	return f.Brightness == NeutralLevel &&
		f.Contrast == NeutralLevel &&
		f.Saturation == NeutralLevel &&
		f.Filter.Op() == ColorOpNone
}

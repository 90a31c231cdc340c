package timeline

import (
	"fmt"
	"sort"
)

type TransitionKind string

const (
	TransitionFade   TransitionKind = "fade"
	TransitionSlide  TransitionKind = "slide"
	TransitionZoom   TransitionKind = "zoom"
	TransitionRotate TransitionKind = "rotate"
	TransitionBlur   TransitionKind = "blur"
)

// transitionDefaults holds the duration used when a transition is added
// without one.
var transitionDefaults = map[TransitionKind]float64{
	TransitionFade:   1,
	TransitionSlide:  1,
	TransitionZoom:   1.5,
	TransitionRotate: 2,
	TransitionBlur:   0.5,
}

// DefaultTransitionDuration returns the library duration for kind.
func DefaultTransitionDuration(kind TransitionKind) (float64, bool) {
	d, ok := transitionDefaults[kind]
	return d, ok
}

// TransitionKinds lists the known transition kinds sorted by name.
func TransitionKinds() []TransitionKind {
	kinds := make([]TransitionKind, 0, len(transitionDefaults))
	for k := range transitionDefaults {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

type EffectKind string

const (
	EffectVintage   EffectKind = "vintage"
	EffectDramatic  EffectKind = "dramatic"
	EffectCinematic EffectKind = "cinematic"
	EffectBW        EffectKind = "bw"
	EffectVibrant   EffectKind = "vibrant"
	EffectGlitch    EffectKind = "glitch"
	EffectVHS       EffectKind = "vhs"
	EffectNeon      EffectKind = "neon"
	EffectFadeIn    EffectKind = "fadeIn"
	EffectFadeOut   EffectKind = "fadeOut"
	EffectEcho      EffectKind = "echo"
	EffectReverb    EffectKind = "reverb"
	EffectPitch     EffectKind = "pitch"
)

type EffectCategory string

const (
	CategoryColor   EffectCategory = "color"
	CategorySpecial EffectCategory = "special"
	CategoryAudio   EffectCategory = "audio"
)

// ParamSpec bounds one effect parameter.
type ParamSpec struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// EffectSpec declares the parameters an effect kind accepts, in order.
type EffectSpec struct {
	Kind     EffectKind     `json:"kind"`
	Category EffectCategory `json:"category"`
	Params   []ParamSpec    `json:"params"`
}

var (
	intensityParam = func(def float64) ParamSpec {
		return ParamSpec{Name: "intensity", Min: 0, Max: 1, Default: def}
	}
	fadeParam = ParamSpec{Name: "duration", Min: 0, Max: 60, Default: 2}
)

var effectSpecs = map[EffectKind]EffectSpec{
	EffectVintage:   {Kind: EffectVintage, Category: CategoryColor, Params: []ParamSpec{intensityParam(1)}},
	EffectDramatic:  {Kind: EffectDramatic, Category: CategoryColor, Params: []ParamSpec{intensityParam(1)}},
	EffectCinematic: {Kind: EffectCinematic, Category: CategoryColor, Params: []ParamSpec{intensityParam(1)}},
	EffectBW:        {Kind: EffectBW, Category: CategoryColor, Params: []ParamSpec{intensityParam(1)}},
	EffectVibrant:   {Kind: EffectVibrant, Category: CategoryColor, Params: []ParamSpec{intensityParam(1)}},
	EffectGlitch:    {Kind: EffectGlitch, Category: CategorySpecial, Params: []ParamSpec{intensityParam(0.5)}},
	EffectVHS:       {Kind: EffectVHS, Category: CategorySpecial, Params: []ParamSpec{intensityParam(0.5)}},
	EffectNeon:      {Kind: EffectNeon, Category: CategorySpecial, Params: []ParamSpec{intensityParam(0.5)}},
	EffectFadeIn:    {Kind: EffectFadeIn, Category: CategoryAudio, Params: []ParamSpec{fadeParam}},
	EffectFadeOut:   {Kind: EffectFadeOut, Category: CategoryAudio, Params: []ParamSpec{fadeParam}},
	EffectEcho: {Kind: EffectEcho, Category: CategoryAudio, Params: []ParamSpec{
		intensityParam(0.5),
		{Name: "delay", Min: 0, Max: 5, Default: 0.25},
	}},
	EffectReverb: {Kind: EffectReverb, Category: CategoryAudio, Params: []ParamSpec{intensityParam(0.3)}},
	EffectPitch:  {Kind: EffectPitch, Category: CategoryAudio, Params: []ParamSpec{{Name: "pitch", Min: 0.25, Max: 4, Default: 1.2}}},
}

// LookupEffect returns the EffectSpec for kind.
func LookupEffect(kind EffectKind) (EffectSpec, bool) {
	spec, ok := effectSpecs[kind]
	return spec, ok
}

// EffectLibrary lists every known effect sorted by category then kind.
func EffectLibrary() []EffectSpec {
	specs := make([]EffectSpec, 0, len(effectSpecs))
	for _, s := range effectSpecs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Category != specs[j].Category {
			return specs[i].Category < specs[j].Category
		}
		return specs[i].Kind < specs[j].Kind
	})
	return specs
}

// buildParams validates caller values against the declared parameters and
// returns the complete list in declaration order, defaults filled in.
func (s EffectSpec) buildParams(values map[string]float64) ([]Param, error) {
	for name := range values {
		if !s.accepts(name) {
			return nil, fmt.Errorf("%w: %s does not take parameter %q", ErrInvalidEffect, s.Kind, name)
		}
	}

	params := make([]Param, 0, len(s.Params))
	for _, ps := range s.Params {
		v, ok := values[ps.Name]
		if !ok {
			v = ps.Default
		}
		if !finite(v) || v < ps.Min || v > ps.Max {
			return nil, fmt.Errorf("%w: %s.%s = %g outside [%g, %g]", ErrInvalidEffect, s.Kind, ps.Name, v, ps.Min, ps.Max)
		}
		params = append(params, Param{Name: ps.Name, Value: v})
	}
	return params, nil
}

func (s EffectSpec) accepts(name string) bool {
	for _, ps := range s.Params {
		if ps.Name == name {
			return true
		}
	}
	return false
}

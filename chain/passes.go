package chain

import "github.com/richinsley/gosketch/effects"

// WatercolorPass is a Pass with live-editable watercolor parameters.
type WatercolorPass interface {
	Pass
	ResolutionDependent
	Params() effects.WatercolorParams
	SetParams(effects.WatercolorParams)
}

// PencilPass is a Pass with live-editable pencil-lines parameters.
type PencilPass interface {
	Pass
	ResolutionDependent
	Params() effects.PencilParams
	SetParams(effects.PencilParams)
}

// Factory is a Backend that can also build the stylization passes.
type Factory interface {
	Backend
	NewWatercolorPass(effects.WatercolorParams) (WatercolorPass, error)
	NewPencilPass(effects.PencilParams) (PencilPass, error)
}

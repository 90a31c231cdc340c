package timeline

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrOverlap            = errors.New("placement overlaps an existing placement")
	ErrInvalidTrim        = errors.New("invalid trim window")
	ErrInvalidSplit       = errors.New("invalid split offset")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInvalidEffect      = errors.New("invalid effect")
	ErrInvalidPosition    = errors.New("invalid timeline position")
	ErrInvalidVolume      = errors.New("invalid volume")
	ErrTrackNotFound      = errors.New("track not found")
	ErrIncompatibleTracks = errors.New("placements are on incompatible tracks")
	ErrClipInUse          = errors.New("clip is referenced by a placement")
	ErrInvalidAsset       = errors.New("invalid asset")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrNothingToRedo      = errors.New("nothing to redo")
	ErrInvalidRecord      = errors.New("invalid timeline record")
)

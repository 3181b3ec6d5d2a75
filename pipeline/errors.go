package pipeline

import (
	"errors"
	"fmt"

	n5 "github.com/TuSKan/n5-gomlx"
)

// ErrAnisotropicXY is returned when the X and Y pixel resolutions differ.
var ErrAnisotropicXY = errors.New("pixel resolution is different in X / Y")

// BlockTaskError reports the failure of the block task writing Position of
// the dataset at Path.
type BlockTaskError struct {
	Path     string
	Position n5.GridPosition
	Err      error
}

func (e *BlockTaskError) Error() string {
	return fmt.Sprintf("block task %s %v: %v", e.Path, []int64(e.Position), e.Err)
}

func (e *BlockTaskError) Unwrap() error { return e.Err }

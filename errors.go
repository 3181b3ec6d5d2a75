package n5

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetExists is returned when creating a dataset at a path that is already populated.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrNotFound is returned when a dataset or attribute record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedDataType is returned for element types outside the supported numeric set.
	ErrUnsupportedDataType = errors.New("unsupported data type")

	// ErrInvalidArguments is returned for malformed block sizes, compressions or other parameters.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// ErrDimensionMismatch indicates that two shapes disagree in length or extent.
type ErrDimensionMismatch struct {
	Expected []int
	Actual   []int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %v, got %v", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidArguments }

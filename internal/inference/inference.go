// Package inference defines the boundary to the neural-network runtime.
// The face pipeline only sees models as opaque handles that map an input
// tensor to output tensors.
package inference

import (
	"errors"
	"fmt"
)

// ErrEmptyModel is returned when a runtime is asked to load zero bytes.
var ErrEmptyModel = errors.New("model data is empty")

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	return Tensor{Shape: shape, Data: make([]float32, elements(shape))}
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	return elements(t.Shape)
}

// Validate checks that the data length matches the shape.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return errors.New("tensor has no shape")
	}
	if n := t.Len(); n != len(t.Data) {
		return fmt.Errorf("tensor shape %v needs %d elements, has %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// LastDim returns the size of the innermost dimension, or 0 for an empty shape.
func (t Tensor) LastDim() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}

func elements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Model is an activated, runnable model handle.
type Model interface {
	// Run executes a forward pass and returns every output tensor of the network.
	Run(input Tensor) ([]Tensor, error)
	// Close releases the runtime resources held by the model.
	Close() error
}

// Runtime parses serialized model bytes into runnable handles.
type Runtime interface {
	// Load parses data as a model. It must fail on empty or malformed input.
	Load(data []byte) (Model, error)
}

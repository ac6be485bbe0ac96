// Package opencv runs ONNX models through the OpenCV DNN module.
package opencv

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/inference"
	"gocv.io/x/gocv"
)

// Runtime loads ONNX models from memory.
type Runtime struct {
	Backend gocv.NetBackendType
	Target  gocv.NetTargetType
}

// NewRuntime creates a CPU runtime with OpenCV's default backend.
func NewRuntime() *Runtime {
	return &Runtime{
		Backend: gocv.NetBackendDefault,
		Target:  gocv.NetTargetCPU,
	}
}

// Load parses ONNX bytes into a network.
func (r *Runtime) Load(data []byte) (inference.Model, error) {
	if len(data) == 0 {
		return nil, inference.ErrEmptyModel
	}

	net, err := gocv.ReadNetFromONNXBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing ONNX model: %w", err)
	}
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("parsing ONNX model: network is empty")
	}

	if err := net.SetPreferableBackend(r.Backend); err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("setting backend: %w", err)
	}
	if err := net.SetPreferableTarget(r.Target); err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("setting target: %w", err)
	}

	return &model{net: net, outputs: outputNames(&net)}, nil
}

// outputNames returns the names of the unconnected output layers.
func outputNames(net *gocv.Net) []string {
	var names []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		name := layer.GetName()
		if name != "_input" {
			names = append(names, name)
		}
	}
	return names
}

type model struct {
	mu      sync.Mutex // gocv.Net is not safe for concurrent forward passes
	net     gocv.Net
	outputs []string
}

func (m *model) Run(input inference.Tensor) ([]inference.Tensor, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	blob, err := gocv.NewMatWithSizesFromBytes(input.Shape, gocv.MatTypeCV32F, float32Bytes(input.Data))
	if err != nil {
		return nil, fmt.Errorf("creating input blob: %w", err)
	}
	defer blob.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, "")
	mats := m.net.ForwardLayers(m.outputs)
	defer func() {
		for i := range mats {
			_ = mats[i].Close()
		}
	}()

	out := make([]inference.Tensor, 0, len(mats))
	for i := range mats {
		data, err := mats[i].DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("reading output %s: %w", m.outputs[i], err)
		}
		t := inference.Tensor{
			Shape: mats[i].Size(),
			Data:  append([]float32(nil), data...), // DataPtr points into Mat memory
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.net.Close(); err != nil {
		return fmt.Errorf("closing network: %w", err)
	}
	return nil
}

func float32Bytes(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

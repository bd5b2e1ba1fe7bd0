package network

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Checkpoint is a serialized snapshot of a QNet's parameters together
// with the architecture they belong to. A Checkpoint is only loadable
// into a network of the identical architecture; dimension mismatches
// fail loudly instead of silently truncating or padding.
type Checkpoint struct {
	Features int
	Outputs  int
	Hidden   []int
	Shapes   [][]int
	Weights  [][]float64
}

// Snapshot captures the current parameters of the QNet.
func (q *QNet) Snapshot() Checkpoint {
	learnables := q.Learnables()

	cp := Checkpoint{
		Features: q.features,
		Outputs:  q.outputs,
		Hidden:   append([]int{}, q.hidden...),
		Shapes:   make([][]int, len(learnables)),
		Weights:  make([][]float64, len(learnables)),
	}

	for i, node := range learnables {
		shape := node.Shape()
		cp.Shapes[i] = append([]int{}, shape...)

		data := node.Value().Data().([]float64)
		cp.Weights[i] = append([]float64{}, data...)
	}
	return cp
}

// Restore sets the QNet's parameters from a Checkpoint. The
// checkpoint's architecture must match exactly.
func (q *QNet) Restore(cp Checkpoint) error {
	if cp.Features != q.features || cp.Outputs != q.outputs {
		return fmt.Errorf("restore: architecture mismatch: checkpoint is "+
			"%vx%v, network is %vx%v", cp.Features, cp.Outputs,
			q.features, q.outputs)
	}
	if len(cp.Hidden) != len(q.hidden) {
		return fmt.Errorf("restore: checkpoint has %v hidden layers, "+
			"network has %v", len(cp.Hidden), len(q.hidden))
	}
	for i := range cp.Hidden {
		if cp.Hidden[i] != q.hidden[i] {
			return fmt.Errorf("restore: hidden layer %v has width %v in "+
				"checkpoint, %v in network", i, cp.Hidden[i], q.hidden[i])
		}
	}

	learnables := q.Learnables()
	if len(cp.Weights) != len(learnables) {
		return fmt.Errorf("restore: checkpoint has %v parameter tensors, "+
			"network has %v", len(cp.Weights), len(learnables))
	}

	for i, node := range learnables {
		shape := node.Shape()
		if !sameShape(shape, cp.Shapes[i]) {
			return fmt.Errorf("restore: parameter %v has shape %v in "+
				"checkpoint, %v in network", i, cp.Shapes[i], shape)
		}
		if len(cp.Weights[i]) != shape.TotalSize() {
			return fmt.Errorf("restore: parameter %v has %v values for "+
				"shape %v", i, len(cp.Weights[i]), shape)
		}

		backing := append([]float64{}, cp.Weights[i]...)
		t := tensor.New(tensor.WithShape(shape...),
			tensor.WithBacking(backing))
		if err := G.Let(node, t); err != nil {
			return fmt.Errorf("restore: could not set parameter %v: %v",
				i, err)
		}
	}
	return nil
}

// Save persists a Checkpoint to path. The file is written to a
// temporary sibling and renamed into place so an interrupted write
// never leaves a partial checkpoint observable.
func Save(path string, cp Checkpoint) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save: could not create checkpoint dir: %v", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("save: could not create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(cp); err != nil {
		tmp.Close()
		return fmt.Errorf("save: could not encode checkpoint: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save: could not close temp file: %v", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save: could not rename checkpoint into "+
			"place: %v", err)
	}
	return nil
}

// Load reads a Checkpoint from path.
func Load(path string) (Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load: could not open "+
			"checkpoint: %v", err)
	}
	defer f.Close()

	var cp Checkpoint
	if err := gob.NewDecoder(f).Decode(&cp); err != nil {
		return Checkpoint{}, fmt.Errorf("load: could not decode "+
			"checkpoint: %v", err)
	}
	return cp, nil
}

func sameShape(a tensor.Shape, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

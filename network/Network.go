// Package network implements the trainable action-value function as a
// fully connected multi-layered perceptron over a Gorgonia
// computational graph. The network is treated as an opaque function
// approximator by the rest of the module: forward evaluation, weight
// copying/blending, and parameter persistence are the whole contract.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	relu    bool
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not add bias: %v", err)
	}

	if f.relu {
		return G.Rectify(x)
	}
	return x, nil
}

// cloneTo clones an fcLayer to a new computational graph
func (f *fcLayer) cloneTo(g *G.ExprGraph) *fcLayer {
	return &fcLayer{
		weights: f.weights.CloneTo(g),
		bias:    f.bias.CloneTo(g),
		relu:    f.relu,
	}
}

// QNet is a multi-layered perceptron mapping state vectors to one
// action value per discrete action. Hidden layers use ReLU
// activations; the output layer is linear.
type QNet struct {
	g      *G.ExprGraph
	input  *G.Node
	layers []*fcLayer

	features  int
	outputs   int
	batchSize int
	hidden    []int

	prediction *G.Node
	predVal    G.Value

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewQNet creates and returns a new QNet taking batchSize rows of
// features inputs and producing outputs action values per row. Hidden
// weights are initialized with init; a nil init uses Glorot Normal.
// Biases start at zero.
func NewQNet(features, batchSize, outputs int, hidden []int,
	init G.InitWFn) (*QNet, error) {
	if features <= 0 || outputs <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("newqnet: dimensions must be positive, "+
			"have features=%v batch=%v outputs=%v", features, batchSize,
			outputs)
	}
	if len(hidden) == 0 {
		return nil, fmt.Errorf("newqnet: need at least one hidden layer")
	}
	if init == nil {
		init = G.GlorotN(1.0)
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batchSize, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	layers := make([]*fcLayer, 0, len(hidden)+1)
	in := features
	for i, out := range append(hidden, outputs) {
		last := i == len(hidden)
		layers = append(layers, &fcLayer{
			weights: G.NewMatrix(g, tensor.Float64, G.WithShape(in, out),
				G.WithName(fmt.Sprintf("layer%vW", i)),
				G.WithInit(init)),
			bias: G.NewMatrix(g, tensor.Float64, G.WithShape(1, out),
				G.WithName(fmt.Sprintf("layer%vB", i)),
				G.WithInit(G.Zeroes())),
			relu: !last,
		})
		in = out
	}

	net := &QNet{
		g:         g,
		input:     input,
		layers:    layers,
		features:  features,
		outputs:   outputs,
		batchSize: batchSize,
		hidden:    hidden,
	}
	if err := net.fwd(); err != nil {
		return nil, err
	}
	return net, nil
}

// fwd performs the forward pass of the QNet on the input node
func (q *QNet) fwd() error {
	pred := q.input
	var err error
	for i, l := range q.layers {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	q.prediction = pred
	G.Read(q.prediction, &q.predVal)
	return nil
}

// CloneWithBatch clones the QNet onto a fresh computational graph with
// a new input batch size. The clone starts with the same weight values
// but shares no state with the original.
func (q *QNet) CloneWithBatch(batchSize int) (*QNet, error) {
	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, q.features), G.WithName("input"),
		G.WithInit(G.Zeroes()))

	layers := make([]*fcLayer, len(q.layers))
	for i := range q.layers {
		layers[i] = q.layers[i].cloneTo(g)
	}

	net := &QNet{
		g:         g,
		input:     input,
		layers:    layers,
		features:  q.features,
		outputs:   q.outputs,
		batchSize: batchSize,
		hidden:    q.hidden,
	}
	if err := net.fwd(); err != nil {
		return nil, err
	}
	return net, nil
}

// Graph returns the computational graph of the QNet
func (q *QNet) Graph() *G.ExprGraph { return q.g }

// Features returns the number of features in a single input row
func (q *QNet) Features() int { return q.features }

// Outputs returns the number of action values predicted per input row
func (q *QNet) Outputs() int { return q.outputs }

// BatchSize returns the batch size of inputs to the network
func (q *QNet) BatchSize() int { return q.batchSize }

// Prediction returns the node of the computational graph that stores
// the network's predictions
func (q *QNet) Prediction() *G.Node { return q.prediction }

// Output returns the predictions made on the last run of the
// network's graph
func (q *QNet) Output() G.Value { return q.predVal }

// SetInput sets the value of the input node before running the forward
// pass. An input of the wrong length is a contract violation and is
// reported, never silently tolerated.
func (q *QNet) SetInput(input []float64) error {
	if len(input) != q.features*q.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", q.features*q.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(q.batchSize, q.features),
	)
	return G.Let(q.input, inputTensor)
}

// Learnables returns the learnable nodes of the QNet
func (q *QNet) Learnables() G.Nodes {
	if q.learnables == nil {
		q.learnables = make(G.Nodes, 0, 2*len(q.layers))
		for _, l := range q.layers {
			q.learnables = append(q.learnables, l.weights, l.bias)
		}
	}
	return q.learnables
}

// Model returns the learnable nodes with their gradients
func (q *QNet) Model() []G.ValueGrad {
	if q.model == nil {
		q.model = make([]G.ValueGrad, 0, 2*len(q.layers))
		for _, node := range q.Learnables() {
			q.model = append(q.model, node)
		}
	}
	return q.model
}

// Set sets the weights of the QNet to be equal to the weights of
// another QNet (hard copy).
func (q *QNet) Set(source *QNet) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: source has %v learnables, have %v",
			len(sourceNodes), len(nodes))
	}
	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the weights of the QNet to a convex blend between its
// existing weights and the weights of another QNet:
//
//	w <- tau*source + (1-tau)*w
func (q *QNet) Polyak(source *QNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: source has %v learnables, have %v",
			len(sourceNodes), len(nodes))
	}
	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}

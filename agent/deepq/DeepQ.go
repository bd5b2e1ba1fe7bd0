// Package deepq implements the double deep Q-learning algorithm with
// experience replay and soft target network updates.
package deepq

import (
	"fmt"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"raceline/environment"
	"raceline/expreplay"
	"raceline/network"
	"raceline/solver"
	ts "raceline/timestep"
	"raceline/utils/floatutils"
)

// DeepQ implements double deep Q-learning. Action selection for the
// update target uses the learned network, while evaluation of the
// selected action uses a separate target network that trails the
// learned weights by Polyak averaging. The loss is the mean squared
// TD error.
type DeepQ struct {
	// Network for selecting actions at single states
	predictNet *network.QNet
	predictVM  G.VM

	// Batch network that selects the next-state actions for the update
	// target. Kept in sync with the learned weights after every
	// gradient step.
	policyNet *network.QNet
	policyVM  G.VM

	// Batch network that evaluates the selected next-state actions.
	// Updated by Polyak averaging, so it trails the learned weights.
	targetNet *network.QNet
	targetVM  G.VM

	// Network whose weights are adapted, along with its loss graph
	trainNet *network.QNet
	trainVM  G.VM
	adam     *solver.Adam

	// Input nodes of the loss graph. nextActionValues holds
	// Q_target(s', argmax_a' Q(s', a')), computed outside the graph by
	// running policyNet and targetNet.
	selectedActions  *G.Node
	nextActionValues *G.Node
	rewards          *G.Node
	discounts        *G.Node
	lossVal          G.Value

	features   int
	numActions int
	batchSize  int
	tau        float64

	epsilon float64
	rng     *rand.Rand
	eval    bool
}

// New creates and returns a new DeepQ agent
func New(env environment.Environment, config Config,
	seed int64) (*DeepQ, error) {
	// Ensure environment has discrete actions
	if env.ActionSpec().Cardinality != environment.Discrete {
		return nil, fmt.Errorf("deepq: cannot use non-discrete actions")
	}

	// Ensure actions are one-dimensional and enumerated from 0
	if env.ActionSpec().LowerBound.Len() > 1 {
		return nil, fmt.Errorf("deepq: actions must be 1-dimensional")
	}
	if env.ActionSpec().LowerBound.AtVec(0) != 0.0 {
		return nil, fmt.Errorf("deepq: actions must be enumerated " +
			"starting from 0")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	features := env.ObservationSpec().Shape.Len()
	numActions := int(env.ActionSpec().UpperBound.AtVec(0)) + 1
	batchSize := config.BatchSize

	var init G.InitWFn
	if config.Init != nil {
		init = config.Init.InitWFn()
	}

	// The learned network; all other networks are clones of it so that
	// every network starts from the same weights
	trainNet, err := network.NewQNet(features, batchSize, numActions,
		config.Hidden, init)
	if err != nil {
		return nil, fmt.Errorf("deepq: could not create train "+
			"network: %v", err)
	}

	predictNet, err := trainNet.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("deepq: could not create prediction "+
			"network: %v", err)
	}

	policyNet, err := trainNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("deepq: could not create policy "+
			"network: %v", err)
	}

	targetNet, err := trainNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("deepq: could not create target "+
			"network: %v", err)
	}

	// Build the loss on the train network's graph:
	//
	//	loss = mean[(r + γ * Q_target(s', a*) - Q(s, a))²]
	//
	// where a* is chosen by the learned network on s'. The discount is
	// zero on terminal transitions, so the target reduces to r there.
	gTrain := trainNet.Graph()

	nextActionValues := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(batchSize), G.WithName("nextActionValues"))
	rewards := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(batchSize), G.WithName("rewards"))
	discounts := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(batchSize), G.WithName("discounts"))

	updateTarget := G.Must(G.HadamardProd(nextActionValues, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected at the previous state as a one-hot row, needed
	// to pick the predicted value of the taken action out of the
	// network's row of action values
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("selectedActions"))
	selectedActionValues := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionValues = G.Must(G.Sum(selectedActionValues, 1))

	losses := G.Must(G.Sub(updateTarget, selectedActionValues))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	d := &DeepQ{
		predictNet:       predictNet,
		policyNet:        policyNet,
		targetNet:        targetNet,
		trainNet:         trainNet,
		selectedActions:  selectedActions,
		nextActionValues: nextActionValues,
		rewards:          rewards,
		discounts:        discounts,
		features:         features,
		numActions:       numActions,
		batchSize:        batchSize,
		tau:              config.Tau,
		epsilon:          config.Epsilon,
		rng:              rand.New(rand.NewSource(uint64(seed))),
	}
	G.Read(cost, &d.lossVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		panic(fmt.Sprintf("deepq: could not compute gradient: %v", err))
	}

	d.predictVM = G.NewTapeMachine(predictNet.Graph())
	d.policyVM = G.NewTapeMachine(policyNet.Graph())
	d.targetVM = G.NewTapeMachine(targetNet.Graph())
	d.trainVM = G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	d.adam, err = solver.NewAdam(config.Solver)
	if err != nil {
		return nil, fmt.Errorf("deepq: %v", err)
	}

	return d, nil
}

// Step performs a single gradient update on the given batch and
// returns the mean squared TD error of the update.
func (d *DeepQ) Step(batch *expreplay.Batch) (float64, error) {
	if batch.Size != d.batchSize {
		return 0, fmt.Errorf("step: invalid batch size \n\twant(%v) "+
			"\n\thave(%v)", d.batchSize, batch.Size)
	}

	// Select the greedy next-state actions with the learned weights
	if err := d.policyNet.SetInput(batch.NextStates); err != nil {
		return 0, fmt.Errorf("step: could not set policy net input: %v",
			err)
	}
	if err := d.policyVM.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run policy net: %v", err)
	}
	policyValues := d.policyNet.Output().Data().([]float64)
	greedy := make([]int, d.batchSize)
	for i := range greedy {
		row := policyValues[i*d.numActions : (i+1)*d.numActions]
		greedy[i] = floatutils.ArgMax(row)
	}
	d.policyVM.Reset()

	// Evaluate the selected actions with the target network
	if err := d.targetNet.SetInput(batch.NextStates); err != nil {
		return 0, fmt.Errorf("step: could not set target net input: %v",
			err)
	}
	if err := d.targetVM.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run target net: %v", err)
	}
	targetValues := d.targetNet.Output().Data().([]float64)
	nextQ := make([]float64, d.batchSize)
	for i, action := range greedy {
		nextQ[i] = targetValues[i*d.numActions+action]
	}
	d.targetVM.Reset()

	// One-hot vectors of the actions taken at the previous states
	oneHot := make([]float64, d.batchSize*d.numActions)
	for i, action := range batch.Actions {
		if action < 0 || action >= d.numActions {
			return 0, fmt.Errorf("step: invalid action in batch "+
				"\n\twant(∈ [0, %v)) \n\thave(%v)", d.numActions, action)
		}
		oneHot[i*d.numActions+action] = 1.0
	}

	if err := d.trainNet.SetInput(batch.States); err != nil {
		return 0, fmt.Errorf("step: could not set train net input: %v",
			err)
	}
	if err := G.Let(d.selectedActions, tensor.New(
		tensor.WithShape(d.batchSize, d.numActions),
		tensor.WithBacking(oneHot),
	)); err != nil {
		return 0, fmt.Errorf("step: could not set selected actions: %v",
			err)
	}
	if err := G.Let(d.nextActionValues, tensor.New(
		tensor.WithShape(d.batchSize),
		tensor.WithBacking(nextQ),
	)); err != nil {
		return 0, fmt.Errorf("step: could not set next action "+
			"values: %v", err)
	}
	if err := G.Let(d.rewards, tensor.New(
		tensor.WithShape(d.batchSize),
		tensor.WithBacking(batch.Rewards),
	)); err != nil {
		return 0, fmt.Errorf("step: could not set rewards: %v", err)
	}
	if err := G.Let(d.discounts, tensor.New(
		tensor.WithShape(d.batchSize),
		tensor.WithBacking(batch.Discounts),
	)); err != nil {
		return 0, fmt.Errorf("step: could not set discounts: %v", err)
	}

	// Run the learning step
	if err := d.trainVM.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run training step: %v",
			err)
	}
	loss := d.lossVal.Data().(float64)
	if err := d.adam.Step(d.trainNet.Model()); err != nil {
		return 0, fmt.Errorf("step: could not adapt weights: %v", err)
	}
	d.trainVM.Reset()

	// Soft update of the target network toward the learned weights,
	// and hard sync of the action-selection networks
	if err := d.targetNet.Polyak(d.trainNet, d.tau); err != nil {
		return 0, fmt.Errorf("step: could not update target net: %v",
			err)
	}
	if err := d.predictNet.Set(d.trainNet); err != nil {
		return 0, fmt.Errorf("step: could not sync prediction net: %v",
			err)
	}
	if err := d.policyNet.Set(d.trainNet); err != nil {
		return 0, fmt.Errorf("step: could not sync policy net: %v", err)
	}

	return loss, nil
}

// Predict returns the action values for a single observation
func (d *DeepQ) Predict(obs []float64) ([]float64, error) {
	if err := d.predictNet.SetInput(obs); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	if err := d.predictVM.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run prediction "+
			"network: %v", err)
	}
	values := make([]float64, d.numActions)
	copy(values, d.predictNet.Output().Data().([]float64))
	d.predictVM.Reset()

	return values, nil
}

// SelectAction returns the action to take at the given timestep. In
// training mode the action is ε-greedy with respect to the learned
// action values; in evaluation mode it is greedy.
func (d *DeepQ) SelectAction(t ts.TimeStep) (int, error) {
	if !d.eval && d.rng.Float64() < d.epsilon {
		return d.rng.Intn(d.numActions), nil
	}

	obs := make([]float64, t.Observation.Len())
	for i := range obs {
		obs[i] = t.Observation.AtVec(i)
	}

	values, err := d.Predict(obs)
	if err != nil {
		return 0, fmt.Errorf("selectaction: %v", err)
	}

	return floatutils.ArgMax(values), nil
}

// SetEpsilon sets the exploration rate used in training mode
func (d *DeepQ) SetEpsilon(epsilon float64) { d.epsilon = epsilon }

// Epsilon returns the current exploration rate
func (d *DeepQ) Epsilon() float64 { return d.epsilon }

// Eval sets the agent into evaluation mode
func (d *DeepQ) Eval() { d.eval = true }

// Train sets the agent into training mode
func (d *DeepQ) Train() { d.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool { return d.eval }

// SetLearningRate changes the optimizer's step size
func (d *DeepQ) SetLearningRate(lr float64) error {
	return d.adam.SetStepSize(lr)
}

// LearningRate returns the optimizer's current step size
func (d *DeepQ) LearningRate() float64 {
	return d.adam.StepSize()
}

// Save persists the learned weights to the given path
func (d *DeepQ) Save(path string) error {
	return network.Save(path, d.trainNet.Snapshot())
}

// Load restores previously saved weights into every network of the
// agent. The target network receives a hard copy, so resumed training
// starts with target and learned weights identical.
func (d *DeepQ) Load(path string) error {
	cp, err := network.Load(path)
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}

	for _, net := range []*network.QNet{d.trainNet, d.predictNet,
		d.policyNet, d.targetNet} {
		if err := net.Restore(cp); err != nil {
			return fmt.Errorf("load: %v", err)
		}
	}

	return nil
}

// Close releases the virtual machines backing the agent's networks
func (d *DeepQ) Close() error {
	for _, vm := range []G.VM{d.predictVM, d.policyVM, d.targetVM,
		d.trainVM} {
		if err := vm.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NumActions returns the number of actions the agent selects between
func (d *DeepQ) NumActions() int { return d.numActions }

// Package initwfn wraps Gorgonia weight initialization algorithms so
// that they can be JSON serialized into configuration files.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"

	G "gorgonia.org/gorgonia"
)

// Type describes the different initialization algorithms available
type Type string

// Available initialization algorithms
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	Zeroes   Type = "Zeroes"
	Constant Type = "Constant"
)

// Config describes a configuration of a weight initialization
// algorithm
type Config interface {
	Type() Type
	Create() G.InitWFn
}

// InitWFn wraps a Gorgonia InitWFn so that it can be JSON marshalled
// and unmarshalled
type InitWFn struct {
	initWFn G.InitWFn
	Type
	Config
}

func newInitWFn(c Config) (*InitWFn, error) {
	init := InitWFn{Type: c.Type(), Config: c}
	init.initWFn = c.Create()
	return &init, nil
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (w *InitWFn) InitWFn() G.InitWFn {
	return w.initWFn
}

// String implements the fmt.Stringer interface
func (w *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", w.Type, w.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (w *InitWFn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	configType, ok := registry[raw.Type]
	if !ok {
		return fmt.Errorf("unmarshaljson: no such initialization "+
			"algorithm %v", raw.Type)
	}

	config := reflect.New(configType)
	if err := json.Unmarshal(raw.Config, config.Interface()); err != nil {
		return err
	}

	w.Type = raw.Type
	w.Config = config.Elem().Interface().(Config)
	w.initWFn = w.Config.Create()
	return nil
}

var registry = map[Type]reflect.Type{
	GlorotU:  reflect.TypeOf(GlorotUConfig{}),
	GlorotN:  reflect.TypeOf(GlorotNConfig{}),
	Zeroes:   reflect.TypeOf(ZeroesConfig{}),
	Constant: reflect.TypeOf(ConstantConfig{}),
}

// GlorotUConfig configures Glorot Uniform initialization
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of the initialization algorithm
func (g GlorotUConfig) Type() Type { return GlorotU }

// Create returns the algorithm as a Gorgonia InitWFn
func (g GlorotUConfig) Create() G.InitWFn { return G.GlorotU(g.Gain) }

// GlorotNConfig configures Glorot Normal initialization
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a new Glorot Normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Type returns the type of the initialization algorithm
func (g GlorotNConfig) Type() Type { return GlorotN }

// Create returns the algorithm as a Gorgonia InitWFn
func (g GlorotNConfig) Create() G.InitWFn { return G.GlorotN(g.Gain) }

// ZeroesConfig configures zero initialization
type ZeroesConfig struct{}

// NewZeroes returns a new zero weight initializer
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// Type returns the type of the initialization algorithm
func (z ZeroesConfig) Type() Type { return Zeroes }

// Create returns the algorithm as a Gorgonia InitWFn
func (z ZeroesConfig) Create() G.InitWFn { return G.Zeroes() }

// ConstantConfig configures constant-value initialization
type ConstantConfig struct {
	Value float64
}

// NewConstant returns a new constant weight initializer
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{Value: value})
}

// Type returns the type of the initialization algorithm
func (c ConstantConfig) Type() Type { return Constant }

// Create returns the algorithm as a Gorgonia InitWFn
func (c ConstantConfig) Create() G.InitWFn {
	return G.ValuesOf(c.Value)
}

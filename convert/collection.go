package convert

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Tensor is one named payload lifted out of a shard. Data holds the
// serialized bytes exactly as stored, whatever the dtype.
type Tensor struct {
	Name  string
	Dtype string
	Shape []uint64
	Data  []byte
}

// Elements returns the number of elements the shape describes.
func (t Tensor) Elements() uint64 {
	n := uint64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// TensorCollection maps renamed identifiers to tensors, preserving
// insertion order so the output container is deterministic.
type TensorCollection struct {
	m *linkedhashmap.Map
}

func NewTensorCollection() *TensorCollection {
	return &TensorCollection{m: linkedhashmap.New()}
}

func (c *TensorCollection) Put(t Tensor) {
	c.m.Put(t.Name, t)
}

func (c *TensorCollection) Get(name string) (Tensor, bool) {
	v, ok := c.m.Get(name)
	if !ok {
		return Tensor{}, false
	}
	return v.(Tensor), true
}

func (c *TensorCollection) Len() int {
	return c.m.Size()
}

// Names returns the renamed identifiers in insertion order.
func (c *TensorCollection) Names() []string {
	keys := c.m.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

// Tensors returns the tensors in insertion order.
func (c *TensorCollection) Tensors() []Tensor {
	values := c.m.Values()
	ts := make([]Tensor, len(values))
	for i, v := range values {
		ts[i] = v.(Tensor)
	}
	return ts
}

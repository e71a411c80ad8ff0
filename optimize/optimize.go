// Package optimize implements stochastic gradient optimizers of the variational parameters.
package optimize

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Optimizer turns an energy gradient into the step subtracted from the parameters.
type Optimizer interface {
	Update(gradient *mat.Dense) *mat.Dense
}

// SGD is plain gradient descent, step = eta * g.
type SGD struct {
	eta  float64
	step *mat.Dense
}

func NewSGD(eta float64) *SGD {
	return &SGD{eta: eta}
}

func (o *SGD) Update(gradient *mat.Dense) *mat.Dense {
	o.step = resize(o.step, gradient)
	o.step.Scale(o.eta, gradient)
	return o.step
}

// ASGD is gradient descent with momentum and a 1/sqrt(t) decaying rate,
// v = gamma v + eta g / sqrt(t).
type ASGD struct {
	eta   float64
	gamma float64
	t     int
	v     *mat.Dense
}

func NewASGD(eta, gamma float64) *ASGD {
	return &ASGD{eta: eta, gamma: gamma}
}

func (o *ASGD) Update(gradient *mat.Dense) *mat.Dense {
	o.v = resize(o.v, gradient)
	o.t++
	rate := o.eta / math.Sqrt(float64(o.t))
	o.v.Scale(o.gamma, o.v)
	o.v.Apply(func(i, j int, v float64) float64 {
		return v + rate*gradient.At(i, j)
	}, o.v)
	return o.v
}

// AdamOptions are options of the Adam optimizer.
type AdamOptions struct {
	eta     float64
	beta1   float64
	beta2   float64
	epsilon float64
}

// NewAdamOptions returns the default Adam options.
func NewAdamOptions() AdamOptions {
	opt := AdamOptions{}
	opt.eta = 0.001
	opt.beta1 = 0.9
	opt.beta2 = 0.999
	opt.epsilon = 1e-8
	return opt
}

// LearningRate sets the learning rate.
func (opt AdamOptions) LearningRate(eta float64) AdamOptions {
	opt.eta = eta
	return opt
}

// Betas sets the decay rates of the first and second moments.
func (opt AdamOptions) Betas(beta1, beta2 float64) AdamOptions {
	opt.beta1, opt.beta2 = beta1, beta2
	return opt
}

// Epsilon sets the term added to the denominator.
func (opt AdamOptions) Epsilon(epsilon float64) AdamOptions {
	opt.epsilon = epsilon
	return opt
}

// Adam is the optimizer of Kingma and Ba, Adam: A Method for Stochastic Optimization.
type Adam struct {
	opt  AdamOptions
	t    int
	m    *mat.Dense
	v    *mat.Dense
	step *mat.Dense
}

func NewAdam(options ...AdamOptions) *Adam {
	opt := NewAdamOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	return &Adam{opt: opt}
}

func (o *Adam) Update(gradient *mat.Dense) *mat.Dense {
	o.m = resize(o.m, gradient)
	o.v = resize(o.v, gradient)
	o.step = resize(o.step, gradient)
	o.t++

	b1, b2 := o.opt.beta1, o.opt.beta2
	c1 := 1 - math.Pow(b1, float64(o.t))
	c2 := 1 - math.Pow(b2, float64(o.t))
	rows, cols := gradient.Dims()
	for i := range rows {
		for j := range cols {
			g := gradient.At(i, j)
			m := b1*o.m.At(i, j) + (1-b1)*g
			v := b2*o.v.At(i, j) + (1-b2)*g*g
			o.m.Set(i, j, m)
			o.v.Set(i, j, v)
			o.step.Set(i, j, o.opt.eta*(m/c1)/(math.Sqrt(v/c2)+o.opt.epsilon))
		}
	}
	return o.step
}

// resize returns m if it is shaped like like, or else a new zero matrix of that shape.
func resize(m *mat.Dense, like mat.Matrix) *mat.Dense {
	r, c := like.Dims()
	if m != nil {
		if mr, mc := m.Dims(); mr == r && mc == c {
			return m
		}
	}
	return mat.NewDense(r, c, nil)
}

package nn

// Parameter is a named trainable buffer of a network.
//
// Value aliases the owning layer's storage: writing through it updates the
// layer in place. Names follow "layer.<index>.weight" / "layer.<index>.bias".
type Parameter struct {
	Name  string
	Value []float64
}

// Update pairs a parameter with the gradient to apply to it in one step.
type Update struct {
	Parameter
	Grad []float64 // same length as Value
}

// Updater applies one optimization step to a set of parameters.
//
// It is declared here rather than in the optim package so that Network can
// drive any optimizer without an import cycle.
type Updater interface {
	Step(updates []Update) error
}

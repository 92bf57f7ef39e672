package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/densenet-ml/densenet/internal/nn"
	"github.com/densenet-ml/densenet/internal/optim"
)

func update(name string, value, grad []float64) nn.Update {
	return nn.Update{Parameter: nn.Parameter{Name: name, Value: value}, Grad: grad}
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	x := []float64{2.0}
	sgd := optim.NewSGD(optim.SGDConfig{LR: 0.1})

	require.NoError(t, sgd.Step([]nn.Update{update("x", x, []float64{1.0})}))

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, x[0], 1e-15)
	assert.Empty(t, sgd.StateDict())
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	x := []float64{1.0}
	sgd := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	// velocity = 1.0, x = 1.0 - 0.1
	require.NoError(t, sgd.Step([]nn.Update{update("x", x, []float64{1.0})}))
	assert.InDelta(t, 0.9, x[0], 1e-15)

	// velocity = 0.9 + 1.0, x = 0.9 - 0.19
	require.NoError(t, sgd.Step([]nn.Update{update("x", x, []float64{1.0})}))
	assert.InDelta(t, 0.71, x[0], 1e-12)

	state := sgd.StateDict()
	assert.InDeltaSlice(t, []float64{1.9}, state["velocity.x"], 1e-12)
}

func TestSGD_Defaults(t *testing.T) {
	sgd := optim.NewSGD(optim.SGDConfig{})
	assert.Equal(t, 0.01, sgd.GetLR())
	assert.Equal(t, "sgd", sgd.Name())

	sgd.SetLR(0.5)
	assert.Equal(t, 0.5, sgd.GetLR())
}

func TestSGD_ShapeMismatchLeavesParametersUntouched(t *testing.T) {
	a := []float64{1, 1}
	b := []float64{1, 1}
	sgd := optim.NewSGD(optim.SGDConfig{LR: 1})

	err := sgd.Step([]nn.Update{
		update("a", a, []float64{1, 1}),
		update("b", b, []float64{1}),
	})
	require.ErrorIs(t, err, nn.ErrShapeMismatch)
	assert.Equal(t, []float64{1, 1}, a)
}

func TestSGD_StateRoundTrip(t *testing.T) {
	x := []float64{1.0, -1.0}
	first := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	require.NoError(t, first.Step([]nn.Update{update("w", x, []float64{1, 2})}))

	second := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	require.NoError(t, second.LoadStateDict(first.StateDict()))

	y := append([]float64(nil), x...)
	require.NoError(t, first.Step([]nn.Update{update("w", x, []float64{1, 2})}))
	require.NoError(t, second.Step([]nn.Update{update("w", y, []float64{1, 2})}))
	assert.Equal(t, x, y)

	err := second.LoadStateDict(map[string][]float64{"m.w": {1}})
	assert.ErrorIs(t, err, optim.ErrStateMismatch)
}

// TestAdam_FirstStep tests that the first Adam step moves each parameter by
// about lr in the direction opposite its gradient.
func TestAdam_FirstStep(t *testing.T) {
	x := []float64{1.0, 1.0}
	adam := optim.NewAdam(optim.AdamConfig{LR: 0.1})

	require.NoError(t, adam.Step([]nn.Update{update("x", x, []float64{0.5, -3})}))

	// m_hat = g, v_hat = g², so the step is lr * g / (|g| + eps).
	assert.InDelta(t, 0.9, x[0], 1e-6)
	assert.InDelta(t, 1.1, x[1], 1e-6)
	assert.Equal(t, 1, adam.GetTimestep())
}

func TestAdam_Defaults(t *testing.T) {
	adam := optim.NewAdam(optim.AdamConfig{})
	assert.Equal(t, 0.001, adam.GetLR())
	assert.Equal(t, "adam", adam.Name())
	assert.Empty(t, adam.StateDict())
}

func TestAdam_StateRoundTrip(t *testing.T) {
	x := []float64{0.3, -0.2, 0.7}
	first := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	for i := 0; i < 3; i++ {
		require.NoError(t, first.Step([]nn.Update{update("w", x, []float64{0.1, -0.4, 0.2})}))
	}

	state := first.StateDict()
	assert.Equal(t, []float64{3}, state["t"])
	assert.Len(t, state["m.w"], 3)

	second := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	require.NoError(t, second.LoadStateDict(state))
	assert.Equal(t, 3, second.GetTimestep())

	y := append([]float64(nil), x...)
	require.NoError(t, first.Step([]nn.Update{update("w", x, []float64{0.1, -0.4, 0.2})}))
	require.NoError(t, second.Step([]nn.Update{update("w", y, []float64{0.1, -0.4, 0.2})}))
	assert.Equal(t, x, y)

	err := second.LoadStateDict(map[string][]float64{"m.w": {1}})
	assert.ErrorIs(t, err, optim.ErrStateMismatch)

	err = second.LoadStateDict(map[string][]float64{"t": {1.5}})
	assert.ErrorIs(t, err, optim.ErrStateMismatch)
}

// TestOptimizersReduceLoss trains a small network with each optimizer.
func TestOptimizersReduceLoss(t *testing.T) {
	for _, cfg := range []optim.Config{
		{Name: "sgd", LR: 0.5},
		{Name: "sgd", LR: 0.2, Momentum: 0.9},
		{Name: "adam", LR: 0.01},
	} {
		t.Run(cfg.Name, func(t *testing.T) {
			opt, err := optim.New(cfg)
			require.NoError(t, err)

			net, err := nn.Build(nn.Architecture{
				Loss: nn.CrossEntropy,
				Layers: []nn.LayerSpec{
					{InputWidth: 2, OutputWidth: 4, Activation: nn.Sigmoid},
					{InputWidth: 4, OutputWidth: 2, Activation: nn.Softmax},
				},
			}, nn.NewRand(17))
			require.NoError(t, err)

			batch := []nn.Sample{
				{Input: []float64{0, 1}, Target: []float64{1, 0}},
				{Input: []float64{1, 0}, Target: []float64{0, 1}},
			}
			first, err := net.TrainStep(batch, opt)
			require.NoError(t, err)

			last := math.Inf(1)
			for i := 0; i < 50; i++ {
				last, err = net.TrainStep(batch, opt)
				require.NoError(t, err)
			}
			assert.Less(t, last, first)
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := optim.New(optim.Config{Name: "rmsprop"})
	assert.ErrorIs(t, err, nn.ErrInvalidConfiguration)

	_, err = optim.New(optim.Config{Name: "sgd", Momentum: 1})
	assert.ErrorIs(t, err, nn.ErrInvalidConfiguration)

	opt, err := optim.New(optim.Config{})
	require.NoError(t, err)
	assert.Equal(t, "sgd", opt.Name())
}

func TestRestore(t *testing.T) {
	adam := optim.NewAdam(optim.AdamConfig{LR: 0.01, Betas: [2]float64{0.8, 0.99}})
	w := []float64{1, 2}
	require.NoError(t, adam.Step([]nn.Update{update("w", w, []float64{0.5, -0.5})}))

	got, err := optim.Restore(adam.Name(), adam.GetLR(), optim.Hyperparameters(adam), adam.StateDict())
	require.NoError(t, err)
	restored, ok := got.(*optim.Adam)
	require.True(t, ok)
	assert.Equal(t, 1, restored.GetTimestep())
	assert.Equal(t, optim.Hyperparameters(adam), optim.Hyperparameters(restored))

	// Both copies must take the same next step.
	w2 := append([]float64(nil), w...)
	require.NoError(t, adam.Step([]nn.Update{update("w", w, []float64{0.1, 0.1})}))
	require.NoError(t, restored.Step([]nn.Update{update("w", w2, []float64{0.1, 0.1})}))
	assert.Equal(t, w, w2)

	sgd := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	assert.Equal(t, map[string]float64{"momentum": 0.9}, optim.Hyperparameters(sgd))
	got, err = optim.Restore("sgd", 0.1, optim.Hyperparameters(sgd), sgd.StateDict())
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.(*optim.SGD).Momentum(), 0)

	_, err = optim.Restore("adam", 0.1, nil, map[string][]float64{"bogus": {1}})
	assert.ErrorIs(t, err, optim.ErrStateMismatch)
}

func TestStep_RestoredStateWrongLength(t *testing.T) {
	tests := []struct {
		name  string
		opt   string
		hp    map[string]float64
		state map[string][]float64
	}{
		{"sgd velocity", "sgd", map[string]float64{"momentum": 0.9}, map[string][]float64{"velocity.w": {1}}},
		{"adam m", "adam", nil, map[string][]float64{"t": {2}, "m.w": {1}, "v.w": {1, 1}}},
		{"adam v", "adam", nil, map[string][]float64{"t": {2}, "m.w": {1, 1}, "v.w": {1, 1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := optim.Restore(tt.opt, 0.1, tt.hp, tt.state)
			require.NoError(t, err)

			w := []float64{1, 2}
			err = opt.Step([]nn.Update{update("w", w, []float64{0.5, 0.5})})
			require.ErrorIs(t, err, optim.ErrStateMismatch)
			assert.Equal(t, []float64{1, 2}, w)
		})
	}

	adam, err := optim.Restore("adam", 0.1, nil, tests[1].state)
	require.NoError(t, err)
	_ = adam.Step([]nn.Update{update("w", []float64{1, 2}, []float64{1, 1})})
	assert.Equal(t, 2, adam.(*optim.Adam).GetTimestep())
}

// TestTrainStep_CheckpointStateWrongLength restores an optimizer whose state
// does not fit the network and checks that training fails cleanly.
func TestTrainStep_CheckpointStateWrongLength(t *testing.T) {
	net, err := nn.Build(nn.Architecture{
		Loss: nn.MeanSquaredError,
		Layers: []nn.LayerSpec{
			{InputWidth: 2, OutputWidth: 2, Activation: nn.Sigmoid},
		},
	}, nn.NewRand(3))
	require.NoError(t, err)
	before := net.Parameters()[0].Value[0]

	opt, err := optim.Restore("sgd", 0.1, map[string]float64{"momentum": 0.9},
		map[string][]float64{"velocity.layer.0.weight": {1}})
	require.NoError(t, err)

	batch := []nn.Sample{{Input: []float64{1, 0}, Target: []float64{0, 1}}}
	require.NotPanics(t, func() {
		_, err = net.TrainStep(batch, opt)
	})
	require.ErrorIs(t, err, optim.ErrStateMismatch)
	assert.InDelta(t, before, net.Parameters()[0].Value[0], 0)
}

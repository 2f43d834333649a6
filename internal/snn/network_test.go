package snn

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"snnfault/internal/fault"
	"snnfault/internal/model"
)

func exampleBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	err := b.AddLayer(
		[]Neuron{NewLIFNeuron(testParams()), NewLIFNeuron(testParams())},
		[][]float64{{1.0}, {1.0}},
		[][]float64{{0, -1}, {-1, 0}},
	)
	if err != nil {
		t.Fatalf("add layer: %v", err)
	}
	return b
}

func twoLayerBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	p := LIFParams{VTh: 0.8, VRest: 0, VReset: 0, Tau: 2, DT: 1}
	if err := b.AddLayer(
		[]Neuron{NewLIFNeuron(p), NewLIFNeuron(p), NewLIFNeuron(p)},
		[][]float64{{0.9, 0.1}, {0.5, 0.5}, {0.1, 0.9}},
		[][]float64{{0, -0.2, -0.2}, {-0.2, 0, -0.2}, {-0.2, -0.2, 0}},
	); err != nil {
		t.Fatalf("add layer 0: %v", err)
	}
	if err := b.AddLayer(
		[]Neuron{NewLIFNeuron(p), NewLIFNeuron(p)},
		[][]float64{{0.6, 0.3, 0}, {0, 0.3, 0.6}},
		[][]float64{{0, -0.5}, {-0.5, 0}},
	); err != nil {
		t.Fatalf("add layer 1: %v", err)
	}
	return b
}

func sampleInput() [][]uint8 {
	return [][]uint8{{1, 0}, {1, 1}, {0, 1}, {1, 1}, {0, 0}, {1, 0}, {1, 1}, {0, 1}}
}

func TestExampleNetworkOutput(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := net.Process(context.Background(), [][]uint8{{1}, {0}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := [][]uint8{{1, 1}, {0, 0}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected output: got=%v want=%v", out, want)
	}
	if net.FireTime() != -1 {
		t.Fatalf("no transient expected: got=%d", net.FireTime())
	}
}

func TestFaultFreeRunsAreIdentical(t *testing.T) {
	b := twoLayerBuilder(t)
	first, err := b.Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want, err := first.Process(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	for i := 0; i < 5; i++ {
		net, err := b.Build(rand.New(rand.NewSource(int64(i))), nil, model.ErrorStuckAt1)
		if err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
		if _, ok := net.Fault(); ok {
			t.Fatal("no fault expected without components")
		}
		got, err := net.Process(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d differs: got=%v want=%v", i, got, want)
		}
	}

	if err := first.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	again, err := first.Process(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("process after init: %v", err)
	}
	if !reflect.DeepEqual(again, want) {
		t.Fatalf("reused network differs: got=%v want=%v", again, want)
	}
}

func TestBuildLeavesBuilderUntouched(t *testing.T) {
	b := exampleBuilder(t)
	rng := rand.New(rand.NewSource(3))
	all := model.AllComponents()
	for i := 0; i < 20; i++ {
		if _, err := b.Build(rng, all, model.ErrorStuckAt1); err != nil {
			t.Fatalf("build: %v", err)
		}
	}
	net, err := b.Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := net.Process(context.Background(), [][]uint8{{1}, {0}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !reflect.DeepEqual(out, [][]uint8{{1, 1}, {0, 0}}) {
		t.Fatalf("builder state was mutated by faulted builds: %v", out)
	}
}

func TestPersistentThresholdFault(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	spec := model.FaultSpec{Component: model.ComponentThreshold, Kind: model.ErrorStuckAt1, Bit: 62, Weight: -1}
	if err := net.inject(spec); err != nil {
		t.Fatalf("inject: %v", err)
	}
	out, err := net.Process(context.Background(), [][]uint8{{1}, {0}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := [][]uint8{{0, 1}, {0, 0}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected output: got=%v want=%v", out, want)
	}
}

func TestPersistentWeightFault(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Clearing bit 61 of 1.0 leaves 2^-512.
	spec := model.FaultSpec{Component: model.ComponentInboundWeight, Kind: model.ErrorStuckAt0, Bit: 61, Neuron: 1, Weight: 0}
	if err := net.inject(spec); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if got := net.Layers()[0].Weight(1, 0); got >= 0.5 {
		t.Fatalf("expected weight to shrink: got=%v", got)
	}
	out, err := net.Process(context.Background(), [][]uint8{{1}, {0}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out[0][0] != 1 || out[0][1] != 0 {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestPersistentAdderFaultIsNetworkWide(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	spec := model.FaultSpec{Component: model.ComponentAdderOutput, Kind: model.ErrorStuckAt1, Bit: 63, Weight: -1}
	if err := net.inject(spec); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if !net.Adder().Faulty() || net.Multiplier().Faulty() {
		t.Fatal("expected only the adder to be faulted")
	}
	out, err := net.Process(context.Background(), [][]uint8{{1}, {1}, {1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	for ts, row := range out {
		if row[0] != 0 || row[1] != 0 {
			t.Fatalf("t=%d negated sums must silence the layer: %v", ts, row)
		}
	}
}

func TestTransientThresholdFlipFiresOnce(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	layer := net.Layers()[0]
	layer.attachTransient(model.FaultSpec{Component: model.ComponentThreshold, Kind: model.ErrorTransientFlip, Bit: 62, Weight: -1})

	in := make(chan model.SpikeEvent, 2)
	out := make(chan model.SpikeEvent, 2)
	in <- model.SpikeEvent{Timestamp: 0, Spikes: []uint8{1}}
	in <- model.SpikeEvent{Timestamp: 1, Spikes: []uint8{0}}
	close(in)
	if err := layer.Process(net.Adder(), net.Multiplier(), 0, in, out); err != nil {
		t.Fatalf("process: %v", err)
	}
	first := <-out
	if first.Spikes[0] != 0 || first.Spikes[1] != 1 {
		t.Fatalf("unexpected spikes at fire time: %v", first.Spikes)
	}
	if got := layer.Neuron(0).Threshold(); got == 0.5 {
		t.Fatal("expected threshold to be flipped")
	}
	if _, open := <-out; !open {
		t.Fatal("expected a second event")
	}
	if _, open := <-out; open {
		t.Fatal("expected output to be closed")
	}
}

func TestTransientFaultIsUndoneByInit(t *testing.T) {
	tests := []struct {
		name   string
		spec   model.FaultSpec
		target func(*Network) float64
	}{
		{
			name:   "threshold",
			spec:   model.FaultSpec{Component: model.ComponentThreshold, Layer: 0, Neuron: 1, Weight: -1},
			target: func(n *Network) float64 { return n.Layers()[0].Neuron(1).Threshold() },
		},
		{
			name:   "inbound weight",
			spec:   model.FaultSpec{Component: model.ComponentInboundWeight, Layer: 1, Neuron: 0, Weight: 1},
			target: func(n *Network) float64 { return n.Layers()[1].Weight(0, 1) },
		},
		{
			name:   "intra weight",
			spec:   model.FaultSpec{Component: model.ComponentIntraWeight, Layer: 0, Neuron: 2, Weight: 0},
			target: func(n *Network) float64 { return n.Layers()[0].IntraWeight(2, 0) },
		},
	}
	input := sampleInput()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := twoLayerBuilder(t).Build(rand.New(rand.NewSource(3)), nil, model.ErrorNone)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			spec := tt.spec
			spec.Kind = model.ErrorTransientFlip
			spec.Bit = 62
			clean := tt.target(net)
			if err := net.inject(spec); err != nil {
				t.Fatalf("inject: %v", err)
			}
			for run := 0; run < 4; run++ {
				if got := tt.target(net); got != clean {
					t.Fatalf("run %d starts corrupted: got=%v want=%v", run, got, clean)
				}
				if _, err := net.Process(context.Background(), input); err != nil {
					t.Fatalf("run %d process: %v", run, err)
				}
				if ft := net.FireTime(); ft < 0 || ft >= len(input) {
					t.Fatalf("run %d fire time out of range: %d", run, ft)
				}
				if got, want := tt.target(net), fault.Embed(clean, spec.Kind, spec.Bit); got != want {
					t.Fatalf("run %d flip not applied: got=%v want=%v", run, got, want)
				}
				if err := net.Init(); err != nil {
					t.Fatalf("run %d init: %v", run, err)
				}
			}
		})
	}
}

func TestPersistentMembraneFaultSurvivesInit(t *testing.T) {
	net, err := twoLayerBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	spec := model.FaultSpec{Component: model.ComponentMembrane, Kind: model.ErrorStuckAt1, Bit: 63, Layer: 0, Neuron: 0, Weight: -1}
	if err := net.inject(spec); err != nil {
		t.Fatalf("inject: %v", err)
	}
	first, err := net.Process(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	for run := 1; run < 3; run++ {
		if err := net.Init(); err != nil {
			t.Fatalf("init: %v", err)
		}
		neuron := net.Layers()[0].Neuron(0)
		neuron.SetMembrane(2)
		if got := neuron.Membrane(); got != -2 {
			t.Fatalf("run %d membrane fault not re-installed: got=%v want=-2", run, got)
		}
		neuron.SetMembrane(0)
		out, err := net.Process(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("run %d process: %v", run, err)
		}
		if !reflect.DeepEqual(out, first) {
			t.Fatalf("run %d diverged: got=%v want=%v", run, out, first)
		}
	}
}

type recordingNeuron struct {
	LIFNeuron
	adderFaulty []bool
	mulFaulty   []bool
}

func (r *recordingNeuron) UpdatePotential(t int, intraSum, extraSum float64, adder fault.Adder, multiplier fault.Multiplier) uint8 {
	r.adderFaulty = append(r.adderFaulty, adder.Faulty())
	r.mulFaulty = append(r.mulFaulty, multiplier.Faulty())
	return 0
}

func (r *recordingNeuron) Clone() Neuron {
	return r
}

func TestTransientArithmeticFaultOnlyAtFireTime(t *testing.T) {
	for _, component := range []model.Component{model.ComponentMultiplierInput, model.ComponentAdderOutput} {
		t.Run(component.String(), func(t *testing.T) {
			rec := &recordingNeuron{LIFNeuron: *NewLIFNeuron(testParams())}
			layer := newLayer([]Neuron{rec}, [][]float64{{1}}, [][]float64{{0}})
			layer.attachTransient(model.FaultSpec{Component: component, Kind: model.ErrorTransientFlip, Bit: 40, Weight: -1, InputA: true})

			in := make(chan model.SpikeEvent, 4)
			out := make(chan model.SpikeEvent, 4)
			for ts := 0; ts < 4; ts++ {
				in <- model.SpikeEvent{Timestamp: ts, Spikes: []uint8{1}}
			}
			close(in)
			if err := layer.Process(fault.Adder{}, fault.Multiplier{}, 2, in, out); err != nil {
				t.Fatalf("process: %v", err)
			}
			faulty := rec.adderFaulty
			if component == model.ComponentMultiplierInput {
				faulty = rec.mulFaulty
			}
			want := []bool{false, false, true, false}
			if !reflect.DeepEqual(faulty, want) {
				t.Fatalf("unexpected faulted timesteps: got=%v want=%v", faulty, want)
			}
		})
	}
}

func TestTransientFireTimeWithinDuration(t *testing.T) {
	b := twoLayerBuilder(t)
	rng := rand.New(rand.NewSource(11))
	input := sampleInput()
	for i := 0; i < 50; i++ {
		net, err := b.Build(rng, model.AllComponents(), model.ErrorTransientFlip)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		spec, ok := net.Fault()
		if !ok || spec.Persistent() {
			t.Fatalf("expected transient fault: %+v", spec)
		}
		if tr, ok := net.Layers()[spec.Layer].Transient(); !ok || tr != spec {
			t.Fatalf("transient not attached to layer %d", spec.Layer)
		}
		if _, err := net.Process(context.Background(), input); err != nil {
			t.Fatalf("process: %v", err)
		}
		if ft := net.FireTime(); ft < 0 || ft >= len(input) {
			t.Fatalf("fire time out of range: %d", ft)
		}
	}
}

func TestSeededBuildsAreReproducible(t *testing.T) {
	b := twoLayerBuilder(t)
	run := func() (model.FaultSpec, [][]uint8, int) {
		net, err := b.Build(rand.New(rand.NewSource(99)), model.AllComponents(), model.ErrorTransientFlip)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		out, err := net.Process(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		spec, _ := net.Fault()
		return spec, out, net.FireTime()
	}
	s1, o1, f1 := run()
	s2, o2, f2 := run()
	if s1 != s2 || f1 != f2 || !reflect.DeepEqual(o1, o2) {
		t.Fatalf("seeded runs differ: %+v/%d vs %+v/%d", s1, f1, s2, f2)
	}
}

func TestConcurrentBuildsFromOneBuilder(t *testing.T) {
	b := twoLayerBuilder(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			net, err := b.Build(rand.New(rand.NewSource(seed)), model.AllComponents(), model.ErrorStuckAt0)
			if err != nil {
				errs <- err
				return
			}
			if _, err := net.Process(context.Background(), sampleInput()); err != nil {
				errs <- err
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent build: %v", err)
	}
}

func TestBuilderValidation(t *testing.T) {
	b := NewBuilder()
	if err := b.AddWeights([][]float64{{0.1, -0.1}}); !errors.Is(err, ErrNegativeWeight) {
		t.Fatalf("expected ErrNegativeWeight, got %v", err)
	}
	if err := b.AddIntraWeights([][]float64{{5, 0.1}, {0, 0}}); !errors.Is(err, ErrPositiveIntraWeight) {
		t.Fatalf("expected ErrPositiveIntraWeight, got %v", err)
	}
	if err := b.AddIntraWeights([][]float64{{5, 0}, {-1, 3}}); err != nil {
		t.Fatalf("diagonal must be unconstrained: %v", err)
	}
	if _, err := NewBuilder().Build(nil, nil, model.ErrorNone); !errors.Is(err, ErrEmptyNetwork) {
		t.Fatalf("expected ErrEmptyNetwork, got %v", err)
	}

	cases := []struct {
		name    string
		neurons int
		weights [][]float64
		intra   [][]float64
	}{
		{"weight-rows", 2, [][]float64{{1}}, [][]float64{{0, 0}, {0, 0}}},
		{"ragged-weights", 2, [][]float64{{1, 1}, {1}}, [][]float64{{0, 0}, {0, 0}}},
		{"intra-rows", 2, [][]float64{{1}, {1}}, [][]float64{{0, 0}}},
		{"intra-width", 2, [][]float64{{1}, {1}}, [][]float64{{0}, {0}}},
		{"empty-layer", 0, [][]float64{}, [][]float64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			neurons := make([]Neuron, tc.neurons)
			for i := range neurons {
				neurons[i] = NewLIFNeuron(testParams())
			}
			if err := b.AddLayer(neurons, tc.weights, tc.intra); err != nil {
				t.Fatalf("add layer: %v", err)
			}
			if _, err := b.Build(nil, nil, model.ErrorNone); !errors.Is(err, ErrShapeMismatch) {
				t.Fatalf("expected ErrShapeMismatch, got %v", err)
			}
		})
	}

	mismatched := exampleBuilder(t)
	if err := mismatched.AddWeights([][]float64{{1, 1, 1}}); err != nil {
		t.Fatalf("add weights: %v", err)
	}
	if _, err := mismatched.Build(nil, nil, model.ErrorNone); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
}

func TestBuildRejectsBadFaultRequest(t *testing.T) {
	b := exampleBuilder(t)
	if _, err := b.Build(nil, model.AllComponents(), model.ErrorStuckAt0); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, err := b.Build(rand.New(rand.NewSource(1)), []model.Component{model.Component(42)}, model.ErrorStuckAt0); !errors.Is(err, fault.ErrUnknownComponent) {
		t.Fatalf("expected ErrUnknownComponent, got %v", err)
	}
}

func TestProcessRejectsBadInput(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := net.Process(context.Background(), [][]uint8{{2}}); !errors.Is(err, ErrNonBinarySpike) {
		t.Fatalf("expected ErrNonBinarySpike, got %v", err)
	}
	if _, err := net.Process(context.Background(), [][]uint8{{1, 0}}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := net.Process(ctx, [][]uint8{{1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	out, err := net.Process(context.Background(), nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty input: out=%v err=%v", out, err)
	}
}

func TestLayerRejectsOutOfOrderEvents(t *testing.T) {
	net, err := exampleBuilder(t).Build(nil, nil, model.ErrorNone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	in := make(chan model.SpikeEvent, 1)
	out := make(chan model.SpikeEvent, 1)
	in <- model.SpikeEvent{Timestamp: 3, Spikes: []uint8{1}}
	close(in)
	if err := net.Layers()[0].Process(net.Adder(), net.Multiplier(), -1, in, out); !errors.Is(err, errOutOfOrder) {
		t.Fatalf("expected errOutOfOrder, got %v", err)
	}
	if _, open := <-out; open {
		t.Fatal("output must be closed on error")
	}
}

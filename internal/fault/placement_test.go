package fault

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"snnfault/internal/model"
)

func TestPlaceIsReproducibleUnderFixedSeed(t *testing.T) {
	shapes := []LayerShape{{Neurons: 3, Inputs: 4}, {Neurons: 2, Inputs: 3}}
	comps := model.AllComponents()
	for seed := int64(0); seed < 50; seed++ {
		a, err := Place(rand.New(rand.NewSource(seed)), comps, model.ErrorTransientFlip, shapes)
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		b, err := Place(rand.New(rand.NewSource(seed)), comps, model.ErrorTransientFlip, shapes)
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("seed %d produced different specs: %+v vs %+v", seed, a, b)
		}
	}
}

func TestPlaceStaysInsideTopology(t *testing.T) {
	shapes := []LayerShape{{Neurons: 3, Inputs: 4}, {Neurons: 2, Inputs: 3}}
	rng := rand.New(rand.NewSource(3))
	seenSides := map[[2]bool]bool{}
	for i := 0; i < 3000; i++ {
		spec, err := Place(rng, model.AllComponents(), model.ErrorStuckAt1, shapes)
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		if spec.Layer < 0 || spec.Layer >= len(shapes) || spec.Neuron < 0 || spec.Neuron >= shapes[spec.Layer].Neurons {
			t.Fatalf("target outside topology: %+v", spec)
		}
		if spec.Bit >= BitWidth {
			t.Fatalf("bit out of range: %d", spec.Bit)
		}
		switch spec.Component {
		case model.ComponentInboundWeight:
			if spec.Weight < 0 || spec.Weight >= shapes[spec.Layer].Inputs {
				t.Fatalf("inbound column out of range: %+v", spec)
			}
		case model.ComponentIntraWeight:
			if spec.Weight < 0 || spec.Weight >= shapes[spec.Layer].Neurons || spec.Weight == spec.Neuron {
				t.Fatalf("intra column out of range: %+v", spec)
			}
		default:
			if spec.Weight != -1 {
				t.Fatalf("weight column set for %s", spec.Component)
			}
		}
		if spec.Component.InputSide() {
			if !spec.InputA && !spec.InputB {
				t.Fatalf("input-side fault without operand: %+v", spec)
			}
			seenSides[[2]bool{spec.InputA, spec.InputB}] = true
		} else if spec.InputA || spec.InputB {
			t.Fatalf("operand flags on %s", spec.Component)
		}
	}
	if len(seenSides) != 3 {
		t.Fatalf("expected all three operand selections, got=%v", seenSides)
	}
}

func TestPickNeuronCoversWholeNetwork(t *testing.T) {
	shapes := []LayerShape{{Neurons: 1}, {Neurons: 3}}
	rng := rand.New(rand.NewSource(5))
	counts := map[[2]int]int{}
	for i := 0; i < 4000; i++ {
		l, n := PickNeuron(rng, shapes)
		counts[[2]int{l, n}]++
	}
	if len(counts) != 4 {
		t.Fatalf("expected 4 distinct targets, got=%v", counts)
	}
	for target, c := range counts {
		if c < 800 || c > 1200 {
			t.Fatalf("target %v drawn %d times, not uniform", target, c)
		}
	}
}

func TestPickIntraWeightSkipsSelfConnection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for self := 0; self < 4; self++ {
		counts := map[int]int{}
		for i := 0; i < 3000; i++ {
			counts[PickIntraWeight(rng, 4, self)]++
		}
		if _, ok := counts[self]; ok {
			t.Fatalf("self-connection %d drawn: %v", self, counts)
		}
		if len(counts) != 3 {
			t.Fatalf("expected every other column for neuron %d, got=%v", self, counts)
		}
		for col, c := range counts {
			if c < 800 || c > 1200 {
				t.Fatalf("column %d drawn %d times for neuron %d, not uniform", col, c, self)
			}
		}
	}
	if got := PickIntraWeight(rng, 1, 0); got != 0 {
		t.Fatalf("single-neuron layer: got=%d want=0", got)
	}
}

func TestPickBitCoversEveryPosition(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	seen := map[uint]bool{}
	for i := 0; i < 5000; i++ {
		bit := PickBit(rng)
		if err := ValidateBit(bit); err != nil {
			t.Fatalf("picked invalid bit: %v", err)
		}
		seen[bit] = true
	}
	if len(seen) != BitWidth {
		t.Fatalf("expected every bit position: got=%d want=%d", len(seen), BitWidth)
	}
}

func TestPickFireTimeWithinDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 1000; i++ {
		if ts := PickFireTime(rng, 5); ts < 0 || ts >= 5 {
			t.Fatalf("fire time out of range: %d", ts)
		}
	}
}

func TestPlaceRejectsInvalidInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	shapes := []LayerShape{{Neurons: 1, Inputs: 1}}
	if _, err := Place(rng, []model.Component{model.Component(12)}, model.ErrorStuckAt0, shapes); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected unknown component error, got=%v", err)
	}
	if _, err := Place(rng, model.AllComponents(), model.ErrorKind(9), shapes); !errors.Is(err, ErrUnknownErrorKind) {
		t.Fatalf("expected unknown error kind, got=%v", err)
	}
	if _, err := Place(nil, model.AllComponents(), model.ErrorStuckAt0, shapes); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, err := Place(rng, model.AllComponents(), model.ErrorStuckAt0, []LayerShape{{}}); err == nil {
		t.Fatal("expected empty network error")
	}
}

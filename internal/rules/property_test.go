package rules

import (
	"context"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"strider/internal/model"
)

var protocols = []string{"https", "http", "eth_sendTransaction", "eth_call", "ipfs", "http-post"}

// randomModel builds a validated model from seed. The same seed always
// yields the same model.
func randomModel(seed uint64, size int) *model.Model {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m := model.New("random", rng.IntN(2) == 0)

	var zones []*model.Element
	for i := 0; i < 1+size/4; i++ {
		var opts []model.ElementOption
		if len(zones) > 0 && rng.IntN(3) == 0 {
			opts = append(opts, model.InBoundary(zones[rng.IntN(len(zones))]))
		}
		b, _ := m.CreateElement(model.Boundary, "zone", opts...)
		zones = append(zones, b)
	}

	kinds := []model.Kind{model.Actor, model.Process, model.Datastore}
	var nodes []*model.Element
	for i := 0; i < 2+size; i++ {
		k := kinds[rng.IntN(len(kinds))]
		var opts []model.ElementOption
		if rng.IntN(4) > 0 {
			opts = append(opts, model.InBoundary(zones[rng.IntN(len(zones))]))
		}
		for _, a := range k.Attributes() {
			if rng.IntN(2) == 0 {
				opts = append(opts, model.WithAttribute(a, true))
			}
		}
		e, _ := m.CreateElement(k, "node", opts...)
		nodes = append(nodes, e)
	}

	for i := 0; i < size*2; i++ {
		src, dst := nodes[rng.IntN(len(nodes))], nodes[rng.IntN(len(nodes))]
		if src == dst {
			continue
		}
		_, _ = m.AddDataflow(src, dst, "flow",
			model.Protocol(protocols[rng.IntN(len(protocols))]),
			model.Authenticated(rng.IntN(2) == 0),
			model.Replayable(rng.IntN(2) == 0))
	}
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

func TestEngineProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("analysis is deterministic", prop.ForAll(
		func(seed uint64, size int) bool {
			a, errA := NewEngine().Analyze(context.Background(), randomModel(seed, size))
			b, errB := NewEngine().Analyze(context.Background(), randomModel(seed, size))
			return errA == nil && errB == nil && reflect.DeepEqual(a, b)
		},
		gen.UInt64(),
		gen.IntRange(0, 25),
	))

	properties.Property("parallel output equals sequential output", prop.ForAll(
		func(seed uint64, size, workers int) bool {
			seq, err := NewEngine().Analyze(context.Background(), randomModel(seed, size))
			if err != nil {
				return false
			}
			par, err := NewEngine(WithParallelism(workers)).Analyze(context.Background(), randomModel(seed, size))
			return err == nil && reflect.DeepEqual(seq, par)
		},
		gen.UInt64(),
		gen.IntRange(0, 25),
		gen.IntRange(2, 8),
	))

	properties.Property("every finding names a model member", prop.ForAll(
		func(seed uint64, size int) bool {
			m := randomModel(seed, size)
			fs, err := NewEngine().Analyze(context.Background(), m)
			if err != nil {
				return false
			}
			for _, f := range fs {
				_, isElement := m.Element(f.SubjectID)
				_, isFlow := m.Dataflow(f.SubjectID)
				if !isElement && !isFlow {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}

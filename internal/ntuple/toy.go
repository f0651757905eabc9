package ntuple

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/sliink/mensura/internal/model"
)

// ToyBranches are the branches written by GenerateToy
var ToyBranches = []string{"met", "ht", "njets", "lepton_pt"}

// ToyOptions controls GenerateToy
type ToyOptions struct {
	Events     int
	Run        uint64
	EventsLumi int
	Seed       uint64
	IsData     bool
	// NegativeFraction is the share of simulated events with a negative generator weight
	NegativeFraction float64
}

// GenerateToy writes a file of synthetic events and returns its checksum
func GenerateToy(path string, opts ToyOptions) (string, error) {
	if opts.Run == 0 {
		opts.Run = 1
	}
	if opts.EventsLumi <= 0 {
		opts.EventsLumi = 100
	}

	metadata := map[string]string{
		"generator": "toy",
		"seed":      strconv.FormatUint(opts.Seed, 10),
		"data":      strconv.FormatBool(opts.IsData),
	}
	w, err := Create(path, ToyBranches, metadata)
	if err != nil {
		return "", err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Run))
	for i := 0; i < opts.Events; i++ {
		ev := toyEvent(rng, opts, uint64(i))
		if err := w.Write(&ev); err != nil {
			w.Close()
			return "", err
		}
	}

	if err := w.Close(); err != nil {
		return "", err
	}
	return Checksum(path)
}

func toyEvent(rng *rand.Rand, opts ToyOptions, i uint64) model.Event {
	njets := math.Floor(rng.ExpFloat64() * 2.5)
	ht := 0.0
	for j := 0; j < int(njets); j++ {
		ht += 30 + rng.ExpFloat64()*60
	}

	weight := 1.0
	if !opts.IsData && rng.Float64() < opts.NegativeFraction {
		weight = -1
	}

	return model.Event{
		ID: model.EventID{
			Run:       opts.Run,
			LumiBlock: 1 + i/uint64(opts.EventsLumi),
			Event:     i + 1,
		},
		Weight: weight,
		Values: map[string]float64{
			"met":       rng.ExpFloat64() * 40,
			"ht":        ht,
			"njets":     njets,
			"lepton_pt": 20 + rng.ExpFloat64()*30,
		},
	}
}

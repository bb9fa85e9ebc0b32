// Package precheck rejects buffer snapshots that cannot contain a SAME
// burst before the full decoder runs on them.
package precheck

import (
	"math"

	"github.com/tphakala/eas-monitor/internal/audiocore"
)

// SAME tone pair.
const (
	MarkFrequency  = 2083.3
	SpaceFrequency = 1562.5
)

const (
	// DefaultBlockSize is three bit periods at the canonical rate.
	DefaultBlockSize = 96

	DefaultRatioDB        = 6.0
	DefaultMinLevelDBFS   = -55.0
	DefaultMinTonalBlocks = 24
)

// guardFrequencies sample the noise floor on both sides of the tone pair.
// The low guards also catch voice and the 853/960/1050 Hz attention tones.
var guardFrequencies = []float64{500, 800, 3200, 3600}

// Config tunes the filter.
type Config struct {
	SampleRate     int
	BlockSize      int
	RatioDB        float64 // tone power over the guard floor
	MinLevelDBFS   float64 // blocks quieter than this are ignored
	MinTonalBlocks int     // tonal blocks needed for a positive result
}

// Filter is a block-wise Goertzel detector for the SAME tone pair. It is
// safe for concurrent use.
type Filter struct {
	cfg    Config
	mark   goertzel
	space  goertzel
	guards []goertzel
	window []float32
	ratio  float64 // linear power ratio
	minRMS float64
}

// Result describes one analysis.
type Result struct {
	Blocks      int // blocks examined
	TonalBlocks int // blocks with SAME tone energy
	Densest     int // most tonal blocks inside one detection window
}

// New creates a filter, filling zero fields of cfg with defaults.
func New(cfg Config) *Filter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audiocore.CanonicalSampleRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.MinTonalBlocks <= 0 {
		cfg.MinTonalBlocks = DefaultMinTonalBlocks
	}
	if cfg.RatioDB == 0 {
		cfg.RatioDB = DefaultRatioDB
	}
	if cfg.MinLevelDBFS == 0 {
		cfg.MinLevelDBFS = DefaultMinLevelDBFS
	}

	f := &Filter{
		cfg:    cfg,
		mark:   newGoertzel(MarkFrequency, cfg.SampleRate),
		space:  newGoertzel(SpaceFrequency, cfg.SampleRate),
		window: hann(cfg.BlockSize),
		ratio:  math.Pow(10, cfg.RatioDB/10),
		minRMS: math.Pow(10, cfg.MinLevelDBFS/20),
	}
	for _, g := range guardFrequencies {
		f.guards = append(f.guards, newGoertzel(g, cfg.SampleRate))
	}
	return f
}

// LikelySAME reports whether snapshot holds enough tonal blocks close
// together to be worth decoding.
func (f *Filter) LikelySAME(snapshot []float32) bool {
	return f.Analyze(snapshot).Densest >= f.cfg.MinTonalBlocks
}

// Analyze counts tonal blocks in snapshot. Tonal blocks only count toward
// a detection when they fall inside a window of twice MinTonalBlocks
// blocks, so scattered noise hits never add up. A trailing partial block
// is ignored.
func (f *Filter) Analyze(snapshot []float32) Result {
	var r Result
	n := f.cfg.BlockSize
	span := 2 * f.cfg.MinTonalBlocks
	history := make([]bool, span)
	inWindow := 0

	for off := 0; off+n <= len(snapshot); off += n {
		slot := r.Blocks % span
		if history[slot] {
			inWindow--
		}
		hit := f.tonal(snapshot[off : off+n])
		history[slot] = hit
		if hit {
			inWindow++
			r.TonalBlocks++
		}
		r.Densest = max(r.Densest, inWindow)
		r.Blocks++
	}
	return r
}

// tonal reports whether one block carries SAME tone energy.
func (f *Filter) tonal(block []float32) bool {
	var sum float64
	for _, x := range block {
		sum += float64(x) * float64(x)
	}
	if math.Sqrt(sum/float64(len(block))) < f.minRMS {
		return false
	}

	// FSK spreads a block's energy over both tones, compare their sum
	// against two guard bins worth of floor
	tone := f.mark.power(block, f.window) + f.space.power(block, f.window)
	var floor float64
	for _, g := range f.guards {
		floor += g.power(block, f.window)
	}
	floor = floor * 2 / float64(len(f.guards))

	return tone > floor*f.ratio
}

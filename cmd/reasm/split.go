package main

import (
	"errors"
	"flag"
	"io"
	"math/rand"

	"go.uber.org/zap"

	"github.com/peacewang017/minnow/internal/wire"
)

func runSplit(args []string, s *stdio) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	fs.SetOutput(s.err)
	configPath := fs.String("config", "", "YAML config `file`")
	seed := fs.Int64("seed", 0, "random seed")
	maxFragment := fs.Int("max", 0, "longest fragment in bytes")
	dup := fs.Float64("dup", 0, "probability of emitting a fragment twice")
	force := fs.Bool("f", false, "write the trace even if stdout is a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadFlags(fs, *configPath, func(name string, cfg *Config) {
		switch name {
		case "seed":
			cfg.Split.Seed = *seed
		case "max":
			cfg.Split.MaxFragment = *maxFragment
		case "dup":
			cfg.Split.Duplicate = *dup
		}
	})
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel, s.err)
	if err != nil {
		return err
	}
	defer log.Sync()

	if !*force && isTerminal(s.out) {
		return errors.New("refusing to write a binary trace to a terminal, use -f to override")
	}

	in, err := openInput(fs.Arg(0), s.in)
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	frames := split(data, cfg.Split, rand.New(rand.NewSource(cfg.Split.Seed)))

	e := wire.NewEncoder(s.out)
	for _, f := range frames {
		if err := e.Encode(f); err != nil {
			return err
		}
	}
	if err := e.Flush(); err != nil {
		return err
	}

	log.Info("split",
		zap.Int("bytes", len(data)),
		zap.Int("frames", len(frames)),
		zap.Int64("seed", cfg.Split.Seed))
	return nil
}

// split cuts data into fragments of 1 to c.MaxFragment bytes, each starting
// somewhere inside the previous one or right after it, so that together they
// cover data. Some fragments are repeated, then all are shuffled. Every
// fragment reaching the end of data is final.
func split(data []byte, c SplitConfig, rng *rand.Rand) []wire.Frame {
	if len(data) == 0 {
		return []wire.Frame{{Index: 0, Data: []byte{}, Fin: true}}
	}

	var frames []wire.Frame
	for i := 0; ; {
		j := min(i+1+rng.Intn(c.MaxFragment), len(data))
		f := wire.Frame{Index: uint64(i), Data: data[i:j], Fin: j == len(data)}
		frames = append(frames, f)
		if rng.Float64() < c.Duplicate {
			frames = append(frames, f)
		}
		if j == len(data) {
			break
		}
		i = j - rng.Intn(j-i)
	}

	rng.Shuffle(len(frames), func(i, j int) {
		frames[i], frames[j] = frames[j], frames[i]
	})
	return frames
}

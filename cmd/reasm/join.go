package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/peacewang017/minnow"
	"github.com/peacewang017/minnow/internal/wire"
	"github.com/peacewang017/minnow/metrics"
)

func runJoin(args []string, s *stdio) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(s.err)
	configPath := fs.String("config", "", "YAML config `file`")
	capacity := fs.Uint64("capacity", 0, "stream capacity in bytes")
	dumpMetrics := fs.Bool("metrics", false, "write reassembler metrics to stderr when done")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadFlags(fs, *configPath, func(name string, cfg *Config) {
		if name == "capacity" {
			cfg.Capacity = *capacity
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

	in, err := openInput(fs.Arg(0), s.in)
	if err != nil {
		return err
	}
	defer in.Close()

	frames, err := readTrace(in)
	if err != nil {
		return err
	}

	p := minnow.NewPipe(&minnow.Config{
		Capacity: cfg.Capacity,
		Logger:   log,
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector("minnow", p))

	sum, err := join(context.Background(), p, frames, cfg.Capacity, s.out)
	if err != nil {
		return err
	}

	stats := p.Stats()
	log.Info("joined",
		zap.Int("frames", len(frames)),
		zap.Uint64("bytes", stats.BytesAssembled),
		zap.Uint64("bytes_received", stats.BytesReceived),
		zap.Uint64("bytes_out_of_window", stats.BytesOutOfWindow),
		zap.Uint64("bytes_redundant", stats.BytesRedundant),
		zap.String("blake2b", hex.EncodeToString(sum)))

	if *dumpMetrics {
		mfs, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(s.err, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

func readTrace(r io.Reader) ([]wire.Frame, error) {
	var frames []wire.Frame
	d := wire.NewDecoder(r)
	for {
		f, err := d.Decode()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
}

// join feeds frames to p from one goroutine while another copies the stream
// to out. It returns the BLAKE2b-256 digest of what was written.
func join(ctx context.Context, p *minnow.Pipe, frames []wire.Frame, capacity uint64, out io.Writer) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := feed(ctx, p, frames, capacity)
		if err != nil {
			p.CloseWithError(err)
		}
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(io.MultiWriter(out, h), p)
		if err != nil {
			p.CloseWithError(err)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// feed inserts frames into p. A frame whose tail fell outside the window is
// held back and inserted again once the reader has made room, the way a
// sender retransmits what the receiver could not take.
func feed(ctx context.Context, p *minnow.Pipe, frames []wire.Frame, capacity uint64) error {
	for len(frames) > 0 && !p.Assembled() {
		ack0, wnd0 := p.Window()

		var retry []wire.Frame
		for _, f := range frames {
			ack, wnd := p.Window()
			p.Insert(f.Index, f.Data, f.Fin)
			if f.Index+uint64(len(f.Data)) > ack+wnd {
				retry = append(retry, f)
			}
		}
		frames = retry
		if len(frames) == 0 || p.Assembled() {
			break
		}

		// With the whole window open, a pass that assembled nothing means
		// no frame covers the ack index.
		if ack1, _ := p.Window(); ack1 == ack0 && wnd0 == capacity {
			return fmt.Errorf("trace has a gap at index %d", ack1)
		}
		if err := p.WaitWindow(ctx, ack0+wnd0); err != nil {
			return err
		}
	}

	if !p.Assembled() {
		ack, _ := p.Window()
		return fmt.Errorf("trace ends after %d contiguous bytes without reaching the final fragment", ack)
	}
	return nil
}

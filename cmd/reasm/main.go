// Reasm cuts files into shuffled, overlapping fragment traces and puts them
// back together through a reassembler.
//
// Usage:
//
//	reasm split [-config f] [-seed n] [-max n] [-dup p] [-f] [file] > trace
//	reasm join [-config f] [-capacity n] [-metrics] [trace] > file
//	reasm digest [file]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type stdio struct {
	in       io.Reader
	out, err io.Writer
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	s := &stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}

	var err error
	switch os.Args[1] {
	case "split":
		err = runSplit(os.Args[2:], s)
	case "join":
		err = runJoin(os.Args[2:], s)
	case "digest":
		err = runDigest(os.Args[2:], s)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "reasm: unknown command %q\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err == flag.ErrHelp {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reasm %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: reasm <command> [options] [file]

Commands:
  split    cut a file into a shuffled trace of overlapping fragments
  join     reassemble a trace and write the stream
  digest   print the BLAKE2b-256 digest of a file

Run reasm <command> -h for the options of a command.
`)
}

// loadFlags loads the config file named by the -config flag of fs and applies
// the flags that were set on top of it. set is called for each such flag.
func loadFlags(fs *flag.FlagSet, configPath string, set func(name string, cfg *Config)) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { set(f.Name, cfg) })
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// openInput opens the named file, or returns stdin if name is empty or "-".
func openInput(name string, stdin io.Reader) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(name)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminalFd(f.Fd())
}

package main

import (
	"flag"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

func runDigest(args []string, s *stdio) error {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(s.err)
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := openInput(fs.Arg(0), s.in)
	if err != nil {
		return err
	}
	defer in.Close()

	sum, err := digest(in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "%x\n", sum)
	return err
}

func digest(r io.Reader) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

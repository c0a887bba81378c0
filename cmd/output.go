package cmd

import (
	"fmt"
	"io"
	"os"

	"cinematch/internal/report"
)

// createOutput opens path for writing; "-" is stdout.
func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeExperiment(path string, exp report.Experiment) error {
	w, err := createOutput(path)
	if err != nil {
		return err
	}
	if err := report.WriteYAML(w, exp); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

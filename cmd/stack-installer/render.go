package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/stack-installer/internal/event"
)

// barEmitter renders install events as a single progress bar with per
// package status lines.
type barEmitter struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newBarEmitter(out io.Writer) *barEmitter {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	return &barEmitter{out: out, bar: bar}
}

func (b *barEmitter) Emit(ev event.Event) error {
	switch ev.Type {
	case event.ProgressChanged:
		b.bar.Describe(ev.Message)
		return b.bar.Set(ev.Percent)

	case event.PackageCompleted:
		if ev.Package == nil {
			return nil
		}
		status := "done"
		if !ev.Package.Success {
			status = "FAILED"
		}
		_, err := fmt.Fprintf(b.out, "\n%-12s %s (%s)\n", ev.Package.ID, status, ev.Package.Elapsed.Round(time.Millisecond))
		for _, s := range ev.Package.Skipped {
			fmt.Fprintf(b.out, "  skipped unsafe entry %s\n", s)
		}
		return err

	case event.ErrorOccurred:
		_, err := fmt.Fprintf(b.out, "\nerror: %s\n", ev.Message)
		return err

	case event.InstallationCompleted:
		if err := b.bar.Finish(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(b.out, "\n%s\n", ev.Message)
		return err
	}
	return nil
}

package analyzecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/papercomputeco/sketchtable/pkg/cliui"
	"github.com/papercomputeco/sketchtable/pkg/stream"
	"github.com/papercomputeco/sketchtable/pkg/table"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

// runPlain streams analyses as plain text. With changes set it keeps
// running until ctx is done, restarting on every change.
func runPlain(ctx context.Context, out, errOut io.Writer, r runner, changes <-chan struct{}) error {
	p := newPlainPrinter(out, errOut)
	first := true

	for {
		events, err := r.start(ctx)
		switch {
		case err != nil && (first || changes == nil):
			return err
		case err != nil:
			p.fail(err)
		default:
			stop := cancelOnChange(r, changes)
			err = p.print(events)
			restarted := stop()

			if changes == nil {
				return err
			}
			if restarted {
				fmt.Fprintln(errOut, cliui.DimStyle.Render("image changed, restarting"))
				first = false
				continue
			}
		}
		first = false

		fmt.Fprintln(errOut, cliui.DimStyle.Render("watching for changes, ctrl+c to stop"))
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		}
	}
}

// cancelOnChange cancels the running stream when changes fires. The
// returned stop function reports whether that happened.
func cancelOnChange(r runner, changes <-chan struct{}) func() bool {
	if changes == nil {
		return func() bool { return false }
	}

	quit := make(chan struct{})
	result := make(chan bool, 1)
	go func() {
		select {
		case <-changes:
			r.cancel()
			result <- true
		case <-quit:
			result <- false
		}
	}()

	return func() bool {
		close(quit)
		return <-result
	}
}

type plainPrinter struct {
	out    io.Writer
	errOut io.Writer

	spinner *spinner.Spinner

	table   table.Table
	usage   usage.State
	newline bool
}

func newPlainPrinter(out, errOut io.Writer) *plainPrinter {
	p := &plainPrinter{out: out, errOut: errOut}
	if f, ok := errOut.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.spinner = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(errOut))
		p.spinner.Suffix = "  waiting for reply"
	}
	return p
}

// print writes the events of one stream until its channel is closed and
// returns the error of a failed stream.
func (p *plainPrinter) print(events <-chan stream.Event) error {
	p.table = table.Table{}
	p.usage = usage.State{}
	p.newline = true
	if p.spinner != nil {
		p.spinner.Start()
	}
	defer p.stopSpinner()

	var failure error
	for ev := range events {
		if ev.Terminal() {
			p.stopSpinner()
		}

		switch ev.Kind {
		case stream.EventContent:
			p.stopSpinner()
			fmt.Fprint(p.out, ev.Delta)
			p.newline = strings.HasSuffix(ev.Delta, "\n")
		case stream.EventUsage:
			p.usage = ev.Usage
		case stream.EventTable:
			p.table = ev.Table
		case stream.EventCompleted:
			p.summary()
		case stream.EventFailed:
			failure = ev.Err
			p.endLine()
			p.fail(ev.Err)
		}
	}

	return failure
}

func (p *plainPrinter) summary() {
	p.endLine()
	if !p.table.Empty() {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, cliui.RenderTable(p.table.Titles(), p.table.Rectangular()))
	}
	color.New(color.FgGreen).Fprintf(p.out, "✓ %s\n", p.usage.Label())
}

func (p *plainPrinter) fail(err error) {
	color.New(color.FgRed).Fprintf(p.errOut, "✗ analysis failed: %v\n", err)
}

func (p *plainPrinter) endLine() {
	if !p.newline {
		fmt.Fprintln(p.out)
		p.newline = true
	}
}

func (p *plainPrinter) stopSpinner() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

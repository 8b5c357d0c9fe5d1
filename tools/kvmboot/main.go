// Command kvmboot runs the kernel image under KVM the way a multiboot loader
// would start it. Serial output is relayed to stdout and a write to the debug
// exit port ends the run with the same status an emulator would report.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

// stopReason describes why the guest stopped running.
type stopReason uint8

const (
	stopFailed stopReason = iota
	stopHalted
	stopExitPort
)

const timeoutStatus = 124

var errTripleFault = errors.New("guest triple faulted")

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[kvmboot] error: %s\n", err.Error())
	os.Exit(1)
}

type options struct {
	kernel  string
	entry   string
	cmdLine string
	memSize int
	timeout time.Duration
	trace   bool
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("kvmboot", flag.ContinueOnError)
	fs.StringVar(&opts.kernel, "kernel", "", "path to the kernel ELF image")
	fs.StringVar(&opts.entry, "entry", "", "start at this symbol instead of the ELF entry point")
	fs.StringVar(&opts.cmdLine, "cmdline", "", "kernel command line passed through the multiboot information")
	fs.IntVar(&opts.memSize, "mem", 16, "guest memory in MiB")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "abort the guest after this long (0 disables)")
	fs.BoolVar(&opts.trace, "trace", false, "log every vcpu exit to stderr")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.kernel == "":
		return opts, errors.New("missing -kernel")
	case opts.memSize < 2 || opts.memSize > 3072:
		return opts, fmt.Errorf("-mem must be between 2 and 3072 MiB; got %d", opts.memSize)
	}

	return opts, nil
}

// boot loads the image into a fresh machine, runs it and returns the process
// exit status.
func boot(opts options, console, trace io.Writer) (int, error) {
	img, err := os.Open(opts.kernel)
	if err != nil {
		return 0, err
	}
	defer img.Close()

	m, err := newMachine(opts.memSize << 20)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	entry, err := loadKernel(img, m.Memory())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", opts.kernel, err)
	}

	if opts.entry != "" {
		if entry, err = lookupSymbol(img, opts.entry); err != nil {
			return 0, fmt.Errorf("%s: %w", opts.kernel, err)
		}
	}

	bootInfo, err := writeBootInfo(m.Memory(), opts.cmdLine)
	if err != nil {
		return 0, err
	}

	if err = m.Reset(entry, bootInfo); err != nil {
		return 0, err
	}

	bus := &portBus{console: console}
	reason, err := m.Run(bus, trace)
	if err != nil {
		return 0, err
	}

	switch reason {
	case stopExitPort:
		fmt.Fprintf(os.Stderr, "[kvmboot] guest exited with code 0x%x (%s)\n", uint32(bus.code), bus.code)
	case stopHalted:
		fmt.Fprintln(os.Stderr, "[kvmboot] guest halted")
	}

	return bus.status(), bus.err
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		exit(err)
	}

	var trace io.Writer
	if opts.trace {
		trace = os.Stderr
	}

	if opts.timeout > 0 {
		time.AfterFunc(opts.timeout, func() {
			fmt.Fprintf(os.Stderr, "[kvmboot] error: guest still running after %s\n", opts.timeout)
			os.Exit(timeoutStatus)
		})
	}

	status, err := boot(opts, os.Stdout, trace)
	if err != nil {
		exit(err)
	}

	os.Exit(status)
}

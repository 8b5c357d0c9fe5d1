// Command mkiso packs the kernel, a GRUB multiboot configuration and an El
// Torito boot loader image into a bootable ISO 9660 image.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mkiso] error: %s\n", err.Error())
	os.Exit(1)
}

func main() {
	var (
		kernelFile = flag.String("kernel", "", "path to the kernel ELF image")
		loaderFile = flag.String("loader", "", "path to the El Torito loader (for example GRUB's eltorito.img)")
		out        = flag.String("out", "ark.iso", "output image")
		volume     = flag.String("volume", "ARK", "ISO volume identifier")
		cmdLine    = flag.String("cmdline", "", "kernel command line, for example mode=selftest")
	)
	flag.Parse()

	switch {
	case *kernelFile == "":
		exit(errors.New("missing -kernel"))
	case *loaderFile == "":
		exit(errors.New("missing -loader"))
	}

	kernel, err := os.ReadFile(*kernelFile)
	if err != nil {
		exit(err)
	}

	loader, err := os.ReadFile(*loaderFile)
	if err != nil {
		exit(err)
	}

	spec := &imageSpec{
		kernel:  kernel,
		loader:  loader,
		volume:  *volume,
		cmdLine: *cmdLine,
	}
	if err = writeImage(*out, spec); err != nil {
		exit(err)
	}

	fmt.Printf("[mkiso] wrote %s\n", *out)
}

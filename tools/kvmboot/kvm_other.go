//go:build !(linux && amd64)

package main

import (
	"errors"
	"io"
)

var errNoKVM = errors.New("kvm is only available on linux/amd64 hosts")

type machine struct{}

func newMachine(int) (*machine, error) {
	return nil, errNoKVM
}

func (*machine) Memory() []byte { return nil }

func (*machine) Close() error { return nil }

func (*machine) Reset(uint32, uint32) error { return errNoKVM }

func (*machine) Run(*portBus, io.Writer) (stopReason, error) {
	return stopFailed, errNoKVM
}

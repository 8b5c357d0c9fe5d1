package gdt

import (
	"math/rand"
	"testing"
)

func TestEncodeSegmentRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 10000; i++ {
		var (
			limit  = rng.Uint32() & FlatLimit
			base   = rng.Uint32()
			access = uint8(rng.Intn(256))
			flags  = uint8(rng.Intn(16))
		)

		d := EncodeSegment(limit, base, access, flags)
		if d.Limit() != limit || d.Base() != base || d.Access() != access || d.Flags() != flags {
			t.Fatalf("EncodeSegment(0x%x, 0x%x, 0x%x, 0x%x) = 0x%016x decodes to limit=0x%x base=0x%x access=0x%x flags=0x%x",
				limit, base, access, flags, uint64(d), d.Limit(), d.Base(), d.Access(), d.Flags())
		}
	}
}

func TestEncodeSegmentMasksInputs(t *testing.T) {
	d := EncodeSegment(0xffffffff, 0, 0, 0xff)

	if got := d.Limit(); got != FlatLimit {
		t.Errorf("expected limit to be masked to 0x%x; got 0x%x", FlatLimit, got)
	}

	if got := d.Flags(); got != 0xf {
		t.Errorf("expected flags to be masked to 0xf; got 0x%x", got)
	}

	if got := d.Access(); got != 0 {
		t.Errorf("expected masked bits not to leak into the access byte; got 0x%x", got)
	}
}

func TestEncodeSegmentKnownValues(t *testing.T) {
	specs := []struct {
		limit, base   uint32
		access, flags uint8
		exp           SegmentDescriptor
	}{
		{FlatLimit, 0, AccessKernelCode, FlagsFlat32, 0x00cf9a000000ffff},
		{FlatLimit, 0, AccessKernelData, FlagsFlat32, 0x00cf92000000ffff},
		{FlatLimit, 0, AccessUserCode, FlagsFlat32, 0x00cffa000000ffff},
		{FlatLimit, 0, AccessUserData, FlagsFlat32, 0x00cff2000000ffff},
		{TaskStateSize - 1, 0x12345678, AccessTSS, 0, 0x1200893456780067},
	}

	for specIndex, spec := range specs {
		if got := EncodeSegment(spec.limit, spec.base, spec.access, spec.flags); got != spec.exp {
			t.Errorf("[spec %d] expected descriptor 0x%016x; got 0x%016x", specIndex, uint64(spec.exp), uint64(got))
		}
	}
}

func TestAccessConstants(t *testing.T) {
	specs := []struct {
		got, exp uint8
	}{
		{AccessKernelCode, 0x9a},
		{AccessKernelData, 0x92},
		{AccessUserCode, 0xfa},
		{AccessUserData, 0xf2},
		{AccessTSS, 0x89},
		{FlagsFlat32, 0xc},
	}

	for specIndex, spec := range specs {
		if spec.got != spec.exp {
			t.Errorf("[spec %d] expected 0x%x; got 0x%x", specIndex, spec.exp, spec.got)
		}
	}
}

func TestDescriptorPredicates(t *testing.T) {
	specs := []struct {
		d                  SegmentDescriptor
		present, code, sys bool
		dpl                uint8
		effectiveLimit     uint32
	}{
		{EncodeSegment(FlatLimit, 0, AccessKernelCode, FlagsFlat32), true, true, false, 0, 0xffffffff},
		{EncodeSegment(FlatLimit, 0, AccessUserData, FlagsFlat32), true, false, false, 3, 0xffffffff},
		{EncodeSegment(TaskStateSize-1, 0x1000, AccessTSS, 0), true, false, true, 0, TaskStateSize - 1},
		{0, false, false, true, 0, 0},
	}

	for specIndex, spec := range specs {
		if got := spec.d.Present(); got != spec.present {
			t.Errorf("[spec %d] expected Present() to return %t; got %t", specIndex, spec.present, got)
		}
		if got := spec.d.IsCode(); got != spec.code {
			t.Errorf("[spec %d] expected IsCode() to return %t; got %t", specIndex, spec.code, got)
		}
		if got := spec.d.IsSystem(); got != spec.sys {
			t.Errorf("[spec %d] expected IsSystem() to return %t; got %t", specIndex, spec.sys, got)
		}
		if got := spec.d.PrivilegeLevel(); got != spec.dpl {
			t.Errorf("[spec %d] expected PrivilegeLevel() to return %d; got %d", specIndex, spec.dpl, got)
		}
		if got := spec.d.EffectiveLimit(); got != spec.effectiveLimit {
			t.Errorf("[spec %d] expected EffectiveLimit() to return 0x%x; got 0x%x", specIndex, spec.effectiveLimit, got)
		}
	}
}

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	diskpkg "github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"

	"github.com/criskell/ark/multiboot"
)

// Paths inside the image.
const (
	kernelPath  = "/boot/kernel.elf"
	grubDir     = "/boot/grub"
	grubCfgPath = grubDir + "/grub.cfg"
	loaderPath  = grubDir + "/eltorito.img"
	catalogPath = grubDir + "/boot.cat"
)

const (
	blockSize = diskfs.SectorSize(2048)

	// Sectors of the loader the BIOS reads at boot.
	loaderLoadSize = 4

	// Room for directory records and the boot catalog.
	imageSlack = 1 << 20

	maxVolumeLen = 32
)

type imageSpec struct {
	kernel  []byte
	loader  []byte
	volume  string
	cmdLine string
}

// validate rejects an unbootable image before any output is created.
func (s *imageSpec) validate() error {
	if _, _, err := multiboot.Locate(s.kernel); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}

	if len(s.loader) < loaderLoadSize*512 {
		return fmt.Errorf("loader: expected at least %d bytes; got %d", loaderLoadSize*512, len(s.loader))
	}

	if s.volume == "" || len(s.volume) > maxVolumeLen {
		return fmt.Errorf("volume identifier must be 1 to %d characters; got %q", maxVolumeLen, s.volume)
	}

	if strings.ContainsAny(s.cmdLine, "\r\n") {
		return fmt.Errorf("command line must be a single line")
	}

	return nil
}

// grubConfig renders a GRUB configuration that boots the kernel with the
// multiboot protocol.
func grubConfig(cmdLine string) string {
	var b strings.Builder

	b.WriteString("set timeout=0\n")
	b.WriteString("set default=0\n\n")
	b.WriteString("menuentry \"ark\" {\n")
	b.WriteString("\tmultiboot " + kernelPath)
	if cmdLine != "" {
		b.WriteString(" " + cmdLine)
	}
	b.WriteString("\n\tboot\n}\n")

	return b.String()
}

func imageSize(s *imageSpec) int64 {
	size := int64(len(s.kernel)+len(s.loader)) + imageSlack
	return (size + int64(blockSize) - 1) / int64(blockSize) * int64(blockSize)
}

// writeImage creates a bootable ISO 9660 image at out.
func writeImage(out string, s *imageSpec) error {
	if err := s.validate(); err != nil {
		return err
	}

	// diskfs refuses to overwrite an existing image.
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return err
	}

	disk, err := diskfs.Create(out, imageSize(s), diskfs.Raw, blockSize)
	if err != nil {
		return err
	}

	fs, err := disk.CreateFilesystem(diskpkg.FilesystemSpec{Partition: 0, FSType: filesystem.TypeISO9660})
	if err != nil {
		return err
	}

	if err = fs.Mkdir(grubDir); err != nil {
		return err
	}

	for _, item := range []struct {
		dst  string
		data []byte
	}{
		{kernelPath, s.kernel},
		{grubCfgPath, []byte(grubConfig(s.cmdLine))},
		{loaderPath, s.loader},
	} {
		if err = copyInto(fs, item.dst, item.data); err != nil {
			return fmt.Errorf("%s: %w", item.dst, err)
		}
	}

	iso, ok := fs.(*iso9660.FileSystem)
	if !ok {
		return fmt.Errorf("unexpected filesystem type %T", fs)
	}

	return iso.Finalize(iso9660.FinalizeOptions{
		VolumeIdentifier: s.volume,
		RockRidge:        true,
		ElTorito: &iso9660.ElTorito{
			BootCatalog: catalogPath,
			Entries: []*iso9660.ElToritoEntry{
				{
					Platform:  iso9660.BIOS,
					Emulation: iso9660.NoEmulation,
					BootFile:  loaderPath,
					BootTable: true,
					LoadSize:  loaderLoadSize,
				},
			},
		},
	})
}

func copyInto(fs filesystem.FileSystem, dst string, data []byte) error {
	f, err := fs.OpenFile(dst, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, bytes.NewReader(data))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

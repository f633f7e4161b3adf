//go:build linux

package adcio

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// Register and BRAM layout for the physical ADC module. Unlike the
// teacher's digdar/oscilloscope register block, the HWRNG module needs only
// a command/status/power register triplet plus one sample window: there is
// no trigger, decimation, or multi-channel configuration to expose.
const (
	hwrngRegBlockSize  = 0x10   // register page size to mmap, bytes
	hwrngSampleOffset  = 0x1000 // offset from the register base to the BRAM sample window
	hwrngMaxBufSamples = 4096   // largest ADC_SAMPLE_BUFFER_SIZE this window supports

	hwrngCommandBeginFill = 1 << 0
	hwrngStatusFull       = 1 << 0
	hwrngPowerSuppressIdle = 1 << 0
)

// hwrngRegs is a direct image of the physical ADC module's register block.
// It provides read/write access when mmapped to a board-specific base
// address through /dev/mem, the way fpga.OgdarRegs did for the teacher's
// digdar registers.
type hwrngRegs struct {
	Command uint32 // bit 0: begin fill (write 1 to start a DMA capture)
	Status  uint32 // bit 0: fill complete
	Power   uint32 // bit 0: suppress idle mode while set
}

// HardwareBuffer implements Buffer and PowerController over a real,
// memory-mapped ADC register block and BRAM sample window. It is the
// physical counterpart to SimulatedBuffer, grounded on
// fpga.OgdarFPGA's mmap-and-cast-to-struct idiom (fpga/fpga.go): open
// /dev/mem, mmap the register page and the BRAM window, and expose both as
// typed Go values via unsafe.Pointer.
type HardwareBuffer struct {
	memfile   *os.File
	regSlice  []byte
	sampSlice []byte
	regs      *hwrngRegs
	samples   *[hwrngMaxBufSamples]uint16
	size      int
}

// OpenHardwareBuffer mmaps the ADC register block and BRAM sample window at
// baseAddr (board- and bitstream-specific; consult the FPGA address map).
// size is the number of samples exposed per fill (ADC_SAMPLE_BUFFER_SIZE)
// and must not exceed the hardware window's capacity.
func OpenHardwareBuffer(baseAddr int64, size int) (*HardwareBuffer, error) {
	if size <= 0 || size > hwrngMaxBufSamples {
		return nil, fmt.Errorf("adcio: buffer size %d exceeds hardware window of %d samples", size, hwrngMaxBufSamples)
	}
	memfile, err := os.OpenFile("/dev/mem", os.O_RDWR, 0744)
	if err != nil {
		return nil, fmt.Errorf("adcio: opening /dev/mem: %w", err)
	}
	regSlice, err := syscall.Mmap(int(memfile.Fd()), baseAddr, hwrngRegBlockSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		memfile.Close()
		return nil, fmt.Errorf("adcio: mmapping registers: %w", err)
	}
	sampSlice, err := syscall.Mmap(int(memfile.Fd()), baseAddr+hwrngSampleOffset, hwrngMaxBufSamples*2, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		syscall.Munmap(regSlice)
		memfile.Close()
		return nil, fmt.Errorf("adcio: mmapping sample window: %w", err)
	}
	return &HardwareBuffer{
		memfile:   memfile,
		regSlice:  regSlice,
		sampSlice: sampSlice,
		regs:      (*hwrngRegs)(unsafe.Pointer(&regSlice[0])),
		samples:   (*[hwrngMaxBufSamples]uint16)(unsafe.Pointer(&sampSlice[0])),
		size:      size,
	}, nil
}

// Close unmaps the register and sample windows and closes /dev/mem.
func (b *HardwareBuffer) Close() error {
	if b.memfile == nil {
		return nil
	}
	_ = syscall.Munmap(b.sampSlice)
	_ = syscall.Munmap(b.regSlice)
	err := b.memfile.Close()
	b.memfile = nil
	return err
}

// BeginFill implements Buffer: raises the begin-fill command bit, starting
// the hardware's DMA capture into the sample window.
func (b *HardwareBuffer) BeginFill() {
	b.regs.Command |= hwrngCommandBeginFill
}

// Full implements Buffer: reports the hardware's fill-complete status bit.
func (b *HardwareBuffer) Full() bool {
	return b.regs.Status&hwrngStatusFull != 0
}

// Samples implements Buffer.
func (b *HardwareBuffer) Samples() []uint16 {
	return b.samples[:b.size]
}

// SuppressIdleMode implements PowerController.
func (b *HardwareBuffer) SuppressIdleMode(suppress bool) {
	if suppress {
		b.regs.Power |= hwrngPowerSuppressIdle
	} else {
		b.regs.Power &^= hwrngPowerSuppressIdle
	}
}

// ac97_controller.go - Emulated ICH AC97 controller with PCM-out bus master

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

/*
ac97_controller.go - Emulated AC97 Controller

An ICH-style AC97 audio function for the emulated machine. It presents:

    A PCI configuration space (8086:2415, class 04/01) with I/O BAR0 for the
    Native Audio Mixer and I/O BAR1 for the Native Audio Bus Master.
    Mixer reset and the master, aux and PCM-out volume registers.
    Global control/status with cold resume.
    The PCM-out channel box: BDBAR, CIV, LVI, SR, PICB, PIV and CR.

The bus master reads descriptors and samples straight out of SystemRAM by
physical address, exactly as the driver programmed them. Each sample pulled by
the audio sink decrements PICB. When a buffer runs out the controller moves to
the next ring entry, unless it is already sitting on the last valid entry, in
which case it halts with DCH|CELV set and plays silence until software moves
LVI. Each entry into that halted state counts as one underrun.

The reset bit in CR clears itself after ResetDelay reads so the driver's spin
loop can be exercised.
*/

package main

import (
	"math"
	"sync"

	"github.com/rcrowley/go-metrics"
)

const (
	AC97_EMU_VENDOR_ID = 0x8086
	AC97_EMU_DEVICE_ID = 0x2415 // 82801AA AC'97 Audio

	AC97_EMU_SAMPLE_RATE = 48000

	AC97_GLOB_STA_PCR = 1 << 8 // primary codec ready

	// Mixer defaults after reset: everything muted
	AC97_NAM_DEFAULT_MASTER = 0x8000
	AC97_NAM_DEFAULT_AUX    = 0x8000
	AC97_NAM_DEFAULT_PCM    = 0x8808

	AC97_VOLUME_STEP_DB = 1.5
)

type AC97ControllerConfig struct {
	MixerBase     uint16
	BusMasterBase uint16
	// Reads of CR that still see the reset bit set
	ResetDelay int
}

type AC97Controller struct {
	mu  sync.Mutex
	cfg AC97ControllerConfig
	pci *StaticPCIFunction
	ram *SystemRAM

	mixer [AC97_NAM_SIZE / 2]uint16
	gainL float64
	gainR float64

	globalControl uint32
	globalStatus  uint32

	// PCM-out box
	bdbar uint32
	civ   uint8
	lvi   uint8
	piv   uint8
	sr    uint16
	picb  uint16
	cr    uint8

	curAddr      uint32
	curLen       uint16
	resetPending int
	stalled      bool

	underruns    metrics.Counter
	framesPlayed metrics.Counter
}

func NewAC97Controller(cfg AC97ControllerConfig, ram *SystemRAM, r metrics.Registry) *AC97Controller {
	if r == nil {
		r = metrics.DefaultRegistry
	}
	c := &AC97Controller{
		cfg:          cfg,
		ram:          ram,
		pci:          NewStaticPCIFunction(AC97_EMU_VENDOR_ID, AC97_EMU_DEVICE_ID, PCI_CLASS_MULTIMEDIA, PCI_SUBCLASS_AUDIO, PCI_HEADER_TYPE_GENERAL),
		underruns:    metrics.GetOrRegisterCounter("ac97.codec.underruns", r),
		framesPlayed: metrics.GetOrRegisterCounter("ac97.codec.frames_played", r),
	}
	c.pci.Set(PCI_REG_BAR0, uint32(cfg.MixerBase)|PCI_BAR_IO_SPACE)
	c.pci.Set(PCI_REG_BAR0+1, uint32(cfg.BusMasterBase)|PCI_BAR_IO_SPACE)
	c.pci.Set(PCI_REG_SUBSYSTEM, uint32(0x0000)<<16|AC97_EMU_VENDOR_ID)
	c.pci.Set(PCI_REG_INTERRUPTS, 0x01<<8|0x05) // INTA#, IRQ 5
	c.resetMixer()
	c.resetBox()
	return c
}

// PCI returns the configuration space to attach to the host bridge.
func (c *AC97Controller) PCI() PCIFunction { return c.pci }

func (c *AC97Controller) MapPorts(bus *PortBus) {
	bus.MapPorts(c.cfg.MixerBase, c.cfg.MixerBase+AC97_NAM_SIZE-1, c.readMixer, c.writeMixer)
	bus.MapPorts(c.cfg.BusMasterBase, c.cfg.BusMasterBase+AC97_NABM_SIZE-1, c.readBusMaster, c.writeBusMaster)
}

func (c *AC97Controller) command() uint32 {
	return c.pci.ReadConfig(PCI_REG_COMMAND)
}

func (c *AC97Controller) ioEnabled() bool {
	return c.command()&PCI_COMMAND_IO_SPACE != 0
}

func (c *AC97Controller) busMasterEnabled() bool {
	return c.command()&PCI_COMMAND_BUS_MASTER != 0
}

func (c *AC97Controller) resetMixer() {
	for i := range c.mixer {
		c.mixer[i] = 0
	}
	c.mixer[AC97_NAM_MASTER_VOLUME/2] = AC97_NAM_DEFAULT_MASTER
	c.mixer[AC97_NAM_AUX_VOLUME/2] = AC97_NAM_DEFAULT_AUX
	c.mixer[AC97_NAM_PCM_VOLUME/2] = AC97_NAM_DEFAULT_PCM
	c.updateGain()
}

func (c *AC97Controller) resetBox() {
	c.bdbar = 0
	c.civ = 0
	c.lvi = 0
	c.piv = 0
	c.picb = 0
	c.sr = AC97_SR_DCH
	c.curAddr = 0
	c.curLen = 0
	c.stalled = false
}

// volumeGain converts an AC97 attenuation register half to linear gain.
func volumeGain(att uint16, muted bool) float64 {
	if muted {
		return 0
	}
	return math.Pow(10, -AC97_VOLUME_STEP_DB*float64(att&0x3F)/20)
}

func (c *AC97Controller) updateGain() {
	master := c.mixer[AC97_NAM_MASTER_VOLUME/2]
	pcm := c.mixer[AC97_NAM_PCM_VOLUME/2]
	mute := master&AC97_VOLUME_MUTE_BIT != 0 || pcm&AC97_VOLUME_MUTE_BIT != 0
	c.gainL = volumeGain(master>>8, mute) * volumeGain(pcm>>8, mute)
	c.gainR = volumeGain(master, mute) * volumeGain(pcm, mute)
}

func (c *AC97Controller) readMixer(port uint16, size int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ioEnabled() {
		return 0xFFFFFFFF
	}
	off := port - c.cfg.MixerBase
	v := uint32(c.mixer[off/2])
	if size == 4 && int(off/2)+1 < len(c.mixer) {
		v |= uint32(c.mixer[off/2+1]) << 16
	}
	return v >> ((off & 1) * 8)
}

func (c *AC97Controller) writeMixer(port uint16, size int, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ioEnabled() {
		return
	}
	off := port - c.cfg.MixerBase
	if off == AC97_NAM_RESET {
		c.resetMixer()
		return
	}
	c.mixer[off/2] = uint16(value)
	c.updateGain()
}

// boxByte returns one byte of the bus master register file.
func (c *AC97Controller) boxByte(off uint16) uint8 {
	switch {
	case off >= AC97_NABM_PCM_OUT+AC97_BOX_BDBAR && off < AC97_NABM_PCM_OUT+AC97_BOX_CIV:
		return uint8(c.bdbar >> ((off - AC97_NABM_PCM_OUT) * 8))
	case off == AC97_NABM_PCM_OUT+AC97_BOX_CIV:
		return c.civ
	case off == AC97_NABM_PCM_OUT+AC97_BOX_LVI:
		return c.lvi
	case off == AC97_NABM_PCM_OUT+AC97_BOX_SR:
		return uint8(c.sr)
	case off == AC97_NABM_PCM_OUT+AC97_BOX_SR+1:
		return uint8(c.sr >> 8)
	case off == AC97_NABM_PCM_OUT+AC97_BOX_PICB:
		return uint8(c.picb)
	case off == AC97_NABM_PCM_OUT+AC97_BOX_PICB+1:
		return uint8(c.picb >> 8)
	case off == AC97_NABM_PCM_OUT+AC97_BOX_PIV:
		return c.piv
	case off == AC97_NABM_PCM_OUT+AC97_BOX_CR:
		return c.readCR()
	case off >= AC97_NABM_GLOBAL_CONTROL && off < AC97_NABM_GLOBAL_CONTROL+4:
		return uint8(c.globalControl >> ((off - AC97_NABM_GLOBAL_CONTROL) * 8))
	case off >= AC97_NABM_GLOBAL_STATUS && off < AC97_NABM_GLOBAL_STATUS+4:
		return uint8(c.globalStatus >> ((off - AC97_NABM_GLOBAL_STATUS) * 8))
	}
	return 0
}

func (c *AC97Controller) readCR() uint8 {
	if c.cr&AC97_CR_RR != 0 {
		if c.resetPending <= 0 {
			c.cr &^= AC97_CR_RR
		} else {
			c.resetPending--
		}
	}
	return c.cr
}

func (c *AC97Controller) readBusMaster(port uint16, size int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ioEnabled() {
		return 0xFFFFFFFF
	}
	off := port - c.cfg.BusMasterBase
	var v uint32
	for i := 0; i < size; i++ {
		v |= uint32(c.boxByte(off+uint16(i))) << (8 * i)
	}
	return v
}

func (c *AC97Controller) writeBusMaster(port uint16, size int, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ioEnabled() {
		return
	}
	switch off := port - c.cfg.BusMasterBase; off {
	case AC97_NABM_PCM_OUT + AC97_BOX_BDBAR:
		c.bdbar = value &^ 7
	case AC97_NABM_PCM_OUT + AC97_BOX_LVI:
		c.lvi = uint8(value) & AC97_RING_MASK
		if c.civ != c.lvi {
			c.sr &^= AC97_SR_CELV
		}
	case AC97_NABM_PCM_OUT + AC97_BOX_SR:
		c.sr &^= uint16(value) & (AC97_SR_LVBCI | AC97_SR_BCIS | AC97_SR_FIFOE)
	case AC97_NABM_PCM_OUT + AC97_BOX_CR:
		c.writeCR(uint8(value))
	case AC97_NABM_GLOBAL_CONTROL:
		c.globalControl = value
		if value&AC97_GLOB_CNT_COLD_RESUME != 0 {
			c.globalStatus |= AC97_GLOB_STA_PCR
		}
	}
}

func (c *AC97Controller) writeCR(value uint8) {
	if value&AC97_CR_RR != 0 {
		c.resetBox()
		c.cr = AC97_CR_RR
		c.resetPending = c.cfg.ResetDelay
		return
	}
	wasRunning := c.cr&AC97_CR_RPBM != 0
	c.cr = value & (AC97_CR_RPBM | AC97_CR_LVBIE | AC97_CR_FEIE | AC97_CR_IOCE)
	running := c.cr&AC97_CR_RPBM != 0
	switch {
	case running && !wasRunning:
		c.loadDescriptor()
		c.sr &^= AC97_SR_DCH
	case !running && wasRunning:
		c.sr |= AC97_SR_DCH
	}
}

func (c *AC97Controller) loadDescriptor() {
	entry := uint64(c.bdbar) + uint64(c.civ)*AC97_BUFFER_DESCRIPTOR_SZ
	c.curAddr = c.ram.Load32(entry) &^ 1
	ctl := c.ram.Load32(entry + 4)
	c.curLen = uint16(ctl)
	c.picb = c.curLen
	c.piv = (c.civ + 1) & AC97_RING_MASK
}

// nextSample runs the bus master for one sample. Callers hold mu.
func (c *AC97Controller) nextSample() int16 {
	if c.cr&AC97_CR_RPBM == 0 || !c.busMasterEnabled() {
		return 0
	}
	if c.picb == 0 {
		if c.civ == c.lvi {
			c.sr |= AC97_SR_DCH | AC97_SR_CELV | AC97_SR_LVBCI
			if !c.stalled {
				c.stalled = true
				c.underruns.Inc(1)
			}
			return 0
		}
		c.stalled = false
		c.sr &^= AC97_SR_DCH | AC97_SR_CELV
		c.civ = (c.civ + 1) & AC97_RING_MASK
		c.loadDescriptor()
		if c.picb == 0 {
			return 0
		}
	}
	pos := uint64(c.curLen - c.picb)
	s := int16(c.ram.Load16(uint64(c.curAddr) + pos*AC97_SAMPLE_SIZE))
	c.picb--
	return s
}

// ReadSamples fills dst with interleaved stereo output. A halted or stalled
// bus master produces silence.
func (c *AC97Controller) ReadSamples(dst []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		l := c.nextSample()
		r := c.nextSample()
		dst[i] = int16(float64(l) * c.gainL)
		dst[i+1] = int16(float64(r) * c.gainR)
	}
	c.framesPlayed.Inc(int64(len(dst) / 2))
}

// CurrentIndex is CIV without going through the port bus.
func (c *AC97Controller) CurrentIndex() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.civ
}

func (c *AC97Controller) LastValidIndex() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lvi
}

func (c *AC97Controller) Stalled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stalled
}

func (c *AC97Controller) Underruns() int64 { return c.underruns.Count() }

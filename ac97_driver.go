// ac97_driver.go - AC97 codec register driver

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
ac97_driver.go - AC97 Register Driver

Drives one AC97 controller through its two I/O windows: the Native Audio Mixer
(reset, volumes) and the Native Audio Bus Master (descriptor ring control for
the PCM-out channel).

The driver moves through three states and never back:

	Uninitialized -> Initialized -> Streaming

Init performs the start-up sequence in a fixed order. The order matters on real
controllers and must not be rearranged:

	1. enable I/O space decoding and bus mastering in the PCI command register
	2. reset the mixer
	3. resume from cold reset via global control
	4. PCM, master and aux volume to 0 (full volume)
	5. reset the PCM-out box and wait for the controller to clear the bit

BeginTransfer then points the controller at a descriptor list and starts DMA.
From there on the only flow control is the last valid index: the controller
plays up to and including that entry and stalls if it gets there.
*/

package main

import (
	"errors"
	"fmt"
)

type AC97State int

const (
	AC97Uninitialized AC97State = iota
	AC97Initialized
	AC97Streaming
)

func (s AC97State) String() string {
	switch s {
	case AC97Uninitialized:
		return "uninitialized"
	case AC97Initialized:
		return "initialized"
	case AC97Streaming:
		return "streaming"
	}
	return fmt.Sprintf("AC97State(%d)", int(s))
}

var (
	ErrAC97State         = errors.New("ac97: operation not valid in current state")
	ErrCodecResetTimeout = errors.New("ac97: codec did not clear transfer reset")
)

type AC97 struct {
	dev   *AC97Device
	cfg   *PCIConfig
	io    PortIO
	state AC97State

	// ResetPollLimit bounds the transfer-reset spin in Init. Zero spins
	// forever.
	ResetPollLimit int
}

func NewAC97(dev *AC97Device, cfg *PCIConfig, io PortIO) *AC97 {
	return &AC97{dev: dev, cfg: cfg, io: io}
}

func (a *AC97) State() AC97State    { return a.state }
func (a *AC97) Device() *AC97Device { return a.dev }

func (a *AC97) mixer(reg uint16) uint16 {
	return a.dev.MixerBase + reg
}

func (a *AC97) pcmOut(reg uint16) uint16 {
	return a.dev.BusMasterBase + AC97_NABM_PCM_OUT + reg
}

func (a *AC97) Init() error {
	if a.state != AC97Uninitialized {
		return fmt.Errorf("%w: Init while %s", ErrAC97State, a.state)
	}

	a.cfg.ReadModifyWriteDword(a.dev.Bus, a.dev.Slot, 0, PCI_REG_COMMAND, func(x uint32) uint32 {
		return x | PCI_COMMAND_IO_SPACE | PCI_COMMAND_BUS_MASTER
	})

	a.io.Out16(a.mixer(AC97_NAM_RESET), 0xFFFF)

	a.io.Out32(a.dev.BusMasterBase+AC97_NABM_GLOBAL_CONTROL, AC97_GLOB_CNT_COLD_RESUME)

	a.io.Out16(a.mixer(AC97_NAM_PCM_VOLUME), AC97_VOLUME_MAX)
	a.io.Out16(a.mixer(AC97_NAM_MASTER_VOLUME), AC97_VOLUME_MAX)
	a.io.Out16(a.mixer(AC97_NAM_AUX_VOLUME), AC97_VOLUME_MAX)

	transfer := a.pcmOut(AC97_BOX_CR)
	a.io.Out8(transfer, AC97_CR_RR)
	for polls := 0; a.io.In8(transfer)&AC97_CR_RR != 0; polls++ {
		if a.ResetPollLimit > 0 && polls >= a.ResetPollLimit {
			return fmt.Errorf("%w after %d polls", ErrCodecResetTimeout, polls)
		}
	}

	a.state = AC97Initialized
	return nil
}

// BeginTransfer starts PCM-out DMA. bdlPhys must be the 4-aligned physical
// address of a prepared descriptor list.
func (a *AC97) BeginTransfer(bdlPhys uint32, initialValid uint8) error {
	if a.state != AC97Initialized {
		return fmt.Errorf("%w: BeginTransfer while %s", ErrAC97State, a.state)
	}
	if int(initialValid) >= AC97_NUM_BUFFERS {
		panic(fmt.Sprintf("ac97: last valid index %d out of range", initialValid))
	}

	a.io.Out32(a.pcmOut(AC97_BOX_BDBAR), bdlPhys)
	a.io.Out8(a.pcmOut(AC97_BOX_LVI), initialValid)
	a.io.Out8(a.pcmOut(AC97_BOX_CR), AC97_CR_RPBM)

	a.state = AC97Streaming
	return nil
}

// CurrentEntry is the descriptor the controller is playing.
func (a *AC97) CurrentEntry() uint8 {
	civ := a.io.In8(a.pcmOut(AC97_BOX_CIV))
	if int(civ) >= AC97_NUM_BUFFERS {
		panic(fmt.Sprintf("ac97: controller reported entry %d", civ))
	}
	return civ
}

// SetFilledUpTo publishes the last descriptor the controller may play.
func (a *AC97) SetFilledUpTo(index uint8) {
	if int(index) >= AC97_NUM_BUFFERS {
		panic(fmt.Sprintf("ac97: last valid index %d out of range", index))
	}
	a.io.Out8(a.pcmOut(AC97_BOX_LVI), index)
}

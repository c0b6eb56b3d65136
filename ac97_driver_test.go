package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDriverOnMachine scans a fresh emulated machine and wraps its ports in a
// tracer.
func newDriverOnMachine(t *testing.T, cfg *MachineConfig) (*AC97, *tracingPorts, *Machine) {
	t.Helper()
	m, _ := newTestMachine(t, cfg)
	ports := &tracingPorts{inner: m.Ports}
	pci := NewPCIConfig(ports)
	found := ScanPCIDevices(pci, newTestLogger())
	require.NotNil(t, found.AC97)
	ports.ops = nil
	return NewAC97(found.AC97, pci, ports), ports, m
}

func TestAC97_InitSequence(t *testing.T) {
	cfg := testMachineConfig()
	cfg.AC97.ResetDelay = 3
	a, ports, m := newDriverOnMachine(t, cfg)
	a.ResetPollLimit = 0

	require.NoError(t, a.Init())
	assert.Equal(t, AC97Initialized, a.State())

	nam := cfg.AC97.MixerBase
	nabm := cfg.AC97.BusMasterBase
	command := ConfigAddress(cfg.AC97.Bus, cfg.AC97.Slot, 0, PCI_REG_COMMAND*4)
	assert.Equal(t, []portOp{
		{write: true, port: PCI_CONFIG_ADDRESS, size: 4, value: command},
		{write: true, port: PCI_CONFIG_ADDRESS, size: 4, value: command},
		{write: true, port: PCI_CONFIG_DATA, size: 4, value: PCI_COMMAND_IO_SPACE | PCI_COMMAND_BUS_MASTER},
		{write: true, port: nam + AC97_NAM_RESET, size: 2, value: 0xFFFF},
		{write: true, port: nabm + AC97_NABM_GLOBAL_CONTROL, size: 4, value: AC97_GLOB_CNT_COLD_RESUME},
		{write: true, port: nam + AC97_NAM_PCM_VOLUME, size: 2, value: 0},
		{write: true, port: nam + AC97_NAM_MASTER_VOLUME, size: 2, value: 0},
		{write: true, port: nam + AC97_NAM_AUX_VOLUME, size: 2, value: 0},
		{write: true, port: nabm + AC97_NABM_PCM_OUT + AC97_BOX_CR, size: 1, value: AC97_CR_RR},
	}, ports.writes())

	// three reads still see the reset bit, the fourth does not
	var crReads int
	for _, op := range ports.ops {
		if !op.write && op.port == nabm+AC97_NABM_PCM_OUT+AC97_BOX_CR {
			crReads++
		}
	}
	assert.Equal(t, 4, crReads)

	assert.Equal(t, uint16(0), m.Ports.In16(nam+AC97_NAM_MASTER_VOLUME))
	assert.Equal(t, uint32(AC97_GLOB_STA_PCR), m.Ports.In32(nabm+AC97_NABM_GLOBAL_STATUS))
}

func TestAC97_ResetPollLimit(t *testing.T) {
	cfg := testMachineConfig()
	cfg.AC97.ResetDelay = 50
	a, _, _ := newDriverOnMachine(t, cfg)
	a.ResetPollLimit = 5

	err := a.Init()
	assert.ErrorIs(t, err, ErrCodecResetTimeout)
	assert.Equal(t, AC97Uninitialized, a.State())
}

func TestAC97_ResetPollLimitExactlyEnough(t *testing.T) {
	cfg := testMachineConfig()
	cfg.AC97.ResetDelay = 3
	a, _, _ := newDriverOnMachine(t, cfg)
	a.ResetPollLimit = 3

	require.NoError(t, a.Init())
}

func TestAC97_StateMachine(t *testing.T) {
	a, _, _ := newDriverOnMachine(t, testMachineConfig())

	assert.ErrorIs(t, a.BeginTransfer(0x100000, 31), ErrAC97State)

	require.NoError(t, a.Init())
	assert.ErrorIs(t, a.Init(), ErrAC97State)
	expectPanic(t, func() { _ = a.BeginTransfer(0x100000, 32) })
	assert.Equal(t, AC97Initialized, a.State())

	require.NoError(t, a.BeginTransfer(0x100000, 31))
	assert.Equal(t, AC97Streaming, a.State())

	assert.ErrorIs(t, a.Init(), ErrAC97State)
	assert.ErrorIs(t, a.BeginTransfer(0x100000, 31), ErrAC97State)
}

func TestAC97_BeginTransferProgramsBox(t *testing.T) {
	cfg := testMachineConfig()
	a, ports, m := newDriverOnMachine(t, cfg)
	require.NoError(t, a.Init())
	ports.ops = nil

	require.NoError(t, a.BeginTransfer(0x200000, 31))

	box := cfg.AC97.BusMasterBase + AC97_NABM_PCM_OUT
	assert.Equal(t, []portOp{
		{write: true, port: box + AC97_BOX_BDBAR, size: 4, value: 0x200000},
		{write: true, port: box + AC97_BOX_LVI, size: 1, value: 31},
		{write: true, port: box + AC97_BOX_CR, size: 1, value: AC97_CR_RPBM},
	}, ports.writes())
	assert.Equal(t, uint32(0x200000), m.Ports.In32(box+AC97_BOX_BDBAR))
	assert.Equal(t, uint8(31), m.Ports.In8(box+AC97_BOX_LVI))
	assert.Equal(t, uint8(0), a.CurrentEntry())
}

func TestAC97_SetFilledUpTo(t *testing.T) {
	cfg := testMachineConfig()
	a, _, m := newDriverOnMachine(t, cfg)
	require.NoError(t, a.Init())
	require.NoError(t, a.BeginTransfer(0x200000, 31))

	a.SetFilledUpTo(7)
	assert.Equal(t, uint8(7), m.Ports.In8(cfg.AC97.BusMasterBase+AC97_NABM_PCM_OUT+AC97_BOX_LVI))

	expectPanic(t, func() { a.SetFilledUpTo(32) })
}

func TestAC97_CurrentEntryOutOfRangePanics(t *testing.T) {
	bus := NewPortBus()
	bus.MapPorts(0xD100, 0xD13F, func(port uint16, size int) uint32 { return 40 }, nil)
	a := NewAC97(&AC97Device{MixerBase: 0xD000, BusMasterBase: 0xD100}, NewPCIConfig(bus), bus)

	expectPanic(t, func() { a.CurrentEntry() })
}

func TestAC97State_String(t *testing.T) {
	assert.Equal(t, "uninitialized", AC97Uninitialized.String())
	assert.Equal(t, "streaming", AC97Streaming.String())
	assert.Equal(t, "AC97State(9)", AC97State(9).String())
}

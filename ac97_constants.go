// ac97_constants.go - AC97 register map and ring geometry

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

package main

// Ring geometry fixed by the controller
const (
	AC97_NUM_BUFFERS          = 32
	AC97_MAX_SAMPLES_PER_BUF  = 0xFFFE
	AC97_RING_MASK            = AC97_NUM_BUFFERS - 1
	AC97_SAMPLE_SIZE          = 2 // signed 16-bit
	AC97_NUM_CHANNELS         = 2
	AC97_SAMPLES_PER_BUF      = AC97_MAX_SAMPLES_PER_BUF
	AC97_BYTES_PER_BUF        = AC97_SAMPLES_PER_BUF * AC97_SAMPLE_SIZE
	AC97_SAMPLES_IN_BLOB      = AC97_SAMPLES_PER_BUF * AC97_NUM_BUFFERS
	AC97_BUFFER_DESCRIPTOR_SZ = 8
	// sample blob plus descriptor list, as the stream engine allocates them
	AC97_STREAM_FOOTPRINT = AC97_SAMPLES_IN_BLOB*AC97_SAMPLE_SIZE + AC97_NUM_BUFFERS*AC97_BUFFER_DESCRIPTOR_SZ
)

// Buffer descriptor control bits
const (
	AC97_BD_IOC = 1 << 15 // interrupt on completion
	AC97_BD_BUP = 1 << 14 // last entry, stop (buffer underrun policy)
)

// Native Audio Mixer register offsets (16-bit)
const (
	AC97_NAM_RESET         = 0x00
	AC97_NAM_MASTER_VOLUME = 0x02
	AC97_NAM_AUX_VOLUME    = 0x04
	AC97_NAM_PCM_VOLUME    = 0x18

	AC97_NAM_SIZE        = 0x100
	AC97_VOLUME_MAX      = 0x0000 // attenuation scale: 0 is loudest
	AC97_VOLUME_MUTE_BIT = 1 << 15
)

// Native Audio Bus Master register offsets
const (
	AC97_NABM_PCM_OUT        = 0x10
	AC97_NABM_GLOBAL_CONTROL = 0x2C
	AC97_NABM_GLOBAL_STATUS  = 0x30
	AC97_NABM_SIZE           = 0x40

	// Offsets within a channel box
	AC97_BOX_BDBAR = 0x00 // buffer descriptor base address (32)
	AC97_BOX_CIV   = 0x04 // current index value (8)
	AC97_BOX_LVI   = 0x05 // last valid index (8)
	AC97_BOX_SR    = 0x06 // status (16)
	AC97_BOX_PICB  = 0x08 // position in current buffer, samples left (16)
	AC97_BOX_PIV   = 0x0A // prefetched index value (8)
	AC97_BOX_CR    = 0x0B // transfer control (8)
)

// Global control bits
const (
	AC97_GLOB_CNT_GIE         = 1 << 0
	AC97_GLOB_CNT_COLD_RESUME = 1 << 1
)

// Transfer control bits
const (
	AC97_CR_RPBM  = 1 << 0 // run/pause bus master
	AC97_CR_RR    = 1 << 1 // reset registers
	AC97_CR_LVBIE = 1 << 2
	AC97_CR_FEIE  = 1 << 3
	AC97_CR_IOCE  = 1 << 4
)

// Channel status bits
const (
	AC97_SR_DCH   = 1 << 0 // DMA controller halted
	AC97_SR_CELV  = 1 << 1 // current equals last valid
	AC97_SR_LVBCI = 1 << 2
	AC97_SR_BCIS  = 1 << 3
	AC97_SR_FIFOE = 1 << 4
)

// ac97_stream.go - Continuous AC97 playback over the descriptor ring

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
ac97_stream.go - Stream Engine

One contiguous sample blob is split into 32 equal slots, one per buffer
descriptor. The controller walks the ring on its own; the CPU side is driven
once per timer tick by Wind, which:

	1. reads the controller's current entry
	2. refills every slot between the last one it filled and the current one
	3. publishes current-1 as the last valid entry

Slots behind the controller have already been played and will not be reached
again for a full lap, so they can be rewritten without racing the DMA engine.
The controller is never told to stop; it is only ever held one slot behind the
fill cursor.

Descriptor and sample memory is device-visible. All writes to it go through
sync/atomic 32-bit stores so they are neither elided nor torn.
*/

package main

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/rcrowley/go-metrics"
)

// BufferDescriptor is the controller's 8-byte ring entry.
type BufferDescriptor struct {
	PhysicalAddr uint32
	NumSamples   uint16
	Control      uint16
}

type BufferDescriptorList [AC97_NUM_BUFFERS]BufferDescriptor

// SampleBlob is interleaved signed 16-bit stereo, one slot per descriptor.
type SampleBlob [AC97_SAMPLES_IN_BLOB]int16

var ErrEmptyTrack = errors.New("ac97 stream: source track is empty")

// StreamSnapshot is published after every Wind for observers outside the tick
// loop (monitor window, status line).
type StreamSnapshot struct {
	CurrentEntry     uint8
	LastBufferFilled uint8
	ReadHead         int
	TrackLen         int
	Ticks            uint64
	SlotsRefilled    uint64
}

type streamMetrics struct {
	ticks          metrics.Counter
	slotsRefilled  metrics.Counter
	samplesWritten metrics.Counter
	currentEntry   metrics.Gauge
	lastValid      metrics.Gauge
}

func newStreamMetrics(r metrics.Registry) *streamMetrics {
	return &streamMetrics{
		ticks:          metrics.GetOrRegisterCounter("ac97.stream.ticks", r),
		slotsRefilled:  metrics.GetOrRegisterCounter("ac97.stream.slots_refilled", r),
		samplesWritten: metrics.GetOrRegisterCounter("ac97.stream.samples_written", r),
		currentEntry:   metrics.GetOrRegisterGauge("ac97.stream.current_entry", r),
		lastValid:      metrics.GetOrRegisterGauge("ac97.stream.last_valid_entry", r),
	}
}

type StreamEngine struct {
	ac97 *AC97

	track    []int16
	readHead int

	blob DualPtr[SampleBlob]
	bdl  DualPtr[BufferDescriptorList]
	// blob viewed as stereo frames for atomic stores
	frames []uint32

	lastBufferFilled uint8

	ticks         uint64
	slotsRefilled uint64
	metrics       *streamMetrics
	snapshot      atomic.Pointer[StreamSnapshot]
}

type StreamOption func(*StreamEngine)

// WithMetricsRegistry records stream counters in r instead of the default
// go-metrics registry.
func WithMetricsRegistry(r metrics.Registry) StreamOption {
	return func(e *StreamEngine) {
		e.metrics = newStreamMetrics(r)
	}
}

// NewStreamEngine allocates the sample blob and descriptor list, points every
// descriptor at its slot and fills the whole blob from the track.
func NewStreamEngine(pa *PhysAllocator, track []int16, ac97 *AC97, opts ...StreamOption) (*StreamEngine, error) {
	if len(track) == 0 {
		return nil, ErrEmptyTrack
	}

	e := &StreamEngine{
		ac97:  ac97,
		track: track,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newStreamMetrics(metrics.DefaultRegistry)
	}

	e.blob = Alloc[SampleBlob](pa)
	e.bdl = Alloc[BufferDescriptorList](pa)
	e.frames = unsafe.Slice((*uint32)(unsafe.Pointer(e.blob.Virt)), AC97_SAMPLES_IN_BLOB/2)

	blobPhys := e.blob.Phys32()
	for i := range e.bdl.Virt {
		storeDescriptor(&e.bdl.Virt[i], BufferDescriptor{
			PhysicalAddr: blobPhys + uint32(AC97_BYTES_PER_BUF*i),
			NumSamples:   AC97_SAMPLES_PER_BUF,
			Control:      0, // no interrupt, no stop
		})
	}

	e.fillSoundBlob()
	e.publish(0)
	return e, nil
}

func storeDescriptor(d *BufferDescriptor, v BufferDescriptor) {
	atomic.StoreUint32(&d.PhysicalAddr, v.PhysicalAddr)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&d.NumSamples)), uint32(v.NumSamples)|uint32(v.Control)<<16)
}

func (e *StreamEngine) nextSample() int16 {
	s := e.track[e.readHead]
	e.readHead++
	if e.readHead >= len(e.track) {
		e.readHead = 0
	}
	return s
}

// writeFrames fills frames [from, to) from the looping read head.
func (e *StreamEngine) writeFrames(from, to int) {
	for f := from; f < to; f++ {
		left := uint16(e.nextSample())
		right := uint16(e.nextSample())
		atomic.StoreUint32(&e.frames[f], uint32(left)|uint32(right)<<16)
	}
}

// fillSoundBlob writes the entire blob once. Every slot is valid afterwards.
func (e *StreamEngine) fillSoundBlob() {
	e.writeFrames(0, len(e.frames))
	e.lastBufferFilled = AC97_NUM_BUFFERS - 1
	e.metrics.samplesWritten.Inc(AC97_SAMPLES_IN_BLOB)
}

func (e *StreamEngine) fillSlot(slot uint8) {
	const framesPerBuf = AC97_SAMPLES_PER_BUF / 2
	start := int(slot) * framesPerBuf
	e.writeFrames(start, start+framesPerBuf)
}

// Play initializes the controller and starts DMA with every slot valid.
func (e *StreamEngine) Play() error {
	if err := e.ac97.Init(); err != nil {
		return fmt.Errorf("ac97 stream: init: %w", err)
	}
	if err := e.ac97.BeginTransfer(e.bdl.Phys32(), AC97_NUM_BUFFERS-1); err != nil {
		return fmt.Errorf("ac97 stream: begin transfer: %w", err)
	}
	return nil
}

// Wind tops up the ring. Call once per tick after Play.
func (e *StreamEngine) Wind() {
	current := e.ac97.CurrentEntry()
	fillTo := (current - 1) & AC97_RING_MASK

	refilled := 0
	for i := (e.lastBufferFilled + 1) & AC97_RING_MASK; i != current; i = (i + 1) & AC97_RING_MASK {
		e.fillSlot(i)
		refilled++
	}

	e.ac97.SetFilledUpTo(fillTo)
	e.lastBufferFilled = fillTo

	e.ticks++
	e.slotsRefilled += uint64(refilled)
	e.metrics.ticks.Inc(1)
	e.metrics.slotsRefilled.Inc(int64(refilled))
	e.metrics.samplesWritten.Inc(int64(refilled * AC97_SAMPLES_PER_BUF))
	e.metrics.currentEntry.Update(int64(current))
	e.metrics.lastValid.Update(int64(fillTo))
	e.publish(current)
}

func (e *StreamEngine) publish(current uint8) {
	e.snapshot.Store(&StreamSnapshot{
		CurrentEntry:     current,
		LastBufferFilled: e.lastBufferFilled,
		ReadHead:         e.readHead,
		TrackLen:         len(e.track),
		Ticks:            e.ticks,
		SlotsRefilled:    e.slotsRefilled,
	})
}

func (e *StreamEngine) Snapshot() StreamSnapshot { return *e.snapshot.Load() }

func (e *StreamEngine) LastBufferFilled() uint8 { return e.lastBufferFilled }
func (e *StreamEngine) ReadHead() int           { return e.readHead }

// BDLPhys and BlobPhys expose the device-side addresses.
func (e *StreamEngine) BDLPhys() uint64  { return e.bdl.Phys }
func (e *StreamEngine) BlobPhys() uint64 { return e.blob.Phys }

// Sample reads back one blob sample.
func (e *StreamEngine) Sample(i int) int16 {
	w := atomic.LoadUint32(&e.frames[i/2])
	return int16(w >> ((i & 1) * 16))
}

// Descriptor reads back one ring entry.
func (e *StreamEngine) Descriptor(i int) BufferDescriptor {
	d := &e.bdl.Virt[i]
	ctl := atomic.LoadUint32((*uint32)(unsafe.Pointer(&d.NumSamples)))
	return BufferDescriptor{
		PhysicalAddr: atomic.LoadUint32(&d.PhysicalAddr),
		NumSamples:   uint16(ctl),
		Control:      uint16(ctl >> 16),
	}
}

// Package audio provides host audio device enumeration and duplex
// capture/playback streams, bridging miniaudio's real-time callback
// thread (via github.com/gen2brain/malgo) to ordinary Go goroutines
// through bounded, drop-oldest channels and a ring buffer.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// ErrDevice is returned for any host audio device failure: enumeration,
// open, start.
var ErrDevice = errors.New("audio: device error")

// DefaultSampleRate is requested from miniaudio for both capture and
// playback; miniaudio's internal data converter resamples and
// channel-mixes transparently when the device's native configuration
// differs, so callers always see mono 16-bit samples at this rate.
const DefaultSampleRate = 16000

// frameChannelCapacity bounds the capture channel per §4.8: roughly
// 100 frames of buffering before the oldest frame is dropped in favor
// of the newest, trading completeness for liveness.
const frameChannelCapacity = 100

// periodMillis matches the teacher's own low-latency period size.
const periodMillis = 20

var (
	ctxOnce sync.Once
	ctx     *malgo.AllocatedContext
	ctxErr  error
)

func ensureContext() (*malgo.AllocatedContext, error) {
	ctxOnce.Do(func() {
		ctx, ctxErr = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	})
	if ctxErr != nil {
		return nil, fmt.Errorf("%w: initializing audio context: %v", ErrDevice, ctxErr)
	}
	return ctx, nil
}

// ReleaseContext frees the shared miniaudio context. Call once, after
// all streams have been closed, typically at process shutdown.
func ReleaseContext() {
	ctxOnce = sync.Once{}
	if ctx != nil {
		ctx.Free()
		ctx = nil
	}
}

// Device names a host audio endpoint as miniaudio enumerates it.
type Device struct {
	Name string
}

// ListInputDevices enumerates capture devices.
func ListInputDevices() ([]Device, error) {
	return listDevices(malgo.Capture)
}

// ListOutputDevices enumerates playback devices.
func ListOutputDevices() ([]Device, error) {
	return listDevices(malgo.Playback)
}

func listDevices(kind malgo.DeviceType) ([]Device, error) {
	c, err := ensureContext()
	if err != nil {
		return nil, err
	}
	infos, err := c.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating devices: %v", ErrDevice, err)
	}
	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		out = append(out, Device{Name: info.Name()})
	}
	return out, nil
}

// deviceIDFromName builds a malgo DeviceID from a device name string,
// matching the teacher's convention of addressing devices by name
// rather than by opaque binary ID. The empty string or "default"
// selects the platform default device.
func deviceIDFromName(name string) *malgo.DeviceID {
	if name == "" || name == "default" {
		return nil
	}
	var id malgo.DeviceID
	copy(id[:], name)
	return &id
}

// InputStream owns a capture device and exposes decoded frames on a
// bounded channel; the capture callback never blocks, dropping the
// oldest buffered frame when the channel is full.
type InputStream struct {
	device     *malgo.Device
	frames     chan []int16
	sampleRate uint32
	closeOnce  sync.Once
}

// InitInput opens name (or the default device when name is "" or
// "default") for capture, converted to mono 16-bit PCM at
// DefaultSampleRate.
func InitInput(name string) (*InputStream, error) {
	c, err := ensureContext()
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = DefaultSampleRate
	cfg.PeriodSizeInMilliseconds = periodMillis

	var pinner runtime.Pinner
	if id := deviceIDFromName(name); id != nil {
		pinner.Pin(id)
		cfg.Capture.DeviceID = unsafe.Pointer(id) //nolint:gosec // malgo's documented way to select a device
	}

	in := &InputStream{
		frames:     make(chan []int16, frameChannelCapacity),
		sampleRate: DefaultSampleRate,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			if len(pInput) == 0 {
				return
			}
			frame := bytesToInt16(pInput)
			pushDropOldest(in.frames, frame)
		},
	}

	device, err := malgo.InitDevice(c.Context, cfg, callbacks)
	pinner.Unpin()
	if err != nil {
		return nil, fmt.Errorf("%w: opening capture device %q: %v", ErrDevice, name, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: starting capture device %q: %v", ErrDevice, name, err)
	}
	in.device = device
	return in, nil
}

// Frames returns the channel of captured mono 16-bit frames.
func (in *InputStream) Frames() <-chan []int16 { return in.frames }

// SampleRate reports the rate frames are delivered at.
func (in *InputStream) SampleRate() uint32 { return in.sampleRate }

// Close stops and releases the capture device.
func (in *InputStream) Close() error {
	var err error
	in.closeOnce.Do(func() {
		if in.device != nil {
			err = in.device.Stop()
			in.device.Uninit()
		}
	})
	return err
}

// pushDropOldest sends frame on ch, discarding the oldest buffered
// frame first if ch is already full.
func pushDropOldest(ch chan []int16, frame []int16) {
	select {
	case ch <- frame:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- frame:
	default:
	}
}

// OutputStream owns a playback device fed from an internal ring
// buffer; Push supplies frames from a producer goroutine, and the
// device callback drains the ring without blocking, filling any
// shortfall with silence.
type OutputStream struct {
	device     *malgo.Device
	ring       *ringBuffer
	sampleRate uint32
	closeOnce  sync.Once
}

// ringCapacitySamples holds roughly one second of audio at
// DefaultSampleRate, comfortably ahead of the 20ms RTP receive cadence.
const ringCapacitySamples = DefaultSampleRate

// InitOutput opens name (or the default device) for playback of mono
// 16-bit PCM at DefaultSampleRate.
func InitOutput(name string) (*OutputStream, error) {
	c, err := ensureContext()
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = DefaultSampleRate
	cfg.PeriodSizeInMilliseconds = periodMillis

	var pinner runtime.Pinner
	if id := deviceIDFromName(name); id != nil {
		pinner.Pin(id)
		cfg.Playback.DeviceID = unsafe.Pointer(id) //nolint:gosec // malgo's documented way to select a device
	}

	out := &OutputStream{
		ring:       newRingBuffer(ringCapacitySamples),
		sampleRate: DefaultSampleRate,
	}

	var scratch []int16
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			if cap(scratch) < int(frameCount) {
				scratch = make([]int16, frameCount)
			} else {
				scratch = scratch[:frameCount]
			}
			out.ring.ReadFill(scratch)
			int16ToBytes(scratch, pOutput)
		},
	}

	device, err := malgo.InitDevice(c.Context, cfg, callbacks)
	pinner.Unpin()
	if err != nil {
		return nil, fmt.Errorf("%w: opening playback device %q: %v", ErrDevice, name, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: starting playback device %q: %v", ErrDevice, name, err)
	}
	out.device = device
	return out, nil
}

// Push enqueues frame for playback, dropping samples that do not fit
// in the ring (the device is not draining fast enough, which should
// not happen once the stream is running).
func (out *OutputStream) Push(frame []int16) {
	out.ring.Write(frame)
}

// SampleRate reports the rate Push expects frames to be encoded at.
func (out *OutputStream) SampleRate() uint32 { return out.sampleRate }

// Close stops and releases the playback device.
func (out *OutputStream) Close() error {
	var err error
	out.closeOnce.Do(func() {
		if out.device != nil {
			err = out.device.Stop()
			out.device.Uninit()
		}
	})
	return err
}

// MicrophoneTestResult is the diagnostic TestMicrophone reports.
type MicrophoneTestResult struct {
	PeakAmplitude int16
	FrameCount    int
}

// testMicrophoneDuration is how long TestMicrophone samples the
// device for, per §4.8 ("~1 s").
const testMicrophoneDuration = time.Second

// TestMicrophone opens device, captures for about one second, and
// reports the peak sample amplitude and number of frames observed —
// a quick liveness check the UI can use before placing a call.
func TestMicrophone(device string) (MicrophoneTestResult, error) {
	stream, err := InitInput(device)
	if err != nil {
		return MicrophoneTestResult{}, err
	}
	defer stream.Close()

	var result MicrophoneTestResult
	deadline := time.Now().Add(testMicrophoneDuration)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return result, nil
		}
		select {
		case frame := <-stream.Frames():
			result.FrameCount++
			for _, s := range frame {
				abs := int32(s)
				if abs < 0 {
					abs = -abs
				}
				if abs > 32767 {
					abs = 32767
				}
				if int16(abs) > result.PeakAmplitude {
					result.PeakAmplitude = int16(abs)
				}
			}
		case <-time.After(remaining):
			return result, nil
		}
	}
}

func bytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

func int16ToBytes(in []int16, out []byte) {
	n := len(in)
	if n*2 > len(out) {
		n = len(out) / 2
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(in[i]))
	}
}

package vad

import (
	"math"

	"likeness/internal/config"
	"likeness/internal/media"
)

// Interval is one detected speech span, in seconds from clip start.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the interval length in seconds.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Detector finds speech spans in mono PCM. It prefers the WebRTC voice
// activity classifier and falls back to frame energy when that is
// unavailable, so results stay usable on builds without cgo.
type Detector struct {
	sampleRate      int
	frameMs         int
	aggressiveness  int
	energyThreshold float64
	minSpeechMs     int
}

// New builds a detector from the VAD configuration.
func New(cfg *config.Config) *Detector {
	return &Detector{
		sampleRate:      cfg.Media.SampleRate,
		frameMs:         cfg.VAD.FrameMs,
		aggressiveness:  cfg.VAD.Aggressiveness,
		energyThreshold: cfg.VAD.EnergyThreshold,
		minSpeechMs:     cfg.VAD.MinSpeechMs,
	}
}

// DetectSpeech returns merged speech intervals for the provided samples.
// Runs shorter than the configured minimum are dropped.
func (d *Detector) DetectSpeech(samples []float32) []Interval {
	if len(samples) == 0 {
		return nil
	}
	return d.mergeFlags(d.classifyFrames(samples))
}

// HasSpeech reports whether any qualifying speech interval exists.
func (d *Detector) HasSpeech(samples []float32) bool {
	return len(d.DetectSpeech(samples)) > 0
}

// classifyFrames produces one speech flag per full frame. The WebRTC
// classifier sees 16-bit PCM; frames it rejects count as non-speech so
// flag positions stay aligned with time.
func (d *Detector) classifyFrames(samples []float32) []bool {
	classifier, err := newClassifier(d.aggressiveness)
	if err != nil {
		return d.energyFlags(samples)
	}

	samplesPerFrame := d.samplesPerFrame()
	if samplesPerFrame <= 0 {
		return nil
	}
	pcm := media.PCMFromSamples(samples)
	frameBytes := samplesPerFrame * 2

	flags := make([]bool, 0, len(pcm)/frameBytes)
	for offset := 0; offset+frameBytes <= len(pcm); offset += frameBytes {
		frame := pcm[offset : offset+frameBytes]
		isSpeech, err := classifier.Process(d.sampleRate, frame)
		if err != nil {
			flags = append(flags, false)
			continue
		}
		flags = append(flags, isSpeech)
	}
	return flags
}

// energyFlags marks frames whose RMS exceeds the configured threshold.
func (d *Detector) energyFlags(samples []float32) []bool {
	samplesPerFrame := d.samplesPerFrame()
	if samplesPerFrame <= 0 {
		return nil
	}

	frameCount := len(samples) / samplesPerFrame
	flags := make([]bool, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		frame := samples[i*samplesPerFrame : (i+1)*samplesPerFrame]
		sum := 0.0
		for _, sample := range frame {
			sum += float64(sample) * float64(sample)
		}
		rms := math.Sqrt(sum / float64(len(frame)))
		flags = append(flags, rms > d.energyThreshold)
	}
	return flags
}

// mergeFlags joins consecutive speech frames into intervals and drops runs
// shorter than the configured minimum.
func (d *Detector) mergeFlags(flags []bool) []Interval {
	frameSec := float64(d.frameMs) / 1000
	minSec := float64(d.minSpeechMs) / 1000

	var intervals []Interval
	runStart := -1
	for i, flag := range flags {
		if flag {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		if runStart != -1 {
			intervals = appendRun(intervals, runStart, i, frameSec, minSec)
			runStart = -1
		}
	}
	if runStart != -1 {
		intervals = appendRun(intervals, runStart, len(flags), frameSec, minSec)
	}
	return intervals
}

func appendRun(intervals []Interval, startFrame, endFrame int, frameSec, minSec float64) []Interval {
	iv := Interval{
		Start: float64(startFrame) * frameSec,
		End:   float64(endFrame) * frameSec,
	}
	if iv.Duration()+1e-9 < minSec {
		return intervals
	}
	return append(intervals, iv)
}

func (d *Detector) samplesPerFrame() int {
	if d.sampleRate <= 0 || d.frameMs <= 0 {
		return 0
	}
	return d.sampleRate * d.frameMs / 1000
}

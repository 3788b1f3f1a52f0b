//go:build cgo

package vad

import "github.com/visvasity/webrtcvad"

type classifier struct {
	vad *webrtcvad.VAD
}

func newClassifier(aggressiveness int) (*classifier, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	// WebRTC VAD modes: 0 (quality) .. 3 (aggressive).
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness > 3 {
		aggressiveness = 3
	}
	if err := vad.SetMode(aggressiveness); err != nil {
		return nil, err
	}
	return &classifier{vad: vad}, nil
}

func (c *classifier) Process(sampleRate int, frame []byte) (bool, error) {
	return c.vad.Process(sampleRate, frame)
}

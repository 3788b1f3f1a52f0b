//go:build !cgo

package vad

import "errors"

type classifier struct{}

func newClassifier(aggressiveness int) (*classifier, error) {
	return nil, errors.New("webrtcvad unavailable (cgo disabled)")
}

func (c *classifier) Process(sampleRate int, frame []byte) (bool, error) {
	return false, errors.New("webrtcvad unavailable (cgo disabled)")
}

package media

// Frame is one video frame extracted from a clip, encoded as JPEG.
type Frame struct {
	JPEG      []byte
	Timestamp float64
}

// Clip holds the decoded contents of one media file: mono PCM samples at the
// configured rate plus sampled video frames. Either side may be empty when
// the source carries only one stream type.
type Clip struct {
	PCM        []float32
	SampleRate int
	Frames     []Frame
	Duration   float64
}

// HasAudio reports whether the clip carries any audio samples.
func (c *Clip) HasAudio() bool {
	return c != nil && len(c.PCM) > 0
}

// HasVideo reports whether the clip carries any video frames.
func (c *Clip) HasVideo() bool {
	return c != nil && len(c.Frames) > 0
}

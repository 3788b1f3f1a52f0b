package media

import (
	"encoding/binary"
	"fmt"
	"os"
)

// SamplesFromPCM converts signed 16-bit little-endian PCM bytes into float32
// samples in [-1, 1). A trailing odd byte is ignored.
func SamplesFromPCM(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}

// PCMFromSamples converts float32 samples back into signed 16-bit
// little-endian PCM bytes, clamping out-of-range values.
func PCMFromSamples(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		scaled := sample * 32767
		if scaled > 32767 {
			scaled = 32767
		}
		if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(scaled)))
	}
	return data
}

// WriteWAV writes mono 16-bit PCM samples to a canonical RIFF/WAVE file so
// external tools can consume decoded audio without re-running ffmpeg.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	pcm := PCMFromSamples(samples)

	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+len(pcm)))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], 1)
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:], 2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(len(pcm)))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if _, err := f.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := f.Write(pcm); err != nil {
		_ = f.Close()
		return fmt.Errorf("write wav data: %w", err)
	}
	return f.Close()
}

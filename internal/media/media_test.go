package media

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestParseProbeOutput(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264"},
			{"codec_type": "audio", "codec_name": "aac", "duration": "4.8"}
		],
		"format": {"duration": "5.02", "format_name": "mov,mp4,m4a"}
	}`)

	info, err := parseProbeOutput(payload)
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}
	if !info.HasAudio || !info.HasVideo {
		t.Fatalf("expected both stream types, got %+v", info)
	}
	if info.DurationSeconds != 5.02 {
		t.Fatalf("expected format duration to win, got %v", info.DurationSeconds)
	}
}

func TestParseProbeOutputAudioOnly(t *testing.T) {
	payload := []byte(`{
		"streams": [{"codec_type": "audio", "duration": "2.5"}],
		"format": {"format_name": "wav"}
	}`)

	info, err := parseProbeOutput(payload)
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}
	if !info.HasAudio || info.HasVideo {
		t.Fatalf("expected audio-only, got %+v", info)
	}
	if info.DurationSeconds != 2.5 {
		t.Fatalf("expected stream duration fallback, got %v", info.DurationSeconds)
	}
}

func TestParseProbeOutputRejectsGarbage(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Fatal("expected parse error for invalid JSON")
	}
}

func TestSplitJPEG(t *testing.T) {
	first := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	second := []byte{0xFF, 0xD8, 0xAA, 0xFF, 0x00, 0xBB, 0xFF, 0xD9}
	stream := append(append([]byte{}, first...), second...)

	images := splitJPEG(stream)
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if len(images[0]) != len(first) {
		t.Fatalf("first image length mismatch: %d vs %d", len(images[0]), len(first))
	}
	if len(images[1]) != len(second) {
		t.Fatalf("second image length mismatch: %d vs %d", len(images[1]), len(second))
	}
}

func TestSplitJPEGIgnoresTruncatedTail(t *testing.T) {
	stream := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9, 0xFF, 0xD8, 0x02, 0x03}
	images := splitJPEG(stream)
	if len(images) != 1 {
		t.Fatalf("expected the truncated trailing image dropped, got %d images", len(images))
	}
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, -1}
	data := PCMFromSamples(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(data))
	}

	back := SamplesFromPCM(data)
	if len(back) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(back))
	}
	for i := range samples {
		diff := back[i] - samples[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0/16384 {
			t.Fatalf("sample %d drifted: %v vs %v", i, samples[i], back[i])
		}
	}
}

func TestPCMFromSamplesClamps(t *testing.T) {
	data := PCMFromSamples([]float32{2.0, -2.0})
	high := int16(binary.LittleEndian.Uint16(data[0:]))
	low := int16(binary.LittleEndian.Uint16(data[2:]))
	if high != 32767 {
		t.Fatalf("expected positive clamp to 32767, got %d", high)
	}
	if low != -32768 {
		t.Fatalf("expected negative clamp to -32768, got %d", low)
	}
}

func TestWriteWAVHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := []float32{0, 0.25, -0.25, 0.5}
	if err := WriteWAV(path, samples, 16000); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("unexpected RIFF header: %q %q", data[0:4], data[8:12])
	}
	if rate := binary.LittleEndian.Uint32(data[24:]); rate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(data[40:]); int(dataLen) != len(samples)*2 {
		t.Fatalf("expected data length %d, got %d", len(samples)*2, dataLen)
	}
}

func TestClipStreamFlags(t *testing.T) {
	clip := &Clip{PCM: []float32{0.1}, SampleRate: 16000}
	if !clip.HasAudio() || clip.HasVideo() {
		t.Fatalf("unexpected stream flags: audio=%v video=%v", clip.HasAudio(), clip.HasVideo())
	}
	clip.Frames = []Frame{{JPEG: []byte{0xFF, 0xD8, 0xFF, 0xD9}}}
	if !clip.HasVideo() {
		t.Fatal("expected video after frames added")
	}
	var nilClip *Clip
	if nilClip.HasAudio() || nilClip.HasVideo() {
		t.Fatal("nil clip should report no streams")
	}
}

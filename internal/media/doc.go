// Package media decodes uploaded clips into the raw material the feature
// extractors consume: mono float32 PCM at the configured sample rate and
// JPEG frames sampled at the configured FPS. Decoding shells out to ffmpeg
// and ffprobe so any container or codec those binaries understand works.
package media

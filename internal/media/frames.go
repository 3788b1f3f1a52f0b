package media

// splitJPEG slices a concatenated MJPEG stream into individual images by
// scanning for SOI/EOI marker pairs. Bytes outside a marker pair are dropped.
func splitJPEG(data []byte) [][]byte {
	var images [][]byte
	start := -1
	for i := 0; i+1 < len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		switch data[i+1] {
		case 0xD8:
			if start == -1 {
				start = i
			}
		case 0xD9:
			if start != -1 {
				images = append(images, data[start:i+2])
				start = -1
				i++
			}
		}
	}
	return images
}

// Package wavwriter writes interleaved 16-bit PCM samples to a
// streaming RIFF/WAVE file, patching the header's size fields on
// Close since the total frame count isn't known up front.
package wavwriter

import (
	"encoding/binary"
	"io"
)

// Writer streams 16-bit PCM samples into a RIFF/WAVE container.
type Writer struct {
	w       io.WriteSeeker
	channels int
	srate   int
	written int64 // bytes of sample data written so far
}

const headerLen = 44

// New writes a provisional WAV header (sizes filled in on Close) and
// returns a Writer ready to accept interleaved int16 samples.
func New(w io.WriteSeeker, channels, srate int) (*Writer, error) {
	wr := &Writer{w: w, channels: channels, srate: srate}
	if err := wr.writeHeader(0); err != nil {
		return nil, err
	}
	return wr, nil
}

func (wr *Writer) writeHeader(dataLen int64) error {
	var hdr [headerLen]byte
	byteRate := wr.srate * wr.channels * 2
	blockAlign := wr.channels * 2

	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataLen))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(wr.channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(wr.srate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], 16) // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataLen))

	if _, err := wr.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := wr.w.Write(hdr[:])
	return err
}

// WriteSamples appends interleaved int16 samples (already channel-major,
// i.e. left/right/left/right... for stereo) to the stream.
func (wr *Writer) WriteSamples(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	n, err := wr.w.Write(buf)
	wr.written += int64(n)
	return err
}

// Close rewrites the header with the final data size. It does not
// close the underlying writer.
func (wr *Writer) Close() error {
	return wr.writeHeader(wr.written)
}

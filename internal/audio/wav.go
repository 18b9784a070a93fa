package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mjibson/go-dsp/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3

	// frames decoded per read; memory grows with the data actually present,
	// never with the size the header claims
	wavBlockFrames = 1 << 16
)

// AudioBuffer is a fully decoded mono signal.
type AudioBuffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the buffer in seconds.
func (b AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// DecodeWAV reads a RIFF/WAVE stream and downmixes it to mono. PCM samples
// are scaled to [-1, 1). A data chunk that ends early, or one written with
// an unknown length by a streaming encoder, keeps every whole frame read.
func DecodeWAV(r io.Reader) (AudioBuffer, error) {
	header := &chunkSizeReader{r: r}
	w, err := readWAVHeader(header)
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	channels := int(w.Header.NumChannels)
	width, err := sampleWidth(w.Header)
	if err != nil {
		return AudioBuffer{}, err
	}
	frameBytes := channels * width

	// wav.New stops right after the data chunk header, so the rest of r is
	// sample data followed by any trailing chunks.
	data := r
	size := header.size()
	expected := wavBlockFrames
	if size != 0 && size != math.MaxUint32 {
		data = io.LimitReader(r, int64(size))
		expected = min(int(size)/frameBytes, wavBlockFrames)
	}

	mono := make([]float64, 0, expected)
	block := make([]byte, wavBlockFrames*frameBytes)
	interleaved := make([]float32, 0, wavBlockFrames*channels)
	for {
		n, err := io.ReadFull(data, block)
		whole := n - n%frameBytes
		interleaved = decodeSamples(interleaved[:0], block[:whole], w.Header)
		mono = downmix(mono, interleaved, channels, 1)

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return AudioBuffer{}, fmt.Errorf("read samples: %w", err)
		}
	}

	if len(mono) == 0 {
		return AudioBuffer{}, ErrEmptyAudio
	}
	return AudioBuffer{Samples: mono, SampleRate: int(w.Header.SampleRate)}, nil
}

// readWAVHeader parses the header with go-dsp. wav.New divides by the
// declared rate and channel count, so a zero in either is reported as an
// error rather than a panic.
func readWAVHeader(r io.Reader) (w *wav.Wav, err error) {
	defer func() {
		if p := recover(); p != nil {
			w, err = nil, fmt.Errorf("malformed header: %v", p)
		}
	}()

	w, err = wav.New(r)
	if err != nil {
		return nil, err
	}
	if w.Header.NumChannels == 0 || w.Header.SampleRate == 0 {
		return nil, fmt.Errorf("%d channels at %d Hz", w.Header.NumChannels, w.Header.SampleRate)
	}
	return w, nil
}

// sampleWidth returns the bytes per sample for the formats DecodeWAV reads.
func sampleWidth(h wav.Header) (int, error) {
	switch {
	case h.AudioFormat == wavFormatPCM && (h.BitsPerSample == 8 || h.BitsPerSample == 16 ||
		h.BitsPerSample == 24 || h.BitsPerSample == 32):
	case h.AudioFormat == wavFormatFloat && (h.BitsPerSample == 32 || h.BitsPerSample == 64):
	default:
		return 0, fmt.Errorf("%w: format %d with %d bits per sample",
			ErrUnsupportedFormat, h.AudioFormat, h.BitsPerSample)
	}
	return int(h.BitsPerSample) / 8, nil
}

// decodeSamples appends the little-endian samples in raw to dst.
func decodeSamples(dst []float32, raw []byte, h wav.Header) []float32 {
	le := binary.LittleEndian
	switch {
	case h.AudioFormat == wavFormatFloat && h.BitsPerSample == 32:
		for i := 0; i+4 <= len(raw); i += 4 {
			dst = append(dst, math.Float32frombits(le.Uint32(raw[i:])))
		}
	case h.AudioFormat == wavFormatFloat:
		for i := 0; i+8 <= len(raw); i += 8 {
			dst = append(dst, float32(math.Float64frombits(le.Uint64(raw[i:]))))
		}
	case h.BitsPerSample == 8:
		// 8-bit PCM is unsigned
		for _, b := range raw {
			dst = append(dst, (float32(b)-128)/128)
		}
	case h.BitsPerSample == 16:
		for i := 0; i+2 <= len(raw); i += 2 {
			dst = append(dst, float32(int16(le.Uint16(raw[i:])))/(1<<15))
		}
	case h.BitsPerSample == 24:
		for i := 0; i+3 <= len(raw); i += 3 {
			v := int32(uint32(raw[i])<<8|uint32(raw[i+1])<<16|uint32(raw[i+2])<<24) >> 8
			dst = append(dst, float32(v)/(1<<23))
		}
	default:
		for i := 0; i+4 <= len(raw); i += 4 {
			dst = append(dst, float32(int32(le.Uint32(raw[i:])))/(1<<31))
		}
	}
	return dst
}

// chunkSizeReader remembers the last four bytes read through it, which is
// the data chunk size once wav.New returns.
type chunkSizeReader struct {
	r    io.Reader
	tail [4]byte
}

func (c *chunkSizeReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	switch {
	case n >= len(c.tail):
		copy(c.tail[:], p[n-len(c.tail):n])
	case n > 0:
		copy(c.tail[:], c.tail[n:])
		copy(c.tail[len(c.tail)-n:], p[:n])
	}
	return n, err
}

func (c *chunkSizeReader) size() uint32 {
	return binary.LittleEndian.Uint32(c.tail[:])
}

// DecodeWAVFile opens and decodes the WAV file at path.
func DecodeWAVFile(path string) (AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioBuffer{}, err
	}
	defer f.Close()

	buf, err := DecodeWAV(bufio.NewReader(f))
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, nil
}

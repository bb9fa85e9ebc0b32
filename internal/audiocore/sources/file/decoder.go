package file

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
)

// pcmDecoder yields interleaved normalized samples from an open file.
type pcmDecoder interface {
	format() audiocore.Format
	// read fills dst and returns the sample count, io.EOF at end of file
	read(dst []float32) (int, error)
}

// openDecoder picks the decoder from the file extension.
func openDecoder(f *os.File) (pcmDecoder, error) {
	switch ext := strings.ToLower(filepath.Ext(f.Name())); ext {
	case ".wav", ".wave":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	default:
		return nil, errors.Newf("unsupported audio file type %q", ext).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Context("operation", "open_decoder").
			Context("path", f.Name()).
			Build()
	}
}

type wavDecoder struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	bitDepth int
	fmt      audiocore.Format
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("audiocore").
			Category(errors.CategoryValidation).
			Context("path", f.Name()).
			Build()
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, errors.Newf("unsupported bit depth: %d", bitDepth).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Context("path", f.Name()).
			Build()
	}

	format := audiocore.Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return &wavDecoder{
		dec:      dec,
		bitDepth: bitDepth,
		fmt:      format,
		buf: &audio.IntBuffer{
			Format: &audio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
		},
	}, nil
}

func (d *wavDecoder) format() audiocore.Format { return d.fmt }

func (d *wavDecoder) read(dst []float32) (int, error) {
	if cap(d.buf.Data) < len(dst) {
		d.buf.Data = make([]int, len(dst))
	}
	d.buf.Data = d.buf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	if d.bitDepth == 8 {
		// 8 bit WAV is unsigned
		for i, s := range d.buf.Data[:n] {
			dst[i] = float32(s-128) / 128
		}
		return n, nil
	}
	audiocore.IntToFloat32(dst[:n], d.buf.Data[:n], d.bitDepth)
	return n, nil
}

type flacDecoder struct {
	dec     *flac.Decoder
	fmt     audiocore.Format
	pending []float32 // decoded samples not yet returned
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	dec, err := flac.NewDecoder(f)
	if err != nil {
		return nil, errors.New(err).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Context("operation", "flac_decode").
			Context("path", f.Name()).
			Build()
	}
	switch dec.BitsPerSample {
	case 16, 24, 32:
	default:
		return nil, errors.Newf("unsupported bit depth: %d", dec.BitsPerSample).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Context("path", f.Name()).
			Build()
	}
	return &flacDecoder{
		dec: dec,
		fmt: audiocore.Format{SampleRate: dec.SampleRate, Channels: dec.NChannels},
	}, nil
}

func (d *flacDecoder) format() audiocore.Format { return d.fmt }

func (d *flacDecoder) read(dst []float32) (int, error) {
	for len(d.pending) == 0 {
		frame, err := d.dec.Next()
		if err != nil {
			return 0, err
		}
		d.pending = decodeFLACFrame(frame, d.dec.BitsPerSample)
	}
	n := copy(dst, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// decodeFLACFrame converts little endian interleaved frame bytes.
func decodeFLACFrame(frame []byte, bitsPerSample int) []float32 {
	width := bitsPerSample / 8
	out := make([]float32, 0, len(frame)/width)
	for i := 0; i+width <= len(frame); i += width {
		var s int32
		switch bitsPerSample {
		case 16:
			s = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
		case 24:
			s = int32(frame[i]) | int32(frame[i+1])<<8 | int32(int8(frame[i+2]))<<16
		case 32:
			s = int32(binary.LittleEndian.Uint32(frame[i:]))
		}
		out = append(out, float32(s)/float32(int64(1)<<(bitsPerSample-1)))
	}
	return out
}

// describeFormat renders a format for logs.
func describeFormat(f audiocore.Format) string {
	return fmt.Sprintf("%d Hz, %d ch", f.SampleRate, f.Channels)
}

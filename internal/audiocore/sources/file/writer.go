package file

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
)

// WriteWAV writes mono float samples as a 16 bit PCM WAV file.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	outFile, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryFileIO).
			Context("operation", "create_wav").
			Context("path", path).
			Build()
	}
	defer func() { _ = outFile.Close() }()

	enc := wav.NewEncoder(outFile, sampleRate, 16, 1, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(audiocore.FloatToInt16(s))
	}

	if err := enc.Write(&audio.IntBuffer{
		Data:           ints,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}); err != nil {
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryFileIO).
			Context("operation", "write_wav").
			Context("path", path).
			Build()
	}

	// Close finalizes the RIFF header
	if err := enc.Close(); err != nil {
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryFileIO).
			Context("operation", "finalize_wav").
			Context("path", path).
			Build()
	}
	return nil
}

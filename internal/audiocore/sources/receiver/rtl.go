//go:build rtlsdr

package receiver

import (
	"hz.tools/rf"
	"hz.tools/sdr"
	"hz.tools/sdr/rtl"
)

func init() {
	RegisterDriver("rtl", openRTL)
}

// rtlTuner adapts an RTL-SDR dongle.
type rtlTuner struct {
	dev *rtl.Sdr
}

func openRTL(index int) (Tuner, error) {
	dev, err := rtl.New(uint(index), 0)
	if err != nil {
		return nil, err
	}
	return &rtlTuner{dev: dev}, nil
}

func (t *rtlTuner) SetCenterFrequency(freq rf.Hz) error { return t.dev.SetCenterFrequency(freq) }
func (t *rtlTuner) SetSampleRate(rate uint) error       { return t.dev.SetSampleRate(rate) }
func (t *rtlTuner) StartRx() (sdr.ReadCloser, error)   { return t.dev.StartRx() }
func (t *rtlTuner) Close() error                       { return t.dev.Close() }

func (t *rtlTuner) SetGain(db float64) error {
	if db == 0 {
		return t.dev.SetAutomaticGain(true)
	}
	if err := t.dev.SetAutomaticGain(false); err != nil {
		return err
	}
	stages, err := t.dev.GetGainStages()
	if err != nil || len(stages) == 0 {
		return err
	}
	return t.dev.SetGain(stages[0], float32(db))
}

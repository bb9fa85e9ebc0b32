package same

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventSignificance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want Significance
	}{
		{"TOR", SignificanceWarning},
		{"SVR", SignificanceWarning},
		{"FFW", SignificanceWarning},
		{"TOA", SignificanceWatch},
		{"SVS", SignificanceStatement},
		{"CEM", SignificanceEmergency},
		{"EVI", SignificanceEmergency},
		{"RWT", SignificanceTest},
		{"DMO", SignificanceTest},
		{"ADR", SignificanceOther},
		{"XX", SignificanceOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EventSignificance(tt.code), tt.code)
	}
}

func TestOriginatorName(t *testing.T) {
	t.Parallel()

	assert.True(t, OriginatorWXR.Valid())
	assert.Equal(t, "Unknown Originator", Originator("XYZ").Name())
	assert.False(t, Originator("XYZ").Valid())
	assert.Equal(t, "Unknown Event", EventName("QQQ"))
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in   string
		want Destination
	}{
		{"home", DestinationHome},
		{"LOCK", DestinationLock},
		{" All ", DestinationAll},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDestination(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDestination_Unknown(t *testing.T) {
	_, err := ParseDestination("desktop")
	assert.ErrorIs(t, err, ErrUnknownDestination)
}

func TestDestination_Expand(t *testing.T) {
	assert.Equal(t, []Destination{DestinationHome, DestinationLock}, DestinationAll.Expand())
	assert.Equal(t, []Destination{DestinationLock}, DestinationLock.Expand())
}

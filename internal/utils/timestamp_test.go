package utils_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/customs-console/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "with zone", in: `"2025-03-01T09:30:00+05:00"`, want: time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC)},
		{name: "naive", in: `"2025-03-01T09:30:00.250000"`, want: time.Date(2025, 3, 1, 9, 30, 0, 250000000, time.UTC)},
		{name: "null", in: `null`, want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts utils.Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			require.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}

	var ts utils.Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestTimestampRoundTrip(t *testing.T) {
	in := utils.Timestamp{Time: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out utils.Timestamp
	require.NoError(t, json.Unmarshal(b, &out))
	require.True(t, in.Equal(out.Time))
}

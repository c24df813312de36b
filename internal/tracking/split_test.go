package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posAt(flightID string, at time.Time) Position {
	return Position{FlightID: flightID, Timestamp: at, Lat: 45.0, Lon: -73.5}
}

func TestSplitTracksEmpty(t *testing.T) {
	assert.Nil(t, SplitTracks(nil))
}

func TestSplitTracksSingleTrack(t *testing.T) {
	base := time.Now()
	positions := []Position{
		posAt("f1", base),
		posAt("f1", base.Add(5*time.Minute)),
		posAt("f1", base.Add(10*time.Minute)),
	}

	tracks := SplitTracks(positions)
	require.Len(t, tracks, 1)
	assert.Len(t, tracks[0], 3)
}

func TestSplitTracksOnGap(t *testing.T) {
	base := time.Now()
	positions := []Position{
		posAt("f1", base),
		posAt("f1", base.Add(10*time.Minute)),
		// 20 minute gap: new track
		posAt("f1", base.Add(30*time.Minute)),
		posAt("f1", base.Add(35*time.Minute)),
	}

	tracks := SplitTracks(positions)
	require.Len(t, tracks, 2)
	assert.Len(t, tracks[0], 2)
	assert.Len(t, tracks[1], 2)
}

func TestSplitTracksGapAtThresholdDoesNotSplit(t *testing.T) {
	base := time.Now()
	positions := []Position{
		posAt("f1", base),
		posAt("f1", base.Add(FlightGap)),
	}

	tracks := SplitTracks(positions)
	require.Len(t, tracks, 1, "a gap of exactly the threshold continues the track")
}

func TestSplitTracksOnFlightChange(t *testing.T) {
	base := time.Now()
	positions := []Position{
		posAt("f1", base),
		posAt("f1", base.Add(time.Minute)),
		posAt("f2", base.Add(2*time.Minute)),
	}

	tracks := SplitTracks(positions)
	require.Len(t, tracks, 2)
	assert.Equal(t, "f1", tracks[0][0].FlightID)
	assert.Equal(t, "f2", tracks[1][0].FlightID)
}

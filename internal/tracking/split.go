package tracking

import "time"

// FlightGap is the inactivity threshold that separates two flights of the
// same airframe. A landed-then-departed aircraft becomes two flights.
const FlightGap = 15 * time.Minute

// SplitTracks groups time-ordered positions into tracks, starting a new
// track whenever the flight id changes or the gap between consecutive
// points exceeds FlightGap.
func SplitTracks(positions []Position) [][]Position {
	if len(positions) == 0 {
		return nil
	}

	var tracks [][]Position
	start := 0
	currentFlightID := positions[0].FlightID

	for i := 1; i < len(positions); i++ {
		gap := positions[i].Timestamp.Sub(positions[i-1].Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap > FlightGap || positions[i].FlightID != currentFlightID {
			tracks = append(tracks, positions[start:i])
			start = i
			currentFlightID = positions[i].FlightID
		}
	}

	return append(tracks, positions[start:])
}

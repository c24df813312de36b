package radar

// Aircraft category names as emitted by ADS-B decoders
const (
	CategoryUnknown          = "AIRCRAFT_CATEGORY_UNKNOWN"
	CategoryNoInfo           = "AIRCRAFT_CATEGORY_NO_INFO"
	CategoryLight            = "AIRCRAFT_CATEGORY_LIGHT"
	CategoryMedium1          = "AIRCRAFT_CATEGORY_MEDIUM_1"
	CategoryMedium2          = "AIRCRAFT_CATEGORY_MEDIUM_2"
	CategoryHighVortexLarge  = "AIRCRAFT_CATEGORY_HIGH_VORTEX_LARGE"
	CategoryHeavy            = "AIRCRAFT_CATEGORY_HEAVY"
	CategoryHighPerformance  = "AIRCRAFT_CATEGORY_HIGH_PERFORMANCE"
	CategoryRotorcraft       = "AIRCRAFT_CATEGORY_ROTORCRAFT"
	CategoryGlider           = "AIRCRAFT_CATEGORY_GLIDER"
	CategoryLighterThanAir   = "AIRCRAFT_CATEGORY_LIGHTER_THAN_AIR"
	CategoryParachutist      = "AIRCRAFT_CATEGORY_PARACHUTIST"
	CategoryUltralight       = "AIRCRAFT_CATEGORY_ULTRALIGHT"
	CategoryUAV              = "AIRCRAFT_CATEGORY_UAV"
	CategorySpace            = "AIRCRAFT_CATEGORY_SPACE"
	CategorySurfaceEmergency = "AIRCRAFT_CATEGORY_SURFACE_EMERGENCY"
	CategorySurfaceService   = "AIRCRAFT_CATEGORY_SURFACE_SERVICE"
	CategoryPointObstacle    = "AIRCRAFT_CATEGORY_POINT_OBSTACLE"
	CategoryClusterObstacle  = "AIRCRAFT_CATEGORY_CLUSTER_OBSTACLE"
	CategoryLineObstacle     = "AIRCRAFT_CATEGORY_LINE_OBSTACLE"
	CategoryReserved         = "AIRCRAFT_CATEGORY_RESERVED"
)

// CategoryValues maps category names to their wire enum values
var CategoryValues = map[string]int{
	CategoryUnknown:          0,
	CategoryNoInfo:           1,
	CategoryLight:            2,
	CategoryMedium1:          3,
	CategoryMedium2:          4,
	CategoryHighVortexLarge:  5,
	CategoryHeavy:            6,
	CategoryHighPerformance:  7,
	CategoryRotorcraft:       8,
	CategoryGlider:           9,
	CategoryLighterThanAir:   10,
	CategoryParachutist:      11,
	CategoryUltralight:       12,
	CategoryUAV:              13,
	CategorySpace:            14,
	CategorySurfaceEmergency: 15,
	CategorySurfaceService:   16,
	CategoryPointObstacle:    17,
	CategoryClusterObstacle:  18,
	CategoryLineObstacle:     19,
	CategoryReserved:         20,
}

// PositionReport is a single aircraft state as seen by the radar feed.
// Fields a receiver has not decoded yet are nil.
type PositionReport struct {
	Icao24   string   `json:"icao24"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Alt      *int     `json:"alt"`
	GS       *float64 `json:"gs"`
	Track    *float64 `json:"track"`
	Callsign string   `json:"callsign,omitempty"`
	Category string   `json:"category,omitempty"`
}

// HasPosition reports whether both coordinates are present
func (p *PositionReport) HasPosition() bool {
	return p.Lat != nil && p.Lon != nil
}

// Equal compares every field, treating nil and set values as distinct
func (p *PositionReport) Equal(other *PositionReport) bool {
	if other == nil {
		return false
	}
	return p.Icao24 == other.Icao24 &&
		eqFloat(p.Lat, other.Lat) &&
		eqFloat(p.Lon, other.Lon) &&
		eqInt(p.Alt, other.Alt) &&
		eqFloat(p.GS, other.GS) &&
		eqFloat(p.Track, other.Track) &&
		p.Callsign == other.Callsign &&
		p.Category == other.Category
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// emitterCategory converts a dump1090 emitter category code ("A3", "B1", ...)
// to a category name. Unrecognized codes map to the unknown category.
func emitterCategory(code string) string {
	switch code {
	case "A0", "B0", "C0":
		return CategoryNoInfo
	case "A1":
		return CategoryLight
	case "A2":
		return CategoryMedium1
	case "A3":
		return CategoryMedium2
	case "A4":
		return CategoryHighVortexLarge
	case "A5":
		return CategoryHeavy
	case "A6":
		return CategoryHighPerformance
	case "A7":
		return CategoryRotorcraft
	case "B1":
		return CategoryGlider
	case "B2":
		return CategoryLighterThanAir
	case "B3":
		return CategoryParachutist
	case "B4":
		return CategoryUltralight
	case "B6":
		return CategoryUAV
	case "B7":
		return CategorySpace
	case "C1":
		return CategorySurfaceEmergency
	case "C2":
		return CategorySurfaceService
	case "C3":
		return CategoryPointObstacle
	case "C4":
		return CategoryClusterObstacle
	case "C5":
		return CategoryLineObstacle
	case "":
		return ""
	default:
		return CategoryUnknown
	}
}

// wtcCategory converts a VRS wake turbulence code to a category name.
// VRS species 4 is a helicopter regardless of WTC.
func wtcCategory(wtc, species int) string {
	if species == 4 {
		return CategoryRotorcraft
	}
	switch wtc {
	case 1:
		return CategoryLight
	case 2:
		return CategoryMedium2
	case 3:
		return CategoryHeavy
	case 0:
		return ""
	default:
		return CategoryUnknown
	}
}

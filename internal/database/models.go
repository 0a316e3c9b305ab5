package database

import "time"

// User is an AERIS account.
type User struct {
	ID                       string
	Email                    string
	PasswordHash             string
	ExposureSensitivityLevel int
	NotificationPreferences  map[string]bool
	PreferredActivity        string
	CreatedAt                time.Time
}

// SavedRoute is a user-owned origin/destination pair tracked for alerting.
type SavedRoute struct {
	ID                string
	UserID            string
	OriginLat         float64
	OriginLon         float64
	DestinationLat    float64
	DestinationLon    float64
	ActivityType      string
	LastUPESScore     *float64
	LastUPESUpdatedAt *time.Time
	CreatedAt         time.Time
}

// PollutionGridCell is one row of the raw, append-only satellite grid.
type PollutionGridCell struct {
	ID             string
	Timestamp      time.Time
	GasType        string
	GeomWKT        string
	PollutionValue float64
	SeverityLevel  int
	CreatedAt      time.Time
}

// NetcdfFile is a metadata-only index row pointing at an object-store blob.
type NetcdfFile struct {
	ID         string
	FileName   string
	BucketPath string
	Timestamp  time.Time
	GasType    string
}

// RouteExposureHistory is one immutable score sample for a saved route.
type RouteExposureHistory struct {
	ID                string
	RouteID           string
	Timestamp         time.Time
	UPESScore         float64
	MaxUPESAlongRoute float64
	ScoreSource       string
}

// AlertLog is an immutable record of one triggered alert.
type AlertLog struct {
	ID               string
	UserID           string
	RouteID          string
	AlertType        string
	ScoreBefore      float64
	ScoreAfter       float64
	Threshold        float64
	AlertMetadata    map[string]any
	NotifiedChannels []string
	CreatedAt        time.Time
}

const (
	AlertTypeRouteDeterioration = "route_deterioration"
	AlertTypeHazard             = "hazard"
	AlertTypeWindShift          = "wind_shift"
	AlertTypeTimeBased          = "time_based"
)

const (
	ActivityCommute = "commute"
	ActivityJogger  = "jogger"
	ActivityCyclist = "cyclist"
)

package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is the list of tables created by AutoMigrate.
var DatabaseModels = []any{
	&Flight{},
	&CommandLog{},
	&StateSample{},
}

// Flight is one recording session.
type Flight struct {
	gorm.Model
	Name           string          `json:"name" gorm:"size:127"`
	StartTime      time.Time       `json:"startTime" gorm:"index:idx_flight_start"`
	EndTime        *time.Time      `json:"endTime"`
	HomeLatitude   float64         `json:"homeLatitude"`
	HomeLongitude  float64         `json:"homeLongitude"`
	Version        string          `json:"version" gorm:"size:32"`
	Commands       int             `json:"commands"`
	Samples        int             `json:"samples"`
	FlightSeconds  float64         `json:"flightSeconds"`
	DistanceMetres float64         `json:"distanceMetres"`
	Track          geom.LineString `json:"-"` // ground track in EPSG:3857
}

func (*Flight) TableName() string {
	return "flights"
}

// CommandLog is a command received by the simulator and the reply it produced.
type CommandLog struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_commandlog_time"`
	FlightID  uint      `json:"flightId" gorm:"index:idx_commandlog_flight_id"`
	Flight    Flight    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	Verb      string    `json:"verb" gorm:"size:32"`
	Command   string    `json:"command" gorm:"size:255"`
	Result    string    `json:"result" gorm:"size:64"`
	LatencyMs float64   `json:"latencyMs"`
}

func (*CommandLog) TableName() string {
	return "command_logs"
}

// StateSample is a throttled aircraft state.
type StateSample struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time      `json:"time" gorm:"index:idx_statesample_time"`
	FlightID   uint           `json:"flightId" gorm:"index:idx_statesample_flight_id"`
	Flight     Flight         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	Position   geom.Point     `json:"position"` // EPSG:3857, Z in metres
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Elevation  float64        `json:"elevation"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Heading    float64        `json:"heading"`
	Speed      int            `json:"speed"`
	Phase      string         `json:"phase" gorm:"size:16"`
	InFlight   bool           `json:"inFlight"`
	FlightTime float64        `json:"flightTime"`
	Telemetry  datatypes.JSON `json:"telemetry"`
}

func (*StateSample) TableName() string {
	return "state_samples"
}

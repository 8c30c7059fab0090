// Package telemetry synthesises the drone's state report from a snapshot.
package telemetry

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/dronelab/tellosim/internal/drone"
)

// secondsPerBatteryPercent approximates a 10 minute flight on a full pack.
const secondsPerBatteryPercent = 6.0

// Stats is one state report. Field names follow the SDK state string.
type Stats struct {
	Pitch int     `json:"pitch"`
	Roll  int     `json:"roll"`
	Yaw   int     `json:"yaw"`
	VGX   int     `json:"vgx"`
	VGY   int     `json:"vgy"`
	VGZ   int     `json:"vgz"`
	TempL int     `json:"templ"`
	TempH int     `json:"temph"`
	TOF   int     `json:"tof"`
	H     int     `json:"h"`
	Bat   int     `json:"bat"`
	Baro  float64 `json:"baro"`
	Time  int     `json:"time"`
	AGX   float64 `json:"agx"`
	AGY   float64 `json:"agy"`
	AGZ   float64 `json:"agz"`
}

// String renders the report in the SDK state format.
func (s Stats) String() string {
	return fmt.Sprintf(
		"pitch:%d;roll:%d;yaw:%d;vgx:%d;vgy:%d;vgz:%d;templ:%d;temph:%d;tof:%d;h:%d;bat:%d;baro:%.2f;time:%d;agx:%.2f;agy:%.2f;agz:%.2f;\r\n",
		s.Pitch, s.Roll, s.Yaw, s.VGX, s.VGY, s.VGZ, s.TempL, s.TempH, s.TOF, s.H,
		s.Bat, s.Baro, s.Time, s.AGX, s.AGY, s.AGZ,
	)
}

// Map returns every field as a string, the shape HTTP clients expect.
func (s Stats) Map() map[string]string {
	return map[string]string{
		"pitch": strconv.Itoa(s.Pitch),
		"roll":  strconv.Itoa(s.Roll),
		"yaw":   strconv.Itoa(s.Yaw),
		"vgx":   strconv.Itoa(s.VGX),
		"vgy":   strconv.Itoa(s.VGY),
		"vgz":   strconv.Itoa(s.VGZ),
		"templ": strconv.Itoa(s.TempL),
		"temph": strconv.Itoa(s.TempH),
		"tof":   strconv.Itoa(s.TOF),
		"h":     strconv.Itoa(s.H),
		"bat":   strconv.Itoa(s.Bat),
		"baro":  strconv.FormatFloat(s.Baro, 'f', 2, 64),
		"time":  strconv.Itoa(s.Time),
		"agx":   strconv.FormatFloat(s.AGX, 'f', 2, 64),
		"agy":   strconv.FormatFloat(s.AGY, 'f', 2, 64),
		"agz":   strconv.FormatFloat(s.AGZ, 'f', 2, 64),
	}
}

// Generator produces Stats. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. A nil rng seeds from the clock.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x7374617473))
	}
	return &Generator{rng: rng}
}

// Generate derives height, yaw, flight time and battery from snap and fills
// the sensors the model does not simulate with plausible noise.
func (g *Generator) Generate(snap drone.Snapshot) Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{
		Yaw:   int(math.Round(snap.Yaw())),
		TempL: g.intn(74, 86),
		TempH: g.intn(77, 90),
		TOF:   max(10, int(snap.Elevation)),
		H:     int(math.Round(snap.Elevation/10) * 10),
		Bat:   battery(snap.FlightTime),
		Baro:  g.float(90, 150) + snap.Elevation/100,
		Time:  int(snap.FlightTime),
		AGX:   g.float(-1000, 1000),
		AGY:   g.float(-1000, 1000),
		AGZ:   g.float(-1000, 1000),
	}

	if snap.InFlight {
		s.Pitch = g.intn(-10, 10)
		s.Roll = g.intn(-10, 10)
	}
	if snap.Position != snap.TargetPosition {
		s.VGX = g.intn(-40, 40)
	}

	return s
}

func battery(flightTime float64) int {
	return min(max(100-int(flightTime/secondsPerBatteryPercent), 0), 100)
}

// intn returns an integer in [lo, hi).
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo)
}

// float returns a value in [lo, hi) with two decimals.
func (g *Generator) float(lo, hi float64) float64 {
	cents := g.intn(int(lo*100), int(hi*100))
	return float64(cents) / 100
}

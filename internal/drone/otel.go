package drone

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dronelab/tellosim/internal/drone"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

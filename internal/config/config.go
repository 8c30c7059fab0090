package config

import (
	"fmt"
	"time"

	"github.com/dronelab/tellosim/internal/drone"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "tellosim.cfg.json"

// SimConfig holds the flight model settings
type SimConfig struct {
	FrameRate int
	Drone     drone.Settings
}

// ServerConfig holds the network front ends
type ServerConfig struct {
	UDPEnabled     bool
	UDPAddress     string
	StatePort      int
	StateInterval  time.Duration
	HTTPEnabled    bool
	HTTPAddress    string
	CommandTimeout time.Duration
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string
}

// WebSocketConfig points the flight log at a remote collector
type WebSocketConfig struct {
	URL    string
	Secret string
}

// StorageConfig selects and configures the flight log backend
type StorageConfig struct {
	Type           string
	FlushInterval  time.Duration
	SampleInterval time.Duration
	Memory         MemoryConfig
	SQLite         SQLiteConfig
	WebSocket      WebSocketConfig
}

// InfluxConfig holds the telemetry time series settings
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// LoggingConfig holds log sinks
type LoggingConfig struct {
	Level          string
	LogsDir        string
	MaxSizeMB      int
	MaxBackups     int
	GraylogEnabled bool
	GraylogAddress string
}

// MonitorConfig holds the status file writer settings
type MonitorConfig struct {
	Enabled    bool
	Interval   time.Duration
	StatusFile string
}

// UploadConfig sends exported flights to an archive server
type UploadConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	Tag     string
}

// HomeConfig anchors the simulation plane on the globe
type HomeConfig struct {
	Latitude  float64
	Longitude float64
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("logMaxSizeMB", 20)
	viper.SetDefault("logMaxBackups", 5)

	d := drone.DefaultSettings()
	viper.SetDefault("sim.frameRate", 60)
	viper.SetDefault("sim.maxElevation", d.MaxElevation)
	viper.SetDefault("sim.minSpeed", d.MinSpeed)
	viper.SetDefault("sim.maxSpeed", d.MaxSpeed)
	viper.SetDefault("sim.defaultSpeed", d.DefaultSpeed)
	viper.SetDefault("sim.rotationRate", d.RotationRate)
	viper.SetDefault("sim.elevationRate", d.ElevationRate)
	viper.SetDefault("sim.takeoffHeight", d.TakeoffHeight)
	viper.SetDefault("sim.flipDistance", d.FlipDistance)
	viper.SetDefault("sim.flipLift", d.FlipLift)
	viper.SetDefault("sim.flipDuration", "175ms")
	viper.SetDefault("sim.replyDelayMin", "600ms")
	viper.SetDefault("sim.replyDelayMax", "1200ms")
	viper.SetDefault("sim.startX", 0)
	viper.SetDefault("sim.startY", 0)
	viper.SetDefault("sim.startHeading", 0)

	viper.SetDefault("home.latitude", 47.3977)
	viper.SetDefault("home.longitude", 8.5456)

	viper.SetDefault("udp.enabled", true)
	viper.SetDefault("udp.address", ":8889")
	viper.SetDefault("udp.statePort", 8890)
	viper.SetDefault("udp.stateInterval", "100ms")

	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.address", ":8080")
	viper.SetDefault("http.commandTimeout", "10s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.sampleInterval", "200ms")
	viper.SetDefault("storage.memory.outputDir", "./flights")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./flights/tellosim.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "tellosim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "tellosim")
	viper.SetDefault("influx.bucket", "flight_telemetry")
	viper.SetDefault("influx.backupPath", "./flights/telemetry_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tellosim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./logs/status.json")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.url", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")
	viper.SetDefault("upload.tag", "sim")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the flight model settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		FrameRate: viper.GetInt("sim.frameRate"),
		Drone: drone.Settings{
			MaxElevation:  viper.GetFloat64("sim.maxElevation"),
			MinSpeed:      viper.GetInt("sim.minSpeed"),
			MaxSpeed:      viper.GetInt("sim.maxSpeed"),
			DefaultSpeed:  viper.GetInt("sim.defaultSpeed"),
			RotationRate:  viper.GetFloat64("sim.rotationRate"),
			ElevationRate: viper.GetFloat64("sim.elevationRate"),
			TakeoffHeight: viper.GetFloat64("sim.takeoffHeight"),
			FlipDistance:  viper.GetFloat64("sim.flipDistance"),
			FlipLift:      viper.GetFloat64("sim.flipLift"),
			FlipDuration:  viper.GetDuration("sim.flipDuration"),
			ReplyDelayMin: viper.GetDuration("sim.replyDelayMin"),
			ReplyDelayMax: viper.GetDuration("sim.replyDelayMax"),
			StartPosition: drone.Vec2{
				X: viper.GetFloat64("sim.startX"),
				Y: viper.GetFloat64("sim.startY"),
			},
			StartHeading: viper.GetFloat64("sim.startHeading"),
		},
	}
}

// Validate reports settings the flight model cannot run with.
func (c SimConfig) Validate() error {
	d := c.Drone
	switch {
	case c.FrameRate <= 0:
		return fmt.Errorf("sim.frameRate must be positive, got %d", c.FrameRate)
	case d.MinSpeed <= 0 || d.MaxSpeed < d.MinSpeed:
		return fmt.Errorf("invalid speed range [%d, %d]", d.MinSpeed, d.MaxSpeed)
	case d.RotationRate <= 0 || d.ElevationRate <= 0:
		return fmt.Errorf("rotation and elevation rates must be positive")
	case d.MaxElevation <= 0:
		return fmt.Errorf("sim.maxElevation must be positive")
	case d.ReplyDelayMax < d.ReplyDelayMin:
		return fmt.Errorf("sim.replyDelayMax %s is below sim.replyDelayMin %s", d.ReplyDelayMax, d.ReplyDelayMin)
	}
	return nil
}

// GetServerConfig returns the network front end settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		UDPEnabled:     viper.GetBool("udp.enabled"),
		UDPAddress:     viper.GetString("udp.address"),
		StatePort:      viper.GetInt("udp.statePort"),
		StateInterval:  viper.GetDuration("udp.stateInterval"),
		HTTPEnabled:    viper.GetBool("http.enabled"),
		HTTPAddress:    viper.GetString("http.address"),
		CommandTimeout: viper.GetDuration("http.commandTimeout"),
	}
}

// GetStorageConfig returns the flight log backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:           viper.GetString("storage.type"),
		FlushInterval:  viper.GetDuration("storage.flushInterval"),
		SampleInterval: viper.GetDuration("storage.sampleInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetPostgresDSN returns the connection string for the postgres backend.
func GetPostgresDSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
}

// GetInfluxConfig returns the telemetry time series settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetLoggingConfig returns log sink settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		LogsDir:        viper.GetString("logsDir"),
		MaxSizeMB:      viper.GetInt("logMaxSizeMB"),
		MaxBackups:     viper.GetInt("logMaxBackups"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetMonitorConfig returns status file settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetUploadConfig returns flight archive settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled: viper.GetBool("upload.enabled"),
		URL:     viper.GetString("upload.url"),
		APIKey:  viper.GetString("upload.apiKey"),
		Tag:     viper.GetString("upload.tag"),
	}
}

// GetHomeConfig returns the geographic anchor.
func GetHomeConfig() HomeConfig {
	return HomeConfig{
		Latitude:  viper.GetFloat64("home.latitude"),
		Longitude: viper.GetFloat64("home.longitude"),
	}
}

package vtsmotion

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the engine needs to talk to the avatar host
// and to pace its control loops.
type Config struct {
	WsEndpoint      string `json:"ws_endpoint"`
	PluginName      string `json:"plugin_name"`
	PluginDeveloper string `json:"plugin_developer"`
	AuthToken       string `json:"-"`
	TokenFile       string `json:"token_file"`
	ModelName       string `json:"model_name,omitempty"`

	ConnectTimeout       time.Duration `json:"connect_timeout"`
	ResponseTimeout      time.Duration `json:"response_timeout"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `json:"reconnect_delay"`
	MinReconnectInterval time.Duration `json:"min_reconnect_interval"`

	TickRate        int           `json:"tick_rate"`
	MinSendInterval time.Duration `json:"min_send_interval"`
	MinSendDelta    float64       `json:"min_send_delta"`

	WatchdogInterval time.Duration `json:"watchdog_interval"`
	FreezeTimeout    time.Duration `json:"freeze_timeout"`

	DebugLevel     string `json:"debug_level"`
	DebugWebsocket bool   `json:"debug_websocket"`
	DebugAudio     bool   `json:"debug_audio"`
	MicDeviceID    *int   `json:"mic_device_id,omitempty"`
}

func NewConfig() *Config {
	c := &Config{
		WsEndpoint:           "ws://127.0.0.1:8001",
		PluginName:           "VTSMotion",
		PluginDeveloper:      "vtubelink",
		TokenFile:            ".vts_token",
		ConnectTimeout:       6 * time.Second,
		ResponseTimeout:      4 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Second,
		MinReconnectInterval: 5 * time.Second,
		TickRate:             25,
		MinSendInterval:      40 * time.Millisecond,
		MinSendDelta:         0.005,
		WatchdogInterval:     time.Second,
		FreezeTimeout:        5 * time.Second,
		DebugLevel:           "INFO",
	}

	c.loadFromEnv()

	return c
}

func (c *Config) loadFromEnv() {
	// Load .env if exists
	_ = godotenv.Load()

	if endpoint := os.Getenv("VTS_WS_ENDPOINT"); endpoint != "" {
		c.WsEndpoint = endpoint
	}
	if name := os.Getenv("VTS_PLUGIN_NAME"); name != "" {
		c.PluginName = name
	}
	if dev := os.Getenv("VTS_PLUGIN_DEVELOPER"); dev != "" {
		c.PluginDeveloper = dev
	}
	if token := os.Getenv("VTS_AUTH_TOKEN"); token != "" {
		c.AuthToken = token
	}
	if file := os.Getenv("VTS_TOKEN_FILE"); file != "" {
		c.TokenFile = file
	}
	if model := os.Getenv("VTS_MODEL_NAME"); model != "" {
		c.ModelName = model
	}

	if v := os.Getenv("VTS_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ConnectTimeout = d
		}
	}
	if v := os.Getenv("VTS_RESPONSE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ResponseTimeout = d
		}
	}
	if v := os.Getenv("VTS_MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("VTS_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReconnectDelay = d
		}
	}
	if v := os.Getenv("VTS_TICK_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TickRate = n
		}
	}
	if v := os.Getenv("VTS_DEBUG_LEVEL"); v != "" {
		c.DebugLevel = v
	}
	c.DebugWebsocket = os.Getenv("VTS_DEBUG_WEBSOCKET") == "true"
	c.DebugAudio = os.Getenv("VTS_DEBUG_AUDIO") == "true"

	if v := os.Getenv("VTS_MIC_DEVICE_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.MicDeviceID = &id
		}
	}
}

// Validate returns list of issues
func (c *Config) Validate() []string {
	issues := []string{}

	if c.WsEndpoint == "" {
		issues = append(issues, "WebSocket endpoint not set")
	} else if !strings.HasPrefix(c.WsEndpoint, "ws") {
		issues = append(issues, "Invalid WebSocket endpoint format (should start with ws:// or wss://)")
	}

	if c.PluginName == "" {
		issues = append(issues, "Plugin name not set")
	}
	if c.PluginDeveloper == "" {
		issues = append(issues, "Plugin developer not set")
	}

	if c.TickRate < 10 || c.TickRate > 60 {
		issues = append(issues, fmt.Sprintf("Tick rate out of range: %d (expected 10-60)", c.TickRate))
	}
	if c.MinSendInterval <= 0 {
		issues = append(issues, "Minimum send interval must be positive")
	}
	if c.FreezeTimeout <= c.WatchdogInterval {
		issues = append(issues, "Freeze timeout must exceed watchdog interval")
	}

	validLevels := []string{"TRACE", "DEBUG", "INFO", "WARNING", "ERROR"}
	found := false
	for _, level := range validLevels {
		if level == c.DebugLevel {
			found = true
			break
		}
	}
	if !found {
		issues = append(issues, fmt.Sprintf("Invalid debug level: %s", c.DebugLevel))
	}

	return issues
}

// LoadToken reads a previously persisted auth token, preferring the
// value set in the environment.
func (c *Config) LoadToken() string {
	if c.AuthToken != "" {
		return c.AuthToken
	}
	if c.TokenFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveToken persists the token for reuse across sessions.
func (c *Config) SaveToken(token string) error {
	c.AuthToken = token
	if c.TokenFile == "" {
		return nil
	}
	return os.WriteFile(c.TokenFile, []byte(token+"\n"), 0600)
}

func (c *Config) PrintConfig() {
	fmt.Println("🎭 VTS Motion Engine Configuration")
	fmt.Println("==================================================")

	fmt.Printf("WebSocket Endpoint: %s\n", c.WsEndpoint)
	fmt.Printf("Plugin Name: %s\n", c.PluginName)
	fmt.Printf("Plugin Developer: %s\n", c.PluginDeveloper)
	if c.ModelName != "" {
		fmt.Printf("Preferred Model: %s\n", c.ModelName)
	}

	if token := c.LoadToken(); token != "" {
		fmt.Printf("Auth Token: %s\n", maskString(token))
	} else {
		fmt.Println("Auth Token: NOT SET (will request from host)")
	}

	fmt.Printf("Connect Timeout: %s\n", c.ConnectTimeout)
	fmt.Printf("Response Timeout: %s\n", c.ResponseTimeout)
	fmt.Printf("Max Reconnect Attempts: %d\n", c.MaxReconnectAttempts)
	fmt.Printf("Reconnect Delay: %s\n", c.ReconnectDelay)
	fmt.Printf("Tick Rate: %d Hz\n", c.TickRate)
	fmt.Printf("Min Send Interval: %s\n", c.MinSendInterval)
	fmt.Printf("Min Send Delta: %.3f\n", c.MinSendDelta)
	fmt.Printf("Watchdog Interval: %s\n", c.WatchdogInterval)
	fmt.Printf("Freeze Timeout: %s\n", c.FreezeTimeout)
	fmt.Printf("Debug Level: %s\n", c.DebugLevel)
	fmt.Printf("Debug WebSocket: %t\n", c.DebugWebsocket)
	fmt.Printf("Debug Audio: %t\n", c.DebugAudio)

	if c.MicDeviceID != nil {
		fmt.Printf("Mic Device ID: %d\n", *c.MicDeviceID)
	} else {
		fmt.Println("Mic Device: Default")
	}
}

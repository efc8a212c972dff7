// Package client provides a database/sql driver implementation that
// speaks the gateway's AMQP wire protocol. It registers as "dbgateway",
// letting callers use sql.Open("dbgateway", dsn) the same way burrowctl's
// original client registered "rabbitsql" — the transport (AMQP
// request/reply) and the reconnect/heartbeat machinery are carried over
// nearly verbatim; only the request/response payload changes, from the
// teacher's map[string]interface{} RPC envelope to internal/wire's typed
// QueryRequest/QueryResponse carried by wire.JSONCodec.
package client

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func init() {
	sql.Register("dbgateway", &Driver{})
}

// Driver implements database/sql/driver.Driver, the entry point for
// opening connections to a dbgateway instance over AMQP.
type Driver struct{}

// Open creates a new connection using the provided Data Source Name.
//
// DSN format (URL query parameters):
//
//	amqp_uri=<rabbitmq-url>&token=<auth-token>&client_id=<id>&timeout=<duration>&debug=<bool>
//	&reconnect_enabled=<bool>&reconnect_max_attempts=<int>&reconnect_initial_interval=<duration>
//	&reconnect_max_interval=<duration>&reconnect_backoff_multiplier=<float>&reconnect_reset_interval=<duration>
//	&heartbeat_enabled=<bool>&heartbeat_interval=<duration>
//
// Required: amqp_uri, token. Everything else has a default.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	conf, err := parseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("DSN parsing failed: %v", err)
	}

	reconnectConfig := &ReconnectConfig{
		Enabled:           conf.ReconnectEnabled,
		MaxAttempts:       conf.ReconnectMaxAttempts,
		InitialInterval:   conf.ReconnectInitialInterval,
		MaxInterval:       conf.ReconnectMaxInterval,
		BackoffMultiplier: conf.ReconnectBackoffMultiplier,
		ResetInterval:     conf.ReconnectResetInterval,
	}

	connMgr, err := NewConnectionManager(dsn, reconnectConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	if err := connMgr.Connect(); err != nil {
		return nil, fmt.Errorf("AMQP connection failed to '%s': %v\nPlease check:\n- the broker is running\n- credentials are correct\n- network connectivity", conf.AMQPURL, err)
	}

	if conf.Debug {
		log.Printf("[client debug] connected to %s (client_id=%s, timeout=%v)", conf.AMQPURL, conf.ClientID, conf.Timeout)
	}

	conn := &Conn{
		clientID: conf.ClientID,
		token:    conf.Token,
		connMgr:  connMgr,
		config:   conf,
	}
	conn.setupHeartbeat()
	return conn, nil
}

// DSNConfig holds the parsed configuration from a Data Source Name.
type DSNConfig struct {
	AMQPURL  string
	Token    string
	ClientID string
	Timeout  time.Duration
	Debug    bool

	HeartbeatEnabled bool
	HeartbeatConfig  *HeartbeatConfig

	ReconnectEnabled           bool
	ReconnectMaxAttempts       int
	ReconnectInitialInterval   time.Duration
	ReconnectMaxInterval       time.Duration
	ReconnectBackoffMultiplier float64
	ReconnectResetInterval     time.Duration
}

func parseDSN(dsn string) (*DSNConfig, error) {
	u, err := url.Parse("?" + dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid DSN format: %v", err)
	}
	values := u.Query()

	amqpURI := values.Get("amqp_uri")
	if amqpURI == "" {
		return nil, fmt.Errorf("missing required parameter 'amqp_uri' in DSN")
	}
	if len(amqpURI) < 7 || amqpURI[:7] != "amqp://" {
		return nil, fmt.Errorf("invalid amqp_uri format: must start with 'amqp://'")
	}

	token := values.Get("token")
	if token == "" {
		return nil, fmt.Errorf("missing required parameter 'token' in DSN")
	}

	clientID := values.Get("client_id")
	if clientID == "" {
		clientID = "default"
	}

	timeout := 5 * time.Second
	if timeoutStr := values.Get("timeout"); timeoutStr != "" {
		parsed, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format '%s': %v (example: '5s', '30s', '1m')", timeoutStr, err)
		}
		timeout = parsed
	}

	debugStr := strings.ToLower(values.Get("debug"))
	debug := debugStr == "true" || debugStr == "1"

	reconnectEnabled := true
	if reconnectStr := strings.ToLower(values.Get("reconnect_enabled")); reconnectStr != "" {
		reconnectEnabled = reconnectStr == "true" || reconnectStr == "1"
	}

	reconnectMaxAttempts := 10
	if s := values.Get("reconnect_max_attempts"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			reconnectMaxAttempts = n
		}
	}

	reconnectInitialInterval := 1 * time.Second
	if s := values.Get("reconnect_initial_interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			reconnectInitialInterval = d
		}
	}

	reconnectMaxInterval := 60 * time.Second
	if s := values.Get("reconnect_max_interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			reconnectMaxInterval = d
		}
	}

	reconnectBackoffMultiplier := 2.0
	if s := values.Get("reconnect_backoff_multiplier"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			reconnectBackoffMultiplier = f
		}
	}

	reconnectResetInterval := 5 * time.Minute
	if s := values.Get("reconnect_reset_interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			reconnectResetInterval = d
		}
	}

	heartbeatEnabled := true
	if s := strings.ToLower(values.Get("heartbeat_enabled")); s != "" {
		heartbeatEnabled = s == "true" || s == "1"
	}
	heartbeatCfg := DefaultHeartbeatConfig()
	if s := values.Get("heartbeat_interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			heartbeatCfg.Interval = d
		}
	}
	heartbeatCfg.Enabled = heartbeatEnabled

	return &DSNConfig{
		AMQPURL:                    amqpURI,
		Token:                      token,
		ClientID:                   clientID,
		Timeout:                    timeout,
		Debug:                      debug,
		HeartbeatEnabled:           heartbeatEnabled,
		HeartbeatConfig:            heartbeatCfg,
		ReconnectEnabled:           reconnectEnabled,
		ReconnectMaxAttempts:       reconnectMaxAttempts,
		ReconnectInitialInterval:   reconnectInitialInterval,
		ReconnectMaxInterval:       reconnectMaxInterval,
		ReconnectBackoffMultiplier: reconnectBackoffMultiplier,
		ReconnectResetInterval:     reconnectResetInterval,
	}, nil
}

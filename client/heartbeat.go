package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// HeartbeatConfig holds configuration for heartbeat monitoring.
type HeartbeatConfig struct {
	Enabled        bool
	Interval       time.Duration
	Timeout        time.Duration
	MaxMissedBeats int
}

// DefaultHeartbeatConfig returns sensible default heartbeat configuration.
func DefaultHeartbeatConfig() *HeartbeatConfig {
	return &HeartbeatConfig{
		Enabled:        true,
		Interval:       30 * time.Second,
		Timeout:        10 * time.Second,
		MaxMissedBeats: 3,
	}
}

// HeartbeatManager sends periodic wire.KindPing requests through the
// gateway's real request queue, exercising the same Dispatch path
// handlers.go short-circuits for PING (no backend I/O), rather than the
// teacher's separate per-device heartbeat queue — this gateway has no
// per-device routing concept, only the shared "dbgateway" queue.
type HeartbeatManager struct {
	config   *HeartbeatConfig
	connMgr  *ConnectionManager
	clientID string
	token    string

	mutex         sync.RWMutex
	isActive      bool
	isRunning     bool
	missedBeats   int
	lastHeartbeat time.Time
	lastResponse  time.Time

	stopChan     chan struct{}
	activateChan chan bool

	onDisconnect func(error)
	onReconnect  func()
}

// NewHeartbeatManager creates a new heartbeat manager.
func NewHeartbeatManager(connMgr *ConnectionManager, clientID, token string, config *HeartbeatConfig) *HeartbeatManager {
	if config == nil {
		config = DefaultHeartbeatConfig()
	}
	return &HeartbeatManager{
		config:       config,
		connMgr:      connMgr,
		clientID:     clientID,
		token:        token,
		stopChan:     make(chan struct{}),
		activateChan: make(chan bool, 10),
	}
}

// ActivateHeartbeat activates the heartbeat loop (called on the first
// RPC issued over a connection).
func (hm *HeartbeatManager) ActivateHeartbeat() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	if !hm.isActive {
		hm.isActive = true
		hm.missedBeats = 0
		hm.lastHeartbeat = time.Now()
		if !hm.isRunning {
			hm.isRunning = true
			go hm.heartbeatLoop()
		}
	}
	select {
	case hm.activateChan <- true:
	default:
	}
}

func (hm *HeartbeatManager) heartbeatLoop() {
	ticker := time.NewTicker(hm.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-hm.stopChan:
			return
		case active := <-hm.activateChan:
			hm.mutex.Lock()
			hm.isActive = active
			hm.mutex.Unlock()
		case <-ticker.C:
			hm.mutex.RLock()
			shouldSend := hm.isActive
			hm.mutex.RUnlock()
			if shouldSend {
				hm.sendHeartbeat()
			}
		}
	}
}

func (hm *HeartbeatManager) sendHeartbeat() {
	conn, err := hm.connMgr.GetConnection()
	if err != nil {
		hm.handleMissedHeartbeat("no connection")
		return
	}

	ch, err := conn.Channel()
	if err != nil {
		hm.handleMissedHeartbeat("failed to create channel")
		return
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		hm.handleMissedHeartbeat("failed to declare reply queue")
		return
	}

	corrID := wire.NewCorrelationID()
	env := wire.Envelope{
		Header:  wire.NowHeader(0, corrID),
		Auth:    wire.AuthToken{Token: hm.token, ClientID: hm.clientID},
		Request: wire.QueryRequest{ID: corrID, Kind: wire.KindPing},
	}
	body, err := encodeEnvelope(env)
	if err != nil {
		hm.handleMissedHeartbeat("failed to encode ping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hm.config.Timeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       replyQueue.Name,
		Body:          body,
	}); err != nil {
		hm.handleMissedHeartbeat("failed to send ping")
		return
	}

	msgs, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		hm.handleMissedHeartbeat("failed to consume ping response")
		return
	}

	select {
	case msg := <-msgs:
		if msg.CorrelationId == corrID {
			hm.handleHeartbeatResponse()
		}
	case <-time.After(hm.config.Timeout):
		hm.handleMissedHeartbeat("timeout waiting for pong")
	}
}

func (hm *HeartbeatManager) handleHeartbeatResponse() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	hm.missedBeats = 0
	hm.lastResponse = time.Now()
}

func (hm *HeartbeatManager) handleMissedHeartbeat(reason string) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.missedBeats++
	log.Printf("[heartbeat] missed heartbeat #%d: %s (client: %s)", hm.missedBeats, reason, hm.clientID)

	if hm.missedBeats >= hm.config.MaxMissedBeats {
		if hm.onDisconnect != nil {
			hm.onDisconnect(fmt.Errorf("connection dead: %d missed heartbeats", hm.missedBeats))
		}
	}
}

// Stop stops the heartbeat manager.
func (hm *HeartbeatManager) Stop() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	if hm.isRunning {
		hm.isRunning = false
		hm.isActive = false
		close(hm.stopChan)
	}
}

// SetCallbacks sets event callbacks.
func (hm *HeartbeatManager) SetCallbacks(onDisconnect func(error), onReconnect func()) {
	hm.onDisconnect = onDisconnect
	hm.onReconnect = onReconnect
}

// Stats returns current heartbeat statistics.
func (hm *HeartbeatManager) Stats() HeartbeatStats {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()
	return HeartbeatStats{
		IsActive:      hm.isActive,
		IsRunning:     hm.isRunning,
		MissedBeats:   hm.missedBeats,
		LastHeartbeat: hm.lastHeartbeat,
		LastResponse:  hm.lastResponse,
	}
}

// HeartbeatStats holds heartbeat monitoring statistics.
type HeartbeatStats struct {
	IsActive      bool
	IsRunning     bool
	MissedBeats   int
	LastHeartbeat time.Time
	LastResponse  time.Time
}

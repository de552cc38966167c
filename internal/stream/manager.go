package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ovationhq/ovation-core/internal/infrastructure/config"
	"github.com/ovationhq/ovation-core/internal/state"
	"github.com/ovationhq/ovation-core/internal/trigger"
)

// Correlation id prefixes per event class, for log grepping.
const (
	prefixStateChange = "state_change"
	prefixNotifAction = "notif_action"
	prefixHubStartup  = "hub_startup"
	prefixHubShutdown = "hub_shutdown"
	prefixEventFired  = "event_fired"
)

// Cache is the state mirror surface the manager needs.
// Implemented by state.Cache.
type Cache interface {
	CacheEntity(ctx context.Context, entity state.EntityState) error
	DeleteCachedEntity(ctx context.Context, id state.ID) (int, error)
	FetchAllEntities(ctx context.Context) (int, error)
}

// Dispatcher is the trigger entry surface the manager routes events into.
// Implemented by trigger.Dispatcher.
type Dispatcher interface {
	StateChanged(ctx context.Context, ev trigger.StateChangeEvent)
	EventFired(ctx context.Context, ev trigger.FiredEvent)
	NotifAction(ctx context.Context, ev trigger.NotifActionEvent)
	Lifecycle(ctx context.Context, phase trigger.LifecyclePhase)
}

// Manager owns the hub event stream on a dedicated goroutine: connect,
// authenticate, subscribe, resynchronize the entity mirror, then route every
// inbound event. Any connection failure tears the whole connection down and
// the manager reconnects with exponential backoff, doubling from the initial
// delay up to the maximum and resetting after a successful handshake.
//
// A failure handling one event is logged and never breaks the listen loop.
type Manager struct {
	wsURL        string
	token        string
	initialDelay time.Duration
	maxDelay     time.Duration
	ignore       map[string]struct{}

	cache      Cache
	dispatcher Dispatcher
	logger     Logger

	wg sync.WaitGroup
}

// NewManager creates a stream manager from configuration.
// If logger is nil, logging is disabled.
func NewManager(cfg *config.Config, cache Cache, dispatcher Dispatcher, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	ignore := make(map[string]struct{}, len(cfg.Hub.IgnoreDomains))
	for _, domain := range cfg.Hub.IgnoreDomains {
		ignore[domain] = struct{}{}
	}
	return &Manager{
		wsURL:        WebsocketURL(cfg.Hub.URL),
		token:        cfg.Hub.Token,
		initialDelay: cfg.Hub.Reconnect.GetInitialDelay(),
		maxDelay:     cfg.Hub.Reconnect.GetMaxDelay(),
		ignore:       ignore,
		cache:        cache,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// WebsocketURL derives the streaming endpoint from the hub's base HTTP URL.
func WebsocketURL(baseURL string) string {
	wsURL := strings.Replace(baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	return strings.TrimRight(wsURL, "/") + "/api/websocket"
}

// Start launches the connection loop on its own goroutine. The loop runs
// until ctx is cancelled; use Wait to block on its exit.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
	m.logger.Info("stream manager started")
}

// Wait blocks until the connection loop has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	delay := m.initialDelay
	for {
		if err := m.connectAndListen(ctx); err != nil {
			m.logger.Error("hub stream connection failed", "error", err)
		}
		if ctx.Err() != nil {
			m.logger.Info("stream manager stopping")
			return
		}

		m.logger.Warn("reconnecting to hub stream", "delay", delay)
		select {
		case <-ctx.Done():
			m.logger.Info("stream manager stopping")
			return
		case <-time.After(delay):
		}
		delay = m.nextDelay(delay)
	}
}

// nextDelay doubles the backoff delay, capped at the configured maximum.
func (m *Manager) nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > m.maxDelay {
		next = m.maxDelay
	}
	return next
}

// connectAndListen runs one full connection lifetime: handshake, subscribe,
// resync, listen. Returns when the connection is lost or ctx is cancelled.
func (m *Manager) connectAndListen(ctx context.Context) error {
	client, err := Dial(ctx, m.wsURL, m.token, m.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		return err
	}

	// Reconcile anything missed while disconnected before processing the
	// live stream.
	if count, err := m.cache.FetchAllEntities(ctx); err != nil {
		m.logger.Error("entity resync after connect failed", "error", err)
	} else {
		m.logger.Info("entity resync completed", "entity_count", count)
	}

	// Close the connection when ctx ends so the blocking read returns.
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	for {
		raw, err := client.NextEvent()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		m.handleEvent(ctx, raw)
	}
}

// handleEvent routes one inbound event from the listen loop. Panics and
// errors are contained here so a single bad event never kills the loop.
func (m *Manager) handleEvent(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic handling stream event", "panic", r)
		}
	}()

	if err := m.Ingest(ctx, raw); err != nil {
		m.logger.Error("dropping malformed stream event", "error", err)
	}
}

// Ingest classifies and routes one raw event envelope. It is the shared entry
// point for the stream listen loop and the inbound webhook surface.
//
// Returns:
//   - error: ErrMalformedEvent-wrapped when the payload cannot be decoded or
//     a state change is structurally incomplete; cache failures otherwise
func (m *Manager) Ingest(ctx context.Context, raw []byte) error {
	ev, err := parseEvent(raw)
	if err != nil {
		return err
	}

	correlation := correlationID(ev.Type)
	m.logger.Debug("stream event received", "event_type", ev.Type, "correlation_id", correlation)

	switch ev.Type {
	case trigger.EventTypeStateChanged:
		if err := m.handleStateChanged(ctx, ev, correlation); err != nil {
			return fmt.Errorf("handling state change %s: %w", correlation, err)
		}
	case trigger.EventTypeNotifAction:
		m.handleNotifAction(ctx, ev, correlation)
	case trigger.EventTypeHubStarted:
		m.logger.Info("hub startup event", "correlation_id", correlation)
		m.dispatcher.Lifecycle(ctx, trigger.PhaseHubStartup)
	case trigger.EventTypeHubShutdown:
		m.logger.Info("hub shutdown event", "correlation_id", correlation)
		m.dispatcher.Lifecycle(ctx, trigger.PhaseHubShutdown)
	default:
		m.dispatcher.EventFired(ctx, trigger.FiredEvent{
			Timestamp: ev.TimeFired,
			TimeFired: ev.TimeFired,
			Type:      ev.Type,
			Data:      ev.Data,
			UserID:    ev.UserID,
		})
	}
	return nil
}

func correlationID(eventType string) string {
	prefix := prefixEventFired
	switch eventType {
	case trigger.EventTypeStateChanged:
		prefix = prefixStateChange
	case trigger.EventTypeNotifAction:
		prefix = prefixNotifAction
	case trigger.EventTypeHubStarted:
		prefix = prefixHubStartup
	case trigger.EventTypeHubShutdown:
		prefix = prefixHubShutdown
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

// handleStateChanged mirrors the transition into the cache and dispatches
// state-change triggers. Deletions clear the mirror; creations fill it; a
// transition with identical old/new state is cached but never dispatched.
func (m *Manager) handleStateChanged(ctx context.Context, ev hubEvent, correlation string) error {
	rawEntityID, _ := ev.Data["entity_id"].(string)
	entityID, err := state.ParseEntityID(rawEntityID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if _, ignored := m.ignore[entityID.Domain()]; ignored {
		m.logger.Debug("skipping state change for ignored domain", "entity", entityID.String())
		return nil
	}

	oldRaw, _ := ev.Data["old_state"].(map[string]any)
	newRaw, _ := ev.Data["new_state"].(map[string]any)
	if oldRaw == nil && newRaw == nil {
		return fmt.Errorf("%w: state change with null old and new state", ErrMalformedEvent)
	}

	var oldEntity, newEntity *state.EntityState
	if oldRaw != nil {
		resolved, err := resolveEventEntity(oldRaw)
		if err != nil {
			return err
		}
		oldEntity = &resolved
	}
	if newRaw != nil {
		resolved, err := resolveEventEntity(newRaw)
		if err != nil {
			return err
		}
		newEntity = &resolved
	}

	if newEntity == nil {
		if _, err := m.cache.DeleteCachedEntity(ctx, entityID); err != nil {
			return err
		}
		m.logger.Info("state deletion cached",
			"correlation_id", correlation, "entity", entityID.String(), "old_state", oldEntity.State)
		return nil
	}
	if oldEntity == nil {
		if err := m.cache.CacheEntity(ctx, *newEntity); err != nil {
			return err
		}
		m.logger.Info("state creation cached",
			"correlation_id", correlation, "entity", entityID.String(), "new_state", newEntity.State)
		return nil
	}

	newEntity.Attributes["previous_state"] = state.StringValue(oldEntity.State)

	change := trigger.StateChangeEvent{
		Timestamp: ev.TimeFired,
		TimeFired: ev.TimeFired,
		EntityID:  entityID,
		Old:       oldEntity,
		New:       newEntity,
	}
	m.logger.Debug("caching state change",
		"correlation_id", correlation, "entity", entityID.String(), "changes", change.Changes())

	if err := m.cache.CacheEntity(ctx, *newEntity); err != nil {
		return err
	}

	if oldEntity.State == newEntity.State {
		m.logger.Debug("skipping triggers for unchanged state",
			"correlation_id", correlation, "entity", entityID.String(), "state", newEntity.State)
		return nil
	}

	m.dispatcher.StateChanged(ctx, change)
	return nil
}

func (m *Manager) handleNotifAction(ctx context.Context, ev hubEvent, correlation string) {
	name, _ := ev.Data["actionName"].(string)
	deviceID, _ := ev.Data["sourceDeviceID"].(string)
	deviceName, _ := ev.Data["sourceDeviceName"].(string)
	if name == "" {
		m.logger.Error("notification action without a name", "correlation_id", correlation)
		return
	}

	m.logger.Debug("processing notification action",
		"correlation_id", correlation, "action", name, "device", deviceName)

	action := trigger.NotifActionEvent{
		Name:       name,
		ActionData: ev.Data["action_data"],
		DeviceID:   deviceID,
		DeviceName: deviceName,
	}
	action.Timestamp = ev.TimeFired
	action.TimeFired = ev.TimeFired
	action.Type = ev.Type
	action.Data = ev.Data
	action.UserID = ev.UserID
	m.dispatcher.NotifAction(ctx, action)
}

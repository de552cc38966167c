package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ovationhq/ovation-core/internal/infrastructure/config"
	"github.com/ovationhq/ovation-core/internal/state"
)

// Reserved envelope timestamps mirrored into entity attributes.
const attrLastReported = "last_reported"

// Logger defines the logging interface required by the hub client.
// This allows the package to remain decoupled from specific logging implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Client talks to the hub's REST API. All calls carry the configured bearer
// token and are bounded by the configured request timeout.
//
// Thread Safety: safe for concurrent use; the underlying http.Client is
// shared and stateless.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	ignore  map[string]struct{}
	logger  Logger
}

// NewClient creates a hub REST client from configuration.
// If logger is nil, logging is disabled.
func NewClient(cfg *config.Config, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	ignore := make(map[string]struct{}, len(cfg.Hub.IgnoreDomains))
	for _, domain := range cfg.Hub.IgnoreDomains {
		ignore[domain] = struct{}{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Hub.URL, "/"),
		token:   cfg.Hub.Token,
		http:    &http.Client{Timeout: cfg.Hub.GetRequestTimeout()},
		ignore:  ignore,
		logger:  logger,
	}
}

// HealthCheck verifies the hub API is reachable and answering.
//
// Returns:
//   - error: nil when healthy, ErrUnavailable otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	body, status, err := c.do(ctx, http.MethodGet, "/api/", nil)
	if err != nil {
		return err
	}
	var payload struct {
		Message string `json:"message"`
	}
	if status != http.StatusOK || json.Unmarshal(body, &payload) != nil || payload.Message != "API running." {
		return fmt.Errorf("%w: health check failed with status %d", ErrUnavailable, status)
	}
	return nil
}

// GetEntity fetches the current state of one entity.
//
// Returns:
//   - state.EntityState: The entity snapshot with envelope timestamps
//     injected as attributes
//   - error: ErrEntityNotFound, ErrUnavailable, or ErrMalformedResponse
func (c *Client) GetEntity(ctx context.Context, id state.ID) (state.EntityState, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/states/"+id.EntityID().String(), nil)
	if err != nil {
		return state.EntityState{}, err
	}
	if status == http.StatusNotFound {
		return state.EntityState{}, fmt.Errorf("%w: %s", ErrEntityNotFound, id.String())
	}
	if status != http.StatusOK {
		return state.EntityState{}, fmt.Errorf("%w: fetching %s returned status %d", ErrOperationFailed, id.String(), status)
	}
	return c.resolveEntity(body)
}

// GetAllEntities fetches the full entity registry, skipping entities in
// ignored domains and entities whose identifiers do not fit the grammar.
func (c *Client) GetAllEntities(ctx context.Context) ([]state.EntityState, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching entity registry returned status %d", ErrOperationFailed, status)
	}

	var rawList []json.RawMessage
	if err := json.Unmarshal(body, &rawList); err != nil {
		return nil, fmt.Errorf("%w: entity registry is not a list: %w", ErrMalformedResponse, err)
	}

	entities := make([]state.EntityState, 0, len(rawList))
	for _, raw := range rawList {
		entity, err := c.resolveEntity(raw)
		if err != nil {
			c.logger.Warn("skipping unresolvable entity in registry", "error", err)
			continue
		}
		if _, ignored := c.ignore[entity.ID.Domain()]; ignored {
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// SetEntity writes the state and attributes of an entity, creating it if it
// does not exist. Attribute values of type time.Time are serialized to
// ISO-8601 before transmission.
//
// Returns:
//   - state.EntityState: The entity snapshot the hub echoed back
//   - bool: Whether the entity was newly created
//   - error: ErrOperationFailed, ErrUnavailable, or ErrMalformedResponse
func (c *Client) SetEntity(ctx context.Context, id state.ID, stateStr string, attributes map[string]any) (state.EntityState, bool, error) {
	payload := map[string]any{
		"state":      stateStr,
		"attributes": serializeTimestamps(attributes),
	}
	body, status, err := c.do(ctx, http.MethodPost, "/api/states/"+id.EntityID().String(), payload)
	if err != nil {
		return state.EntityState{}, false, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return state.EntityState{}, false, fmt.Errorf("%w: setting %s returned status %d", ErrOperationFailed, id.String(), status)
	}
	entity, err := c.resolveEntity(body)
	if err != nil {
		return state.EntityState{}, false, err
	}
	return entity, status == http.StatusCreated, nil
}

// DeleteEntity removes an entity from the hub.
//
// Returns:
//   - error: ErrEntityNotFound if the entity does not exist,
//     ErrOperationFailed on any other rejection
func (c *Client) DeleteEntity(ctx context.Context, id state.ID) error {
	_, status, err := c.do(ctx, http.MethodDelete, "/api/states/"+id.EntityID().String(), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id.String())
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: deleting %s returned status %d", ErrOperationFailed, id.String(), status)
	}
	return nil
}

// DeleteEntityIfExists removes an entity, treating a missing entity as
// success.
func (c *Client) DeleteEntityIfExists(ctx context.Context, id state.ID) error {
	err := c.DeleteEntity(ctx, id)
	if err != nil && !errors.Is(err, ErrEntityNotFound) {
		return err
	}
	return nil
}

// InvokeAction calls a hub service action, e.g. domain "switch" action
// "turn_on". Target entity ids and action parameters go in params.
//
// Returns:
//   - []state.EntityState: Entities whose state changed as a result
//   - error: ErrOperationFailed, ErrUnavailable, or ErrMalformedResponse
func (c *Client) InvokeAction(ctx context.Context, domain, action string, params map[string]any) ([]state.EntityState, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, status, err := c.do(ctx, http.MethodPost, "/api/services/"+domain+"/"+action, serializeTimestamps(params))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: action %s.%s returned status %d", ErrOperationFailed, domain, action, status)
	}

	var rawList []json.RawMessage
	if err := json.Unmarshal(body, &rawList); err != nil {
		return nil, fmt.Errorf("%w: action %s.%s response is not a list: %w", ErrMalformedResponse, domain, action, err)
	}
	entities := make([]state.EntityState, 0, len(rawList))
	for _, raw := range rawList {
		entity, err := c.resolveEntity(raw)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// do executes one authenticated request and returns the response body and
// status. Transport failures and hub 5xx responses map to ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending hub request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %w", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, resp.StatusCode, fmt.Errorf("%w: hub returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

// wireEntity is the hub's state envelope.
type wireEntity struct {
	EntityID     string         `json:"entity_id"`
	State        any            `json:"state"`
	Attributes   map[string]any `json:"attributes"`
	LastChanged  string         `json:"last_changed"`
	LastReported string         `json:"last_reported"`
	LastUpdated  string         `json:"last_updated"`
}

// resolveEntity converts a raw state envelope into an EntityState, injecting
// the envelope timestamps as attributes.
func (c *Client) resolveEntity(raw []byte) (state.EntityState, error) {
	var wire wireEntity
	if err := json.Unmarshal(raw, &wire); err != nil {
		return state.EntityState{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if wire.EntityID == "" || wire.LastChanged == "" || wire.LastUpdated == "" {
		return state.EntityState{}, fmt.Errorf("%w: state envelope missing required keys", ErrMalformedResponse)
	}

	id, err := state.ParseEntityID(wire.EntityID)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	stateStr, ok := wire.State.(string)
	if !ok {
		stateStr = fmt.Sprint(wire.State)
		c.logger.Info("casting fetched entity state to string", "entity", wire.EntityID, "state", stateStr)
	}

	lastChanged, err := state.ParseTimestamp(wire.LastChanged)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: bad last_changed %q", ErrMalformedResponse, wire.LastChanged)
	}
	lastUpdated, err := state.ParseTimestamp(wire.LastUpdated)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: bad last_updated %q", ErrMalformedResponse, wire.LastUpdated)
	}

	attrs := make(map[string]any, len(wire.Attributes)+1)
	for name, value := range wire.Attributes {
		attrs[name] = value
	}
	if wire.LastReported != "" {
		if lastReported, err := state.ParseTimestamp(wire.LastReported); err == nil {
			attrs[attrLastReported] = lastReported
		}
	}

	entity, err := state.NewEntityState(id, stateStr, attrs, lastChanged, lastUpdated)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return entity, nil
}

// serializeTimestamps returns a copy of m with every time.Time value,
// including those nested in maps and slices, rendered as ISO-8601 UTC.
func serializeTimestamps(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = serializeTimestampValue(v)
	}
	return out
}

func serializeTimestampValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		return serializeTimestamps(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = serializeTimestampValue(item)
		}
		return out
	default:
		return v
	}
}

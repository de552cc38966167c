package state

import (
	"errors"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		domain  string
		entity  string
		attr    string
	}{
		{name: "entity id", input: "switch.heater", domain: "switch", entity: "heater"},
		{name: "attribute id", input: "switch.heater.friendly_name", domain: "switch", entity: "heater", attr: "friendly_name"},
		{name: "leading underscore domain", input: "_private.sensor1", domain: "_private", entity: "sensor1"},
		{name: "digits in entity", input: "sensor.temp_2", domain: "sensor", entity: "temp_2"},
		{name: "empty", input: "", wantErr: true},
		{name: "no separator", input: "switchheater", wantErr: true},
		{name: "uppercase", input: "Switch.Heater", wantErr: true},
		{name: "leading digit domain", input: "1switch.heater", wantErr: true},
		{name: "trailing dot", input: "switch.heater.", wantErr: true},
		{name: "four segments", input: "a.b.c.d", wantErr: true},
		{name: "spaces", input: "switch.big heater", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Fatalf("ParseID(%q) error = %v, want ErrInvalidID", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) unexpected error: %v", tt.input, err)
			}
			if id.Domain() != tt.domain || id.Entity() != tt.entity || id.Attribute() != tt.attr {
				t.Errorf("ParseID(%q) = %s/%s/%s, want %s/%s/%s",
					tt.input, id.Domain(), id.Entity(), id.Attribute(), tt.domain, tt.entity, tt.attr)
			}
			if id.String() != tt.input {
				t.Errorf("String() = %q, want %q", id.String(), tt.input)
			}
		})
	}
}

func TestParseEntityIDRejectsAttribute(t *testing.T) {
	if _, err := ParseEntityID("switch.heater.friendly_name"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestParseAttributeIDRejectsEntity(t *testing.T) {
	if _, err := ParseAttributeID("switch.heater"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestIDCacheKey(t *testing.T) {
	entity := mustParseID(t, "switch.heater")
	if got := entity.CacheKey(); got != "STATE:switch:heater" {
		t.Errorf("entity CacheKey() = %q", got)
	}

	attr := mustParseID(t, "switch.heater.friendly_name")
	if got := attr.CacheKey(); got != "STATE:switch:heater:friendly_name" {
		t.Errorf("attribute CacheKey() = %q", got)
	}

	if got := entity.AttributeScanPattern(); got != "STATE:switch:heater:*" {
		t.Errorf("AttributeScanPattern() = %q", got)
	}
}

func TestIDWithAttribute(t *testing.T) {
	entity := mustParseID(t, "switch.heater")

	attr, err := entity.WithAttribute("brightness")
	if err != nil {
		t.Fatalf("WithAttribute: %v", err)
	}
	if attr.String() != "switch.heater.brightness" {
		t.Errorf("WithAttribute = %q", attr.String())
	}

	if _, err := entity.WithAttribute("Not Valid"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID for invalid attribute name, got %v", err)
	}

	// Deriving from an attribute-level id replaces the attribute part.
	again, err := attr.WithAttribute("color")
	if err != nil {
		t.Fatalf("WithAttribute from attribute id: %v", err)
	}
	if again.String() != "switch.heater.color" {
		t.Errorf("WithAttribute from attribute id = %q", again.String())
	}
}

func mustParseID(t *testing.T, value string) ID {
	t.Helper()
	id, err := ParseID(value)
	if err != nil {
		t.Fatalf("ParseID(%q): %v", value, err)
	}
	return id
}

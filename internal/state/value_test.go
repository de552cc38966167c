package state

import (
	"errors"
	"testing"
	"time"
)

func TestValueRoundTrip(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name  string
		value Value
	}{
		{name: "string", value: StringValue("on")},
		{name: "empty string", value: StringValue("")},
		{name: "int", value: IntValue(-42)},
		{name: "float", value: FloatValue(21.5)},
		{name: "whole float keeps float tag", value: FloatValue(22)},
		{name: "bool", value: BoolValue(true)},
		{name: "dict", value: DictValue(map[string]any{"hue": float64(120), "name": "warm"})},
		{name: "list", value: ListValue([]any{"red", "green", float64(3)})},
		{name: "datetime", value: TimeValue(stamp)},
		{name: "none", value: NoneValue()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := tt.value.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode(%q): %v", encoded, err)
			}
			if !decoded.Equal(tt.value) {
				t.Errorf("round trip changed value: got %+v, want %+v", decoded, tt.value)
			}
			if decoded.Tag() != tt.value.Tag() {
				t.Errorf("round trip changed tag: got %s, want %s", decoded.Tag(), tt.value.Tag())
			}
		})
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		wantTag Tag
		wantErr bool
	}{
		{name: "nil", raw: nil, wantTag: TagNone},
		{name: "string", raw: "on", wantTag: TagString},
		{name: "bool", raw: false, wantTag: TagBool},
		{name: "int", raw: 7, wantTag: TagInt},
		{name: "json number", raw: float64(7), wantTag: TagFloat},
		{name: "map", raw: map[string]any{"a": "b"}, wantTag: TagDict},
		{name: "slice", raw: []any{"a"}, wantTag: TagList},
		{name: "time", raw: time.Now(), wantTag: TagTime},
		{name: "struct unsupported", raw: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValueOf(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Fatalf("ValueOf(%v) error = %v, want ErrUnsupportedType", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValueOf(%v): %v", tt.raw, err)
			}
			if v.Tag() != tt.wantTag {
				t.Errorf("ValueOf(%v) tag = %s, want %s", tt.raw, v.Tag(), tt.wantTag)
			}
		})
	}
}

func TestDecodeRejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "not json", encoded: "on"},
		{name: "unknown tag", encoded: `{"value":"x","type":"tuple"}`},
		{name: "int with garbage payload", encoded: `{"value":"abc","type":"int"}`},
		{name: "datetime with garbage payload", encoded: `{"value":"yesterday","type":"datetime"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.encoded); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tt.encoded)
			}
		})
	}
}

func TestNormalizeAttributeValuePromotesTimestamps(t *testing.T) {
	v, err := NormalizeAttributeValue("2026-03-14T09:26:53+01:00")
	if err != nil {
		t.Fatalf("NormalizeAttributeValue: %v", err)
	}
	if v.Tag() != TagTime {
		t.Fatalf("tag = %s, want %s", v.Tag(), TagTime)
	}
	want := time.Date(2026, 3, 14, 8, 26, 53, 0, time.UTC)
	if !v.Time().Equal(want) {
		t.Errorf("time = %v, want %v", v.Time(), want)
	}

	plain, err := NormalizeAttributeValue("almost a date")
	if err != nil {
		t.Fatalf("NormalizeAttributeValue: %v", err)
	}
	if plain.Tag() != TagString {
		t.Errorf("tag = %s, want %s", plain.Tag(), TagString)
	}
}

func TestNormalizeAttributeName(t *testing.T) {
	if got := NormalizeAttributeName("Friendly Name"); got != "friendly_name" {
		t.Errorf("NormalizeAttributeName = %q", got)
	}
}

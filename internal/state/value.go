package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Tag identifies the concrete type carried by a Value. The tag names are part
// of the cache wire format and must remain stable.
type Tag string

const (
	TagString Tag = "str"
	TagInt    Tag = "int"
	TagFloat  Tag = "float"
	TagBool   Tag = "bool"
	TagDict   Tag = "dict"
	TagList   Tag = "list"
	TagTime   Tag = "datetime"
	TagNone   Tag = "NoneType"
)

// Value is a tagged union over the types the cache can hold. Every cached
// value carries its tag so it can be losslessly round-tripped through the
// string-oriented store: Decode(v.Encode()) == v for all supported tags.
//
// The zero Value is the none value.
type Value struct {
	tag  Tag
	str  string
	i    int64
	f    float64
	b    bool
	dict map[string]any
	list []any
	t    time.Time
}

// cachedValue is the wire envelope stored in the cache.
type cachedValue struct {
	Value string `json:"value"`
	Type  Tag    `json:"type"`
}

// StringValue returns a string-tagged Value.
func StringValue(s string) Value { return Value{tag: TagString, str: s} }

// IntValue returns an integer-tagged Value.
func IntValue(i int64) Value { return Value{tag: TagInt, i: i} }

// FloatValue returns a float-tagged Value.
func FloatValue(f float64) Value { return Value{tag: TagFloat, f: f} }

// BoolValue returns a boolean-tagged Value.
func BoolValue(b bool) Value { return Value{tag: TagBool, b: b} }

// DictValue returns a mapping-tagged Value.
func DictValue(m map[string]any) Value { return Value{tag: TagDict, dict: m} }

// ListValue returns a sequence-tagged Value.
func ListValue(l []any) Value { return Value{tag: TagList, list: l} }

// TimeValue returns a timestamp-tagged Value, normalized to UTC.
func TimeValue(t time.Time) Value { return Value{tag: TagTime, t: t.UTC()} }

// NoneValue returns the absent value.
func NoneValue() Value { return Value{tag: TagNone} }

// ValueOf converts a raw JSON-decoded payload value into a tagged Value.
// JSON numbers arrive as float64; whole numbers keep the float tag so the
// original payload shape survives a cache round trip. A string that parses
// as an RFC 3339 timestamp stays a string here; opportunistic timestamp
// promotion is an attribute-level caching rule, not a conversion rule.
func ValueOf(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return NoneValue(), nil
	case string:
		return StringValue(v), nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case float64:
		return FloatValue(v), nil
	case map[string]any:
		return DictValue(v), nil
	case []any:
		return ListValue(v), nil
	case time.Time:
		return TimeValue(v), nil
	case Value:
		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, raw)
	}
}

// Tag returns the value's type tag. The zero Value reports TagNone.
func (v Value) Tag() Tag {
	if v.tag == "" {
		return TagNone
	}
	return v.tag
}

// IsNone reports whether the value is absent.
func (v Value) IsNone() bool { return v.Tag() == TagNone }

// String returns the string payload. Valid only for TagString.
func (v Value) String() string { return v.str }

// Int returns the integer payload. Valid only for TagInt.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload. Valid only for TagFloat.
func (v Value) Float() float64 { return v.f }

// Bool returns the boolean payload. Valid only for TagBool.
func (v Value) Bool() bool { return v.b }

// Dict returns the mapping payload. Valid only for TagDict.
func (v Value) Dict() map[string]any { return v.dict }

// List returns the sequence payload. Valid only for TagList.
func (v Value) List() []any { return v.list }

// Time returns the timestamp payload. Valid only for TagTime.
func (v Value) Time() time.Time { return v.t }

// Encode serializes the value into the cache wire envelope:
// {"value": "<string payload>", "type": "<tag>"}. Mapping payloads are
// JSON-encoded into the value string; timestamps are ISO-8601 in UTC.
func (v Value) Encode() (string, error) {
	var payload string

	switch v.Tag() {
	case TagString:
		payload = v.str
	case TagInt:
		payload = strconv.FormatInt(v.i, 10)
	case TagFloat:
		payload = strconv.FormatFloat(v.f, 'g', -1, 64)
	case TagBool:
		payload = strconv.FormatBool(v.b)
	case TagDict:
		data, err := json.Marshal(v.dict)
		if err != nil {
			return "", fmt.Errorf("encoding dict value: %w", err)
		}
		payload = string(data)
	case TagList:
		data, err := json.Marshal(v.list)
		if err != nil {
			return "", fmt.Errorf("encoding list value: %w", err)
		}
		payload = string(data)
	case TagTime:
		payload = v.t.UTC().Format(time.RFC3339Nano)
	case TagNone:
		payload = ""
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTag, v.tag)
	}

	envelope, err := json.Marshal(cachedValue{Value: payload, Type: v.Tag()})
	if err != nil {
		return "", fmt.Errorf("encoding cached value: %w", err)
	}
	return string(envelope), nil
}

// Decode deserializes a cache wire envelope back into a tagged Value.
func Decode(encoded string) (Value, error) {
	var envelope cachedValue
	if err := json.Unmarshal([]byte(encoded), &envelope); err != nil {
		return Value{}, fmt.Errorf("decoding cached value envelope: %w", err)
	}

	switch envelope.Type {
	case TagString:
		return StringValue(envelope.Value), nil
	case TagInt:
		i, err := strconv.ParseInt(envelope.Value, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("decoding int value %q: %w", envelope.Value, err)
		}
		return IntValue(i), nil
	case TagFloat:
		f, err := strconv.ParseFloat(envelope.Value, 64)
		if err != nil {
			return Value{}, fmt.Errorf("decoding float value %q: %w", envelope.Value, err)
		}
		return FloatValue(f), nil
	case TagBool:
		b, err := strconv.ParseBool(envelope.Value)
		if err != nil {
			return Value{}, fmt.Errorf("decoding bool value %q: %w", envelope.Value, err)
		}
		return BoolValue(b), nil
	case TagDict:
		var m map[string]any
		if err := json.Unmarshal([]byte(envelope.Value), &m); err != nil {
			return Value{}, fmt.Errorf("decoding dict value: %w", err)
		}
		return DictValue(m), nil
	case TagList:
		var l []any
		if err := json.Unmarshal([]byte(envelope.Value), &l); err != nil {
			return Value{}, fmt.Errorf("decoding list value: %w", err)
		}
		return ListValue(l), nil
	case TagTime:
		t, err := ParseTimestamp(envelope.Value)
		if err != nil {
			return Value{}, fmt.Errorf("decoding datetime value %q: %w", envelope.Value, err)
		}
		return TimeValue(t), nil
	case TagNone:
		return NoneValue(), nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedTag, envelope.Type)
	}
}

// Equal reports whether two values carry the same tag and payload.
// Timestamps compare as instants, mappings compare deeply.
func (v Value) Equal(other Value) bool {
	if v.Tag() != other.Tag() {
		return false
	}
	switch v.Tag() {
	case TagString:
		return v.str == other.str
	case TagInt:
		return v.i == other.i
	case TagFloat:
		return v.f == other.f
	case TagBool:
		return v.b == other.b
	case TagDict:
		return reflect.DeepEqual(v.dict, other.dict)
	case TagList:
		return reflect.DeepEqual(v.list, other.list)
	case TagTime:
		return v.t.Equal(other.t)
	case TagNone:
		return true
	default:
		return false
	}
}

// ParseTimestamp parses an ISO-8601/RFC 3339 timestamp and normalizes it to UTC.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		// The hub emits second-resolution stamps for some fields.
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

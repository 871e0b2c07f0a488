package domain

import (
	"encoding/json"
	"fmt"
)

// EncodePayload serializes v into an item payload.
func EncodePayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}

// DecodePayload deserializes an item payload into v.
// A tombstone payload cannot be decoded.
func DecodePayload(data []byte, v any) error {
	if data == nil {
		return fmt.Errorf("%w: tombstone has no payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodeTypeInfo decodes the payload of a type-defining item.
func DecodeTypeInfo(data []byte) (TypeInfo, error) {
	var info TypeInfo
	if err := DecodePayload(data, &info); err != nil {
		return TypeInfo{}, err
	}
	return info, nil
}

// DecodePluginInstanceInfo decodes the payload of a plugin descriptor item.
func DecodePluginInstanceInfo(data []byte) (PluginInstanceInfo, error) {
	var info PluginInstanceInfo
	if err := DecodePayload(data, &info); err != nil {
		return PluginInstanceInfo{}, err
	}
	if info.PluginName == "" {
		return PluginInstanceInfo{}, fmt.Errorf("%w: missing plugin name", ErrInvalidPayload)
	}
	return info, nil
}

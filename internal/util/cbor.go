/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RenderCBOR decodes a CBOR item and renders it as indented JSON for logs.
// Byte strings appear in diagnostic notation (h'...'), integer map keys as
// their decimal string. Keys that render alike (text "1" and integer 1)
// are reported as an error.
func RenderCBOR(data []byte) (string, error) {
	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode CBOR: %w", err)
	}
	return RenderCBORPretty(decoded)
}

// RenderCBORPretty renders an already decoded CBOR item.
func RenderCBORPretty(decoded any) (string, error) {
	normalised, err := normalise(decoded)
	if err != nil {
		return "", err
	}

	pretty, err := json.MarshalIndent(normalised, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func normalise(value any) (any, error) {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			norm, err := normalise(elem)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			norm, err := normalise(val)
			if err != nil {
				return nil, err
			}
			k := mapKey(key)
			if _, dup := out[k]; dup {
				return nil, fmt.Errorf("map keys collide when rendered as %q", k)
			}
			out[k] = norm
		}
		return out, nil
	case []byte:
		return fmt.Sprintf("h'%x'", v), nil
	case cbor.Tag:
		content, err := normalise(v.Content)
		if err != nil {
			return nil, err
		}
		return map[string]any{"tag": v.Number, "content": content}, nil
	default:
		return v, nil
	}
}

func mapKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	default:
		return fmt.Sprint(k)
	}
}

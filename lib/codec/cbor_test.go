// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleRequest mirrors the shape of a control protocol request.
type sampleRequest struct {
	Action string `cbor:"action"`
	Detail string `cbor:"detail,omitempty"`
}

func TestMarshalRoundTrip(t *testing.T) {
	original := sampleRequest{Action: "status", Detail: "verbose"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip produced %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zulu": 1, "alpha": 2, "mike": 3}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same value produced different encodings")
	}
}

func TestUnmarshalAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type is %T, want map[string]any", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Fatalf("nested type is %T, want map[string]any", outer["outer"])
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buffer bytes.Buffer

	encoder := NewEncoder(&buffer)
	if err := encoder.Encode(sampleRequest{Action: "status"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := encoder.Encode(sampleRequest{Action: "shutdown"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoder := NewDecoder(&buffer)
	var first, second sampleRequest
	if err := decoder.Decode(&first); err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if err := decoder.Decode(&second); err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if first.Action != "status" || second.Action != "shutdown" {
		t.Errorf("decoded actions %q, %q; want status, shutdown", first.Action, second.Action)
	}
}

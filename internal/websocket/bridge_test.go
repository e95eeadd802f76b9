// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package websocket

import (
	"strings"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/capture"
	"github.com/mototwist/mototwist/internal/maplayers"
	"github.com/mototwist/mototwist/internal/models"
)

func TestBridgeAttachLayer(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, "rider-1")
	registerClient(t, hub, client)
	bridge := NewBridge(hub)

	layer := &maplayers.Layer{
		ID:       5,
		Name:     "Grossglockner High Alpine Road",
		IsPaved:  true,
		Polyline: []models.LatLng{{Lat: 47.074, Lng: 12.846}},
	}
	bridge.AttachLayer("rider-1", layer)

	msg := expectSignal(t, client, SignalLayerAttach)
	got, ok := msg.Data.(*maplayers.Layer)
	if !ok {
		t.Fatalf("Data is %T, want *maplayers.Layer", msg.Data)
	}
	if got.ID != 5 || got.Name != layer.Name {
		t.Errorf("layer = %d/%q, want 5/%q", got.ID, got.Name, layer.Name)
	}
}

func TestBridgeDetachLayer(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, "rider-1")
	registerClient(t, hub, client)

	NewBridge(hub).DetachLayer("rider-1", 8)

	msg := expectSignal(t, client, SignalLayerDetach)
	if payload := msg.Data.(routePayload); payload.ID != 8 {
		t.Errorf("ID = %d, want 8", payload.ID)
	}
}

func TestBridgeFocusRoute(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, "rider-1")
	registerClient(t, hub, client)

	NewBridge(hub).FocusRoute("rider-1", 3)

	msg := expectSignal(t, client, SignalMapFocus)
	if payload := msg.Data.(routePayload); payload.ID != 3 {
		t.Errorf("ID = %d, want 3", payload.ID)
	}
}

func TestBridgeUpdateEye(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, "rider-1")
	registerClient(t, hub, client)
	bridge := NewBridge(hub)

	bridge.UpdateEye("rider-1", 7, true)

	msg := expectSignal(t, client, SignalEyeUpdate)
	payload := msg.Data.(eyePayload)
	if payload.ID != 7 || !payload.Visible {
		t.Errorf("payload = %+v, want id 7 visible", payload)
	}
}

func TestBridgeNotify(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, "rider-1")
	registerClient(t, hub, client)

	NewBridge(hub).Notify("rider-1", "error", "Failed to load route geometry")

	msg := expectSignal(t, client, SignalFlash)
	payload := msg.Data.(flashPayload)
	if payload.Level != "error" || payload.Message == "" {
		t.Errorf("payload = %+v, want error level with message", payload)
	}
}

func TestBridgeCaptureUpdate(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, "rider-1")
	registerClient(t, hub, client)

	snap := capture.Snapshot{State: capture.StateCapturing, Seq: 4}
	NewBridge(hub).CaptureUpdate("rider-1", snap)

	msg := expectSignal(t, client, SignalCaptureState)
	got := msg.Data.(capture.Snapshot)
	if got.State != capture.StateCapturing || got.Seq != 4 {
		t.Errorf("snapshot = %+v, want capturing seq 4", got)
	}
}

func TestBridgeTargetsOnlyTheRider(t *testing.T) {
	hub := setupHub(t)
	mine := createTestClient(hub, "rider-1")
	other := createTestClient(hub, "rider-2")
	registerClient(t, hub, mine)
	registerClient(t, hub, other)

	NewBridge(hub).UpdateEye("rider-1", 2, false)

	expectSignal(t, mine, SignalEyeUpdate)
	time.Sleep(20 * time.Millisecond)
	if n := len(other.send); n != 0 {
		t.Errorf("rider-2 received %d messages, want 0", n)
	}
}

func TestBridgePayloadJSON(t *testing.T) {
	// The map page reads these field names; pin the wire shape.
	tests := []struct {
		name    string
		message Message
		want    []string
	}{
		{
			name:    "eye update",
			message: Message{Type: SignalEyeUpdate, Data: eyePayload{ID: 7, Visible: true}},
			want:    []string{`"type":"eye.update"`, `"id":7`, `"visible":true`},
		},
		{
			name:    "detach",
			message: Message{Type: SignalLayerDetach, Data: routePayload{ID: 12}},
			want:    []string{`"type":"layer.detach"`, `"id":12`},
		},
		{
			name:    "flash",
			message: Message{Type: SignalFlash, Data: flashPayload{Level: "warning", Message: "2 unnamed"}},
			want:    []string{`"type":"flash"`, `"level":"warning"`, `"message":"2 unnamed"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalMessage(tt.message)
			if err != nil {
				t.Fatalf("MarshalMessage error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(string(data), want) {
					t.Errorf("JSON %s missing %s", data, want)
				}
			}
		})
	}
}

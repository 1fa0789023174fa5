// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

// Message types exchanged with the hosting context. Request/response
// pairs are correlated by messageId; notifications carry none.
const (
	// TypeGetInitialSaveData asks the host for its current flat
	// state; the host answers with TypeInitialSaveDataResponse.
	TypeGetInitialSaveData      = "getInitialSaveData"
	TypeInitialSaveDataResponse = "initialSaveDataResponse"

	// TypeSaveDataChanged notifies the host that local flat state
	// changed. It carries the full payload and expects no reply.
	TypeSaveDataChanged = "saveDataChanged"

	// TypeGetAllLocalStorageData is a host-initiated pull of the
	// full flat state, answered with TypeSaveDataResponse.
	TypeGetAllLocalStorageData = "getAllLocalStorageData"
	TypeSaveDataResponse       = "saveDataResponse"

	// TypeSetAllLocalStorageData is a host-initiated overwrite of
	// the full flat state, acknowledged with TypeLoadDataResponse.
	TypeSetAllLocalStorageData = "setAllLocalStorageData"
	TypeLoadDataResponse       = "loadDataResponse"

	// TypeRequestSnapshot asks for a rendering of current state,
	// answered with TypeSnapshotResponse.
	TypeRequestSnapshot  = "requestSnapshot"
	TypeSnapshotResponse = "snapshotResponse"

	// TypeReady announces that the bridge is attached and serving.
	TypeReady = "ready"
)

// Envelope is the wire form of every bridge message. Fields not
// meaningful for a given type are omitted.
type Envelope struct {
	Type      string            `json:"type"`
	MessageID string            `json:"messageId,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Success   bool              `json:"success,omitempty"`
	Error     string            `json:"error,omitempty"`
	Image     string            `json:"image,omitempty"`
}

package core

import "encoding/json"

// WriteFlagLogsRequest is the outbound payload produced by flush_logs.
// Like the snapshot schema, its wire form is externally owned; this
// repository realizes it as JSON for the reasons given in snapshot.go.
type WriteFlagLogsRequest struct {
	FlagAssigned      []FlagAssignedEntry      `json:"flag_assigned"`
	ClientResolveInfo []ClientResolveInfoEntry `json:"client_resolve_info,omitempty"`
	FlagResolveInfo   []FlagResolveInfoEntry   `json:"flag_resolve_info,omitempty"`
	TelemetryData     TelemetryData            `json:"telemetry_data,omitempty"`
}

func (r ResolveReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func marshalWriteFlagLogsRequest(req *WriteFlagLogsRequest) ([]byte, error) {
	return json.Marshal(req)
}

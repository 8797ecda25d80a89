// Package remote carries the engine contract over a websocket: Client is an
// engine.Engine backed by a connection, Handler serves an engine to clients.
//
// Every text frame is one JSON message. The client sends a request and
// waits for the response with the same seq before sending the next one.
package remote

import "encoding/json"

const (
	opSnapshot = "snapshot"
	opGraph    = "graph"
	opStart    = "start"
	opAdvance  = "advance"
	opActive   = "active"
	opMove     = "move"
	opSpawn    = "spawn"
)

const codeRejected = "rejected"

type request struct {
	Seq   uint64 `json:"seq"`
	Op    string `json:"op"`
	Agent int    `json:"agent,omitempty"`
	Node  int    `json:"node,omitempty"`
}

type response struct {
	Seq    uint64          `json:"seq"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	ID     int             `json:"id,omitempty"`
	Active bool            `json:"active,omitempty"`
}

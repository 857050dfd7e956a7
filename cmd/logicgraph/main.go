// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command logicgraph inspects, queries and serves node-graph documents.
//
// Usage:
//
//	logicgraph inspect graph.json
//	logicgraph query graph.json --x 0 --y 0 --width 500 --height 300
//	logicgraph validate graph.json --json
//	logicgraph serve graph.json --addr :8088 --watch
//	logicgraph config --config logicgraph.yaml
//
// Example requests against a running server:
//
//	# Nodes and edges in a region
//	curl 'http://localhost:8088/v1/graph/query?x=0&y=0&width=500&height=300' | jq
//
//	# Move a node; connected websocket clients receive node:moving and node:moved
//	curl -X PUT http://localhost:8088/v1/graph/nodes/sum/position -d '{"x": 40, "y": 80}'
//
//	# Stream events
//	websocat ws://localhost:8088/v1/events
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

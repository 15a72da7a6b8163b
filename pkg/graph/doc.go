// Package graph provides the ELK JSON data model: input graphs, layout
// results and server errors.
//
// This package defines the wire format exchanged with the Eclipse Layout
// Kernel server, used for graph files, API requests and responses, caching,
// and the stdio protocol itself.
//
// # Input Graphs
//
// A [Graph] is a tree of [Node] values with [Edge], [Port] and [Label]
// elements, following the ELK JSON format:
//
//	{
//	  "id": "root",
//	  "layoutOptions": {"elk.algorithm": "layered"},
//	  "children": [
//	    {"id": "n1", "width": 30, "height": 30},
//	    {"id": "n2", "width": 30, "height": 30}
//	  ],
//	  "edges": [{"id": "e1", "sources": ["n1"], "targets": ["n2"]}]
//	}
//
// Optional numeric fields are pointers so that absent values are never sent
// as null. Both "layoutOptions" and "properties" are accepted as string maps.
//
// # Validation
//
// [Validate] checks a graph before it is sent to the server: required fields,
// non-negative sizes, globally unique element ids, and edge endpoints that
// resolve to a node or port. Failures carry the INVALID_GRAPH error code.
//
// # Layout Results
//
// The server answers with a [LayoutData] map from element id to [Element].
// Shapes (the root graph, nodes, ports, labels) carry a position and size;
// edges carry a route. Coordinates are relative to the parent element.
//
// If the server rejects a graph it may answer with a JSON error object,
// which [DecodeResponse] returns as a [*ServerError].
//
// # Files
//
// [ReadGraphFile] reads JSON or, for .yaml/.yml files, YAML. [MarshalGraph]
// produces the compact canonical JSON sent over the wire and [Hash] the
// SHA-256 of that encoding, used as a cache key.
package graph

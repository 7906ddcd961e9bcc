// Package service is the driver-facing surface of cbind. A Service holds the
// global configuration and the open sessions by handle; Server exposes it
// as MCP tools over stdio, and DiagnosticsServer serves health and
// Prometheus metrics for it.
//
// A driver calls the tools in protocol order:
//
//	set_config → index → filter_and_resolve → add_mapping* → write_to → close_session
//
// When the transport closes, every open session is aborted and writes
// nothing.
package service

// Package domain translates MCP tool calls into kingdom check operations.
//
// Each tool has a definition function (name and description), typed input
// and result structs whose field tags drive the generated JSON schema, and a
// handler bound to the Kingdoms interface.
package domain

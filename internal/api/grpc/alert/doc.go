// Package alert implements the gRPC transport for the alert dispatcher.
//
// The service descriptor is written by hand and carries protobuf Struct
// payloads, so no generated code is needed. The server converts messages to
// domain types and calls into a provided business-service interface.
package alert

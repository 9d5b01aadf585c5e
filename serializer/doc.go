// Package serializer provides the {encode, decode} function pairs spec §9
// asks for in place of the source's implicit per-call serializer
// parameters. Codec is attached to a message type registry or passed
// directly to NetworkClient.SendRequest.
package serializer

// Package lan implements the miio device transport over the local
// network.
//
// Devices speak an encrypted JSON-RPC protocol over UDP port 54321.
// Frames carry a 32-byte header (magic, length, device id, uptime stamp,
// md5 checksum) followed by an AES-128-CBC payload whose key and IV
// derive from the device's 16-byte access token. Discovery broadcasts a
// bare "hello" header; devices answer with their id, stamp, and sometimes
// their token.
//
// The protocol has no push channel, so opened handles derive change
// events by polling the properties of a built-in per-model capability
// profile and diffing against the previous reading. Models without a
// profile are still adopted, with empty capability metadata.
package lan

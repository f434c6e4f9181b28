// Package storage provides content-addressed storage for contract artifacts
// and deployment address books, with pluggable backends.
//
// Content is identified by the SHA-256 hash of its bytes. Artifacts and
// address books live in separate namespaces of the same backend.
//
// # Storage URI Format
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//
//   - file:///var/lib/trex/store
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=eu-west-1&endpoint=...
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - vault://vault.example.com:8200/secret/trex?token=...
//
// Several URIs can be combined with StorageBackendFactory.CreateMultiBackend:
// stores go to every available backend and fetches are served by the first
// backend holding the content.
package storage

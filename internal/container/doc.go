// Package container implements the container primitive underneath arx
// archives: fixed-header framing, the FlatBuffers index, and the blob pools
// ("packs") that hold de-duplicated file content.
//
// A container is a single random-access byte source laid out as
//
//	header (32 bytes) | pack 0 | pack 1 | ... | index
//
// The header names the index region. The index lists every entry record and
// every pack; a pack is either stored raw or compressed as a single zstd
// stream. Content is addressed by (pack, blob) pairs rather than by path.
package container

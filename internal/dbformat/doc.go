// SPDX-License-Identifier: MPL-2.0

// Package dbformat encodes and decodes the compiled package database.
//
// A database file is a fixed 64-byte header followed by a payload of
// tagged sections. All integers in the header are little endian:
//
//	magic     [8]byte   "PKGDB\x00\r\n"
//	major     uint16    incompatible layout revision
//	minor     uint16    compatible additions (new section tags)
//	flags     uint32    reserved, zero
//	built_at  int64     unix seconds, UTC
//	length    uint64    payload length in bytes
//	checksum  [32]byte  SHA-256 of the payload
//
// Each section is a one-byte tag, a uvarint body length and the body.
// Inside bodies, strings are a uvarint length followed by the bytes, lists
// are a uvarint count followed by the items, and maps are written as lists
// of entries sorted by key. Readers skip section tags they do not know, so
// a newer minor version stays readable.
//
// The file is written next to a companion "<name>.sha256" in sha256sum
// format so consumers can check a download before opening it.
package dbformat

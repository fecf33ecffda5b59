package model

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Domain prefixes for content hashes. The version suffix leaves room for
// a future algorithm change.
const (
	DomainUpdate   = "marginalia/update/v1"
	DomainDocument = "marginalia/document/v1"
)

// hashWithDomain computes BLAKE3(domain || 0x00 || data) as lowercase hex.
// The null separator keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := blake3.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// UpdateHash returns the content hash of an encoded replication update.
// Two replicas that hold the same update bytes agree on its hash, which
// makes it a safe deduplication key for persisted update logs.
func UpdateHash(encoded []byte) string {
	return hashWithDomain(DomainUpdate, encoded)
}

// DocumentHash returns the content hash of an encoded document snapshot.
func DocumentHash(encoded []byte) string {
	return hashWithDomain(DomainDocument, encoded)
}

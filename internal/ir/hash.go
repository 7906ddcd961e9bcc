package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainElement  = "cbind/element/v1"
	DomainSnapshot = "cbind/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the content hash of the subtree rooted at e.
// Two structurally identical trees have the same fingerprint regardless of
// node identity.
func Fingerprint(e Element) (string, error) {
	v, err := CanonicalValue(e)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}
	return hashWithDomain(DomainElement, canonical), nil
}

// SnapshotID identifies a written snapshot by module name and tree content.
func SnapshotID(module string, root Element) (string, error) {
	fp, err := Fingerprint(root)
	if err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(Object{
		"module":      String(module),
		"fingerprint": String(fp),
	})
	if err != nil {
		return "", fmt.Errorf("SnapshotID: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests.
func MustFingerprint(e Element) string {
	fp, err := Fingerprint(e)
	if err != nil {
		panic(err)
	}
	return fp
}

// Package hashing computes the content-addressed digests used across the
// build: page inputs, provenance records, and asset fingerprints.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/afero"
)

// Hash is a stable 16-hex-character prefix of a SHA-256 digest.
// Equality is the only operation that matters.
type Hash string

// HashLen is the length of a Hash in hex characters.
const HashLen = 16

// FingerprintLen is the length of an asset fingerprint in hex characters.
const FingerprintLen = 8

// HashBytes hashes raw bytes.
func HashBytes(b []byte) Hash {
	sum := sha256.Sum256(b)
	return Hash(hex.EncodeToString(sum[:])[:HashLen])
}

// HashString hashes a string.
func HashString(s string) Hash {
	return HashBytes([]byte(s))
}

// HashFile reads path from fs and hashes its contents.
func HashFile(fs afero.Fs, path string) (Hash, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return Hash(hex.EncodeToString(h.Sum(nil))[:HashLen]), nil
}

// Fingerprint returns the 8-hex-char cache-busting suffix for content.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:FingerprintLen]
}

// HashMapping hashes a mapping independent of key order. Nested maps and
// slices are canonicalized recursively; scalars carry a type tag so that
// "1" and 1 hash differently.
func HashMapping(m map[string]interface{}) Hash {
	h := sha256.New()
	writeCanonical(h, m)
	return Hash(hex.EncodeToString(h.Sum(nil))[:HashLen])
}

func writeCanonical(h hash.Hash, v interface{}) {
	switch t := v.(type) {
	case nil:
		io.WriteString(h, "z;")
	case bool:
		if t {
			io.WriteString(h, "b1;")
		} else {
			io.WriteString(h, "b0;")
		}
	case int:
		io.WriteString(h, "i"+strconv.FormatInt(int64(t), 10)+";")
	case int64:
		io.WriteString(h, "i"+strconv.FormatInt(t, 10)+";")
	case uint64:
		io.WriteString(h, "i"+strconv.FormatUint(t, 10)+";")
	case float64:
		// Integral floats hash like ints so YAML/TOML round-trips agree.
		if t == float64(int64(t)) {
			io.WriteString(h, "i"+strconv.FormatInt(int64(t), 10)+";")
		} else {
			io.WriteString(h, "f"+strconv.FormatFloat(t, 'g', -1, 64)+";")
		}
	case string:
		io.WriteString(h, "s"+strconv.Itoa(len(t))+":"+t+";")
	case []interface{}:
		io.WriteString(h, "l"+strconv.Itoa(len(t))+":")
		for _, e := range t {
			writeCanonical(h, e)
		}
		io.WriteString(h, ";")
	case []string:
		io.WriteString(h, "l"+strconv.Itoa(len(t))+":")
		for _, e := range t {
			writeCanonical(h, e)
		}
		io.WriteString(h, ";")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		io.WriteString(h, "m"+strconv.Itoa(len(keys))+":")
		for _, k := range keys {
			io.WriteString(h, "s"+strconv.Itoa(len(k))+":"+k+";")
			writeCanonical(h, t[k])
		}
		io.WriteString(h, ";")
	case map[interface{}]interface{}:
		// yaml.v2 style maps; normalize keys to strings
		norm := make(map[string]interface{}, len(t))
		for k, val := range t {
			norm[fmt.Sprintf("%v", k)] = val
		}
		writeCanonical(h, norm)
	default:
		io.WriteString(h, "s?"+fmt.Sprintf("%v", t)+";")
	}
}

// cache.go implements the precompiled Base cache (spec.md §6.3): a
// versioned binary container keyed to a SHA-256 hash of the Base source so a
// stale cache is a hard load error rather than silently-wrong bytecode.
// Saving/loading uses gob like internal/bytecode's file format, but the
// stream is the bare gob-encoded envelope: no magic prefix and no length
// field are written.
package base

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"

	"vela/internal/bytecode"
)

// CacheVersion is bumped whenever the cached shape below changes incompatibly.
const CacheVersion uint32 = 1

// cacheEnvelope is the serialized shape named in spec.md §6.3: version,
// source hash, compiled program, method tables, closure captures, and
// promotion rules. DispatchGroups on CompiledProgram already serves as the
// method table; ClosureCaptures/PromotionRules are reserved for a future
// closure-capture and numeric-promotion cache and are empty today since
// nothing in this tree generates them dynamically yet.
type cacheEnvelope struct {
	Version         uint32
	SourceHash      string
	CompiledProgram *bytecode.CompiledProgram
	ClosureCaptures map[string][]string
	PromotionRules  map[string]string
}

// SourceHash returns the SHA-256 hex digest of the Base source text, the key
// a cache load validates against.
func SourceHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// SaveCache writes cp, tagged with source's hash, to w.
func SaveCache(w io.Writer, source string, cp *bytecode.CompiledProgram) error {
	env := cacheEnvelope{
		Version:         CacheVersion,
		SourceHash:      SourceHash(source),
		CompiledProgram: cp,
		ClosureCaptures: map[string][]string{},
		PromotionRules:  map[string]string{},
	}
	enc := gob.NewEncoder(w)
	if err := enc.Encode(&env); err != nil {
		return fmt.Errorf("base: encode cache: %w", err)
	}
	return nil
}

// LoadCache reads a cache written by SaveCache and validates it against the
// current Base source; a hash mismatch is a hard error, never a silent
// fallback to recompilation.
func LoadCache(r io.Reader, source string) (*bytecode.CompiledProgram, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("base: read cache: %w", err)
	}
	var env cacheEnvelope
	dec := gob.NewDecoder(&buf)
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("base: decode cache: %w", err)
	}
	if env.Version != CacheVersion {
		return nil, fmt.Errorf("base: cache version mismatch: have %d, want %d", env.Version, CacheVersion)
	}
	want := SourceHash(source)
	if env.SourceHash != want {
		return nil, fmt.Errorf("base: cache stale: source hash %s does not match %s", env.SourceHash, want)
	}
	return env.CompiledProgram, nil
}

// Package repository implements the station's indexed repositories (spec.md
// §4.1): one primary stablekv.Store per entity kind plus the secondary
// indices each entity needs, maintained by the insert-time symmetric
// difference described in spec.md ("the symmetric difference is applied:
// remove stale, insert new"). Grounded on
// original_source/libs/orbit-essentials/src/repository.rs's
// Repository/IndexedRepository/RebuildRepository traits — each repository
// here hand-implements add/remove-entry-index methods the same way the
// Rust trait's implementors do, since Go has no trait default-method
// equivalent worth generalizing over such different index shapes.
package repository

// SaveIndexes applies the insert-time index-maintenance rule from spec.md
// §4.1: remove every index entry the old value contributed, then add every
// index entry the new value contributes. Passing a nil old value (a fresh
// insert) skips the removal step.
func SaveIndexes[V any](newVal V, oldVal *V, add func(V) error, remove func(V) error) error {
	if oldVal != nil {
		if err := remove(*oldVal); err != nil {
			return err
		}
	}
	return add(newVal)
}

// Package provenance records, for every page, the content-addressed set of
// inputs that produced its output, plus the inverse (subvenance) index that
// answers "which pages depended on this input hash".
package provenance

import (
	"sort"
	"strings"

	"github.com/bengal-ssg/bengal/builder/hashing"
)

// InputType classifies one provenance input.
type InputType string

const (
	InputContent  InputType = "content"
	InputMetadata InputType = "metadata"
	InputTemplate InputType = "template"
	InputPartial  InputType = "partial"
	InputData     InputType = "data"
	InputConfig   InputType = "config"
	InputSection  InputType = "section"
	InputAsset    InputType = "asset"
)

// InputRecord is one immutable input reference.
type InputRecord struct {
	Type InputType    `json:"input_type"`
	Path string       `json:"path"`
	Hash hashing.Hash `json:"hash"`
}

// Provenance is an ordered, de-duplicated input list. The combined hash is
// a function of the sorted inputs only; no timestamps enter it.
type Provenance struct {
	Inputs []InputRecord
}

// Add appends an input, dropping exact duplicates.
func (p *Provenance) Add(rec InputRecord) {
	for _, existing := range p.Inputs {
		if existing == rec {
			return
		}
	}
	p.Inputs = append(p.Inputs, rec)
}

// CombinedHash derives the provenance digest from the sorted input list.
// Two provenances are equal iff their combined hashes are equal.
func (p *Provenance) CombinedHash() hashing.Hash {
	lines := make([]string, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		lines = append(lines, string(in.Type)+"\x00"+in.Path+"\x00"+string(in.Hash))
	}
	sort.Strings(lines)
	return hashing.HashBytes([]byte(strings.Join(lines, "\n")))
}

// Equal compares by combined hash.
func (p *Provenance) Equal(other *Provenance) bool {
	return p.CombinedHash() == other.CombinedHash()
}

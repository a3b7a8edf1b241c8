// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// zeroWidthSpace is stripped from titles before lookup. Scraped titles
// frequently carry it.
const zeroWidthSpace = "\u200b"

// NormalizeTitle returns the lookup key for a title: zero-width spaces are
// removed, surrounding whitespace is trimmed and the result is lower-cased.
func NormalizeTitle(title string) string {
	title = strings.ReplaceAll(title, zeroWidthSpace, "")
	return strings.ToLower(strings.TrimSpace(title))
}

// Vocabulary is an append-only bijection between normalized titles and dense
// item ids starting at 0. Ids are never reused or removed, so the id assigned
// to a new title is always the current length (max existing id + 1).
//
// Vocabulary is safe for concurrent use.
type Vocabulary struct {
	mu     sync.RWMutex
	ids    map[string]int
	titles []string
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]int)}
}

// VocabularyFromTitles registers titles in order. Titles that normalize to an
// already registered key keep the first id. A title that normalizes to the
// empty string is an error.
func VocabularyFromTitles(titles []string) (*Vocabulary, error) {
	v := NewVocabulary()
	for _, t := range titles {
		if _, _, err := v.Register(t); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Register returns the id for title, assigning the next id if the title is
// new. added reports whether a new entry was created.
func (v *Vocabulary) Register(title string) (id int, added bool, err error) {
	key := NormalizeTitle(title)
	if key == "" {
		return 0, false, fmt.Errorf("%w: empty title", ErrConfiguration)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if id, ok := v.ids[key]; ok {
		return id, false, nil
	}
	id = len(v.titles)
	v.ids[key] = id
	v.titles = append(v.titles, strings.TrimSpace(strings.ReplaceAll(title, zeroWidthSpace, "")))
	return id, true, nil
}

// Lookup resolves a title to its id using normalized comparison.
func (v *Vocabulary) Lookup(title string) (int, bool) {
	key := NormalizeTitle(title)
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.ids[key]
	return id, ok
}

// Contains reports whether title is registered.
func (v *Vocabulary) Contains(title string) bool {
	_, ok := v.Lookup(title)
	return ok
}

// Title returns the display title registered for id.
func (v *Vocabulary) Title(id int) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if id < 0 || id >= len(v.titles) {
		return "", false
	}
	return v.titles[id], true
}

// Len returns the number of registered titles.
func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.titles)
}

// Titles returns the display titles in id order.
func (v *Vocabulary) Titles() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.titles))
	copy(out, v.titles)
	return out
}

// Clone returns an independent copy.
func (v *Vocabulary) Clone() *Vocabulary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	c := &Vocabulary{
		ids:    make(map[string]int, len(v.ids)),
		titles: make([]string, len(v.titles)),
	}
	for k, id := range v.ids {
		c.ids[k] = id
	}
	copy(c.titles, v.titles)
	return c
}

// Reconcile brings v in line with an authoritative copy by appending the
// titles it is missing, in authoritative id order. It returns the titles that
// were appended. If the two copies disagree on the id of any title, v is left
// unchanged and an ErrConfiguration error is returned.
func (v *Vocabulary) Reconcile(authoritative *Vocabulary) ([]string, error) {
	if authoritative == v {
		return nil, nil
	}
	want := authoritative.Titles()

	v.mu.Lock()
	defer v.mu.Unlock()

	for id, title := range want {
		if have, ok := v.ids[NormalizeTitle(title)]; ok && have != id {
			return nil, fmt.Errorf("%w: vocabulary conflict for %q: local id %d, authoritative id %d",
				ErrConfiguration, title, have, id)
		}
		if id < len(v.titles) && NormalizeTitle(v.titles[id]) != NormalizeTitle(title) {
			return nil, fmt.Errorf("%w: vocabulary conflict at id %d: local %q, authoritative %q",
				ErrConfiguration, id, v.titles[id], title)
		}
	}

	var added []string
	for id := len(v.titles); id < len(want); id++ {
		v.ids[NormalizeTitle(want[id])] = id
		v.titles = append(v.titles, want[id])
		added = append(added, want[id])
	}
	return added, nil
}

// MarshalJSON encodes the vocabulary as its ordered title list.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Titles())
}

// UnmarshalJSON decodes an ordered title list.
func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var titles []string
	if err := json.Unmarshal(data, &titles); err != nil {
		return err
	}
	decoded, err := VocabularyFromTitles(titles)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ids = decoded.ids
	v.titles = decoded.titles
	return nil
}

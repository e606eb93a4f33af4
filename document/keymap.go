package document

import (
	"errors"
	"fmt"

	"collabweave/weave"
)

var (
	// ErrUnknownKey means a local key has no global id. It points at a
	// consistency defect; the operation being processed must be aborted.
	ErrUnknownKey = errors.New("document: unknown local key")
	// ErrUnknownID means a global id has no local key.
	ErrUnknownID = errors.New("document: unknown global id")
	// ErrDuplicateID means a create op reuses an id that is already taken.
	ErrDuplicateID = errors.New("document: duplicate global id")
)

// KeyMap translates session-local keys of one item kind to global ids and
// back.
type KeyMap[K comparable] struct {
	site     weave.SiteID
	toGlobal map[K]weave.ID
	toLocal  map[weave.ID]K
	clock    weave.Clock
}

func newKeyMap[K comparable](site weave.SiteID) *KeyMap[K] {
	return &KeyMap[K]{
		site:     site,
		toGlobal: map[K]weave.ID{},
		toLocal:  map[weave.ID]K{},
	}
}

// AddLocal stamps key with a fresh id originated by this site.
func (m *KeyMap[K]) AddLocal(key K) weave.ID {
	id := weave.ID{Clock: m.clock.Next(), Site: m.site}
	m.toGlobal[key] = id
	m.toLocal[id] = key
	return id
}

// Insert registers an id that came from a remote op or a snapshot. It never
// hands out a counter value; ids authored earlier by this same site only
// raise the counter so AddLocal cannot reissue them.
func (m *KeyMap[K]) Insert(key K, id weave.ID) {
	m.toGlobal[key] = id
	m.toLocal[id] = key
	if id.Site == m.site {
		m.clock.Seen(id.Clock)
	}
}

// Global returns the id registered for key.
func (m *KeyMap[K]) Global(key K) (weave.ID, error) {
	id, ok := m.toGlobal[key]
	if !ok {
		return weave.ID{}, fmt.Errorf("%w: %v", ErrUnknownKey, key)
	}
	return id, nil
}

// Local returns the key registered for id.
func (m *KeyMap[K]) Local(id weave.ID) (K, error) {
	key, ok := m.toLocal[id]
	if !ok {
		var zero K
		return zero, fmt.Errorf("%w: %s", ErrUnknownID, id)
	}
	return key, nil
}

// Has reports whether id is registered.
func (m *KeyMap[K]) Has(id weave.ID) bool {
	_, ok := m.toLocal[id]
	return ok
}

// Len is the number of registered pairs.
func (m *KeyMap[K]) Len() int { return len(m.toGlobal) }

// Map holds one KeyMap per item kind.
type Map struct {
	Words     *KeyMap[WordKey]
	Symbols   *KeyMap[SymbolKey]
	Objects   *KeyMap[ObjectKey]
	Sequences *KeyMap[SequenceKey]
	Types     *KeyMap[TypeKey]
	Fonts     *KeyMap[FontKey]
}

// NewMap returns empty tables that stamp new ids with site.
func NewMap(site weave.SiteID) *Map {
	return &Map{
		Words:     newKeyMap[WordKey](site),
		Symbols:   newKeyMap[SymbolKey](site),
		Objects:   newKeyMap[ObjectKey](site),
		Sequences: newKeyMap[SequenceKey](site),
		Types:     newKeyMap[TypeKey](site),
		Fonts:     newKeyMap[FontKey](site),
	}
}

// ToGlobal translates a local item.
func (m *Map) ToGlobal(item Item) (weave.Item, error) {
	var (
		id  weave.ID
		err error
	)
	switch item.Kind {
	case weave.KindWord:
		id, err = m.Words.Global(WordKey(item.Key))
	case weave.KindSymbol:
		id, err = m.Symbols.Global(SymbolKey(item.Key))
	case weave.KindSequence:
		id, err = m.Sequences.Global(SequenceKey(item.Key))
	case weave.KindObject:
		id, err = m.Objects.Global(ObjectKey(item.Key))
	default:
		return weave.Item{}, fmt.Errorf("%w: item kind %s", ErrUnknownKey, item.Kind)
	}
	if err != nil {
		return weave.Item{}, err
	}
	return weave.Item{Kind: item.Kind, Ref: id}, nil
}

// ToLocal translates a global item.
func (m *Map) ToLocal(item weave.Item) (Item, error) {
	var (
		key int
		err error
	)
	switch item.Kind {
	case weave.KindWord:
		var k WordKey
		k, err = m.Words.Local(item.Ref)
		key = int(k)
	case weave.KindSymbol:
		var k SymbolKey
		k, err = m.Symbols.Local(item.Ref)
		key = int(k)
	case weave.KindSequence:
		var k SequenceKey
		k, err = m.Sequences.Local(item.Ref)
		key = int(k)
	case weave.KindObject:
		var k ObjectKey
		k, err = m.Objects.Local(item.Ref)
		key = int(k)
	default:
		return Item{}, fmt.Errorf("%w: item kind %s", ErrUnknownID, item.Kind)
	}
	if err != nil {
		return Item{}, err
	}
	return Item{Kind: item.Kind, Key: key}, nil
}

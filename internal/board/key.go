package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadKey is returned by ParseKey for strings that are not list or task keys.
var ErrBadKey = errors.New("board: malformed key")

// Kind tells which id space a Key belongs to.
type Kind uint8

const (
	KindList Kind = iota + 1
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindTask:
		return "task"
	}
	return "unknown"
}

// Key identifies a draggable board entity. List and task ids share one
// numeric space, so the kind is part of the identity.
type Key struct {
	Kind Kind
	ID   int64
}

// ListKey returns the key of list id.
func ListKey(id int64) Key { return Key{Kind: KindList, ID: id} }

// TaskKey returns the key of task id.
func TaskKey(id int64) Key { return Key{Kind: KindTask, ID: id} }

func (k Key) IsList() bool { return k.Kind == KindList }
func (k Key) IsTask() bool { return k.Kind == KindTask }

// String renders the legacy "list-<id>" / "task-<id>" form.
func (k Key) String() string {
	return fmt.Sprintf("%s-%d", k.Kind, k.ID)
}

// ParseKey parses the legacy string form.
func ParseKey(s string) (Key, error) {
	prefix, rawID, ok := strings.Cut(s, "-")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	switch prefix {
	case "list":
		return ListKey(id), nil
	case "task":
		return TaskKey(id), nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
}

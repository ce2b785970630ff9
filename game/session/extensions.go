// game/session/extensions.go
package session

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

// ExtensionKey names a per-player feature flag or cosmetic setting.
type ExtensionKey string

// Recognized extension keys.
const (
	ExtDamageSkin ExtensionKey = "damage_skin"
)

// DefaultDamageSkin is used when a player never picked one.
const DefaultDamageSkin = "default"

const maxExtensions = 16

var (
	ErrUnknownExtension = errors.New("unknown extension key")
	ErrInvalidExtension = errors.New("invalid extension value")
	ErrTooManyExtension = errors.New("extension store is full")
)

var skinPattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// validators lists every recognized key. Keys not listed here are refused.
var validators = map[ExtensionKey]func(string) error{
	ExtDamageSkin: func(v string) error {
		if !skinPattern.MatchString(v) {
			return fmt.Errorf("%w: damage skin %q", ErrInvalidExtension, v)
		}
		return nil
	},
}

// Extensions is a small bounded key/value store restricted to recognized keys.
type Extensions struct {
	values map[ExtensionKey]string
}

// Set validates and stores v under k.
func (e *Extensions) Set(k ExtensionKey, v string) error {
	validate, ok := validators[k]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExtension, k)
	}
	if err := validate(v); err != nil {
		return err
	}
	if e.values == nil {
		e.values = make(map[ExtensionKey]string)
	}
	if _, exists := e.values[k]; !exists && len(e.values) >= maxExtensions {
		return ErrTooManyExtension
	}
	e.values[k] = v
	return nil
}

// Get returns the stored value.
func (e *Extensions) Get(k ExtensionKey) (string, bool) {
	v, ok := e.values[k]
	return v, ok
}

// Delete removes k.
func (e *Extensions) Delete(k ExtensionKey) {
	delete(e.values, k)
}

// Keys returns the stored keys in sorted order.
func (e *Extensions) Keys() []ExtensionKey {
	keys := make([]ExtensionKey, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Map copies the store into its persisted form.
func (e *Extensions) Map() map[string]string {
	if len(e.values) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[string(k)] = v
	}
	return out
}

func extensionsFromMap(owner uuid.UUID, m map[string]string) Extensions {
	var e Extensions
	for k, v := range m {
		if err := e.Set(ExtensionKey(k), v); err != nil {
			log.Printf("WARNING: Session %s: dropping stored extension %q: %v", owner, k, err)
		}
	}
	return e
}

// DamageSkin returns the selected damage skin or the default.
func (r *Record) DamageSkin() string {
	if v, ok := r.Extensions.Get(ExtDamageSkin); ok {
		return v
	}
	return DefaultDamageSkin
}

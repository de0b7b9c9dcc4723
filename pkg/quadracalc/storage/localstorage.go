//go:build js && wasm

package storage

import (
	"fmt"
	"syscall/js"
)

// LocalStorage stores blobs in window.localStorage under an optional prefix.
type LocalStorage struct {
	ls     js.Value
	prefix string
}

func NewLocalStorage(prefix string) (*LocalStorage, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return nil, ErrUnavailable
	}
	return &LocalStorage{ls: ls, prefix: prefix}, nil
}

func (s *LocalStorage) Get(key string) (string, error) {
	v := s.ls.Call("getItem", s.prefix+key)
	if v.IsNull() || v.IsUndefined() {
		return "", ErrNotFound
	}
	return v.String(), nil
}

// Set writes a value; a thrown QuotaExceededError becomes ErrQuotaExceeded.
func (s *LocalStorage) Set(key, value string) (err error) {
	if len(value) > MaxBlobBytes {
		return ErrQuotaExceeded
	}
	defer func() {
		if r := recover(); r != nil {
			err = fromJSPanic(r)
		}
	}()
	s.ls.Call("setItem", s.prefix+key, value)
	return nil
}

func (s *LocalStorage) Delete(key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fromJSPanic(r)
		}
	}()
	s.ls.Call("removeItem", s.prefix+key)
	return nil
}

func (s *LocalStorage) Keys() ([]string, error) {
	n := s.ls.Get("length").Int()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k := s.ls.Call("key", i)
		if k.IsNull() {
			continue
		}
		name := k.String()
		if len(name) < len(s.prefix) || name[:len(s.prefix)] != s.prefix {
			continue
		}
		keys = append(keys, name[len(s.prefix):])
	}
	return keys, nil
}

func (s *LocalStorage) Close() error {
	return nil
}

func fromJSPanic(r any) error {
	jsErr, ok := r.(js.Error)
	if !ok {
		return fmt.Errorf("localStorage: %v", r)
	}
	if name := jsErr.Value.Get("name"); name.Type() == js.TypeString && name.String() == "QuotaExceededError" {
		return ErrQuotaExceeded
	}
	return fmt.Errorf("localStorage: %w", jsErr)
}

// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"testing"
)

func TestNewRegistryLength(t *testing.T) {
	registry := New[string, int]()

	if registry.Length() != 0 {
		t.Fatalf("New registry must have a length of 0.")
	}
}

func TestRegistryGetAfterRegister(t *testing.T) {
	registry := New[string, int]()

	const key = "key"
	const value = 42

	if err := registry.Register(key, value); err != nil {
		t.Fatal(err)
	}

	outValue, exists := registry.Get(key)
	if !exists {
		t.Fatalf("No value found for registered key %q", key)
	}

	if outValue != value {
		t.Fatalf("Registry returned value %v, expected %v.", outValue, value)
	}
}

func TestRegisterDuplicateKey(t *testing.T) {
	registry := New[string, int]()

	const key = "key"
	if err := registry.Register(key, 1); err != nil {
		t.Fatal(err)
	}

	err := registry.Register(key, 2)
	if !errors.Is(err, ErrKeyAlreadyRegistered) {
		t.Fatalf("Registering a duplicate key must fail with ErrKeyAlreadyRegistered, got %v", err)
	}
}

func TestMustRegisterPanicsOnDuplicateKey(t *testing.T) {
	registry := New[string, int]()

	const key = "key"
	registry.MustRegister(key, 1)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustRegister did not panic when registering duplicate key.")
		}
	}()

	registry.MustRegister(key, 1)
}

func TestUnregisterReducesLength(t *testing.T) {
	registry := New[string, int]()

	const key = "key"
	registry.MustRegister(key, 1)
	registry.Unregister(key)

	if registry.Exists(key) {
		t.Fatalf("Key %q still exists after Unregister.", key)
	}

	if registry.Length() != 0 {
		t.Fatalf("After registering and unregistering a single item, registry must have a length of 0.")
	}
}

func TestOverwriteReplacesValue(t *testing.T) {
	registry := New[string, int]()

	const key = "key"
	registry.MustRegister(key, 1)
	registry.Overwrite(key, 2)

	value, ok := registry.Get(key)
	if !ok {
		t.Fatalf("No value found for key %q after Overwrite.", key)
	}

	if value != 2 {
		t.Fatalf("Overwrite did not replace the value, got %v", value)
	}
}

func TestRangeStopsOnStopIteration(t *testing.T) {
	registry := New[string, int]()
	registry.MustRegister("key", 1)

	rangeFunc := func(_ string, _ int) error {
		return ErrStopIteration
	}

	if err := registry.Range(rangeFunc); err != nil {
		t.Fatalf("Range didn't explicitly stop at ErrStopIteration error.")
	}
}

func TestRangeContinuesOnErrContinue(t *testing.T) {
	registry := New[string, int]()
	registry.MustRegister("a", 1)
	registry.MustRegister("b", 2)

	seen := 0
	rangeFunc := func(_ string, _ int) error {
		seen++

		return ErrContinue
	}

	if err := registry.Range(rangeFunc); err != nil {
		t.Fatalf("Range must not propagate ErrContinue, got %v", err)
	}

	if seen != 2 {
		t.Fatalf("Range visited %d items, expected 2", seen)
	}
}

func TestRangePassesError(t *testing.T) {
	registry := New[string, int]()
	registry.MustRegister("key", 1)

	err := errors.New("custom error")

	rangeFunc := func(_ string, _ int) error {
		return err
	}

	out := registry.Range(rangeFunc)
	if out != err {
		t.Fatalf("Range encountered an error and didn't return it.")
	}
}

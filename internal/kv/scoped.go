package kv

import (
	"context"
	"sort"
	"strings"
)

// Namespace provides access to a KV store with every key prefixed by
// "namespace:".
type Namespace struct {
	store  KV
	prefix string
}

// Scoped returns a Namespace that prefixes all keys with "namespace:".
func Scoped(store KV, namespace string) *Namespace {
	return &Namespace{
		store:  store,
		prefix: namespace + ":",
	}
}

// Key returns the full storage key for name.
func (n *Namespace) Key(name string) string {
	return n.prefix + name
}

// Get retrieves a value by key.
func (n *Namespace) Get(ctx context.Context, name string) (string, error) {
	return n.store.Get(ctx, n.prefix+name)
}

// Set stores a value.
func (n *Namespace) Set(ctx context.Context, name string, value string) error {
	return n.store.Set(ctx, n.prefix+name, value)
}

// Delete removes a key.
func (n *Namespace) Delete(ctx context.Context, name string) error {
	return n.store.Delete(ctx, n.prefix+name)
}

// Names returns the unprefixed keys in this namespace, sorted.
func (n *Namespace) Names(ctx context.Context) ([]string, error) {
	keys, err := n.store.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, k := range keys {
		if rest, ok := strings.CutPrefix(k, n.prefix); ok {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

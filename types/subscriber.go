package types

import (
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Callback is the handler signature a subscriber registers for payloads of
// type T.
type Callback[T any] func(payload T)

type SubscriberItem[T any] struct {
	UID      string
	Callback Callback[T]
}

// SubscriberItemMap groups subscribers by key. Both the keys and the items of
// each key keep their insertion order, and a key never maps to an empty group.
// The zero value is ready to use. It is not safe for concurrent use.
type SubscriberItemMap[T any] struct {
	items *orderedmap.OrderedMap[string, []SubscriberItem[T]]
}

func NewSubscriberItemMap[T any]() *SubscriberItemMap[T] {
	return &SubscriberItemMap[T]{
		items: orderedmap.New[string, []SubscriberItem[T]](),
	}
}

// Add registers cb under key and returns the uid identifying the subscription.
func (m *SubscriberItemMap[T]) Add(key string, cb Callback[T]) string {
	uid := uuid.NewString()
	m.Put(key, SubscriberItem[T]{UID: uid, Callback: cb})
	return uid
}

func (m *SubscriberItemMap[T]) Put(key string, item SubscriberItem[T]) {
	if m.items == nil {
		m.items = orderedmap.New[string, []SubscriberItem[T]]()
	}
	group, _ := m.items.Get(key)
	m.items.Set(key, append(group, item))
}

// Remove drops the subscription with the given uid and returns the key it was
// registered under. The key itself is pruned once its last item is gone.
func (m *SubscriberItemMap[T]) Remove(uid string) (string, bool) {
	if m.items == nil {
		return "", false
	}
	for pair := m.items.Oldest(); pair != nil; pair = pair.Next() {
		for i, item := range pair.Value {
			if item.UID != uid {
				continue
			}

			key := pair.Key
			group := make([]SubscriberItem[T], 0, len(pair.Value)-1)
			group = append(group, pair.Value[:i]...)
			group = append(group, pair.Value[i+1:]...)
			if len(group) == 0 {
				m.items.Delete(key)
			} else {
				m.items.Set(key, group)
			}
			return key, true
		}
	}
	return "", false
}

func (m *SubscriberItemMap[T]) Items(key string) []SubscriberItem[T] {
	if m.items == nil {
		return nil
	}
	group, _ := m.items.Get(key)
	return append([]SubscriberItem[T](nil), group...)
}

func (m *SubscriberItemMap[T]) Has(key string) bool {
	if m.items == nil {
		return false
	}
	_, ok := m.items.Get(key)
	return ok
}

func (m *SubscriberItemMap[T]) Keys() []string {
	if m.items == nil {
		return nil
	}
	keys := make([]string, 0, m.items.Len())
	for pair := m.items.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of keys.
func (m *SubscriberItemMap[T]) Len() int {
	if m.items == nil {
		return 0
	}
	return m.items.Len()
}

// Notify calls every callback registered under key, in registration order,
// and returns how many were called.
func (m *SubscriberItemMap[T]) Notify(key string, payload T) int {
	items := m.Items(key)
	for _, item := range items {
		item.Callback(payload)
	}
	return len(items)
}

package store

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := m.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get() = %q, want %q", got, "v")
	}

	missing, err := m.Get(ctx, []byte("nope"))
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %q, %v; want nil, nil", missing, err)
	}
}

func TestMemory_ValueIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	value := []byte("original")
	_ = m.Set(ctx, []byte("k"), value)
	value[0] = 'X'

	got, _ := m.Get(ctx, []byte("k"))
	if string(got) != "original" {
		t.Errorf("stored value mutated through caller slice: %q", got)
	}

	got[0] = 'Y'
	again, _ := m.Get(ctx, []byte("k"))
	if string(again) != "original" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestMemory_SetEXExpires(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.SetEX(ctx, []byte("k"), 20*time.Millisecond, []byte("v"))
	ttl, _ := m.TTL(ctx, []byte("k"))
	if ttl <= 0 || ttl > 20*time.Millisecond {
		t.Errorf("TTL() = %v, want within (0, 20ms]", ttl)
	}

	time.Sleep(40 * time.Millisecond)

	if ok, _ := m.Exists(ctx, []byte("k")); ok {
		t.Error("key should have expired")
	}
	if ttl, _ := m.TTL(ctx, []byte("k")); ttl != Missing {
		t.Errorf("TTL(expired) = %v, want Missing", ttl)
	}
}

func TestMemory_SetNX(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, _ := m.SetNX(ctx, []byte("k"), []byte("first"))
	if !ok {
		t.Fatal("first SetNX should succeed")
	}
	ok, _ = m.SetNX(ctx, []byte("k"), []byte("second"))
	if ok {
		t.Fatal("second SetNX should fail")
	}
	got, _ := m.Get(ctx, []byte("k"))
	if string(got) != "first" {
		t.Errorf("Get() = %q, want first", got)
	}
}

func TestMemory_GetSetAppend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	old, _ := m.GetSet(ctx, []byte("k"), []byte("a"))
	if old != nil {
		t.Errorf("GetSet(new) old = %q, want nil", old)
	}
	old, _ = m.GetSet(ctx, []byte("k"), []byte("b"))
	if string(old) != "a" {
		t.Errorf("GetSet() old = %q, want a", old)
	}

	n, _ := m.Append(ctx, []byte("k"), []byte("cd"))
	if n != 3 {
		t.Errorf("Append() = %d, want 3", n)
	}
	got, _ := m.Get(ctx, []byte("k"))
	if string(got) != "bcd" {
		t.Errorf("Get() = %q, want bcd", got)
	}
}

func TestMemory_DelAndBatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.MSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")})

	values, _ := m.MGet(ctx, []byte("a"), []byte("missing"), []byte("b"))
	if len(values) != 3 || string(values[0]) != "1" || values[1] != nil || string(values[2]) != "2" {
		t.Errorf("MGet() = %q", values)
	}

	removed, _ := m.Del(ctx, []byte("a"), []byte("missing"))
	if removed != 1 {
		t.Errorf("Del() = %d, want 1", removed)
	}
}

func TestMemory_ExpirePersist(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if ok, _ := m.Expire(ctx, []byte("k"), time.Minute); ok {
		t.Error("Expire(missing) should report false")
	}

	_ = m.Set(ctx, []byte("k"), []byte("v"))
	if ok, _ := m.Persist(ctx, []byte("k")); ok {
		t.Error("Persist without deadline should report false")
	}
	if ok, _ := m.Expire(ctx, []byte("k"), time.Minute); !ok {
		t.Error("Expire(existing) should report true")
	}
	if ok, _ := m.Persist(ctx, []byte("k")); !ok {
		t.Error("Persist with deadline should report true")
	}
	if ttl, _ := m.TTL(ctx, []byte("k")); ttl != NoExpiry {
		t.Errorf("TTL() = %v, want NoExpiry", ttl)
	}
}

func TestMemory_KeysRenameFlush(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, []byte("user:1"), []byte("a"))
	_ = m.Set(ctx, []byte("user:2"), []byte("b"))
	_ = m.Set(ctx, []byte("order:1"), []byte("c"))

	keys, err := m.Keys(ctx, []byte("user:*"))
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 2 || string(keys[0]) != "user:1" || string(keys[1]) != "user:2" {
		t.Errorf("Keys() = %q", keys)
	}

	if _, err := m.Keys(ctx, []byte("[")); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("Keys(bad pattern) error = %v, want ErrInvalidPattern", err)
	}

	if err := m.Rename(ctx, []byte("order:1"), []byte("order:9")); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}
	if err := m.Rename(ctx, []byte("order:1"), []byte("x")); !errors.Is(err, ErrNoSuchKey) {
		t.Errorf("Rename(missing) error = %v, want ErrNoSuchKey", err)
	}

	_ = m.FlushDB(ctx)
	if m.Len() != 0 {
		t.Errorf("Len() after FlushDB = %d, want 0", m.Len())
	}
}

func TestMemory_IncrDecr(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, _ := m.IncrBy(ctx, []byte("c"), 5)
	if n != 5 {
		t.Errorf("IncrBy() = %d, want 5", n)
	}
	n, _ = m.DecrBy(ctx, []byte("c"), 2)
	if n != 3 {
		t.Errorf("DecrBy() = %d, want 3", n)
	}
	got, _ := m.Get(ctx, []byte("c"))
	if string(got) != "3" {
		t.Errorf("stored counter = %q, want 3", got)
	}

	_ = m.Set(ctx, []byte("s"), []byte("text"))
	if _, err := m.IncrBy(ctx, []byte("s"), 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("IncrBy(non-int) error = %v, want ErrTypeMismatch", err)
	}
}

func TestMemory_ConcurrentIncr(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.IncrBy(ctx, []byte("c"), 1)
		}()
	}
	wg.Wait()

	got, _ := m.Get(ctx, []byte("c"))
	if string(got) != "50" {
		t.Errorf("counter = %q, want 50", got)
	}
}

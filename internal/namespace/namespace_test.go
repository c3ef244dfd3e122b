package namespace

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestNewIsSeeded(t *testing.T) {
	c := New()

	v, ok := c.Get(KeyName)
	if !ok || v != MainName {
		t.Errorf("Get(%q) = %v, %v; want %q, true", KeyName, v, ok, MainName)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
	if c.Has(KeyReturn) {
		t.Errorf("new context has %q", KeyReturn)
	}
}

func TestSetGetDelete(t *testing.T) {
	c := New()

	c.Set("x", 1)
	c.Set(KeyReturn, "")
	if got, want := c.Keys(), []string{KeyName, KeyReturn, "x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	c.Set("x", 2)
	if v, _ := c.Get("x"); v != 2 {
		t.Errorf("Get(x) = %v, want 2", v)
	}

	c.Delete("x")
	c.Delete("missing")
	if c.Has("x") {
		t.Error("x still present after Delete")
	}
	if n := c.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestCompareAndDelete(t *testing.T) {
	c := New()
	first, second := new(int), new(int)

	c.Set("target", second)
	if c.CompareAndDelete("target", first) {
		t.Error("deleted an entry holding a different value")
	}
	if !c.Has("target") {
		t.Fatal("entry removed by a mismatched CompareAndDelete")
	}
	if !c.CompareAndDelete("target", second) {
		t.Error("CompareAndDelete with the current value did not delete")
	}
	if c.CompareAndDelete("target", second) {
		t.Error("CompareAndDelete on a missing entry reported success")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			name := fmt.Sprintf("w%d", w)
			for i := 0; i < 500; i++ {
				c.Set(name, i)
				c.Get(name)
				c.Has(KeyReturn)
				c.Keys()
				c.Len()
			}
			c.Delete(name)
		}(w)
	}
	wg.Wait()

	if n := c.Len(); n != 1 {
		t.Errorf("Len() = %d after workers finished, want 1", n)
	}
}

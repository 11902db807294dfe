package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainMemory_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	dm := NewDomainMemory(time.Hour)
	defer dm.Stop()
	dm.now = func() time.Time { return now }

	dm.Set("www.fragrantica.com", "rod-stealth")
	assert.Equal(t, "rod-stealth", dm.Get("www.fragrantica.com"))

	now = now.Add(59 * time.Minute)
	assert.Equal(t, "rod-stealth", dm.Get("www.fragrantica.com"))

	now = now.Add(2 * time.Minute)
	assert.Empty(t, dm.Get("www.fragrantica.com"))
}

func TestDomainMemory_DeleteAndPrune(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	dm := NewDomainMemory(time.Minute)
	defer dm.Stop()
	dm.now = func() time.Time { return now }

	dm.Set("a.example", "http")
	dm.Set("b.example", "rod")
	dm.Delete("a.example")
	assert.Empty(t, dm.Get("a.example"))

	now = now.Add(2 * time.Minute)
	dm.prune()
	_, ok := dm.store.Load("b.example")
	assert.False(t, ok)
}

func TestDomainMemory_StopTwice(t *testing.T) {
	dm := NewDomainMemory(time.Minute)
	dm.Stop()
	assert.NotPanics(t, dm.Stop)
}

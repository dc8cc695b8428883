package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

func TestFingerprintStableAndDiscriminating(t *testing.T) {
	msgs := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "  hello  "},
	}
	a := Fingerprint("gpt-4o", msgs, "private")
	b := Fingerprint("gpt-4o", msgs, "private")
	require.Equal(t, a, b)

	// Whitespace around content is normalized away.
	trimmed := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hello"},
	}
	require.Equal(t, a, Fingerprint("gpt-4o", trimmed, "private"))

	require.NotEqual(t, a, Fingerprint("gpt-4o-mini", msgs, "private"))
	require.NotEqual(t, a, Fingerprint("gpt-4o", msgs, "public"))
	require.NotEqual(t, a, Fingerprint("gpt-4o", msgs[:1], "private"))
}

func TestCacheGetSetAndExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	_, ok := c.Get("k")
	require.False(t, ok)

	c.Set("k", llm.ChatResponse{Message: llm.ChatMessage{Content: "v"}})
	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", got.Message.Content)

	// Within TTL.
	now = now.Add(59 * time.Second)
	_, ok = c.Get("k")
	require.True(t, ok)

	// Expired entries are dropped on read.
	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCacheSweep(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", llm.ChatResponse{})
	now = now.Add(30 * time.Second)
	c.Set("b", llm.ChatResponse{})

	now = now.Add(45 * time.Second) // "a" is 75s old, "b" 45s
	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())

	_, ok := c.Get("b")
	require.True(t, ok)
}

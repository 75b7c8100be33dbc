package navigator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirect_UsesContextSink(t *testing.T) {
	var got string
	ctx := WithRedirect(context.Background(), func(url string) { got = url })

	err := NewRedirect(nil).Navigate(ctx, "https://api.example.com/auth/google")

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/auth/google", got)
}

func TestRedirect_NoSinkNoFallback(t *testing.T) {
	err := NewRedirect(nil).Navigate(context.Background(), "https://api.example.com/auth/google")

	assert.True(t, errors.Is(err, ErrNoRedirect))
}

func TestRedirect_FallsBackToBrowser(t *testing.T) {
	var out bytes.Buffer
	var opened string
	browser := &Browser{out: &out, open: func(url string) { opened = url }}

	err := NewRedirect(browser).Navigate(context.Background(), "https://api.example.com/auth/google")

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/auth/google", opened)
	assert.Contains(t, out.String(), "Opening https://api.example.com/auth/google")
}

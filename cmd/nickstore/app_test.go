package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	log, _ := test.NewNullLogger()
	app := newApp(log)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"nickstore", "--data-dir", dir, "--tz", "UTC"}, args...))
	return out.String(), err
}

func TestCLI_CartCheckoutHistory(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "cart", "add", "--game", "X", "--slug", "x", "--denom", "100 Gems",
		"--price", "10", "--user", "111", "--product", "x-100")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "added "))

	_, err = run(t, dir, "cart", "add", "--game", "Y", "--slug", "mobile-legends", "--denom", "86 Diamonds",
		"--price", "5.50", "--user", "222", "--zone", "3333", "--product", "ml-86")
	require.NoError(t, err)

	out, err = run(t, dir, "cart", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "222 (3333)")
	assert.Contains(t, out, "2 items  total RM 15.50")

	out, err = run(t, dir, "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "RM 15.50")
	assert.Contains(t, out, "https://wa.me/60197661697?text=")

	out, err = run(t, dir, "cart", "list")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", out)

	out, err = run(t, dir, "history", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "2 items  RM 15.50  pending")

	orderID := strings.Fields(lines[0])[0]
	out, err = run(t, dir, "history", "show", orderID)
	require.NoError(t, err)
	assert.Contains(t, out, "*TOTAL: RM 15.50*")

	_, err = run(t, dir, "history", "clear")
	require.NoError(t, err)
	out, err = run(t, dir, "history", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCLI_EmptyCheckout(t *testing.T) {
	out, err := run(t, t.TempDir(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", out)
}

func TestCLI_RejectsInvalidItem(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "cart", "add", "--game", "Y", "--slug", "mobile-legends", "--denom", "86",
		"--price", "5", "--user", "222", "--product", "ml-86")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZoneID")

	_, err = run(t, dir, "cart", "add", "--game", "X", "--slug", "x", "--denom", "1",
		"--price", "abc", "--user", "1", "--product", "p")
	require.Error(t, err)

	out, err := run(t, dir, "cart", "list")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", out)
}

func TestCLI_RemoveAndClear(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "cart", "add", "--game", "X", "--slug", "x", "--denom", "1",
		"--price", "1", "--user", "1", "--product", "p")
	require.NoError(t, err)
	id := strings.TrimSpace(strings.TrimPrefix(out, "added "))

	out, err = run(t, dir, "cart", "remove", "999")
	require.NoError(t, err)
	assert.Equal(t, "no item 999\n", out)

	out, err = run(t, dir, "cart", "remove", id)
	require.NoError(t, err)
	assert.Equal(t, "removed "+id+"\n", out)

	_, err = run(t, dir, "cart", "remove", "nope")
	assert.Error(t, err)
}

func TestCLI_Theme(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "theme", "get")
	require.NoError(t, err)
	assert.Equal(t, "dark\n", out)

	out, err = run(t, dir, "theme", "toggle")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	out, err = run(t, dir, "theme", "get")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	_, err = run(t, dir, "theme", "set", "sepia")
	assert.Error(t, err)

	_, err = run(t, dir, "theme", "set", "dark")
	require.NoError(t, err)
	out, _ = run(t, dir, "theme", "get")
	assert.Equal(t, "dark\n", out)
}

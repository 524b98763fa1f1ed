package fixtures

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestLoad_ArrayForm(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "add.json", `[[[3, 5], 8], [[0, 0], 0]]`)

	set, err := NewStore(dir).Load("add")
	require.NoError(t, err)
	require.Len(t, set.Cases, 2)

	assert.Equal(t, "add", set.Target)
	assert.Equal(t, []json.RawMessage{raw("3"), raw("5")}, set.Cases[0].Args)
	assert.Equal(t, raw("8"), set.Cases[0].Expected)
	assert.Equal(t, raw("0"), set.Cases[1].Expected)
}

func TestLoad_JSONLinesForm(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "flatten.jsonl", "[[[[1, [2, 3]], 4]], [1, 2, 3, 4]]\n\n[[[]], []]\n")

	set, err := NewStore(dir).Load("flatten")
	require.NoError(t, err)
	require.Len(t, set.Cases, 2)
	assert.Equal(t, raw("[1, 2, 3, 4]"), set.Cases[0].Expected)
	assert.Equal(t, []json.RawMessage{raw("[]")}, set.Cases[1].Args)
}

func TestLoad_OrderIsStable(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "bitcount.jsonl", "[[127], 7]\n[[128], 1]\n[[3005], 9]\n")

	set, err := NewStore(dir).Load("bitcount")
	require.NoError(t, err)
	var got []string
	for _, c := range set.Cases {
		got = append(got, string(c.Expected))
	}
	assert.Equal(t, []string{"7", "1", "9"}, got)
	assert.Equal(t, "case_2", ID(2))
}

func TestLoad_ExtensionSelectsEncoding(t *testing.T) {
	// One line whose arguments and expected value are both lists of pairs.
	const content = "[[[1, 2], [3, 4]], [[5, 6], [7, 8]]]\n"

	t.Run("jsonl is one case per line", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "pairs.jsonl", content)

		set, err := NewStore(dir).Load("pairs")
		require.NoError(t, err)
		require.Len(t, set.Cases, 1)
		assert.Equal(t, []json.RawMessage{raw("[1, 2]"), raw("[3, 4]")}, set.Cases[0].Args)
		assert.Equal(t, raw("[[5, 6], [7, 8]]"), set.Cases[0].Expected)
	})

	t.Run("json is a whole array", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "pairs.json", content)

		set, err := NewStore(dir).Load("pairs")
		require.NoError(t, err)
		require.Len(t, set.Cases, 2)
		assert.Equal(t, raw("[3, 4]"), set.Cases[0].Expected)
	})
}

func TestLoad_BothEncodingsIsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "add.json", `[[[3, 5], 8]]`)
	writeFixture(t, dir, "add.jsonl", "[[3, 5], 8]\n")

	_, err := NewStore(dir).Load("add")
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func TestLoad_MultiLineArrayFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "add.json", "[\n  [[3, 5], 8],\n  [[0, 0], 0]\n]\n")

	set, err := NewStore(dir).Load("add")
	require.NoError(t, err)
	assert.Len(t, set.Cases, 2)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoad_InvalidNameIsNotFound(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"../etc/passwd", "with-dash", "func", ""} {
		_, err := NewStore(dir).Load(name)
		assert.True(t, errors.Is(err, ErrNotFound), "name %q", name)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"object", "sort.json", `{"cases": 3}`},
		{"flat list", "sort.json", `[1, 2, 3]`},
		{"triple", "sort.json", `[[[1], 2, 3]]`},
		{"lines in an array file", "sort.json", "[[1], 1]\n[[2], 2]\n"},
		{"arguments not a sequence", "sort.jsonl", "[5, 5]\n"},
		{"bad json line", "sort.jsonl", "[[1], 1]\n[[2], \n"},
		{"empty file", "sort.jsonl", "  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFixture(t, dir, tt.file, tt.content)

			_, err := NewStore(dir).Load("sort")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "gcd", TargetName("/programs/gcd.go"))
	assert.Equal(t, "knapsack", TargetName("knapsack.go"))
	assert.True(t, IsIdentifier("shortest_path_length"))
	assert.False(t, IsIdentifier("2sum"))
}

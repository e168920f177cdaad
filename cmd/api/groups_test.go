package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go-vboa-hmi-api/internal/groups"
)

func runGroupsCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		groupsDelimiter = groups.DefaultDelimiter
		groupsFormat = "json"
		rootCmd.SetIn(nil)
	})

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--no-color", "groups"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGroupsCommand_JSONFromStdin(t *testing.T) {
	out, err := runGroupsCmd(t, "A;B;C\n\nA;B;D\r\n")
	require.NoError(t, err)

	var got []groups.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 4)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, []string{"A;B;C", "A;B;D"}, got[1].ChildIDs)
	assert.Equal(t, "A;B;D", got[3].ID)
	assert.Empty(t, got[3].ChildIDs)
}

func TestGroupsCommand_YAMLWithDelimiterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.txt")
	require.NoError(t, os.WriteFile(path, []byte("x/y\nz\n"), 0o600))

	out, err := runGroupsCmd(t, "", "--delimiter", "/", "--format", "yaml", path)
	require.NoError(t, err)

	var got []groups.Descriptor
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "x/y", got[1].ID)
	assert.Equal(t, 2, got[1].Depth)
	assert.Equal(t, "z", got[2].ID)
}

func TestGroupsCommand_Tree(t *testing.T) {
	out, err := runGroupsCmd(t, "EVENTS;PLANNING\nEVENTS;ACQUISITION\n", "-f", "tree")
	require.NoError(t, err)

	want := "EVENTS  (EVENTS)\n" +
		"  PLANNING  (EVENTS;PLANNING)\n" +
		"  ACQUISITION  (EVENTS;ACQUISITION)\n"
	assert.Equal(t, want, out)
}

func TestGroupsCommand_Errors(t *testing.T) {
	_, err := runGroupsCmd(t, "a\n", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, err = runGroupsCmd(t, "", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

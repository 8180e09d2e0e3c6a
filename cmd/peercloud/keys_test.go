package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestKeysCommands(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "peer.toml")
	c := DefaultConfig()
	c.KeyStore = filepath.Join(dir, "keys.db")
	require.NoError(t, c.WriteTo(conf))

	out, err := execute(t, "-c", conf, "keys", "gen", "-s", "rsa", "cloud")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "cloud rsa-1024:"), out)

	out, err = execute(t, "-c", conf, "keys", "export", "cloud")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	require.Equal(t, "rsa", fields[0])

	_, err = execute(t, "-c", conf, "keys", "import", "copy", fields[0], fields[1])
	require.NoError(t, err)
	_, err = execute(t, "-c", conf, "keys", "import", "bad", "rsa", "zz")
	require.Error(t, err)

	out, err = execute(t, "-c", conf, "keys", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Fields(lines[0])[1], strings.Fields(lines[1])[1])

	_, err = execute(t, "-c", conf, "keys", "delete", "copy")
	require.NoError(t, err)
	_, err = execute(t, "-c", conf, "keys", "delete", "copy")
	require.Error(t, err)

	written := filepath.Join(dir, "written.toml")
	_, err = execute(t, "-c", conf, "config", written)
	require.NoError(t, err)
	c2, err := LoadConfig(written)
	require.NoError(t, err)
	require.Equal(t, c.KeyStore, c2.KeyStore)
	_, err = os.Stat(written)
	require.NoError(t, err)
}

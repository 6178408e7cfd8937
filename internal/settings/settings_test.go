package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the loader away from any real config file, home
// directory or environment the test host might carry. Returns the
// substitute home.
func isolate(t *testing.T, root string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("KQC_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("KQC_ROOT_PATH", root)
	return home
}

func TestLoad(t *testing.T) {
	t.Run("derives the output paths from the root", func(t *testing.T) {
		// Arrange
		root := t.TempDir()
		isolate(t, root)

		// Act
		s, err := Load()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, root, s.RootPath)
		assert.Equal(t, filepath.Join(root, "tmp"), s.TmpPath)
		assert.Equal(t, filepath.Join(root, "tmp", "kqc.db"), s.LedgerPath)
		assert.Empty(t, s.ClustersFile)
	})

	t.Run("reads the config file named by KQC_CONFIG", func(t *testing.T) {
		root := t.TempDir()
		cfg := filepath.Join(t.TempDir(), "kqc.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("root_path: "+root+"\nklayout_exe: /opt/klayout/bin/klayout\n"), 0o644))
		t.Setenv("KQC_CONFIG", cfg)
		t.Setenv("KQC_ROOT_PATH", "")

		s, err := Load()

		require.NoError(t, err)
		assert.Equal(t, root, s.RootPath)
		assert.Equal(t, "/opt/klayout/bin/klayout", s.KLayoutExe)
	})

	t.Run("environment wins over the config file", func(t *testing.T) {
		fileRoot := t.TempDir()
		envTmp := filepath.Join(t.TempDir(), "elsewhere")
		cfg := filepath.Join(t.TempDir(), "kqc.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("root_path: "+fileRoot+"\ntmp_path: "+filepath.Join(fileRoot, "file-tmp")+"\n"), 0o644))
		t.Setenv("KQC_CONFIG", cfg)
		t.Setenv("KQC_TMP_PATH", envTmp)

		s, err := Load()

		require.NoError(t, err)
		assert.Equal(t, fileRoot, s.RootPath, "file value survives where env is silent")
		assert.Equal(t, envTmp, s.TmpPath, "env value wins over the file")
	})

	t.Run("binds KLAYOUT_HOME without the prefix", func(t *testing.T) {
		root := t.TempDir()
		isolate(t, root)
		home := filepath.Join(root, ".klayout-test")
		t.Setenv("KLAYOUT_HOME", home)

		s, err := Load()

		require.NoError(t, err)
		assert.Equal(t, home, s.KLayoutHome)
	})

	t.Run("picks up clusters.yaml beside the root", func(t *testing.T) {
		root := t.TempDir()
		isolate(t, root)
		profiles := filepath.Join(root, "clusters.yaml")
		require.NoError(t, os.WriteFile(profiles, []byte("clusters: {}\n"), 0o644))

		s, err := Load()

		require.NoError(t, err)
		assert.Equal(t, profiles, s.ClustersFile)
	})

	t.Run("falls back to the settings dir for clusters.yaml", func(t *testing.T) {
		root := t.TempDir()
		home := isolate(t, root)
		dir := filepath.Join(home, ".config", "kqc")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		profiles := filepath.Join(dir, "clusters.yaml")
		require.NoError(t, os.WriteFile(profiles, []byte("clusters: {}\n"), 0o644))

		s, err := Load()

		require.NoError(t, err)
		assert.Equal(t, profiles, s.ClustersFile)
	})

	t.Run("root clusters.yaml wins over the settings dir", func(t *testing.T) {
		root := t.TempDir()
		home := isolate(t, root)
		dir := filepath.Join(home, ".config", "kqc")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "clusters.yaml"), []byte("clusters: {}\n"), 0o644))
		inRoot := filepath.Join(root, "clusters.yaml")
		require.NoError(t, os.WriteFile(inRoot, []byte("clusters: {}\n"), 0o644))

		s, err := Load()

		require.NoError(t, err)
		assert.Equal(t, inRoot, s.ClustersFile)
	})

	t.Run("rejects a config file with mistyped fields", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "kqc.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("root_path:\n  nested: true\n"), 0o644))
		t.Setenv("KQC_CONFIG", cfg)

		_, err := Load()

		require.ErrorContains(t, err, "unmarshal settings")
	})
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	s := &Settings{RootPath: root, TmpPath: filepath.Join(root, "tmp")}

	require.NoError(t, s.EnsureDirs())
	require.NoError(t, s.EnsureDirs(), "repeat calls must not fail")

	assert.DirExists(t, s.TmpPath)
}

func TestHostEnv(t *testing.T) {
	s := &Settings{RootPath: "/r", TmpPath: "/r/tmp", KLayoutHome: "/h/.klayout"}

	env := s.HostEnv()

	assert.Contains(t, env, "KQC_ROOT_PATH=/r")
	assert.Contains(t, env, "KQC_TMP_PATH=/r/tmp")
	assert.Contains(t, env, "KLAYOUT_HOME=/h/.klayout")
}

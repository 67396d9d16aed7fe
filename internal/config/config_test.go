package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.InDelta(t, 1.0, cfg.Ranker.LexicalWeight+cfg.Ranker.StructuralWeight+cfg.Ranker.VectorWeight, 0.001)
	assert.Equal(t, 4, cfg.Ranker.MinTokenLength)
	assert.Equal(t, "default", cfg.Budget.TargetModel)
	assert.Equal(t, 4.0, cfg.CharsPerToken("default"))
	assert.Equal(t, 3, cfg.Agent.MaxDepth)
	assert.True(t, cfg.Agent.EnableSubAgents)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoProjectFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Budget.MaxTokens, cfg.Budget.MaxTokens)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	stateDir := filepath.Join(dir, ".contextos")
	require.NoError(t, os.MkdirAll(stateDir, 0755))

	contextYAML := `
project:
  name: demo-project
  language: go
  constraints:
    - rule: never log secrets
      severity: error
`
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "context.yaml"), []byte(contextYAML), 0644))

	configYAML := `
budget:
  max_tokens: 12000
  target_model: claude
ranker:
  lexical_weight: 0.5
  structural_weight: 0.3
  vector_weight: 0.2
`
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "demo-project", cfg.Project.Name)
	assert.Equal(t, "go", cfg.Project.Language)
	require.Len(t, cfg.Project.Constraints, 1)
	assert.Equal(t, "never log secrets", cfg.Project.Constraints[0].Rule)
	assert.Equal(t, 12000, cfg.Budget.MaxTokens)
	assert.Equal(t, "claude", cfg.Budget.TargetModel)
	assert.InDelta(t, 1.0, cfg.Ranker.LexicalWeight+cfg.Ranker.StructuralWeight+cfg.Ranker.VectorWeight, 0.001)
}

func TestLoad_UnknownKeysAreTolerated(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	stateDir := filepath.Join(dir, ".contextos")
	require.NoError(t, os.MkdirAll(stateDir, 0755))

	configYAML := `
budget:
  max_tokens: 9000
this_key_does_not_exist: true
nested:
  also_unknown: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Budget.MaxTokens)
}

func TestLoad_EnvOverridesWinOverProjectConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	stateDir := filepath.Join(dir, ".contextos")
	require.NoError(t, os.MkdirAll(stateDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("budget:\n  max_tokens: 5000\n"), 0644))

	t.Setenv("CONTEXTOS_MAX_TOKENS", "7500")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7500, cfg.Budget.MaxTokens)
}

func TestValidate_RankerWeightsMustSumToOne(t *testing.T) {
	cfg := NewConfig()
	cfg.Ranker.LexicalWeight = 0.9
	cfg.Ranker.StructuralWeight = 0.5
	cfg.Ranker.VectorWeight = 0.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownTransport(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestFindProjectRoot_WalksUpToContextosDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".contextos"), 0755))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestDetectProjectType(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, ProjectTypeUnknown, DetectProjectType(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0644))
	assert.Equal(t, ProjectTypeGo, DetectProjectType(dir))
}

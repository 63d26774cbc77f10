package scaffold

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/printer"
	"gopkg.in/yaml.v3"
)

// EnvFileName is the runtime environment template written next to lair.yml.
const EnvFileName = "lair.env"

const configHeader = `# Lair installation configuration.
#
# Every puzzle block is optional: missing blocks and zero fields fall back to
# the built-in installation tables. Set "disabled: true" to leave a puzzle out.
# Durations use Go syntax ("3s", "1m30s").
`

const envTemplate = `# Runtime environment for the lair orchestrator.
LAIR_INSTANCE_NAME=default-lair
REDIS_URL=redis://localhost:6379
LAIR_CONFIG=lair.yml
LAIR_HTTP_ADDR=
LAIR_LOG_LEVEL=info
# Fixed random seed for rehearsals; 0 seeds from the clock.
LAIR_SEED=0
`

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes a default lair.yml and lair.env into dir and returns the
// paths it created. If force is true existing files are replaced.
func Initialize(dir string, force bool) ([]string, error) {
	if force {
		if err := handleForce(dir); err != nil {
			return nil, err
		}
	} else if err := CheckExisting(dir); err != nil {
		return nil, err
	}

	files, err := templateFiles(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	created := make([]string, 0, len(files))
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		created = append(created, file.Path)
	}

	// The written config must load back cleanly.
	if _, err := config.Load(filepath.Join(dir, config.DefaultFileName)); err != nil {
		return nil, fmt.Errorf("created %s is not valid: %w", config.DefaultFileName, err)
	}

	return created, nil
}

func handleForce(dir string) error {
	for _, name := range []string{config.DefaultFileName, EnvFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		printer.Warning("Removing existing %s...\n", name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func templateFiles(dir string) ([]FileInfo, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.Default()); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", config.DefaultFileName, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", config.DefaultFileName, err)
	}

	return []FileInfo{
		{Path: filepath.Join(dir, config.DefaultFileName), Content: buf.Bytes(), Permissions: 0644},
		{Path: filepath.Join(dir, EnvFileName), Content: []byte(envTemplate), Permissions: 0644},
	}, nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(created []string) {
	printer.Success("Successfully initialized lair configuration!\n")
	printer.Println("\nCreated:")
	for _, path := range created {
		printer.Printf("  ✓ %s\n", path)
	}
	printer.Println("\nNext steps:")
	printer.Println("  1. Adjust the puzzle tables in lair.yml to match the installation")
	printer.Println("  2. Source lair.env (or export the variables) for the orchestrator")
	printer.Println("  3. Run 'orchestrator' and drive it with 'lair start <id>'")
}

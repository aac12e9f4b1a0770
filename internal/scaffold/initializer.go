package scaffold

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/megalab/megaid/internal/config"
	"github.com/megalab/megaid/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Files written by Initialize.
const (
	ConfigFile    = config.DefaultPath
	GitignoreFile = ".gitignore"
	envFileEntry  = ".env"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates megaid.yml in dir and makes sure .gitignore excludes the
// .env key file. It returns the names of the files it created or changed.
// If force is true, an existing megaid.yml is replaced.
func Initialize(dir string, force bool) ([]string, error) {
	if force {
		if err := handleForce(dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return nil, err
	}
	if err := writeFiles(files); err != nil {
		return nil, err
	}
	written := []string{ConfigFile}

	changed, err := ignoreEnvFile(dir)
	if err != nil {
		return nil, err
	}
	if changed {
		written = append(written, GitignoreFile)
	}

	// Validate created files
	if _, err := config.Load(filepath.Join(dir, ConfigFile)); err != nil {
		return nil, fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}

	return written, nil
}

// handleForce removes existing files if --force was specified
func handleForce(dir string) error {
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		printer.Warning("Removing existing %s...\n", ConfigFile)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFile, err)
		}
	}
	return nil
}

// getTemplateFiles reads and processes all template files
func getTemplateFiles(dir string) ([]FileInfo, error) {
	content, err := templatesFS.ReadFile("templates/megaid.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", ConfigFile, err)
	}
	return []FileInfo{{
		Path:        filepath.Join(dir, ConfigFile),
		Content:     content,
		Permissions: 0644,
	}}, nil
}

// writeFiles writes all template files to disk
func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// ignoreEnvFile appends .env to dir/.gitignore unless an entry already
// covers it. It reports whether the file was changed.
func ignoreEnvFile(dir string) (bool, error) {
	path := filepath.Join(dir, GitignoreFile)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", GitignoreFile, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(existing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == envFileEntry || line == "/"+envFileEntry {
			return false, nil
		}
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString("# MEGAID keys\n" + envFileEntry + "\n")

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", GitignoreFile, err)
	}
	return true, nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(written []string) {
	printer.Success("Successfully initialized MEGAID project!\n")
	printer.Println("\nCreated or updated:")
	for _, name := range written {
		printer.Printf("  ✓ %s\n", name)
	}
	printer.Println("\nNext steps:")
	printer.Println("  1. Review megaid.yml (bit_size, default_metadata, key source)")
	printer.Println("  2. Run 'megaid keygen --save' or let the first create generate keys")
	printer.Println("  3. Run 'megaid create-utc' to mint your first ID")
}

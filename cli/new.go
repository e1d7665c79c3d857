package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <Entity>",
		Short: "Scaffold a new entity schema with a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return wrapError("new: entity name required", nil, "Provide an entity name, e.g. `aotq new User`.", 2)
			}
			if name[0] >= 'a' && name[0] <= 'z' {
				name = strings.ToUpper(name[:1]) + name[1:]
			}
			cfg, err := loadProjectConfig(".")
			if err != nil {
				return wrapError(fmt.Sprintf("new: read %s: %v", configFileName, err), err, "Fix or remove the config file and re-run `aotq new`.", 1)
			}
			dir := cfg.SchemaDir
			if dir == "" {
				dir = "schema"
			}
			file := filepath.Join(dir, fmt.Sprintf("%s.schema.go", name))
			if _, err := os.Stat(file); err == nil {
				return wrapError(fmt.Sprintf("new: file exists %s", file), nil, "Remove the existing file or choose a different entity name.", 2)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return wrapError(fmt.Sprintf("new: create %s", dir), err, "Check directory permissions or run from the project root.", 1)
			}
			content := strings.ReplaceAll(schemaTemplate, "{{Entity}}", name)
			if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
				return wrapError(fmt.Sprintf("new: write schema %s", file), err, "Check directory permissions or run from the project root.", 1)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Created", file)
			return nil
		},
	}
	return cmd
}

var schemaTemplate = `package schema

import "time"

type {{Entity}} struct {
	ID        string `+ "`aotq:\"id\"`" + `
	CreatedAt time.Time
	UpdatedAt time.Time
}

type {{Entity}}Repository interface {
	// aotq:query select e from {{Entity}} e where e.id = :id
	FindByID(id string) (*{{Entity}}, error)
}
`

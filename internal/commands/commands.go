package commands

import (
	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Matching",
			Commands: []CommandInfo{
				{Name: "scan", Category: "matching", Description: "Compare a CV with job descriptions"},
				{Name: "history", Category: "matching", Description: "Show recent analyses", Actions: []string{"clear"}},
				{Name: "session", Category: "matching", Description: "Manage the saved scan", Actions: []string{"show", "clear"}},
			},
		},
		{
			Name: "Premium",
			Commands: []CommandInfo{
				{Name: "generate-cv", Category: "premium", Description: "Generate a CV tailored to a job"},
				{Name: "advice", Category: "premium", Description: "Get career advice"},
			},
		},
		{
			Name: "Account",
			Commands: []CommandInfo{
				{Name: "auth", Category: "account", Description: "Sign in and manage credentials", Actions: []string{"login", "register", "logout", "status", "refresh", "token"}},
				{Name: "me", Category: "account", Description: "Manage your profile", Actions: []string{"show", "update", "delete"}},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "config", Category: "additional", Description: "Manage configuration", Actions: []string{"show", "set", "unset", "path"}},
				{Name: "limits", Category: "additional", Description: "Show the rate-limit state", Actions: []string{"reset"}},
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
func CatalogCommandNames() []string {
	var names []string
	for _, cat := range commandCategories() {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available recruitmate commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			return app.OK(commandCategories(),
				output.WithSummary("All available recruitmate commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "recruitmate --help",
						Description: "View help",
					},
				),
			)
		},
	}
}

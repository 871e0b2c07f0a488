package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

var pluginJSON bool

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage plugin instances",
}

var pluginAddCmd = &cobra.Command{
	Use:   "add [name] [parameters]",
	Short: "Add and load a plugin instance",
	Long: `Creates a plugin instance, loads it and persists it in the user
store so it is loaded again on the next start.

Example:
  raindrop plugin add feed '{"url":"https://example.com/rss","interval":"30m"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPluginAdd,
}

var pluginRemoveCmd = &cobra.Command{
	Use:   "remove [instance-id]",
	Short: "Remove a plugin instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginRemove,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded plugin instances",
	Args:  cobra.NoArgs,
	RunE:  runPluginList,
}

var pluginAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List the plugins that can be added",
	Args:  cobra.NoArgs,
	RunE:  runPluginAvailable,
}

var pluginSideBarCmd = &cobra.Command{
	Use:   "sidebar",
	Short: "Show the side bar contributed by loaded plugins",
	Args:  cobra.NoArgs,
	RunE:  runPluginSideBar,
}

func init() {
	pluginListCmd.Flags().BoolVar(&pluginJSON, "json", false, "output as JSON")
	pluginSideBarCmd.Flags().BoolVar(&pluginJSON, "json", false, "output as JSON")
	pluginCmd.AddCommand(pluginAddCmd, pluginRemoveCmd, pluginListCmd, pluginAvailableCmd, pluginSideBarCmd)
	rootCmd.AddCommand(pluginCmd)
}

func runPluginAdd(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	params := ""
	if len(args) == 2 {
		params = args[1]
	}
	id, err := pluginService.AddPlugin(commandContext(cmd), args[0], params)
	if err != nil {
		return fmt.Errorf("failed to add plugin %s: %w", args[0], err)
	}
	cmd.Printf("Added plugin %s %s\n", args[0], render(cmd, idStyle, id.String()))
	return nil
}

func runPluginRemove(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("%w: instance id %q", domain.ErrInvalidInput, args[0])
	}
	if err := pluginService.RemovePlugin(commandContext(cmd), id); err != nil {
		return fmt.Errorf("failed to remove plugin: %w", err)
	}
	cmd.Println(render(cmd, okStyle, "Removed plugin "+id.String()))
	return nil
}

type pluginView struct {
	InstanceID uuid.UUID   `json:"instance_id"`
	Name       string      `json:"name"`
	Parameters string      `json:"parameters,omitempty"`
	System     bool        `json:"system,omitempty"`
	Types      []uuid.UUID `json:"types,omitempty"`
	Tasks      []string    `json:"tasks,omitempty"`
}

func runPluginList(cmd *cobra.Command, _ []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	loaded := pluginService.LoadedPlugins()
	views := make([]pluginView, len(loaded))
	for i, p := range loaded {
		views[i] = pluginView{
			InstanceID: p.InstanceID,
			Name:       p.Info.PluginName,
			Parameters: p.Info.Parameters,
			System:     p.System,
			Types:      p.TypeIDs,
			Tasks:      p.Tasks,
		}
	}
	if pluginJSON {
		return printJSON(cmd, views)
	}

	heading(cmd, "Loaded Plugins")
	for _, v := range views {
		name := v.Name
		if v.System {
			name += " (built-in)"
		}
		cmd.Printf("  %-20s %s\n", name, render(cmd, idStyle, v.InstanceID.String()))
		if len(v.Tasks) > 0 {
			cmd.Printf("      Tasks: %s\n", strings.Join(v.Tasks, ", "))
		}
		if v.Parameters != "" {
			cmd.Printf("      Parameters: %s\n", v.Parameters)
		}
	}
	return nil
}

func runPluginAvailable(cmd *cobra.Command, _ []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	names := pluginService.AvailablePlugins()
	if len(names) == 0 {
		cmd.Println("No plugins available.")
		return nil
	}
	heading(cmd, "Available Plugins")
	for _, n := range names {
		cmd.Printf("  %s\n", n)
	}
	return nil
}

func runPluginSideBar(cmd *cobra.Command, _ []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	entries := pluginService.SideBarElements()
	if pluginJSON {
		return printJSON(cmd, entries)
	}
	for _, e := range entries {
		if e.Kind == domain.SideBarSeparator {
			cmd.Println("  ────────")
			continue
		}
		cmd.Printf("  %s%s\n", strings.Repeat("  ", e.Indent), e.Text)
	}
	return nil
}

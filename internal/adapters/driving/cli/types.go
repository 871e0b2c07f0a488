package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

var typeJSON bool

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Manage item types",
}

var typeCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a type",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypeCreate,
}

var typeRenameCmd = &cobra.Command{
	Use:   "rename [type] [name]",
	Short: "Change the display name of a type",
	Args:  cobra.ExactArgs(2),
	RunE:  runTypeRename,
}

var typeDeleteCmd = &cobra.Command{
	Use:   "delete [type]",
	Short: "Delete a type with no live items",
	Long: `Deletes a type. Types that still have live items, or that are
claimed by a loaded plugin, are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runTypeDelete,
}

var typeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List types",
	Args:  cobra.NoArgs,
	RunE:  runTypeList,
}

func init() {
	typeListCmd.Flags().BoolVar(&typeJSON, "json", false, "output types as JSON")
	typeCmd.AddCommand(typeCreateCmd, typeRenameCmd, typeDeleteCmd, typeListCmd)
	rootCmd.AddCommand(typeCmd)
}

// resolveType accepts a type id or a unique display name.
func resolveType(ref string) (*domain.TypeHandle, error) {
	if id, err := uuid.Parse(ref); err == nil {
		h := typeService.Resolve(id)
		if h == nil || !h.IsValid() {
			return nil, fmt.Errorf("type %s: %w", ref, domain.ErrUnknownType)
		}
		return h, nil
	}

	matches := typeService.FindByName(ref)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("type %q: %w", ref, domain.ErrUnknownType)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, h := range matches {
			ids[i] = h.ID().String()
		}
		return nil, fmt.Errorf("type name %q is ambiguous: %s", ref, strings.Join(ids, ", "))
	}
}

func runTypeCreate(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	h, err := typeService.CreateType(commandContext(cmd), domain.TypeInfo{DisplayName: args[0]})
	if err != nil {
		return fmt.Errorf("failed to create type: %w", err)
	}
	cmd.Printf("Created type %s %s\n", h.DisplayName(), render(cmd, idStyle, h.ID().String()))
	return nil
}

func runTypeRename(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	h, err := resolveType(args[0])
	if err != nil {
		return err
	}
	if err := typeService.UpdateType(commandContext(cmd), h.ID(), domain.TypeInfo{DisplayName: args[1]}); err != nil {
		return fmt.Errorf("failed to rename type: %w", err)
	}
	cmd.Printf("Renamed type %s to %s\n", h.ID(), args[1])
	return nil
}

func runTypeDelete(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	h, err := resolveType(args[0])
	if err != nil {
		return err
	}
	deleted, err := typeService.TryDelete(commandContext(cmd), h.ID())
	if err != nil {
		return fmt.Errorf("failed to delete type: %w", err)
	}
	if !deleted {
		return errors.New("type is in use and was not deleted")
	}
	cmd.Println(render(cmd, okStyle, "Deleted type "+h.DisplayName()))
	return nil
}

type typeView struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	StorageID   uuid.UUID `json:"storage_id"`
}

func runTypeList(cmd *cobra.Command, _ []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	handles := typeService.ListTypes()
	views := make([]typeView, 0, len(handles))
	for _, h := range handles {
		views = append(views, typeView{ID: h.ID(), DisplayName: h.DisplayName(), StorageID: h.StorageID()})
	}

	if typeJSON {
		return printJSON(cmd, views)
	}
	heading(cmd, "Types")
	for _, v := range views {
		cmd.Printf("  %-24s %s\n", v.DisplayName, render(cmd, idStyle, v.ID.String()))
	}
	return nil
}

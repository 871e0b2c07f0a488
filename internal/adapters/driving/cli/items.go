package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

var (
	itemID      string
	itemDeleted bool
	itemJSON    bool
	itemLimit   int
	itemSince   time.Duration
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Read and write items",
}

var itemPutCmd = &cobra.Command{
	Use:   "put [type] [payload]",
	Short: "Write a new version of an item",
	Long: `Writes a new item version. The payload is a JSON document; use "-"
to read it from stdin. Without --id a new item is created.`,
	Args: cobra.ExactArgs(2),
	RunE: runItemPut,
}

var itemGetCmd = &cobra.Command{
	Use:   "get [item-id]",
	Short: "Show the latest version of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemGet,
}

var itemDeleteCmd = &cobra.Command{
	Use:   "delete [item-id]",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemDelete,
}

var itemHistoryCmd = &cobra.Command{
	Use:   "history [item-id]",
	Short: "Show every version of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemHistory,
}

var itemListCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "List the live items of a type",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemList,
}

func init() {
	itemPutCmd.Flags().StringVar(&itemID, "id", "", "item id to update")
	itemGetCmd.Flags().BoolVar(&itemDeleted, "deleted", false, "show the tombstone of a deleted item")
	itemListCmd.Flags().IntVarP(&itemLimit, "limit", "n", 0, "maximum number of items (0 = all)")
	itemListCmd.Flags().DurationVar(&itemSince, "since", 0, "only items written within this duration")
	for _, c := range []*cobra.Command{itemGetCmd, itemHistoryCmd, itemListCmd} {
		c.Flags().BoolVar(&itemJSON, "json", false, "output as JSON")
	}
	itemCmd.AddCommand(itemPutCmd, itemGetCmd, itemDeleteCmd, itemHistoryCmd, itemListCmd)
	rootCmd.AddCommand(itemCmd)
}

type itemView struct {
	ItemID    uuid.UUID       `json:"item_id"`
	VersionID uuid.UUID       `json:"version_id"`
	Type      uuid.UUID       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Deleted   bool            `json:"deleted,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newItemView(item domain.Item) itemView {
	v := itemView{
		ItemID:    item.ItemID,
		VersionID: item.VersionID,
		Type:      item.Type,
		Timestamp: item.Timestamp,
		Deleted:   item.IsTombstone(),
	}
	if json.Valid(item.Payload) {
		v.Payload = item.Payload
	} else if len(item.Payload) > 0 {
		quoted, _ := json.Marshal(string(item.Payload)) //nolint:errcheck // strings always marshal
		v.Payload = quoted
	}
	return v
}

func parseItemID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: item id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}

func readPayload(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}

func runItemPut(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	h, err := resolveType(args[0])
	if err != nil {
		return err
	}
	payload, err := readPayload(cmd, args[1])
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: payload is not valid JSON", domain.ErrInvalidPayload)
	}

	id := uuid.Nil
	if itemID != "" {
		if id, err = parseItemID(itemID); err != nil {
			return err
		}
	}
	item, err := itemService.Put(commandContext(cmd), h.ID(), id, payload)
	if err != nil {
		return fmt.Errorf("failed to write item: %w", err)
	}
	cmd.Printf("Wrote item %s version %s\n", item.ItemID, render(cmd, idStyle, item.VersionID.String()))
	return nil
}

func runItemGet(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	item, err := itemService.Get(commandContext(cmd), id, itemDeleted)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if itemJSON {
		return printJSON(cmd, newItemView(*item))
	}
	printItem(cmd, *item)
	return nil
}

func runItemDelete(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	if err := itemService.Delete(commandContext(cmd), id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	cmd.Println(render(cmd, okStyle, "Deleted item "+id.String()))
	return nil
}

func runItemHistory(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	versions, err := itemService.History(commandContext(cmd), id)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if itemJSON {
		views := make([]itemView, len(versions))
		for i, v := range versions {
			views[i] = newItemView(v)
		}
		return printJSON(cmd, views)
	}
	heading(cmd, fmt.Sprintf("History of %s (%d versions)", id, len(versions)))
	for _, v := range versions {
		printItem(cmd, v)
	}
	return nil
}

func runItemList(cmd *cobra.Command, args []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}
	h, err := resolveType(args[0])
	if err != nil {
		return err
	}
	if itemLimit < 0 {
		return errors.New("limit must not be negative")
	}

	q := domain.ItemQuery{Type: h.ID(), Limit: itemLimit}
	if itemSince > 0 {
		q.From = time.Now().Add(-itemSince)
	}
	items, err := itemService.List(commandContext(cmd), q)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	if itemJSON {
		views := make([]itemView, len(items))
		for i, it := range items {
			views[i] = newItemView(it)
		}
		return printJSON(cmd, views)
	}
	if len(items) == 0 {
		cmd.Println("No items found.")
		return nil
	}
	heading(cmd, fmt.Sprintf("%s (%d)", h.DisplayName(), len(items)))
	for _, it := range items {
		cmd.Printf("  %s  %s\n", it.ItemID, string(it.Payload))
	}
	return nil
}

func printItem(cmd *cobra.Command, item domain.Item) {
	cmd.Printf("  Item:      %s\n", item.ItemID)
	cmd.Printf("  Version:   %s\n", render(cmd, idStyle, item.VersionID.String()))
	typeName := item.Type.String()
	if h := typeService.Resolve(item.Type); h != nil {
		typeName = h.DisplayName()
	}
	cmd.Printf("  Type:      %s\n", typeName)
	cmd.Printf("  Timestamp: %s\n", item.Timestamp.Format(time.RFC3339))
	if item.IsTombstone() {
		cmd.Println("  " + render(cmd, warnStyle, "Deleted"))
	} else {
		cmd.Printf("  Payload:   %s\n", string(item.Payload))
	}
	cmd.Println()
}

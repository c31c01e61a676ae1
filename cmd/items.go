package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ylchen07/chefkit/internal/clipboard"
)

// itemCmd returns the item command group for data bag items
func itemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Read and write data bag items, decrypting with the instance's data_bag_secret",
	}

	cmd.AddCommand(itemListCmd())
	cmd.AddCommand(itemGetCmd())
	cmd.AddCommand(itemSetCmd())
	cmd.AddCommand(itemCreateCmd())
	return cmd
}

// parseAssignments turns key=value arguments into a document. Values that
// parse as JSON keep their type; anything else is a string.
func parseAssignments(pairs []string) (map[string]any, error) {
	doc := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", p)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		doc[key] = value
	}
	return doc, nil
}

// valueString renders a single field: strings as is, anything else as JSON
func valueString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// itemListCmd returns the item list command
func itemListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <bag>",
		Short: "List the item ids of a data bag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer a.close()

			ids, err := a.chef.DataBags().Get(args[0]).ItemNames(cmd.Context())
			if err != nil {
				return err
			}

			formatter, err := a.formatter()
			if err != nil {
				return err
			}

			result, err := formatter.FormatStrings(ids)
			if err != nil {
				return err
			}

			emit(cmd, result)
			return nil
		},
	}
}

// itemGetCmd returns the item get command
func itemGetCmd() *cobra.Command {
	var (
		field      string
		copyToClip bool
	)

	cmd := &cobra.Command{
		Use:   "get <bag> <id>",
		Short: "Show a data bag item, or one of its fields",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if copyToClip && field == "" {
				return fmt.Errorf("--copy needs --field")
			}

			ctx := cmd.Context()
			a, err := connect(ctx, 0)
			if err != nil {
				return err
			}
			defer a.close()

			secret, err := a.dataBagSecret(ctx)
			if err != nil {
				return err
			}

			item, err := a.chef.DataBags().Get(args[0]).Item(ctx, args[1], secret)
			if err != nil {
				return err
			}

			if field == "" {
				doc, err := item.Data(ctx)
				if err != nil {
					return err
				}
				formatter, err := a.formatter()
				if err != nil {
					return err
				}
				result, err := formatter.FormatDocument(doc)
				if err != nil {
					return err
				}
				emit(cmd, result)
				return nil
			}

			v, ok, err := item.Value(ctx, field)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("item '%s' has no field '%s'", args[1], field)
			}
			text, err := valueString(v)
			if err != nil {
				return err
			}

			// Copy to clipboard if requested
			if copyToClip {
				if err := clipboard.Copy(ctx, text); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Field '%s' copied to clipboard!\n", field)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Print only this field")
	cmd.Flags().BoolVarP(&copyToClip, "copy", "c", false, "Copy the field to the clipboard instead of printing it")
	return cmd
}

// itemSetCmd returns the item set command
func itemSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <bag> <id> key=value...",
		Short: "Update fields of a data bag item, re-encrypting it when a secret is configured",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := connect(ctx, 0)
			if err != nil {
				return err
			}
			defer a.close()

			secret, err := a.dataBagSecret(ctx)
			if err != nil {
				return err
			}

			item, err := a.chef.DataBags().Get(args[0]).Item(ctx, args[1], secret)
			if err != nil {
				return err
			}

			if err := item.Save(ctx, delta); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Updated %d field(s) of '%s/%s'\n", len(delta), args[0], args[1])
			return nil
		},
	}
}

// itemCreateCmd returns the item create command
func itemCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <bag> <id> [key=value...]",
		Short: "Create a data bag item, encrypted when a secret is configured",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := connect(ctx, 0)
			if err != nil {
				return err
			}
			defer a.close()

			secret, err := a.dataBagSecret(ctx)
			if err != nil {
				return err
			}

			item, err := a.chef.DataBags().Get(args[0]).CreateItem(ctx, args[1], data, secret)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Created '%s/%s' at %s\n", args[0], item.Name(), item.URL())
			return nil
		},
	}
}

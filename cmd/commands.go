package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ylchen07/chefkit/pkg/chef"
	"github.com/ylchen07/chefkit/pkg/models"
)

const kindsHelp = "client, cookbook, data_bag, environment, node, role"

func parseKind(s string) (chef.Kind, error) {
	kind, ok := chef.ParseKind(s)
	if !ok {
		return 0, fmt.Errorf("unknown object kind %q (expected one of %s)", s, kindsHelp)
	}
	return kind, nil
}

// names lists a top level collection
func names(ctx context.Context, c *chef.Chef, kind chef.Kind) ([]string, error) {
	switch kind {
	case chef.KindClient:
		return c.Clients().Names(ctx)
	case chef.KindCookbook:
		return c.Cookbooks().Names(ctx)
	case chef.KindDataBag:
		return c.DataBags().Names(ctx)
	case chef.KindEnvironment:
		return c.Environments().Names(ctx)
	case chef.KindNode:
		return c.Nodes().Names(ctx)
	case chef.KindRole:
		return c.Roles().Names(ctx)
	default:
		return nil, fmt.Errorf("%s objects cannot be listed directly", kind)
	}
}

// entity returns the named object of a top level collection
func entity(c *chef.Chef, kind chef.Kind, name string) (*chef.Entity, error) {
	switch kind {
	case chef.KindClient:
		return c.Clients().Get(name).Entity, nil
	case chef.KindCookbook:
		return c.Cookbooks().Get(name).Entity, nil
	case chef.KindDataBag:
		return c.DataBags().Get(name).Entity, nil
	case chef.KindEnvironment:
		return c.Environments().Get(name).Entity, nil
	case chef.KindNode:
		return c.Nodes().Get(name).Entity, nil
	case chef.KindRole:
		return c.Roles().Get(name).Entity, nil
	default:
		return nil, fmt.Errorf("%s objects cannot be addressed directly", kind)
	}
}

// emit writes a formatted result, skipping empty output
func emit(cmd *cobra.Command, result string) {
	if result != "" {
		fmt.Fprintln(cmd.OutOrStdout(), result)
	}
}

// listInstancesCmd returns the list-instances command
func listInstancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-instances",
		Short: "List configured Chef server instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			formatter, err := formatterFor(cfg)
			if err != nil {
				return err
			}

			result, err := formatter.FormatInstances(cfg.ListInstances())
			if err != nil {
				return err
			}

			emit(cmd, result)
			return nil
		},
	}
}

// listIndexesCmd returns the list-indexes command
func listIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-indexes",
		Short: "List the search indexes of the organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer a.close()

			formatter, err := a.formatter()
			if err != nil {
				return err
			}

			result, err := formatter.FormatStrings(a.chef.SearchIndexes())
			if err != nil {
				return err
			}

			emit(cmd, result)
			return nil
		},
	}
}

// listCmd returns the list command
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List the names in a collection (" + kindsHelp + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}

			a, err := connect(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := names(cmd.Context(), a.chef, kind)
			if err != nil {
				return err
			}

			formatter, err := a.formatter()
			if err != nil {
				return err
			}

			result, err := formatter.FormatStrings(list)
			if err != nil {
				return err
			}

			emit(cmd, result)
			return nil
		},
	}
}

// showCmd returns the show command
func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <name>",
		Short: "Show the document of one object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}

			a, err := connect(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer a.close()

			e, err := entity(a.chef, kind, args[1])
			if err != nil {
				return err
			}

			doc, err := e.Data(cmd.Context())
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
		},
	}
}

// parseFields turns alias=dotted.path flags into a search projection
func parseFields(fields []string) (map[string][]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	projection := make(map[string][]string, len(fields))
	for _, f := range fields {
		alias, path, ok := strings.Cut(f, "=")
		if !ok {
			alias, path = f, f
		}
		if alias == "" || path == "" {
			return nil, fmt.Errorf("invalid field %q, expected alias=path", f)
		}
		projection[alias] = strings.Split(path, ".")
	}
	return projection, nil
}

// searchCmd returns the search command
func searchCmd() *cobra.Command {
	var (
		fields []string
		rows   int
	)

	cmd := &cobra.Command{
		Use:   "search <index> <query>",
		Short: "Search an index; with --field only the named attributes are returned",
		Example: `  chefkit search node 'role:web'
  chefkit search node 'chef_environment:prod' --field ip=automatic.ipaddress`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projection, err := parseFields(fields)
			if err != nil {
				return err
			}

			a, err := connect(cmd.Context(), rows)
			if err != nil {
				return err
			}
			defer a.close()

			seq, err := a.chef.Search(cmd.Context(), args[0], args[1], projection)
			if err != nil {
				return err
			}

			var hits []*models.EntitySummary
			for e := range seq {
				hits = append(hits, e.Summary())
			}

			formatter, err := a.formatter()
			if err != nil {
				return err
			}

			result, err := formatter.FormatEntities(hits)
			if err != nil {
				return err
			}

			emit(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&fields, "field", nil, "Return only this attribute, as alias=dotted.path (repeatable)")
	cmd.Flags().IntVar(&rows, "rows", 0, "Rows per search page (defaults to paging.page_size)")
	return cmd
}

// deleteCmd returns the delete command
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <name>",
		Short: "Delete one object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}

			a, err := connect(cmd.Context(), 0)
			if err != nil {
				return err
			}
			defer a.close()

			e, err := entity(a.chef, kind, args[1])
			if err != nil {
				return err
			}

			if !e.Delete(cmd.Context()) {
				return errors.Wrapf(chef.ErrDeleteFailed, "%s %s", kind, args[1])
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s '%s'\n", kind, args[1])
			return nil
		},
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"financetracker/internal/cli"
	"financetracker/internal/core"
	"financetracker/internal/qr"
	"financetracker/internal/storage"
)

const objectsHelp = "Objects: transaction|t, category|c, subcategory|s, account|a, business|b, period|p"

// entityOps erases the entity type of a storage.Manager so one command can
// serve every kind.
type entityOps struct {
	create func(context.Context, core.Fields) (any, error)
	get    func(context.Context, int64) (any, error)
	update func(context.Context, int64, core.Fields) (any, error)
	delete func(context.Context, int64) (any, error)
	query  func(context.Context, core.Query) (any, error)
}

func managerOps[T any](m *storage.Manager[T]) entityOps {
	kind := m.Schema().Kind
	return entityOps{
		create: func(ctx context.Context, f core.Fields) (any, error) { return m.Create(ctx, f) },
		get: func(ctx context.Context, id int64) (any, error) {
			v, err := m.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, core.NotFoundID(kind, id)
			}
			return v, nil
		},
		update: func(ctx context.Context, id int64, f core.Fields) (any, error) { return m.Update(ctx, id, f) },
		delete: func(ctx context.Context, id int64) (any, error) { return m.Delete(ctx, id) },
		query: func(ctx context.Context, q core.Query) (any, error) {
			items, err := m.Query(ctx, q)
			if items == nil {
				items = []T{}
			}
			return items, err
		},
	}
}

// opsFor returns the operations for kind. Transactions are created through
// the ingestion service; period writes drop the resolver cache.
func opsFor(app *cli.App, kind core.Kind) entityOps {
	switch kind {
	case core.KindAccount:
		return managerOps(app.Store.Accounts)
	case core.KindCategory:
		return managerOps(app.Store.Categories)
	case core.KindSubcategory:
		return managerOps(app.Store.Subcategories)
	case core.KindBusiness:
		return managerOps(app.Store.Businesses)
	case core.KindPeriod:
		ops := managerOps(app.Store.Periods)
		update, del := ops.update, ops.delete
		ops.update = func(ctx context.Context, id int64, f core.Fields) (any, error) {
			defer app.Periods.Invalidate()
			return update(ctx, id, f)
		}
		ops.delete = func(ctx context.Context, id int64) (any, error) {
			defer app.Periods.Invalidate()
			return del(ctx, id)
		}
		return ops
	default:
		ops := managerOps(app.Store.Transactions)
		ops.create = func(ctx context.Context, f core.Fields) (any, error) { return app.Transactions.Create(ctx, f) }
		ops.update = func(ctx context.Context, id int64, f core.Fields) (any, error) { return app.Transactions.Update(ctx, id, f) }
		return ops
	}
}

// objectCommand builds an action taking "<object> KEY=VALUE...".
func objectCommand(use, alias, short string, run func(cmd *cobra.Command, kind core.Kind, fields core.Fields) error) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <object> [KEY=VALUE...]",
		Aliases: []string{alias},
		Short:   short,
		Long:    short + ".\n\n" + objectsHelp + ".",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseObject(args[0])
			if err != nil {
				return err
			}
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			return run(cmd, kind, fields)
		},
	}
}

func newCreateCommand(rt *runtime) *cobra.Command {
	var qrCode string
	cmd := objectCommand("create", "c", "Create an item", func(cmd *cobra.Command, kind core.Kind, fields core.Fields) error {
		ctx := cmd.Context()
		return rt.withApp(ctx, func(app *cli.App) error {
			var (
				out any
				err error
			)
			if qrCode != "" {
				out, err = createFromQRCode(ctx, app, kind, qrCode, fields)
			} else {
				out, err = opsFor(app, kind).create(ctx, fields)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	})
	cmd.Flags().StringVarP(&qrCode, "qr-code", "q", "", "create from a receipt QR payload (transaction and business only)")
	return cmd
}

func createFromQRCode(ctx context.Context, app *cli.App, kind core.Kind, raw string, fields core.Fields) (any, error) {
	if kind != core.KindTransaction && kind != core.KindBusiness {
		return nil, core.NewValidationError(kind, "qr-code", "only transactions and businesses can be created from a QR code")
	}
	payload, err := qr.Parse(raw)
	if err != nil {
		return nil, err
	}
	if kind == core.KindBusiness {
		return app.Businesses.FromQRCode(ctx, payload, fields)
	}
	return app.Transactions.FromQRCode(ctx, payload, fields)
}

func newGetCommand(rt *runtime) *cobra.Command {
	return objectCommand("get", "g", "Get an item by id", func(cmd *cobra.Command, kind core.Kind, fields core.Fields) error {
		id, err := takeID(kind, fields)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			return core.NewValidationError(kind, "", "get takes only id=N")
		}
		return rt.withApp(cmd.Context(), func(app *cli.App) error {
			out, err := opsFor(app, kind).get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	})
}

func newUpdateCommand(rt *runtime) *cobra.Command {
	return objectCommand("update", "u", "Update an item", func(cmd *cobra.Command, kind core.Kind, fields core.Fields) error {
		id, err := takeID(kind, fields)
		if err != nil {
			return err
		}
		return rt.withApp(cmd.Context(), func(app *cli.App) error {
			out, err := opsFor(app, kind).update(cmd.Context(), id, fields)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	})
}

func newDeleteCommand(rt *runtime) *cobra.Command {
	return objectCommand("delete", "d", "Delete an item", func(cmd *cobra.Command, kind core.Kind, fields core.Fields) error {
		id, err := takeID(kind, fields)
		if err != nil {
			return err
		}
		return rt.withApp(cmd.Context(), func(app *cli.App) error {
			out, err := opsFor(app, kind).delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	})
}

func newQueryCommand(rt *runtime) *cobra.Command {
	var limit, offset int
	cmd := objectCommand("query", "q", "Query for items", func(cmd *cobra.Command, kind core.Kind, fields core.Fields) error {
		if limit < 1 {
			return core.NewValidationError("", "limit", "must be at least 1")
		}
		if offset < 0 {
			return core.NewValidationError("", "offset", "cannot be negative")
		}
		q := core.Query{Limit: limit, Offset: offset, Filters: fields}
		return rt.withApp(cmd.Context(), func(app *cli.App) error {
			out, err := opsFor(app, kind).query(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	})
	cmd.Flags().IntVarP(&limit, "limit", "l", core.DefaultQueryLimit, "how many rows to return")
	cmd.Flags().IntVarP(&offset, "offset", "o", 0, "how many rows to skip")
	return cmd
}

// fieldInfo describes one field of an object for the fields command.
type fieldInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	Ref       string `json:"references,omitempty"`
	Writable  bool   `json:"writable"`
	Generated bool   `json:"generated,omitempty"`
}

func newFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <object>",
		Short: "List the fields of an object",
		Long:  "List the fields of an object.\n\n" + objectsHelp + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseObject(args[0])
			if err != nil {
				return err
			}
			schema, _ := core.SchemaFor(kind)
			out := []fieldInfo{
				{Name: core.FieldID, Type: typeName(core.TypeInt)},
				{Name: core.FieldCreatedTime, Type: "timestamp"},
				{Name: core.FieldUpdatedTime, Type: "timestamp"},
			}
			for _, c := range schema.Columns {
				out = append(out, fieldInfo{
					Name:      c.Name,
					Type:      typeName(c.Type),
					Required:  c.Required && !c.Derived && !c.Generated,
					Ref:       string(c.Ref),
					Writable:  !c.Derived,
					Generated: c.Generated,
				})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func typeName(t core.FieldType) string {
	switch t {
	case core.TypeInt:
		return "integer"
	case core.TypeDecimal:
		return "decimal"
	case core.TypeDate:
		return "date"
	case core.TypeString:
		return "string"
	}
	return fmt.Sprintf("type(%d)", t)
}

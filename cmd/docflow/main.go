package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ikhode/erp-modular-sub001/internal/app"
	"github.com/ikhode/erp-modular-sub001/internal/auth"
	"github.com/ikhode/erp-modular-sub001/internal/config"
	"github.com/ikhode/erp-modular-sub001/internal/db"
	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
	"github.com/ikhode/erp-modular-sub001/internal/repo"
	"github.com/ikhode/erp-modular-sub001/internal/server"
	"github.com/ikhode/erp-modular-sub001/internal/store/dynamo"
)

var rootCmd = &cobra.Command{
	Use:   "docflow",
	Short: "Document lifecycle engine",
	Long: `docflow moves sales, purchases and transfers through their lifecycles.
- Documents: each kind has a fixed path of states; a terminal state is final.
- Signatures: one per role per document; some transitions need specific roles.
- Instructions: reaching the last state of a sale or purchase, or completing a
  transfer, emits one inventory/cash instruction exactly once.
- Stock: the relay applies instructions to the stock ledger ('docflow relay run').
- Event log: every change is recorded, view with 'docflow log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		// Values already in the environment win over the workspace .env.
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DOCFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
}

func registerCommands() {
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(docCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(stockCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(storageCmd())
	rootCmd.AddCommand(serveCmd())
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	cmd.AddCommand(tenantInitCmd())
	cmd.AddCommand(tenantListCmd())
	cmd.AddCommand(tenantUseCmd())
	return cmd
}

func tenantInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register a tenant and make the current actor its admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			id = strings.TrimSpace(id)
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := app.InitTenant(ctx, rt.Repo, id, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func tenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Repo.ListTenants(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func tenantUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <tenant-id>",
		Short: "Set the default tenant for this workspace (.env)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := strings.TrimSpace(args[0])
			if tenantID == "" {
				return fmt.Errorf("tenant id required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "DOCFLOW_TENANT", tenantID); err != nil {
				return err
			}
			fmt.Printf("default tenant set to %s\n", tenantID)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "docflow.yml holds the default tenant, folio prefixes, signature requirements, storage driver, archive, relay webhooks and RBAC roles.",
	}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default docflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			tenantID := strings.TrimSpace(viper.GetString("tenant"))
			if tenantID == "" {
				tenantID = "default"
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(tenantID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return printJSONOrTable(rt.Config)
			})
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate docflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func docCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create and move documents",
		Long: `Lifecycles:
  sale:     pending -> preparing -> in_transit -> delivered
  purchase: dispatched -> loading -> returning -> completed
  transfer: pending -> completed | cancelled`,
	}
	cmd.AddCommand(docCreateCmd())
	cmd.AddCommand(docListCmd())
	cmd.AddCommand(docShowCmd())
	cmd.AddCommand(docTransitionCmd())
	cmd.AddCommand(docHistoryCmd())
	cmd.AddCommand(docStatusCmd())
	return cmd
}

func docCreateCmd() *cobra.Command {
	var opts lifecycle.CreateOptions
	var kind, qty, price string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a document in its initial state",
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := decimal.NewFromString(strings.TrimSpace(qty))
			if err != nil {
				return fmt.Errorf("--qty: %w", err)
			}
			opts.Quantity = quantity
			if price != "" {
				p, err := decimal.NewFromString(strings.TrimSpace(price))
				if err != nil {
					return fmt.Errorf("--price: %w", err)
				}
				opts.UnitPrice = p
			}
			opts.Kind = domain.Kind(kind)
			return withTenant(cmd.Context(), auth.PermDocumentCreate, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				opts.ActorID = viper.GetString("actor-id")
				doc, err := rt.Engine.CreateDocument(ctx, tenantID, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(doc)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "document id (generated when empty)")
	cmd.Flags().StringVar(&kind, "kind", "", "sale, purchase or transfer")
	cmd.Flags().StringVar(&opts.ProductID, "product", "", "product id")
	cmd.Flags().StringVar(&opts.LocationID, "location", "", "location for sales and purchases")
	cmd.Flags().StringVar(&opts.FromLocationID, "from", "", "transfer source location")
	cmd.Flags().StringVar(&opts.ToLocationID, "to", "", "transfer destination location")
	cmd.Flags().StringVar(&qty, "qty", "", "quantity")
	cmd.Flags().StringVar(&price, "price", "", "unit price")
	cmd.Flags().StringVar(&opts.DeliveryType, "delivery", "", "sale delivery type (pickup, delivery)")
	cmd.Flags().StringVar(&opts.PurchaseType, "purchase-type", "", "purchase type (standard, parcela)")
	cmd.Flags().StringVar(&opts.PaymentMethod, "payment", "", "payment method (cash, credit)")
	cmd.Flags().StringVar(&opts.CounterpartyID, "counterparty", "", "client or supplier id")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func docListCmd() *cobra.Command {
	var kind, state string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermDocumentRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				docs, err := rt.Engine.ListDocuments(ctx, lifecycle.DocumentFilter{
					TenantID: tenantID,
					Kind:     domain.Kind(kind),
					State:    domain.State(state),
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(docs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Folio", "ID", "Kind", "State", "Product", "Qty", "Total", "Applied"})
				for _, d := range docs {
					tw.AppendRow(table.Row{d.Folio, d.ID, d.Kind, d.State, d.ProductID, d.Quantity.String(), d.Total().String(), d.SideEffectsApplied})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind filter")
	cmd.Flags().StringVar(&state, "state", "", "state filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max documents")
	return cmd
}

func docShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document with its signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermDocumentRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				doc, err := rt.Engine.GetDocument(ctx, tenantID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(doc)
			})
		},
	}
}

func docTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <id> <target-state>",
		Short: "Move a document to the next state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermDocumentTransition, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				doc, err := rt.Engine.RequestTransition(ctx, tenantID, args[0], domain.State(args[1]), lifecycle.TransitionOptions{
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					var missing *lifecycle.MissingSignaturesError
					if errors.As(err, &missing) {
						return fmt.Errorf("%w (capture with: docflow sign add %s --role <role> --file <image>)", err, args[0])
					}
					return err
				}
				return printJSONOrTable(doc)
			})
		},
	}
}

func docHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the transition audit of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermDocumentRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				history, err := rt.Engine.History(ctx, tenantID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(history)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "From", "To", "Actor"})
				for _, h := range history {
					from := string(h.FromState)
					if from == "" {
						from = "-"
					}
					tw.AppendRow(table.Row{h.TS, from, h.ToState, h.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func docStatusCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show which signatures gate a target state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermDocumentRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				st, err := rt.Engine.SignatureStatus(ctx, tenantID, args[0], domain.State(target))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Printf("Target: %s\n", st.Target)
				fmt.Printf("Required: %s\n", joinOrNone(st.Required))
				fmt.Printf("Present: %s\n", joinOrNone(st.Present))
				fmt.Printf("Missing: %s\n", joinOrNone(st.Missing))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target state (defaults to the effect state)")
	return cmd
}

func signCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sign", Short: "Capture signatures"}
	cmd.AddCommand(signAddCmd())
	cmd.AddCommand(signListCmd())
	return cmd
}

func signAddCmd() *cobra.Command {
	var role, file string
	cmd := &cobra.Command{
		Use:   "add <document-id>",
		Short: "Capture a role's signature from an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withTenant(cmd.Context(), auth.PermSignatureCapture, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				sig, err := rt.Engine.CaptureSignature(ctx, tenantID, args[0], role, image, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(sig)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "signer role (cliente, conductor, encargado, proveedor)")
	cmd.Flags().StringVar(&file, "file", "", "PNG, JPEG, GIF or WebP image")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func signListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <document-id>",
		Short: "List signatures on a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermDocumentRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				doc, err := rt.Engine.GetDocument(ctx, tenantID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc.Signatures)
				}
				links := signatureLinks(rt)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				header := table.Row{"Role", "Content Type", "Captured By", "Captured At", "Archive"}
				if links != nil {
					header = append(header, "Download")
				}
				tw.AppendHeader(header)
				for _, s := range doc.Signatures {
					row := table.Row{s.Role, s.ContentType, s.CapturedBy, s.CapturedAt, s.ImageRef}
					if links != nil {
						var link string
						if s.ImageRef != "" {
							if link, err = links.DownloadURL(ctx, s.ImageRef); err != nil {
								return err
							}
						}
						row = append(row, link)
					}
					tw.AppendRow(row)
				}
				tw.SortBy([]table.SortBy{{Name: "Role", Mode: table.Asc}})
				tw.Render()
				return nil
			})
		},
	}
}

func stockCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stock", Short: "Inspect and adjust the stock ledger"}
	cmd.AddCommand(stockSetCmd())
	cmd.AddCommand(stockShowCmd())
	cmd.AddCommand(stockCashCmd())
	return cmd
}

func stockSetCmd() *cobra.Command {
	var product, location, qty string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the on-hand quantity of a product at a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := decimal.NewFromString(strings.TrimSpace(qty))
			if err != nil {
				return fmt.Errorf("--qty: %w", err)
			}
			return withTenant(cmd.Context(), auth.PermStockWrite, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				level, err := rt.Repo.SetStock(ctx, tenantID, product, location, quantity, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(level)
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product id")
	cmd.Flags().StringVar(&location, "location", "", "location id")
	cmd.Flags().StringVar(&qty, "qty", "", "quantity")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func stockShowCmd() *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stock levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermStockRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				levels, err := rt.Repo.ListStock(ctx, tenantID, product)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(levels)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Product", "Location", "Quantity", "Updated"})
				for _, l := range levels {
					tw.AppendRow(table.Row{l.ProductID, l.LocationID, l.Quantity.String(), l.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product filter")
	return cmd
}

func stockCashCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "cash",
		Short: "Show cash movements recorded by applied instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermStockRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				moves, err := rt.Repo.ListCashFlow(ctx, tenantID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(moves)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Created", "Direction", "Amount", "Concept", "Document"})
				for _, m := range moves {
					tw.AppendRow(table.Row{m.CreatedAt, m.Direction, m.Amount.String(), m.Concept, m.DocumentID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max movements")
	return cmd
}

func relayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Deliver emitted instructions",
		Long:  "The relay applies pending instructions to the stock ledger and posts them to configured webhooks, in emission order.",
	}
	cmd.AddCommand(relayRunCmd())
	cmd.AddCommand(relayListCmd())
	return cmd
}

func relayRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if once {
					n, err := rt.Relay.RunOnce(ctx)
					fmt.Printf("delivered %d instruction(s)\n", n)
					return err
				}
				fmt.Println("relay running; Ctrl-C to stop")
				rt.Relay.Run(ctx)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "deliver one batch and exit")
	return cmd
}

func relayListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List emitted instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermInstructionsRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				entries, err := rt.Repo.ListInstructions(ctx, repo.OutboxFilter{TenantID: tenantID, Status: status, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Seq", "Folio", "Kind", "Deltas", "Cash", "Status"})
				for _, e := range entries {
					deltas := make([]string, 0, len(e.Instruction.Inventory))
					for _, d := range e.Instruction.Inventory {
						deltas = append(deltas, fmt.Sprintf("%s %s@%s %s", d.Op, d.ProductID, d.LocationID, d.Quantity))
					}
					cash := ""
					if cf := e.Instruction.CashFlow; cf != nil {
						cash = cf.Direction + " " + cf.Amount.String()
					}
					tw.AppendRow(table.Row{e.Seq, e.Instruction.Folio, e.Instruction.Kind, strings.Join(deltas, "; "), cash, e.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending or delivered")
	cmd.Flags().IntVar(&limit, "limit", 50, "max instructions")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), auth.PermEventsRead, func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				f.TenantID = tenantID
				f.Limit = n
				events, err := rt.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func rbacCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rbac",
		Short: "RBAC management",
	}
	cmd.AddCommand(rbacWhoamiCmd())
	cmd.AddCommand(rbacGrantCmd())
	cmd.AddCommand(rbacRevokeCmd())
	return cmd
}

func rbacWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show current actor roles and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd.Context(), "", func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				actor := viper.GetString("actor-id")
				roles, err := rt.Auth.ActorRoles(ctx, tenantID, actor)
				if err != nil {
					return err
				}
				perms, err := rt.Auth.ActorPermissions(ctx, tenantID, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(domain.ActorProfile{TenantID: tenantID, ActorID: actor, Roles: roles, Permissions: perms})
			})
		},
	}
}

func rbacGrantCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Grant role to actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withTenant(cmd.Context(), "", func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				if err := requireAdmin(ctx, rt, tenantID); err != nil {
					return err
				}
				return rt.Repo.GrantRole(ctx, tenantID, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rbacRevokeCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke-role",
		Short: "Revoke role from actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withTenant(cmd.Context(), "", func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				if err := requireAdmin(ctx, rt, tenantID); err != nil {
					return err
				}
				return rt.Repo.Revoke(ctx, tenantID, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apiKeyCreateCmd())
	cmd.AddCommand(apiKeyListCmd())
	cmd.AddCommand(apiKeyDeleteCmd())
	return cmd
}

func apiKeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key bound to the current tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withTenant(cmd.Context(), "", func(ctx context.Context, rt *app.Runtime, tenantID string) error {
				if err := requireAdmin(ctx, rt, tenantID); err != nil {
					return err
				}
				buf := make([]byte, 24)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				secret := "dfk_" + hex.EncodeToString(buf)
				key := domain.APIKey{
					ID:       uuid.NewString(),
					TenantID: tenantID,
					ActorID:  actor,
					Name:     name,
					KeyHash:  repo.HashAPIKey(secret),
				}
				if err := rt.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": secret, "actor_id": actor, "tenant_id": tenantID})
				}
				fmt.Printf("API key %s for %s in %s (shown once):\n%s\n", key.ID, actor, tenantID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "label")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				keys, err := rt.Repo.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apiKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return rt.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func storageCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "storage", Short: "Document store maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "create-tables",
		Short: "Create the DynamoDB tables named in docflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			d := cfg.Storage.DynamoDB
			client, err := dynamo.Connect(cmd.Context(), dynamo.Options{Region: d.Region, Endpoint: d.Endpoint})
			if err != nil {
				return err
			}
			tables := dynamo.Tables{
				Documents:   d.DocumentsTable,
				Signatures:  d.SignaturesTable,
				Transitions: d.TransitionsTable,
				Counters:    d.CountersTable,
				Outbox:      d.OutboxTable,
			}
			if err := dynamo.CreateTables(cmd.Context(), client, tables); err != nil {
				return err
			}
			fmt.Println("tables ready")
			return nil
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, legacyHeader, noRelay bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				authCfg := server.AuthConfig{
					JWTSecret:              os.Getenv("DOCFLOW_JWT_SECRET"),
					AllowLegacyActorHeader: legacyHeader,
					DevLogin:               devLogin,
				}
				if authCfg.JWTSecret == "" && !legacyHeader {
					return fmt.Errorf("DOCFLOW_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{
					Engine:        rt.Engine,
					Repo:          rt.Repo,
					Authz:         rt.Auth,
					BasePath:      basePath,
					Auth:          authCfg,
					DefaultTenant: rt.Config.Tenant.ID,
					CORSOrigins:   rt.Config.Server.CORSOrigins,
					Links:         signatureLinks(rt),
				})
				if err != nil {
					return err
				}
				if !noRelay {
					rt.Relay.Start(ctx)
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving docflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login (local use only)")
	cmd.Flags().BoolVar(&legacyHeader, "allow-actor-header", false, "trust X-Actor-Id without credentials (local use only)")
	cmd.Flags().BoolVar(&noRelay, "no-relay", false, "do not run the instruction relay in-process")
	return cmd
}

// --- helpers ---

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// withTenant resolves the tenant and, when perm is set, checks the actor holds it there.
// signatureLinks exposes the archive's presigner when one is configured.
func signatureLinks(rt *app.Runtime) server.SignatureLinks {
	if l, ok := rt.Engine.Archive.(server.SignatureLinks); ok {
		return l
	}
	return nil
}

func withTenant(ctx context.Context, perm string, fn func(context.Context, *app.Runtime, string) error) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		tenantID, err := app.ResolveTenant(ctx, viper.GetString("tenant"), rt.Config, rt.Repo)
		if err != nil {
			return err
		}
		if perm != "" {
			if err := rt.Auth.Require(ctx, tenantID, viper.GetString("actor-id"), perm); err != nil {
				return err
			}
		}
		return fn(ctx, rt, tenantID)
	})
}

func requireAdmin(ctx context.Context, rt *app.Runtime, tenantID string) error {
	roles, err := rt.Auth.ActorRoles(ctx, tenantID, viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	for _, r := range roles {
		if r == "admin" {
			return nil
		}
	}
	return auth.ForbiddenError{Permission: "role:admin", TenantID: tenantID}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func setEnvValue(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}
	env[key] = value
	return godotenv.Write(env, path)
}

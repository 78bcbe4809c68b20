package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"catreview/internal/app"
	"catreview/internal/config"
	"catreview/internal/db"
	"catreview/internal/domain"
	"catreview/internal/prep"
	"catreview/internal/seed"
	"catreview/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "catreview",
	Short: "Category Review CLI",
	Long: `Catreview runs the category review preparation workflow from the terminal.
The workflow is a guided wizard: three lever-analysis steps over the report
matrix, an e-com review, SKU detail, initiative prioritization and a final
summary. Initiatives collected along the way carry projected revenue and
margin impact; all state lives in the workspace .catreview database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CATREVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("force", false, "bypass step gating")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(stepCmd())
	rootCmd.AddCommand(leverCmd())
	rootCmd.AddCommand(initiativeCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if id == "" {
				return fmt.Errorf("--category required")
			}
			out := config.GenerateDefault(id)
			if name != "" {
				out = strings.Replace(out, "name: "+id, "name: "+name, 1)
			}
			if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
				return err
			}
			fmt.Printf("created %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "category", "", "category id")
	cmd.Flags().StringVar(&name, "name", "", "category display name")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s := a.Store
				current, _ := s.StepByID(s.CurrentStepID())
				out := map[string]any{
					"category":        a.Config.Category.Name,
					"current_step_id": s.CurrentStepID(),
					"current_step":    current.Name,
					"start_date":      s.StartDate(),
					"initiatives":     len(s.Initiatives()),
					"total_revenue":   s.TotalRevenue(),
					"total_margin":    s.TotalMargin(),
				}
				return printJSONOrTable(out)
			})
		},
	}
}

func stepCmd() *cobra.Command {
	step := &cobra.Command{Use: "step", Short: "Inspect and move wizard steps"}
	step.AddCommand(stepListCmd())
	step.AddCommand(stepShowCmd())
	step.AddCommand(stepSetCmd())
	step.AddCommand(stepCompleteCmd())
	step.AddCommand(stepSkipCmd())
	return step
}

func stepListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				steps := a.Store.Steps()
				if viper.GetBool("json") {
					return printJSON(steps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Levers", "Initiatives", "Revenue", "Margin"})
				for _, s := range steps {
					marker := ""
					if s.ID == a.Store.CurrentStepID() {
						marker = " *"
					}
					tw.AppendRow(table.Row{
						fmt.Sprintf("%d%s", s.ID, marker), s.Name, s.Status,
						fmt.Sprintf("%d/%d", len(s.LeversAnalyzed), len(s.LeverStates)),
						len(s.InitiativeIDs), s.TotalRevenueImpact, s.TotalMarginImpact,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func stepShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <step-id>",
		Short: "Show one step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				step, ok := a.Store.StepByID(id)
				if !ok {
					return fmt.Errorf("step %d not found", id)
				}
				return printJSONOrTable(step)
			})
		},
	}
}

func stepSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <step-id>",
		Aliases: []string{"goto"},
		Short:   "Move the wizard to a step",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, ok := a.Store.StepByID(id); !ok {
					return fmt.Errorf("step %d not found", id)
				}
				if !a.Store.CanProceedToStep(id) && !viper.GetBool("force") {
					return fmt.Errorf("cannot proceed to step %d: view every lever or add an initiative first (use --force to override)", id)
				}
				a.Store.SetCurrentStep(ctx, id)
				step, _ := a.Store.StepByID(id)
				return printJSONOrTable(step)
			})
		},
	}
}

func stepCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <step-id>",
		Short: "Mark a step completed",
		Args:  cobra.ExactArgs(1),
		RunE:  stepStatusRunE(func(ctx context.Context, s *prep.Store, id int) { s.CompleteStep(ctx, id) }),
	}
}

func stepSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <step-id>",
		Short: "Mark a step skipped",
		Args:  cobra.ExactArgs(1),
		RunE:  stepStatusRunE(func(ctx context.Context, s *prep.Store, id int) { s.SkipStep(ctx, id) }),
	}
}

func stepStatusRunE(apply func(context.Context, *prep.Store, int)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step id %q", args[0])
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if _, ok := a.Store.StepByID(id); !ok {
				return fmt.Errorf("step %d not found", id)
			}
			apply(ctx, a.Store, id)
			step, _ := a.Store.StepByID(id)
			return printJSONOrTable(step)
		})
	}
}

func leverCmd() *cobra.Command {
	lever := &cobra.Command{Use: "lever", Short: "Lever analysis within a step"}
	lever.AddCommand(leverViewCmd())
	lever.AddCommand(leverLightCmd())
	lever.AddCommand(leverNoteCmd())
	return lever
}

func leverViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <step-id> <lever>",
		Short: "Mark a lever viewed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.MarkLeverViewed(ctx, id, args[1])
				step, _ := a.Store.StepByID(id)
				return printJSONOrTable(step)
			})
		},
	}
}

func leverLightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "light <step-id> <lever> <red|yellow|green|none>",
		Short: "Set a lever traffic light",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step id %q", args[0])
			}
			light := args[2]
			if light == "none" {
				light = ""
			}
			switch domain.TrafficLight(light) {
			case domain.LightNone, domain.LightRed, domain.LightYellow, domain.LightGreen:
			default:
				return fmt.Errorf("invalid light %q", args[2])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.SetLeverTrafficLight(ctx, id, args[1], domain.TrafficLight(light))
				step, _ := a.Store.StepByID(id)
				return printJSONOrTable(step)
			})
		},
	}
}

func leverNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <step-id> <lever> <text>",
		Short: "Set lever insight notes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.SetLeverInsights(ctx, id, args[1], args[2])
				step, _ := a.Store.StepByID(id)
				return printJSONOrTable(step)
			})
		},
	}
}

type initiativeFlags struct {
	Description string
	ReportID    string
	Status      string
	Revenue     float64
	Margin      float64
	StartDate   string
	ImpactStart string
	ImpactCheck string
	Assignee    string
	ParentID    int
	SKUDetails  string
}

func initiativeCmd() *cobra.Command {
	ini := &cobra.Command{Use: "initiative", Short: "Manage initiatives"}
	ini.AddCommand(initiativeListCmd())
	ini.AddCommand(initiativeAddCmd())
	ini.AddCommand(initiativeShowCmd())
	ini.AddCommand(initiativeUpdateCmd())
	ini.AddCommand(initiativeRemoveCmd())
	ini.AddCommand(initiativeMoveCmd())
	return ini
}

func initiativeListCmd() *cobra.Command {
	var stepID int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var items []domain.Initiative
				if stepID > 0 {
					items = a.Store.InitiativesForStep(stepID)
				} else {
					items = a.Store.Initiatives()
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Description", "Report", "Status", "Revenue", "Margin", "Step", "Parent"})
				for _, t := range items {
					step, _ := a.Store.StepForInitiative(t.ID)
					parent := ""
					if t.ParentID != nil {
						parent = strconv.Itoa(*t.ParentID)
					}
					tw.AppendRow(table.Row{t.ID, t.Description, t.ReportID, t.Status, t.RevenueImpactMillion, t.MarginImpactMillion, step, parent})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&stepID, "step", 0, "filter by step id")
	return cmd
}

func initiativeAddCmd() *cobra.Command {
	var f initiativeFlags
	var stepID int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Attach an initiative to a step",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.Description == "" {
				return fmt.Errorf("--description required")
			}
			if stepID == 0 {
				return fmt.Errorf("--step required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, ok := a.Store.StepByID(stepID); !ok {
					return fmt.Errorf("step %d not found", stepID)
				}
				status := domain.InitiativeStatus(f.Status)
				if status == "" {
					status = domain.StatusNew
				}
				init := domain.Initiative{
					Description:          f.Description,
					ReportID:             f.ReportID,
					Status:               status,
					RevenueImpactMillion: f.Revenue,
					MarginImpactMillion:  f.Margin,
					StartDate:            f.StartDate,
					ImpactStartDate:      f.ImpactStart,
					ImpactCheckDate:      f.ImpactCheck,
					Assignee:             f.Assignee,
					SKUDetails:           f.SKUDetails,
				}
				if f.ParentID != 0 {
					init.ParentID = &f.ParentID
				}
				id := a.Store.AddInitiative(ctx, stepID, init)
				created, _ := a.Store.InitiativeByID(id)
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().IntVar(&stepID, "step", 0, "step id")
	cmd.Flags().StringVar(&f.Description, "description", "", "what to do")
	cmd.Flags().StringVar(&f.ReportID, "report", "", "source report id")
	cmd.Flags().StringVar(&f.Status, "status", "", "initiative status")
	cmd.Flags().Float64Var(&f.Revenue, "revenue", 0, "revenue impact, million")
	cmd.Flags().Float64Var(&f.Margin, "margin", 0, "margin impact, million")
	cmd.Flags().StringVar(&f.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.ImpactStart, "impact-start", "", "impact start date")
	cmd.Flags().StringVar(&f.ImpactCheck, "impact-check", "", "impact check date")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "responsible person")
	cmd.Flags().IntVar(&f.ParentID, "parent", 0, "parent initiative id")
	cmd.Flags().StringVar(&f.SKUDetails, "sku", "", "sku details")
	return cmd
}

func initiativeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		Aliases: []string{"tree", "score"},
		Short:   "Show an initiative with subtasks and detail score",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				init, ok := a.Store.InitiativeByID(id)
				if !ok {
					return fmt.Errorf("initiative %d not found", id)
				}
				score := prep.DetailScore(init, a.Store.Initiatives())
				return printJSONOrTable(map[string]any{
					"initiative": init,
					"subtasks":   a.Store.Subtasks(id),
					"score":      score,
					"label":      prep.ScoreLabel(score.Score),
				})
			})
		},
	}
}

func initiativeUpdateCmd() *cobra.Command {
	var f initiativeFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch an initiative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, ok := a.Store.InitiativeByID(id); !ok {
					return fmt.Errorf("initiative %d not found", id)
				}
				var upd prep.InitiativeUpdate
				if cmd.Flags().Changed("description") {
					upd.Description = &f.Description
				}
				if cmd.Flags().Changed("report") {
					upd.ReportID = &f.ReportID
				}
				if cmd.Flags().Changed("status") {
					status := domain.InitiativeStatus(f.Status)
					upd.Status = &status
				}
				if cmd.Flags().Changed("revenue") {
					upd.RevenueImpactMillion = &f.Revenue
				}
				if cmd.Flags().Changed("margin") {
					upd.MarginImpactMillion = &f.Margin
				}
				if cmd.Flags().Changed("start") {
					upd.StartDate = &f.StartDate
				}
				if cmd.Flags().Changed("impact-start") {
					upd.ImpactStartDate = &f.ImpactStart
				}
				if cmd.Flags().Changed("impact-check") {
					upd.ImpactCheckDate = &f.ImpactCheck
				}
				if cmd.Flags().Changed("assignee") {
					upd.Assignee = &f.Assignee
				}
				if cmd.Flags().Changed("sku") {
					upd.SKUDetails = &f.SKUDetails
				}
				a.Store.UpdateInitiative(ctx, id, upd)
				updated, _ := a.Store.InitiativeByID(id)
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&f.Description, "description", "", "what to do")
	cmd.Flags().StringVar(&f.ReportID, "report", "", "source report id")
	cmd.Flags().StringVar(&f.Status, "status", "", "initiative status")
	cmd.Flags().Float64Var(&f.Revenue, "revenue", 0, "revenue impact, million")
	cmd.Flags().Float64Var(&f.Margin, "margin", 0, "margin impact, million")
	cmd.Flags().StringVar(&f.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.ImpactStart, "impact-start", "", "impact start date")
	cmd.Flags().StringVar(&f.ImpactCheck, "impact-check", "", "impact check date")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "responsible person")
	cmd.Flags().StringVar(&f.SKUDetails, "sku", "", "sku details")
	return cmd
}

func initiativeRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an initiative and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.RemoveInitiative(ctx, id)
				fmt.Printf("removed %d\n", id)
				return nil
			})
		},
	}
}

func initiativeMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <step-id>",
		Short: "Re-home an initiative on another step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id %q", args[0])
			}
			stepID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid step id %q", args[1])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, ok := a.Store.StepByID(stepID); !ok {
					return fmt.Errorf("step %d not found", stepID)
				}
				a.Store.SetInitiativeStep(ctx, id, stepID)
				updated, _ := a.Store.InitiativeByID(id)
				return printJSONOrTable(updated)
			})
		},
	}
}

func catalogCmd() *cobra.Command {
	cat := &cobra.Command{Use: "catalog", Short: "Static report catalog"}
	cat.AddCommand(catalogMatrixCmd())
	cat.AddCommand(catalogCellCmd())
	cat.AddCommand(catalogReportCmd())
	return cat
}

func catalogReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <report-id>",
		Short: "Resolve a report id to its name and analysis step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stepID, ok := a.Catalog.StepForReport(args[0])
				if !ok {
					return fmt.Errorf("report %s not found", args[0])
				}
				return printJSONOrTable(map[string]any{
					"id":      args[0],
					"title":   a.Catalog.ReportName(args[0]),
					"step_id": stepID,
				})
			})
		},
	}
}

func catalogMatrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Report matrix with per-cell statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cells := a.Catalog.AllCells()
				if viper.GetBool("json") {
					return printJSON(cells)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Lever", "Stage", "Reports", "New", "New %", "Light"})
				for _, c := range cells {
					tw.AppendRow(table.Row{
						c.Lever, c.Stage, c.TotalReports, c.NewReportsCount, c.NewReportsPercent,
						a.Catalog.TrafficLightForLever(c.Lever, c.Stage),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func catalogCellCmd() *cobra.Command {
	var lever, stage string
	cmd := &cobra.Command{
		Use:   "cell",
		Short: "Resolve one matrix cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lever == "" || stage == "" {
				return fmt.Errorf("--lever and --stage required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cell, ok := a.Catalog.Cell(lever, stage)
				if !ok {
					return fmt.Errorf("no cell for %q / %q", lever, stage)
				}
				return printJSONOrTable(cell)
			})
		},
	}
	cmd.Flags().StringVar(&lever, "lever", "", "lever name")
	cmd.Flags().StringVar(&stage, "stage", "", "stage name")
	return cmd
}

func seedCmd() *cobra.Command {
	var statsOnly bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Merge the bundled fixture into the workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := seed.Tasks()
			if err != nil {
				return err
			}
			if statsOnly {
				return printJSONOrTable(seed.Summarize(tasks))
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.SeedFromTasks(ctx, tasks)
				return printJSONOrTable(seed.Summarize(tasks))
			})
		},
	}
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "print fixture statistics without seeding")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard all workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.ResetPreparation(ctx)
				fmt.Println("workflow reset")
				return nil
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Recent workflow events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Events.Recent(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Step", "Lever", "Initiative"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.StepID, e.Lever, e.InitiativeID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()
			workspace := viper.GetString("workspace")
			a, err := app.Open(cmd.Context(), workspace, log)
			if err != nil {
				return err
			}
			defer a.Close()
			secret := os.Getenv("CATREVIEW_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("CATREVIEW_JWT_SECRET is required for bearer auth")
			}
			if addr == "" {
				addr = a.Config.Server.Addr
			}
			handler, err := server.New(server.Config{
				App:      a,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:       secret,
					Password:        a.Config.Auth.Password,
					TokenTTLSeconds: a.Config.Auth.TokenTTLSeconds,
					Logger:          log,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Category Review API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	workspace := viper.GetString("workspace")
	a, err := app.Open(ctx, workspace, zap.NewNop())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
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

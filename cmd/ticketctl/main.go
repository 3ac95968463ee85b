package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fieldops/maintenance-ticketing/internal/auth"
	"github.com/fieldops/maintenance-ticketing/internal/config"
	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/geofence"
	"github.com/fieldops/maintenance-ticketing/internal/observability"
	"github.com/fieldops/maintenance-ticketing/internal/persistence"
	"github.com/fieldops/maintenance-ticketing/internal/sla"
	"github.com/fieldops/maintenance-ticketing/internal/workflow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "ticketctl",
		Short:         "Operator tooling for the maintenance ticketing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "output JSON")
	_ = v.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(tokenCmd(v))
	root.AddCommand(migrateCmd())
	root.AddCommand(slaCmd(v))
	root.AddCommand(workflowCmd(v))
	root.AddCommand(geofenceCmd(v))
	return root
}

func tokenCmd(v *viper.Viper) *cobra.Command {
	var actor domain.Actor
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor.Role = domain.Role(role)
			if strings.TrimSpace(actor.ID) == "" {
				return fmt.Errorf("--actor-id is required")
			}
			if !actor.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			tokens := auth.NewTokenManager(v.GetString("auth-jwt-secret"), v.GetInt("auth-access-token-ttl-minutes"))
			token, expiresAt, err := tokens.GenerateToken(actor)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), map[string]any{"token": token, "expires_at": expiresAt})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor.ID, "actor-id", "", "actor identifier")
	cmd.Flags().StringVar(&actor.Name, "name", "", "actor display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleTechnician), "requester, technician, supervisor or admin")
	cmd.Flags().String("secret", "dev-secret", "signing secret (AUTH_JWT_SECRET)")
	cmd.Flags().Int("ttl-minutes", 60, "token lifetime (AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = v.BindPFlag("auth-jwt-secret", cmd.Flags().Lookup("secret"))
	_ = v.BindPFlag("auth-access-token-ttl-minutes", cmd.Flags().Lookup("ttl-minutes"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to POSTGRES_DSN",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return fmt.Errorf("POSTGRES_DSN is required")
			}
			logger, err := observability.NewLogger(cfg.Logger, cfg.App)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger); err != nil {
				return err
			}
			logger.Info("migrations applied", zap.String("database", pg.PoolHandle().Config().ConnConfig.Database))
			return nil
		},
	}
}

func slaCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Show the priority SLA matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			matrix, err := sla.LoadMatrix(v.GetString("sla-matrix-path"))
			if err != nil {
				return err
			}
			defs := matrix.Definitions()
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), defs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Level", "Response (h)", "Resolution (h)"})
			for _, def := range defs {
				tw.AppendRow(table.Row{def.Level, def.ResponseHours, def.ResolutionHours})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().String("file", "", "YAML matrix file (SLA_MATRIX_PATH)")
	_ = v.BindPFlag("sla-matrix-path", cmd.Flags().Lookup("file"))
	return cmd
}

func workflowCmd(v *viper.Viper) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Show the status transition table for a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := domain.Category(strings.ToLower(category))
			if !cat.Valid() {
				return fmt.Errorf("unknown category %q", category)
			}
			machine := workflow.NewMachine(nil)
			rows := make(map[domain.TicketStatus][]domain.TicketStatus)
			var order []domain.TicketStatus
			for _, status := range domain.AllStatuses {
				if machine.ValidStatus(cat, status) {
					order = append(order, status)
					rows[status] = machine.Allowed(cat, status)
				}
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"From", "Allowed"})
			for _, status := range order {
				targets := make([]string, 0, len(rows[status]))
				for _, to := range rows[status] {
					targets = append(targets, string(to))
				}
				allowed := strings.Join(targets, ", ")
				if allowed == "" {
					allowed = "(terminal)"
				}
				tw.AppendRow(table.Row{status, allowed})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryCM), "pm or cm")
	return cmd
}

func geofenceCmd(v *viper.Viper) *cobra.Command {
	var accuracy float64
	cmd := &cobra.Command{
		Use:   "geofence <site-lat> <site-lng> <work-lat> <work-lng>",
		Short: "Check a work location against a site",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords := make([]float64, len(args))
			for i, arg := range args {
				val, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				coords[i] = val
			}
			site := domain.Coordinate{Lat: coords[0], Lng: coords[1]}
			work := domain.Coordinate{Lat: coords[2], Lng: coords[3]}
			var acc *float64
			if cmd.Flags().Changed("accuracy") {
				acc = &accuracy
			}
			res := geofence.Verify(&site, &work, acc, v.GetFloat64("geofence-tolerance-meters"))
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), res)
			}
			verdict := "inside"
			if !res.IsValid {
				verdict = "outside"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.1fm from site (tolerance %.1fm)", verdict, res.DistanceMeters, res.ToleranceMeters)
			if res.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " [%s]", res.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "reported GPS accuracy in meters")
	cmd.Flags().Float64("tolerance", 50, "tolerance radius in meters (GEOFENCE_TOLERANCE_METERS)")
	_ = v.BindPFlag("geofence-tolerance-meters", cmd.Flags().Lookup("tolerance"))
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

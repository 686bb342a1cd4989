// Report commands: record, list, and count field observations.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/aegis/internal/position"
	"github.com/mesh-intelligence/aegis/internal/store"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Manage incident reports",
	}
	cmd.AddCommand(newReportAddCmd())
	cmd.AddCommand(newReportListCmd())
	cmd.AddCommand(reportPendingCmd)
	return cmd
}

func newReportAddCmd() *cobra.Command {
	var (
		incidentType string
		severity     int
		lat, lon     float64
		photoPath    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new incident report in the local store",
		Long: `Record a new incident report. The report is saved locally and
synchronized with the remote authority on the next sync pass. When
--lat/--lon are omitted the configured positioning source is queried,
falling back to the default coordinates on error or timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := types.ReportInput{
				IncidentType: incidentType,
				Severity:     severity,
				Latitude:     lat,
				Longitude:    lon,
			}

			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				var src types.PositionSource
				if cfg.PositionURL != "" {
					src = position.NewHTTPSource(cfg.PositionURL)
				}
				resolver := position.NewResolver(src, cfg.PositionTimeout)
				pos, fromSource := resolver.Resolve(cmd.Context())
				input.Latitude = pos.Latitude
				input.Longitude = pos.Longitude
				if !fromSource {
					fmt.Fprintln(os.Stderr, "position unavailable; using default coordinates")
				}
			}

			if photoPath != "" {
				raw, err := os.ReadFile(photoPath)
				if err != nil {
					return fmt.Errorf("read photo: %w", err)
				}
				input.Photo = base64.StdEncoding.EncodeToString(raw)
			}

			id, err := db.CreateReport(input)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}

			pending, err := db.PendingCount()
			if err != nil {
				return fmt.Errorf("pending count: %w", err)
			}
			fmt.Printf("Report %d saved locally (%d pending sync)\n", id, pending)
			return nil
		},
	}

	cmd.Flags().StringVar(&incidentType, "type", "", "incident category (Road Block, Flood, Landslide, Power Failure)")
	cmd.Flags().IntVar(&severity, "severity", 3, "severity 1-5, 1 most severe")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude (default: positioning source)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude (default: positioning source)")
	cmd.Flags().StringVar(&photoPath, "photo", "", "path to a photo to attach (max 2 MiB encoded)")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newReportListCmd() *cobra.Command {
	var (
		incidentType string
		pendingOnly  bool
		oldestFirst  bool
		jsonMode     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List locally stored reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.Filter{IncidentType: incidentType}
			if pendingOnly {
				pending := false
				filter.Synced = &pending
			}
			if oldestFirst {
				filter.Order = store.OrderOldestFirst
			}

			reports, err := db.ListReports(filter)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}

			if jsonMode {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}

			for _, r := range reports {
				state := "pending"
				if r.Synced {
					state = "synced"
				}
				fmt.Printf("%4d  %-13s  %-8s  (%.4f, %.4f)  %s  [%s]\n",
					r.ID, r.IncidentType, r.SeverityLabel,
					r.Latitude, r.Longitude,
					time.UnixMilli(r.Timestamp).Format(time.RFC3339),
					state)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&incidentType, "type", "", "filter by incident category")
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "show only unsynchronized reports")
	cmd.Flags().BoolVar(&oldestFirst, "oldest-first", false, "sort by creation order instead of newest first")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output in JSON format")

	return cmd
}

var reportPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print the number of reports awaiting synchronization",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := db.PendingCount()
		if err != nil {
			return fmt.Errorf("pending count: %w", err)
		}
		fmt.Println(n)
		return nil
	},
}

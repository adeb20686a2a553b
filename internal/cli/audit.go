package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository/postgres"
	"municipal-library-backend/internal/service"
)

// AuditListOptions holds flags for the audit list command.
type AuditListOptions struct {
	*RootOptions
	EntityType string
	EntityID   string
	ActorID    int32
	Since      time.Duration
	Limit      int32
}

// NewAuditCommand groups the audit trail commands.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	cmd.AddCommand(newAuditListCommand(rootOpts))
	return cmd
}

func newAuditListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Long: `List audit entries, newest first.

Examples:
  libctl audit list --entity-type loan --entity-id 42
  libctl audit list --actor-id 7 --since 24h --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.NewAuditService(postgres.NewStore(db).AuditQueryRepository)
			entries, err := svc.List(cmd.Context(), opts.filter(time.Now()))
			if err != nil {
				return err
			}
			return writeAuditEntries(cmd.OutOrStdout(), opts.Format, entries)
		},
	}

	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "filter by entity type (loan, item, sanction)")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "filter by entity id")
	cmd.Flags().Int32Var(&opts.ActorID, "actor-id", 0, "filter by acting user id")
	cmd.Flags().DurationVar(&opts.Since, "since", 0, "only entries newer than this duration")
	cmd.Flags().Int32Var(&opts.Limit, "limit", 50, "maximum number of entries")

	return cmd
}

func (o *AuditListOptions) filter(now time.Time) domain.AuditFilter {
	f := domain.AuditFilter{
		EntityType: o.EntityType,
		EntityID:   o.EntityID,
		Limit:      o.Limit,
	}
	if o.ActorID > 0 {
		id := o.ActorID
		f.ActorID = &id
	}
	if o.Since > 0 {
		from := now.Add(-o.Since)
		f.From = &from
	}
	return f
}

func writeAuditEntries(w io.Writer, format string, entries []domain.AuditEntry) error {
	if format == "json" {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tACTOR\tACTION\tENTITY\tREQUEST")
	for _, e := range entries {
		actor := "system"
		if e.ActorID != nil {
			actor = fmt.Sprintf("%d", *e.ActorID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s/%s\t%s\n",
			e.ID, e.CreatedAt.UTC().Format(time.RFC3339), actor, e.Action, e.EntityType, e.EntityID, e.RequestID)
	}
	return tw.Flush()
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"municipal-library-backend/internal/jobs"
	"municipal-library-backend/internal/repository/postgres"
	"municipal-library-backend/internal/service"
)

// NewJobsCommand groups the scheduled job commands.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run scheduled jobs by hand",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "run [refresh-overdue-loans|send-overdue-reminders|all-nightly]",
		Short:        "Run one job and exit",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := connect(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			emailSvc, err := service.NewEmailServiceFromConfig(cfg.Email)
			if err != nil {
				return err
			}
			runner := jobs.NewJobRunner(postgres.NewStore(db).Repositories(), emailSvc, cfg.Scheduler)

			switch args[0] {
			case "refresh-overdue-loans":
				return runner.RefreshOverdueLoans()
			case "send-overdue-reminders":
				return runner.SendOverdueReminders()
			case "all-nightly":
				return runner.RunAllNightlyJobs()
			default:
				return fmt.Errorf("unknown job %q", args[0])
			}
		},
	})
	return cmd
}

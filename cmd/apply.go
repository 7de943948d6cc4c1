package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/assist"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/attachment"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/browser"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/engine"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/humanoid"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/observability"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/profile"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/result"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/screening"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/selectors"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/state"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/synthesis"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/validation"
)

// newApplyCmd creates and configures the `apply` command.
func newApplyCmd() *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply --url <posting-url> --applicant <id>",
		Short: "Completes one application form end to end",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("results.path", cmd.Flags().Lookup("results")); err != nil {
				return err
			}
			if err := viper.BindPFlag("portals.dir", cmd.Flags().Lookup("portals-dir")); err != nil {
				return err
			}
			if err := viper.BindPFlag("portals.profile_path", cmd.Flags().Lookup("profile")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("documents.resume_path", cmd.Flags().Lookup("resume")); err != nil {
				return err
			}
			return viper.BindPFlag("documents.cover_letter_path", cmd.Flags().Lookup("cover-letter"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			targetURL, _ := cmd.Flags().GetString("url")
			applicantID, _ := cmd.Flags().GetString("applicant")
			resumeSession, _ := cmd.Flags().GetString("resume-session")

			registry, err := selectors.Load(cfg.Portals.Dir, logger)
			if err != nil {
				return err
			}
			profiles, err := profile.NewFileStore(cfg.Portals.ProfilePath)
			if err != nil {
				return err
			}

			var checkpoints schemas.CheckpointStore
			switch cfg.Checkpoint.Backend {
			case "postgres":
				pool, err := pgxpool.New(ctx, cfg.Checkpoint.DSN)
				if err != nil {
					return fmt.Errorf("failed to create database pool: %w", err)
				}
				defer pool.Close()
				checkpoints, err = state.New(ctx, pool, cfg.Checkpoint.StalenessWindow, logger)
				if err != nil {
					return err
				}
			default:
				checkpoints = state.NewMemoryStore(cfg.Checkpoint.StalenessWindow)
			}

			var assistClient schemas.AssistClient
			httpAssist, err := assist.NewHTTPClient(cfg.Assist, logger)
			if err != nil {
				return err
			}
			if httpAssist != nil {
				assistClient = httpAssist
			}

			pacer := humanoid.NewPacer(cfg.Humanoid, logger, nil)
			driver, err := browser.NewDriver(ctx, cfg.Browser, pacer, logger)
			if err != nil {
				return err
			}
			defer driver.Close()

			sink, err := result.NewJSONLSink(cfg.Results.Path, logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			eng := engine.New(cfg.Engine, cfg.Documents, engine.Deps{
				Driver:      driver,
				Registry:    registry,
				Detector:    screening.NewDetector(logger),
				Validator:   validation.NewHandler(logger),
				Synthesizer: synthesis.New(assistClient, cfg.Engine.EscalationThreshold, cfg.Assist.Timeout, logger),
				Attachments: attachment.NewHandler(driver, pacer, cfg.Engine.MaxUploadAttempts, logger),
				Checkpoints: checkpoints,
				Profiles:    profiles,
				Sink:        sink,
				Logger:      logger,
			})

			res, err := eng.Run(ctx, engine.Request{
				TargetURL:       targetURL,
				ApplicantID:     applicantID,
				ResumeSessionID: resumeSession,
			})
			if err != nil {
				return err
			}

			logger.Info("Session finished",
				zap.String("session_id", res.SessionID),
				zap.String("status", string(res.Status)),
				zap.Ints("pages_completed", res.PagesCompleted),
				zap.Duration("duration", res.Duration))

			if res.Status == schemas.StatusFailed {
				return fmt.Errorf("application %s failed; see result record for detail", res.SessionID)
			}
			return nil
		},
	}

	applyCmd.Flags().String("url", "", "URL of the job posting's application form (required)")
	applyCmd.Flags().String("applicant", "", "applicant profile id (required)")
	applyCmd.Flags().String("resume-session", "", "session id to resume from checkpoint")
	applyCmd.Flags().String("results", "", "result sink path (JSONL; '-' for stdout)")
	applyCmd.Flags().String("portals-dir", "", "directory of portal selector mappings")
	applyCmd.Flags().String("profile", "", "applicant profile JSON file")
	applyCmd.Flags().String("resume", "", "path to the tailored resume document")
	applyCmd.Flags().String("cover-letter", "", "path to the tailored cover letter document")
	applyCmd.Flags().Bool("headless", true, "run the browser headless")

	_ = applyCmd.MarkFlagRequired("url")
	_ = applyCmd.MarkFlagRequired("applicant")

	return applyCmd
}

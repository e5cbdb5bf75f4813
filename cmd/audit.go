package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auditor-cli/internal/auditor"
	"github.com/sells-group/auditor-cli/internal/checks"
	"github.com/sells-group/auditor-cli/internal/config"
	"github.com/sells-group/auditor-cli/internal/metadata"
	"github.com/sells-group/auditor-cli/internal/model"
	"github.com/sells-group/auditor-cli/internal/notify"
	"github.com/sells-group/auditor-cli/internal/report"
	"github.com/sells-group/auditor-cli/internal/resilience"
	"github.com/sells-group/auditor-cli/internal/store"
)

var (
	auditDry        bool
	auditSaveReport bool
	auditVerbose    bool
)

var auditCmd = &cobra.Command{
	Use:   "audit [ITEM...]",
	Short: "Check and fix hosted items",
	Long:  "Checks every monitored item, or only the listed item ids, against the metatables and fixes what differs. With --dry only the checks run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("audit"); err != nil {
			return err
		}
		if auditVerbose {
			logCfg := cfg.Log
			logCfg.Level = "debug"
			if err := config.InitLogger(logCfg); err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		portal := initPortal()
		tables, closeTables, err := initMetatables(ctx, portal)
		defer closeTables()
		if err != nil {
			return err
		}

		rules, err := checks.LoadRules(cfg.Audit.TagRulesFile)
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		sinks := []auditor.Sink{&store.Sink{Store: st, RunID: runID}}
		if auditSaveReport {
			w, err := report.New(cfg.Report.Format, cfg.Report.Path, cfg.Report.Separator, cfg.Report.RotateCount)
			if err != nil {
				return err
			}
			sinks = append(sinks, w)
		}

		a := auditor.New(portal, auditor.Options{
			Tables:        tables,
			Rules:         rules,
			ThumbnailDir:  cfg.Audit.ThumbnailDir,
			CacheMaxAge:   cfg.Audit.CacheMaxAge,
			Metadata:      metadata.NewDirSource(cfg.Audit.MetadataDir),
			MonitoredType: cfg.Audit.MonitoredType,
			ItemIDs:       args,
			RunID:         runID,
			Retry:         resilience.FromRetrySettings(cfg.Retry.MaxRetries, cfg.Retry.DelaySecs),
			Verbose:       auditVerbose,
			Sinks:         sinks,
		})

		_, err = executeAudit(ctx, a, st, notify.NewWebhook(cfg.Notify.WebhookURL), auditDry, args, os.Stdout)
		return err
	},
}

// auditRunner is the part of auditor.Auditor the audit command drives.
type auditRunner interface {
	RunID() string
	Run(ctx context.Context, dry bool) (*model.Run, error)
}

// executeAudit records the run as running, runs it, saves the outcome and
// sends the summary. The outcome is saved and sent even when the run was
// interrupted.
func executeAudit(ctx context.Context, a auditRunner, st store.Store, hook *notify.Webhook, dry bool, itemIDs []string, out io.Writer) (*model.Run, error) {
	if err := st.SaveRun(ctx, &model.Run{
		ID:        a.RunID(),
		Status:    model.RunStatusRunning,
		Dry:       dry,
		ItemIDs:   itemIDs,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		return nil, eris.Wrap(err, "audit: record run")
	}

	run, runErr := a.Run(ctx, dry)
	if run == nil {
		return nil, eris.Wrap(runErr, "audit")
	}

	saveCtx := context.WithoutCancel(ctx)
	if err := st.SaveRun(saveCtx, run); err != nil {
		zap.L().Error("audit: failed to save run", zap.String("run_id", run.ID), zap.Error(err))
		if runErr == nil {
			runErr = eris.Wrap(err, "audit: save run")
		}
	}
	if err := hook.Notify(saveCtx, run); err != nil {
		zap.L().Warn("audit: summary not sent", zap.String("run_id", run.ID), zap.Error(err))
	}

	if run.Summary != "" {
		_, _ = fmt.Fprintln(out, run.Summary)
	}
	_, _ = fmt.Fprintf(out, "Run %s %s (%d items)\n", run.ID, run.Status, run.ItemCount)

	if runErr != nil {
		return run, eris.Wrap(runErr, "audit")
	}
	return run, nil
}

func init() {
	auditCmd.Flags().BoolVar(&auditDry, "dry", false, "run the checks without fixing anything")
	auditCmd.Flags().BoolVar(&auditSaveReport, "save-report", false, "write the report file")
	auditCmd.Flags().BoolVar(&auditVerbose, "verbose", false, "log debug output and every changed result")
	rootCmd.AddCommand(auditCmd)
}

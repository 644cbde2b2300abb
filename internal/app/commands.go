package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smartgriev/internal/classifier"
	"smartgriev/internal/domain"
	"smartgriev/internal/escalation"
	"smartgriev/internal/intake"
	"smartgriev/internal/scheduler"
	"smartgriev/internal/storage/sqlite"
	"smartgriev/internal/translate"
)

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled escalation sweeps and expose /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			notifier, slackNotifier := buildNotifier(rt.cfg, store)
			engine := buildEngine(rt.cfg, store, notifier, rt.metrics)

			job := func(ctx context.Context) {
				report, err := engine.RunSweep(ctx, escalation.SweepOptions{
					AgeThresholdDays:  rt.cfg.EscalationDays,
					SendNotifications: rt.cfg.NotificationsEnabled(),
				})
				if err != nil {
					log.Printf("Escalation sweep error: %v", err)
					return
				}
				summary := escalation.Summary(report)
				log.Printf("Escalation sweep complete: %s", summary)
				if slackNotifier != nil && report.Escalated > 0 {
					if err := slackNotifier.PostSummary(ctx, summary); err != nil {
						log.Printf("Escalation summary post error: %v", err)
					}
				}
			}
			sched, err := scheduler.New("escalation sweep", rt.cfg.EscalationSchedule, rt.cfg.Location, job)
			if err != nil {
				return err
			}
			sched.Start(ctx)

			mux := http.NewServeMux()
			mux.Handle("/metrics", rt.metrics.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			srv := &http.Server{Addr: rt.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("Metrics listening on %s", rt.cfg.MetricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return fmt.Errorf("metrics server: %w", err)
			}
			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newSweepCommand(rt *runtime) *cobra.Command {
	var (
		days   int
		dryRun bool
		send   bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Escalate complaints pending longer than the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if !cmd.Flags().Changed("days") {
				days = rt.cfg.EscalationDays
			}
			if !cmd.Flags().Changed("send-notifications") {
				send = rt.cfg.NotificationsEnabled()
			}

			notifier, _ := buildNotifier(rt.cfg, store)
			report, err := buildEngine(rt.cfg, store, notifier, rt.metrics).RunSweep(cmd.Context(), escalation.SweepOptions{
				AgeThresholdDays:  days,
				DryRun:            dryRun,
				SendNotifications: send,
			})
			if err != nil {
				return err
			}
			renderSweep(rt, report)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "age threshold in days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be escalated without saving")
	cmd.Flags().BoolVar(&send, "send-notifications", true, "notify filers and staff")
	return cmd
}

func renderSweep(rt *runtime, report domain.SweepReport) {
	t := table.NewWriter()
	t.SetOutputMirror(rt.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Complaint", "Days", "Priority", "Urgency", "Escalation #"})
	for _, d := range report.Decisions {
		t.AppendRow(table.Row{
			d.ComplaintID,
			d.DaysPending,
			fmt.Sprintf("%s -> %s", d.OldPriority, d.NewPriority),
			fmt.Sprintf("%s -> %s", d.OldUrgency, d.NewUrgency),
			d.EscalationCount,
		})
	}
	for _, e := range report.Errors {
		t.AppendRow(table.Row{e.ComplaintID, "-", "failed", e.Err.Error(), "-"})
	}
	if t.Length() > 0 {
		t.Render()
	}
	fmt.Fprintln(rt.out, escalation.Summary(report))
}

func newClassifyCommand(rt *runtime) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify complaint text into a department",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildClassifier(rt.cfg, rt.metrics)
			if err != nil {
				return err
			}
			res := c.Classify(cmd.Context(), strings.Join(args, " "), title)
			fmt.Fprintf(rt.out, "department: %s\nconfidence: %.2f\nurgency:    %s\nmethod:     %s\nreasoning:  %s\n",
				res.Department, res.Confidence, res.Urgency, res.Method, res.Reasoning)
			if res.Error != "" {
				fmt.Fprintf(rt.out, "fallback:   %s\n", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "complaint title")
	return cmd
}

func newTranslateCommand(rt *runtime) *cobra.Command {
	var target, source string
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text through the provider chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = rt.cfg.DefaultLanguage
			}
			out, ok := buildTranslator(rt.cfg, rt.metrics).Translate(cmd.Context(), strings.Join(args, " "), target, source)
			fmt.Fprintln(rt.out, out)
			if !ok {
				return errors.New("translation failed on every provider; printed original text")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target language (default: default_language)")
	cmd.Flags().StringVar(&source, "from", "", "source language (detected when empty)")
	return cmd
}

func newDetectCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text]",
		Short: "Detect the language of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, ok := translate.DetectLanguage(strings.Join(args, " "))
			if !ok {
				return errors.New("no text to detect")
			}
			fmt.Fprintf(rt.out, "%s (%s)\n", code, translate.DisplayName(code))
			return nil
		},
	}
}

func newFileCommand(rt *runtime) *cobra.Command {
	var req intake.Request
	cmd := &cobra.Command{
		Use:   "file [text]",
		Short: "File a complaint: translate, classify and store it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := buildClassifier(rt.cfg, rt.metrics)
			if err != nil {
				return err
			}
			if req.Language != "" {
				code, err := translate.Canonical(req.Language)
				if err != nil || !translate.IsSupported(code) {
					return fmt.Errorf("unsupported language %q (supported: %s)", req.Language, strings.Join(translate.Supported, ", "))
				}
				req.Language = code
			}
			req.Text = strings.Join(args, " ")
			res, err := intake.NewService(c, buildTranslator(rt.cfg, rt.metrics), store).File(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "complaint %s filed: department=%s priority=%s urgency=%s method=%s\n",
				res.Complaint.ID, res.Complaint.DepartmentCode, res.Complaint.Priority, res.Complaint.Urgency, res.Classification.Method)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "complaint title")
	cmd.Flags().StringVar(&req.Language, "lang", "", "language of the text (detected when empty)")
	cmd.Flags().StringVar(&req.Category, "category", "", "category")
	cmd.Flags().StringVar(&req.FiledBy, "filed-by", "", "filer user reference")
	return cmd
}

func newDepartmentsCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "departments",
		Short: "Manage the department registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert the default departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.SeedDepartments(cmd.Context(), sqlite.DefaultDepartments)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "seeded %d departments\n", n)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			depts, err := store.ListDepartments(cmd.Context(), false)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(rt.out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Zone", "Email", "Slack", "Active"})
			for _, d := range depts {
				t.AppendRow(table.Row{d.ID, d.Name, d.Zone, d.ContactEmail, d.SlackChannelID, d.Active})
			}
			t.Render()
			return nil
		},
	})
	return cmd
}

func newGlossaryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Manage phrases pinned to a department",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add [department] [phrase]",
		Short: "Pin a phrase to a department code",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.LLMGlossaryPath == "" {
				return errors.New("llm_glossary_path is not configured")
			}
			code, ok := domain.ParseDepartmentCode(args[0])
			if !ok {
				return fmt.Errorf("unknown department %q", args[0])
			}
			phrase := strings.Join(args[1:], " ")
			if err := classifier.AppendGlossaryTerm(rt.cfg.LLMGlossaryPath, phrase, code); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "%q -> %s\n", phrase, code)
			return nil
		},
	})
	return cmd
}

func newComplaintsCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "Inspect and update stored complaints",
	}

	var status, priority string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List complaints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			var p domain.Priority
			if priority != "" {
				parsed, ok := domain.ParsePriority(strings.ToLower(priority))
				if !ok {
					return fmt.Errorf("unknown priority %q", priority)
				}
				p = parsed
			}
			complaints, err := store.ListComplaints(cmd.Context(), domain.ComplaintStatus(status), p, limit)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(rt.out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Title", "Department", "Status", "Priority", "Urgency", "Escalations", "Filed"})
			for _, c := range complaints {
				t.AppendRow(table.Row{c.ID, c.Title, c.DepartmentCode, c.Status, c.Priority, c.Urgency, c.EscalationCount, c.CreatedAt.Format("2006-01-02")})
			}
			t.Render()
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "only complaints with this status")
	list.Flags().StringVar(&priority, "priority", "", "only complaints with this priority")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	setStatus := &cobra.Command{
		Use:   "set-status [id] [status]",
		Short: "Move a complaint to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.ComplaintStatus(strings.ToLower(args[1]))
			switch st {
			case domain.StatusPending, domain.StatusInProgress, domain.StatusResolved, domain.StatusRejected, domain.StatusClosed:
			default:
				return fmt.Errorf("unknown status %q", args[1])
			}
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.UpdateComplaintStatus(cmd.Context(), args[0], st); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "complaint %s is now %s\n", args[0], st)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count classifications by method",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			counts, err := store.ClassificationStats(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range []domain.ClassificationMethod{domain.MethodLLM, domain.MethodGlossary, domain.MethodKeyword} {
				fmt.Fprintf(rt.out, "%-9s %d\n", m, counts[m])
			}
			return nil
		},
	}

	cmd.AddCommand(list, setStatus, stats)
	return cmd
}

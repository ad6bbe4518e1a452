package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
	"github.com/uwscope/scope-web-sub000/internal/forms"
	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/pushsub"
	"github.com/uwscope/scope-web-sub000/internal/service"
	"github.com/uwscope/scope-web-sub000/internal/store"
)

type loginOptions struct {
	username    string
	password    string
	newPassword string
	code        string
	forgot      bool
}

func loginCmd() *cobra.Command {
	var opts loginOptions
	var verbose bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), verbose)
			if err != nil {
				return err
			}
			if err := runLogin(cmd.Context(), c.auth, newPrompter(cmd), opts); err != nil {
				return err
			}
			id, _ := c.auth.Identity()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", id.Name, id.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "", "Account name")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password, prompted when empty")
	cmd.Flags().StringVar(&opts.newPassword, "new-password", "", "New password for a temporary-password or reset flow")
	cmd.Flags().StringVar(&opts.code, "code", "", "Verification code of a password reset")
	cmd.Flags().BoolVar(&opts.forgot, "forgot", false, "Send a password reset code instead of signing in")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log requests")
	return cmd
}

// runLogin drives the auth store until it settles. Prompts fill in any
// input the flags did not supply; with every input given by flag a
// rejected step returns its error instead of asking again.
func runLogin(ctx context.Context, as *authstore.Store, p *prompter, opts loginOptions) error {
	username, err := p.valueOrAsk(opts.username, "Username")
	if err != nil {
		return err
	}

	if opts.forgot {
		err = as.SendResetPasswordCode(ctx, username)
	} else {
		var password string
		if password, err = p.valueOrAsk(opts.password, "Password"); err != nil {
			return err
		}
		err = as.Login(ctx, username, password)
	}
	if err != nil {
		return loginFailure(as, err)
	}

	var newPassword string
	for {
		switch as.State() {
		case authstore.StateAuthenticated:
			return nil

		case authstore.StateUpdatePassword:
			if newPassword, err = p.valueOrAsk(opts.newPassword, "New password"); err != nil {
				return err
			}
			if err := as.UpdateTempPassword(ctx, newPassword); err != nil {
				if opts.newPassword != "" || as.State() != authstore.StateUpdatePassword {
					return loginFailure(as, err)
				}
				fmt.Fprintln(p.out, as.Detail())
			}

		case authstore.StateResetPassword:
			code, err := p.valueOrAsk(opts.code, "Verification code")
			if err != nil {
				return err
			}
			if newPassword, err = p.valueOrAsk(opts.newPassword, "New password"); err != nil {
				return err
			}
			if err := as.ResetPassword(ctx, code, newPassword); err != nil {
				if opts.code != "" || as.State() != authstore.StateResetPassword {
					return loginFailure(as, err)
				}
				fmt.Fprintln(p.out, as.Detail())
			}

		case authstore.StateResetPasswordComplete:
			if err := as.Login(ctx, username, newPassword); err != nil {
				return loginFailure(as, err)
			}

		default:
			return loginFailure(as, errors.New("sign-in did not complete"))
		}
	}
}

func loginFailure(as *authstore.Store, err error) error {
	if d := as.Detail(); d != "" {
		return fmt.Errorf("%s: %w", d, err)
	}
	return err
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the remembered session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			if _, err := c.resume(cmd.Context()); err != nil {
				return err
			}
			runLogout(cmd.Context(), c.auth, cmd.OutOrStdout())
			return nil
		},
	}
}

// runLogout signs out of the provider and forgets the stored refresh token.
// A provider failure is logged by the auth store and does not keep the
// session alive.
func runLogout(ctx context.Context, as *authstore.Store, w io.Writer) {
	as.Logout(ctx)
	fmt.Fprintln(w, "Signed out")
}

func rosterCmd() *cobra.Command {
	var filter store.Filter
	var attention bool
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List the caseload",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newClient(ctx, false)
			if err != nil {
				return err
			}
			id, err := c.resume(ctx)
			if err != nil {
				return err
			}
			if id.IsPatient() {
				return errors.New("the roster is only available to providers")
			}

			reg := store.NewPatientsStore(c.registry, func(patientID string) store.PatientAPI {
				return service.NewPatientService(c.api, patientID)
			}, c.storeOptions())
			if err := reg.Load(ctx); err != nil {
				return err
			}
			reg.WaitDetails()
			reg.SetFilter(filter)

			rows := reg.Filtered()
			if attention {
				rows = reg.NeedingAttention()
			}
			writeRoster(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.CareManager, "care-manager", "", "Only patients of this care manager")
	cmd.Flags().StringVar(&filter.Clinic, "clinic", "", "Only patients of this clinic code")
	cmd.Flags().BoolVar(&filter.ActiveOnly, "active-only", false, "Hide patients who exited the study")
	cmd.Flags().BoolVar(&attention, "attention", false, "Only patients flagged for follow-up")
	return cmd
}

func writeRoster(w io.Writer, rows []*store.PatientStore) {
	fmt.Fprintf(w, "%-24s %-24s %-10s %-8s %-20s %-6s %-6s %s\n",
		"ID", "NAME", "MRN", "CLINIC", "CARE MANAGER", "PHQ-9", "GAD-7", "FLAGS")
	for _, p := range rows {
		prof := p.Profile()
		fmt.Fprintf(w, "%-24s %-24s %-10s %-8s %-20s %-6s %-6s %s\n",
			p.PatientID(), prof.Name, prof.MRN, prof.ClinicCode, prof.CareManagerName(),
			scoreCell(p, model.AssessmentPHQ9), scoreCell(p, model.AssessmentGAD7), flags(p.Attention()))
	}
}

func scoreCell(p *store.PatientStore, assessmentID string) string {
	if !p.Loaded() {
		return "..."
	}
	if s, ok := p.LatestScore(assessmentID); ok {
		return strconv.Itoa(s)
	}
	return "-"
}

func flags(a store.Attention) string {
	var out []string
	for _, id := range a.ElevatedScores {
		out = append(out, "elevated "+id)
	}
	if a.Inactive {
		out = append(out, "inactive")
	}
	return strings.Join(out, ", ")
}

func patientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patient [patient-id]",
		Short: "Summarize a patient's recent activity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newClient(ctx, false)
			if err != nil {
				return err
			}
			id, err := c.resume(ctx)
			if err != nil {
				return err
			}
			patientID, err := resolvePatientID(id, args)
			if err != nil {
				return err
			}
			ps, err := c.patient(ctx, patientID)
			if err != nil {
				return err
			}
			writePatient(cmd.OutOrStdout(), ps, c.cfg.RecentWindowDays)
			return nil
		},
	}
}

func writePatient(w io.Writer, ps *store.PatientStore, windowDays int) {
	prof := ps.Profile()
	fmt.Fprintf(w, "%s (%s)\n", prof.Name, ps.PatientID())
	if prof.MRN != "" {
		fmt.Fprintf(w, "  MRN:           %s\n", prof.MRN)
	}
	if cm := prof.CareManagerName(); cm != "" {
		fmt.Fprintf(w, "  Care manager:  %s\n", cm)
	}
	if prof.DepressionTreatmentStatus != "" {
		fmt.Fprintf(w, "  Treatment:     %s\n", prof.DepressionTreatmentStatus)
	}

	for _, aid := range []string{model.AssessmentPHQ9, model.AssessmentGAD7} {
		score, ok := ps.LatestScore(aid)
		if !ok {
			continue
		}
		in := model.Instruments[aid]
		fmt.Fprintf(w, "  %-14s %d (%s)\n", in.Name+":", score, in.Severity(score))
	}

	fmt.Fprintf(w, "Last %d days:\n", windowDays)
	fmt.Fprintf(w, "  Check-ins:     %d\n", len(ps.RecentAssessmentLogs()))
	fmt.Fprintf(w, "  Activity logs: %d\n", len(ps.RecentActivityLogs()))
	fmt.Fprintf(w, "  Mood logs:     %d\n", len(ps.RecentMoodLogs()))
	if moods := ps.RecentMoodLogs(); len(moods) > 0 {
		fmt.Fprintf(w, "  Latest mood:   %d/10 on %s\n", moods[0].Mood, moods[0].RecordedDate.Format("2006-01-02"))
	}

	if a := ps.Attention(); a.Needed() {
		fmt.Fprintf(w, "Needs attention: %s\n", flags(a))
	}
}

func checkinCmd() *cobra.Command {
	var assessment, pointsFlag, comment string
	cmd := &cobra.Command{
		Use:   "checkin [patient-id]",
		Short: "Record a PHQ-9 or GAD-7 check-in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, ok := model.Instruments[assessment]
			if !ok {
				return fmt.Errorf("no questionnaire for assessment %q", assessment)
			}

			var answer func(i int, question string) (int, error)
			if pointsFlag != "" {
				points, err := parsePoints(pointsFlag, len(in.Questions), in.MaxPoint)
				if err != nil {
					return err
				}
				answer = func(i int, _ string) (int, error) { return points[i], nil }
			} else {
				p := newPrompter(cmd)
				answer = func(i int, question string) (int, error) {
					s, err := p.ask(fmt.Sprintf("%d. %s (0-%d)", i+1, question, in.MaxPoint))
					if err != nil {
						return 0, err
					}
					return strconv.Atoi(s)
				}
			}

			ctx := cmd.Context()
			c, err := newClient(ctx, false)
			if err != nil {
				return err
			}
			id, err := c.resume(ctx)
			if err != nil {
				return err
			}
			patientID, err := resolvePatientID(id, args)
			if err != nil {
				return err
			}
			ps, err := c.patient(ctx, patientID)
			if err != nil {
				return err
			}

			by := forms.Submitter{Patient: id.IsPatient(), ProviderID: id.ProviderID}
			log, err := runCheckIn(ctx, ps, assessment, by, answer, comment)
			if err != nil {
				return err
			}
			total, _ := log.Total()
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s check-in: %d (%s)\n", in.Name, total, in.Severity(total))
			return nil
		},
	}
	cmd.Flags().StringVar(&assessment, "assessment", model.AssessmentPHQ9, "Instrument to record")
	cmd.Flags().StringVar(&pointsFlag, "points", "", "Comma-separated points in question order, prompted when empty")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional comment")
	return cmd
}

// runCheckIn walks the check-in dialog page by page, answering each question
// and submitting from the comment page.
func runCheckIn(ctx context.Context, w forms.AssessmentLogWriter, assessmentID string, by forms.Submitter,
	answer func(i int, question string) (int, error), comment string) (model.AssessmentLog, error) {
	f, err := forms.NewCheckIn(w, assessmentID, by, forms.Options{})
	if err != nil {
		return model.AssessmentLog{}, err
	}
	d := f.Dialog()

	for i, q := range f.Instrument().Questions {
		points, err := answer(i, q)
		if err != nil {
			return model.AssessmentLog{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		if err := f.Answer(q, points); err != nil {
			return model.AssessmentLog{}, err
		}
		if err := d.Next(ctx); err != nil {
			return model.AssessmentLog{}, fmt.Errorf("question %d: %w", i+1, err)
		}
	}

	f.SetComment(comment)
	if err := d.Next(ctx); err != nil {
		return model.AssessmentLog{}, err
	}
	d.DismissSuccess()

	log, ok := f.Saved()
	if !ok {
		return model.AssessmentLog{}, errors.New("check-in was not saved")
	}
	return log, nil
}

// parsePoints reads "1,0,2,..." and checks the count and range against the
// instrument.
func parsePoints(s string, questions, maxPoint int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != questions {
		return nil, fmt.Errorf("expected %d points, got %d", questions, len(parts))
	}
	points := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i+1, err)
		}
		if v < 0 || v > maxPoint {
			return nil, fmt.Errorf("point %d: %d is outside 0-%d", i+1, v, maxPoint)
		}
		points[i] = v
	}
	return points, nil
}

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Manage this device's push subscription",
	}

	var sub model.PushSubscription
	subscribe := &cobra.Command{
		Use:   "subscribe [patient-id]",
		Short: "Register a push subscription",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPush(cmd, args, func(ctx context.Context, m *pushsub.Manager) error {
				if sub.Endpoint == "" {
					return errors.New("--endpoint is required")
				}
				out, err := m.Subscribe(ctx, sub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscribed %s\n", out.SubscriptionID)
				return nil
			})
		},
	}
	subscribe.Flags().StringVar(&sub.Endpoint, "endpoint", "", "Push service endpoint")
	subscribe.Flags().StringVar(&sub.Keys.P256dh, "p256dh", "", "Client public key")
	subscribe.Flags().StringVar(&sub.Keys.Auth, "auth", "", "Client auth secret")
	cmd.AddCommand(subscribe)

	cmd.AddCommand(&cobra.Command{
		Use:   "unsubscribe [patient-id]",
		Short: "Remove this device's push subscription",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPush(cmd, args, func(ctx context.Context, m *pushsub.Manager) error {
				if err := m.Unsubscribe(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Unsubscribed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore [patient-id]",
		Short: "Re-register the saved subscription if the server lost it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPush(cmd, args, func(ctx context.Context, m *pushsub.Manager) error {
				live, err := m.Restore(ctx)
				if err != nil {
					return err
				}
				if !live {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved subscription")
					return nil
				}
				cur, _, _ := m.Current()
				fmt.Fprintf(cmd.OutOrStdout(), "Subscription %s is active\n", cur.SubscriptionID)
				return nil
			})
		},
	})

	return cmd
}

func withPush(cmd *cobra.Command, args []string, fn func(context.Context, *pushsub.Manager) error) error {
	ctx := cmd.Context()
	c, err := newClient(ctx, false)
	if err != nil {
		return err
	}
	id, err := c.resume(ctx)
	if err != nil {
		return err
	}
	patientID, err := resolvePatientID(id, args)
	if err != nil {
		return err
	}
	ps, err := c.patient(ctx, patientID)
	if err != nil {
		return err
	}
	m := pushsub.New(service.NewPatientService(c.api, patientID), c.local, ps, c.logger, c.metrics)
	return fn(ctx, m)
}

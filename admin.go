package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"grievedesk/internal/admin"
	"grievedesk/internal/api"

	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run 'grievedesk admin login' first")

// adminEnv is one dashboard page: a client carrying the saved session and
// the controllers bound to it.
type adminEnv struct {
	client    *api.Client
	dashboard *admin.Dashboard
	session   *admin.SessionController
}

func (a *app) adminEnv() (*adminEnv, error) {
	client, err := a.portal()
	if err != nil {
		return nil, err
	}
	if err := loadCookies(client, a.cfg.CookiePath()); err != nil {
		a.logger.Warnw("Ignoring saved session", "error", err)
	}

	opts := admin.Options{
		Toaster:    a.toaster(),
		Logger:     a.logger,
		LoginFade:  a.cfg.LoginFade,
		RowStagger: a.cfg.RowStagger,
	}
	dashboard := admin.NewDashboard(client, opts)
	return &adminEnv{
		client:    client,
		dashboard: dashboard,
		session:   admin.NewSessionController(client, dashboard, opts),
	}, nil
}

// openDashboard checks the saved session and loads the dashboard.
func (a *app) openDashboard(ctx context.Context) (*adminEnv, error) {
	env, err := a.adminEnv()
	if err != nil {
		return nil, err
	}
	if env.session.Check(ctx) != admin.ViewDashboard {
		return nil, errNotLoggedIn
	}
	return env, nil
}

// adminCommands returns the administrator command tree.
func adminCommands(a *app) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator dashboard commands",
		Long: `Administrator dashboard commands.

Available commands:
  session      - Show the logged-in admin
  login        - Log in and remember the session
  logout       - End the session
  complaints   - List and filter complaints
  departments  - List departments or one department's complaints
  show         - Show one complaint
  status       - Change a complaint's status
  reports      - Show statistics and write the charts`,
	}

	adminCmd.AddCommand(
		sessionCmd(a),
		loginCmd(a),
		logoutCmd(a),
		complaintsCmd(a),
		departmentsCmd(a),
		showCmd(a),
		statusCmd(a),
		reportsCmd(a),
	)
	return adminCmd
}

func sessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the logged-in admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.openDashboard(cmd.Context())
			if err != nil {
				return err
			}
			printIdentity(env.session.Identity())
			return nil
		},
	}
}

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the portal",
		Long:  `Log in with ADMIN_USERNAME and ADMIN_PASSWORD, prompting for whichever is not set.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := a.adminEnv()
			if err != nil {
				return err
			}
			username, password, err := a.credentials()
			if err != nil {
				return err
			}

			if err := env.session.Login(ctx, username, password); err != nil {
				if loginErr := env.session.LoginError(); loginErr.Visible {
					return errors.New(loginErr.Message)
				}
				return err
			}
			if err := saveCookies(env.client, a.cfg.CookiePath()); err != nil {
				a.logger.Warnw("Failed to save session", "error", err)
			}

			fmt.Println("✓ Login successful")
			printIdentity(env.session.Identity())
			return nil
		},
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the admin session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.adminEnv()
			if err != nil {
				return err
			}
			env.session.Logout(cmd.Context())
			if err := forgetCookies(a.cfg.CookiePath()); err != nil {
				return fmt.Errorf("failed to remove saved session: %w", err)
			}
			fmt.Println("✓ Logged out")
			return nil
		},
	}
}

func complaintsCmd(a *app) *cobra.Command {
	var filter api.Filter
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "List complaints",
		Long:  `List complaints, optionally narrowed by department, status and a search term.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := a.openDashboard(ctx)
			if err != nil {
				return err
			}
			table := env.dashboard.Complaints
			if filter != (api.Filter{}) {
				if filter.Status != "" {
					filter.Status = normalizeStatus(filter.Status)
				}
				if err := table.Filter(ctx, filter); err != nil {
					return err
				}
			}
			printRows(table)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Department, "department", "", "only complaints of this department")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only complaints with this status")
	cmd.Flags().StringVar(&filter.Search, "search", "", "search ticket, name and description")
	return cmd
}

func departmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "departments [name]",
		Short: "List departments, or the complaints of one department",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := a.openDashboard(ctx)
			if err != nil {
				return err
			}
			departments := env.dashboard.Departments
			if err := env.dashboard.Activate(ctx, admin.SectionDepartments); err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Printf("%-5s %s\n", "ID", "Department")
				for _, d := range departments.Cards() {
					fmt.Printf("%-5d %s\n", d.ID, d.Name)
				}
				return nil
			}

			if err := departments.Select(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(departments.Header())
			printRows(departments.Table())
			return nil
		},
	}
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("complaint id must be a number, got %q", args[0])
			}
			env, err := a.openDashboard(ctx)
			if err != nil {
				return err
			}
			if err := env.dashboard.Detail.Open(ctx, id); err != nil {
				return err
			}
			printDetail(env.dashboard.Detail)
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Change a complaint's status",
		Long:  `Change a complaint's status to Pending, "In Progress" or Resolved.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("complaint id must be a number, got %q", args[0])
			}
			env, err := a.openDashboard(ctx)
			if err != nil {
				return err
			}
			detail := env.dashboard.Detail
			if err := detail.Open(ctx, id); err != nil {
				return err
			}
			return detail.UpdateStatus(ctx, normalizeStatus(args[1]))
		},
	}
}

func reportsCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show statistics and write the charts as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := a.openDashboard(ctx)
			if err != nil {
				return err
			}
			if err := env.dashboard.Activate(ctx, admin.SectionReports); err != nil {
				return err
			}

			c := env.dashboard.Reports.Counters()
			fmt.Printf("Total:       %d\n", c.Total)
			fmt.Printf("Pending:     %d\n", c.Pending)
			fmt.Printf("In Progress: %d\n", c.InProgress)
			fmt.Printf("Resolved:    %d\n", c.Resolved)

			if out == "" {
				out = a.cfg.ChartDir
			}
			paths, err := env.dashboard.Reports.Charts().WriteFiles(out)
			if err != nil {
				return fmt.Errorf("failed to write charts: %w", err)
			}
			for _, p := range paths {
				fmt.Println("📊", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "directory for chart images (default CHART_DIR)")
	return cmd
}

// normalizeStatus accepts any casing and "-" or "_" for the space, so
// "in-progress" becomes "In Progress". Unknown values pass through and are
// rejected by the controller.
func normalizeStatus(s string) string {
	cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))
	for _, status := range []string{api.StatusPending, api.StatusInProgress, api.StatusResolved} {
		if strings.EqualFold(cleaned, status) {
			return status
		}
	}
	return s
}

func printIdentity(id admin.Identity) {
	fmt.Printf("👤 %s (%s)\n", id.Username, id.Department)
}

func printRows(t *admin.ComplaintTable) {
	if t.PlaceholderVisible() {
		fmt.Println("No complaints found")
		return
	}
	fmt.Printf("%-5s %-14s %-18s %-20s %-11s %s\n", "ID", "Ticket", "Department", "User", "Date", "Status")
	for _, r := range t.Rows() {
		fmt.Printf("%-5d %-14s %-18s %-20s %-11s %s\n", r.ComplaintID, r.Ticket, r.Department, r.User, r.Date, r.Status)
	}
}

func printDetail(m *admin.DetailModal) {
	labels := map[string]string{
		admin.SlotTicket:      "Ticket",
		admin.SlotStatus:      "Status",
		admin.SlotUser:        "User",
		admin.SlotEmail:       "Email",
		admin.SlotDepartment:  "Department",
		admin.SlotDate:        "Date",
		admin.SlotDescription: "Description",
		admin.SlotLocation:    "Location",
	}
	for _, slot := range admin.DetailSlots {
		if value, ok := m.Field(slot); ok {
			fmt.Printf("%-12s %s\n", labels[slot]+":", value)
		}
	}
	if ok, url := m.Image(); ok {
		fmt.Printf("%-12s %s\n", "Image:", url)
	}
}

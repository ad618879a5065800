package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/models"
)

var (
	cachedOnly   bool
	journalLimit int
	clearJournal bool
	inviteToken  string
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List your projects",
	Long: `List the projects you own or collaborate on. The list is also written to
the local cache used by the board. With --cached nothing is fetched.`,
	RunE: runProjects,
}

var showProjectCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project and its lists",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowProject,
}

var invitationsCmd = &cobra.Command{
	Use:   "invitations",
	Short: "List pending invitations",
	RunE:  runInvitations,
}

var acceptCmd = &cobra.Command{
	Use:   "accept [id]",
	Short: "Accept an invitation",
	Long: `Accept an invitation by the id shown in 'depplan invitations', or by
the token from the invitation email with --token.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error { return respond(cmd, args, api.Accept) },
}

var declineCmd = &cobra.Command{
	Use:   "decline [id]",
	Short: "Decline an invitation",
	Args:  cobra.MaximumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return respond(cmd, args, api.Decline) },
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show board changes that failed to sync",
	Long: `Board edits that the server kept rejecting after every retry are
recorded locally. The board was reloaded from the server at the time, so
these entries are a record of what was lost, not a queue.`,
	RunE: runJournal,
}

func init() {
	projectsCmd.Flags().BoolVar(&cachedOnly, "cached", false, "Only print the local cache")
	projectsCmd.AddCommand(showProjectCmd)

	invitationsCmd.AddCommand(acceptCmd)
	invitationsCmd.AddCommand(declineCmd)
	acceptCmd.Flags().StringVar(&inviteToken, "token", "", "Token from the invitation email")
	declineCmd.Flags().StringVar(&inviteToken, "token", "", "Token from the invitation email")

	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
	journalCmd.Flags().BoolVar(&clearJournal, "clear", false, "Delete all entries")
}

func runProjects(cmd *cobra.Command, args []string) error {
	var (
		r   *runtime
		err error
	)
	if cachedOnly {
		r, err = open(false)
	} else {
		r, err = signedIn()
	}
	if err != nil {
		return err
	}
	defer r.Close()

	var projects []models.Project
	if cachedOnly {
		if projects, err = r.db.CachedProjects(); err != nil {
			return err
		}
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
		defer cancel()
		if projects, err = r.client.ListProjects(ctx); err != nil {
			return r.handleAPIError(err)
		}
		if err := r.db.ReplaceProjectCache(projects); err != nil {
			log.Warn().Err(err).Msg("cli.runProjects: caching projects")
		}
	}

	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tDESCRIPTION")
	for _, p := range projects {
		created := ""
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, created, p.Description)
	}
	return w.Flush()
}

func runShowProject(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "project")
	if err != nil {
		return err
	}
	r, err := signedIn()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()
	ok, err := r.client.CheckAccess(ctx, id)
	if err != nil {
		return r.handleAPIError(err)
	}
	if !ok {
		return fmt.Errorf("you do not have access to project %d", id)
	}
	p, err := r.client.GetProject(ctx, id)
	if err != nil {
		return r.handleAPIError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (#%d)\n", p.Name, p.ID)
	if p.Description != "" {
		fmt.Fprintln(out, p.Description)
	}
	if len(p.Lists) == 0 {
		fmt.Fprintln(out, "No lists")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LIST\tTASKS")
	for _, l := range p.Lists {
		names := make([]string, len(l.Tasks))
		for i, t := range l.Tasks {
			names[i] = t.Name
		}
		fmt.Fprintf(w, "%s\t%s\n", l.Name, strings.Join(names, ", "))
	}
	return w.Flush()
}

func parseID(arg, what string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return n, nil
}

func runInvitations(cmd *cobra.Command, args []string) error {
	r, err := signedIn()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()
	invs, err := r.client.MyInvitations(ctx)
	if err != nil {
		return r.handleAPIError(err)
	}

	pending := invs[:0]
	for _, inv := range invs {
		if inv.Status == models.InvitationPending {
			pending = append(pending, inv)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending invitations")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tROLE\tFROM\tEXPIRES")
	for _, inv := range pending {
		expires := ""
		if !inv.ExpiresAt.IsZero() {
			expires = inv.ExpiresAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", inv.ID, inv.ProjectName, inv.Role, inv.InvitedByUsername, expires)
	}
	return w.Flush()
}

func respond(cmd *cobra.Command, args []string, resp api.InvitationResponse) error {
	var id int64
	switch {
	case inviteToken != "" && len(args) > 0:
		return errors.New("give an invitation id or --token, not both")
	case inviteToken == "" && len(args) == 0:
		return errors.New("an invitation id or --token is required")
	case len(args) > 0:
		n, err := parseID(args[0], "invitation")
		if err != nil {
			return err
		}
		id = n
	}

	r, err := signedIn()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()
	subject := "invitation"
	if id != 0 {
		err = r.client.RespondToInvitationByID(ctx, id, resp)
		subject = fmt.Sprintf("invitation %d", id)
	} else {
		err = r.client.RespondToInvitation(ctx, inviteToken, resp)
	}
	if err != nil {
		return r.handleAPIError(err)
	}

	verb := "Declined"
	if resp == api.Accept {
		verb = "Accepted"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, subject)
	return nil
}

func runJournal(cmd *cobra.Command, args []string) error {
	r, err := open(false)
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	if clearJournal {
		if err := r.db.ClearSyncJournal(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Journal cleared")
		return nil
	}

	entries, err := r.db.SyncFailures(journalLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No failed changes")
		return nil
	}
	return printJournal(cmd, entries)
}

func printJournal(cmd *cobra.Command, entries []db.JournalEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tPROJECT\tENTITY\tATTEMPTS\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s %d\t%d\t%s\n",
			e.FailedAt.Local().Format("2006-01-02 15:04"), e.ProjectID, e.EntityKind, e.EntityID, e.Attempts, e.LastError)
	}
	return w.Flush()
}

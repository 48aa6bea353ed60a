package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"call-insights/internal/authtoken"
	"call-insights/internal/pagination"
	"call-insights/pkg/b64u"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTokenCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage auth tokens",
		Long:  `Create, list, revoke or delete the bearer tokens used by end users.`,
	}
	cmd.AddCommand(
		newTokenCreateCmd(open),
		newTokenListCmd(open),
		newTokenRevokeCmd(open),
		newTokenDeleteCmd(open),
	)
	return cmd
}

func newTokenCreateCmd(open opener) *cobra.Command {
	var (
		name string
		orgs []int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" || len(name) > authtoken.MaxNameLength {
				return fmt.Errorf("--name must be 1..%d characters", authtoken.MaxNameLength)
			}
			if len(orgs) == 0 {
				return errors.New("at least one --org is required")
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			t, err := rt.tokens.Create(cmd.Context(), authtoken.CreateInput{Name: name, Orgs: orgs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:    %s (%s)\ntoken: %s\n", t.ID, b64u.EncryptID(t.ID), t.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Human readable token name")
	cmd.Flags().Int64SliceVar(&orgs, "org", nil, "Organization id the token may act on (repeatable)")
	return cmd
}

func newTokenListCmd(open opener) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tokens, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			p := pagination.Resolve(page, limit)
			items, total, err := rt.tokens.List(cmd.Context(), p)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tORGS\tCREATED")
			for _, t := range items {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", t.ID, t.Name, t.Orgs, t.CreatedAt.UTC().Format(time.RFC3339))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			meta := pagination.Metadata(p, total)
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d tokens)\n", meta.Page, meta.PageCount, meta.ItemCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", pagination.MinPage, "Page number, -1 lists everything")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "Tokens per page")
	return cmd
}

func newTokenRevokeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [token-id]",
		Short: "Rotate a token so the current value stops working",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := b64u.DecryptID(args[0])
			if err != nil {
				return fmt.Errorf("invalid token id %q: %w", args[0], err)
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.tokens.Revoke(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked", id)
			return nil
		},
	}
}

func newTokenDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [token-id...]",
		Short: "Delete one or more tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, len(args))
			for i, a := range args {
				id, err := b64u.DecryptID(a)
				if err != nil {
					return fmt.Errorf("invalid token id %q: %w", a, err)
				}
				ids[i] = id
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			n, err := rt.tokens.DeleteMany(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d\n", n, len(ids))
			return nil
		},
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/orkl"
)

// queryFunc performs one API call for a query command.
type queryFunc func(ctx context.Context, c *orkl.Client, args []string, opts []orkl.CallOption) (orkl.Envelope, error)

// queryCmd builds a one-shot command that prints the response data as
// indented JSON. flags, when set, registers command-specific flags.
func queryCmd(use, short string, args cobra.PositionalArgs, flags func(*cobra.Command), fn queryFunc) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			defer func() {
				client.Close()
				logging.Default().Close()
			}()

			var opts []orkl.CallOption
			if noCache {
				opts = append(opts, orkl.BypassCache())
			}
			env, err := fn(cmd.Context(), client, args, opts)
			if err != nil {
				return err
			}
			return printData(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the response cache")
	if flags != nil {
		flags(cmd)
	}
	return cmd
}

func printData(w io.Writer, env orkl.Envelope) error {
	if len(env.Data) == 0 {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, env.Data, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func reportsCmd() *cobra.Command {
	var (
		limit, offset  int
		orderBy, order string
	)
	return queryCmd("reports", "List library entries", cobra.NoArgs,
		func(cmd *cobra.Command) {
			cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of entries")
			cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
			cmd.Flags().StringVar(&orderBy, "order-by", string(orkl.OrderByCreatedAt), "Sort field: created_at, updated_at, file_creation_date, file_modification_date")
			cmd.Flags().StringVar(&order, "order", string(orkl.OrderDesc), "Sort direction: asc or desc")
		},
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryEntries(ctx, orkl.LibraryEntriesParams{
				Limit:   limit,
				Offset:  offset,
				OrderBy: orkl.OrderBy(orderBy),
				Order:   orkl.Order(order),
			}, opts...)
		})
}

func reportCmd() *cobra.Command {
	return queryCmd("report <id>", "Show a library entry", cobra.ExactArgs(1), nil,
		func(ctx context.Context, c *orkl.Client, args []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryEntry(ctx, args[0], opts...)
		})
}

func reportByHashCmd() *cobra.Command {
	return queryCmd("report-by-hash <sha1>", "Show a library entry by file SHA-1", cobra.ExactArgs(1), nil,
		func(ctx context.Context, c *orkl.Client, args []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryEntryBySHA1(ctx, args[0], opts...)
		})
}

func searchCmd() *cobra.Command {
	var (
		full  bool
		limit int
	)
	return queryCmd("search <query>", "Search the library", cobra.ExactArgs(1),
		func(cmd *cobra.Command) {
			cmd.Flags().BoolVar(&full, "full", false, "Include full report text")
			cmd.Flags().IntVar(&limit, "limit", orkl.DefaultSearchLimit, "Maximum number of results")
		},
		func(ctx context.Context, c *orkl.Client, args []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.SearchLibrary(ctx, orkl.SearchParams{Query: args[0], Full: full, Limit: limit}, opts...)
		})
}

func infoCmd() *cobra.Command {
	return queryCmd("info", "Show library statistics", cobra.NoArgs, nil,
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryInfo(ctx, opts...)
		})
}

func libraryVersionCmd() *cobra.Command {
	return queryCmd("library-version", "Show the current library version", cobra.NoArgs, nil,
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryVersion(ctx, opts...)
		})
}

func versionEntriesCmd() *cobra.Command {
	var (
		limit, offset int
		order         string
	)
	return queryCmd("version-entries", "List entries of the current library version", cobra.NoArgs,
		func(cmd *cobra.Command) {
			cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (0 uses the server default)")
			cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
			cmd.Flags().StringVar(&order, "order", string(orkl.OrderDesc), "Sort direction: asc or desc")
		},
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryVersionEntries(ctx, orkl.VersionEntriesParams{
				Limit:  limit,
				Offset: offset,
				Order:  orkl.Order(order),
			}, opts...)
		})
}

func workEntriesCmd() *cobra.Command {
	var limit int
	return queryCmd("work-entries", "List entries still being processed", cobra.NoArgs,
		func(cmd *cobra.Command) {
			cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (0 uses the server default)")
		},
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.LibraryWorkEntries(ctx, orkl.WorkEntriesParams{Limit: limit}, opts...)
		})
}

func actorsCmd() *cobra.Command {
	return queryCmd("actors", "List threat actors", cobra.NoArgs, nil,
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.ThreatActorEntries(ctx, opts...)
		})
}

func actorCmd() *cobra.Command {
	return queryCmd("actor <id>", "Show a threat actor", cobra.ExactArgs(1), nil,
		func(ctx context.Context, c *orkl.Client, args []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.ThreatActorEntry(ctx, args[0], opts...)
		})
}

func sourcesCmd() *cobra.Command {
	return queryCmd("sources", "List report sources", cobra.NoArgs, nil,
		func(ctx context.Context, c *orkl.Client, _ []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.SourceEntries(ctx, opts...)
		})
}

func sourceCmd() *cobra.Command {
	var full bool
	return queryCmd("source <id>", "Show a report source", cobra.ExactArgs(1),
		func(cmd *cobra.Command) {
			cmd.Flags().BoolVar(&full, "full", false, "Include the source's full details")
		},
		func(ctx context.Context, c *orkl.Client, args []string, opts []orkl.CallOption) (orkl.Envelope, error) {
			return c.SourceEntry(ctx, args[0], full, opts...)
		})
}

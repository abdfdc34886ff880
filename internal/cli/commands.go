package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics per namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/admin/cache/stats", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newInvalidateCmd(opts *rootOptions) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Invalidate cached entries by tag, or everything without --tag",
		Example: `  cachectl invalidate --tag patients
  cachectl invalidate --tag clinique --tag rdv
  cachectl invalidate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/admin/cache/invalidate", nil,
				map[string][]string{"tags": tags})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to invalidate (repeatable)")
	return cmd
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/admin/cache/cleanup", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show recorder statistics and cache snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/metrics/stats", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newPageCmd(opts *rootOptions) *cobra.Command {
	var (
		page     int
		pageSize int
		search   string
		sortKey  string
		desc     bool
		remote   bool
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "page <collection>",
		Short: "Fetch one page of a collection",
		Long: `Fetch one page of a collection.

By default the page is cut from the whole cached collection after search
and sort. With --remote the page is read from the collection's paged
source, which also warms the following pages.`,
		Example: `  cachectl page patients --page 2 --q dur --sort nom
  cachectl page rdv --remote --page 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1")
			}
			name := url.PathEscape(args[0])
			q := url.Values{}
			if refresh {
				q.Set("refresh", "true")
			}

			var path string
			if remote {
				path = "/api/collections/" + name + "/pages/" + strconv.Itoa(page)
			} else {
				path = "/api/collections/" + name
				q.Set("page", strconv.Itoa(page))
				if pageSize > 0 {
					q.Set("page_size", strconv.Itoa(pageSize))
				}
				if search != "" {
					q.Set("q", search)
				}
				if sortKey != "" {
					q.Set("sort", sortKey)
				}
				if desc {
					q.Set("dir", "desc")
				}
			}
			raw, err := opts.client().Do(cmd.Context(), http.MethodGet, path, q, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	f := cmd.Flags()
	f.IntVar(&page, "page", 1, "page number")
	f.IntVar(&pageSize, "page-size", 0, "page size (server default when 0)")
	f.StringVar(&search, "q", "", "search term")
	f.StringVar(&sortKey, "sort", "", "sort field")
	f.BoolVar(&desc, "desc", false, "sort descending")
	f.BoolVar(&remote, "remote", false, "read from the paged source")
	f.BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}

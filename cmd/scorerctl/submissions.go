package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/germanattanasio/answer-retrieval/internal/repository"
	"github.com/germanattanasio/answer-retrieval/internal/repository/postgres"
)

// submissionStore opens the audit store. Tests replace it.
type submissionStore func(ctx context.Context, databaseURL string) (repository.SubmissionRepository, func(), error)

func openPostgres(ctx context.Context, databaseURL string) (repository.SubmissionRepository, func(), error) {
	if databaseURL == "" {
		return nil, nil, errors.New("a database is required (--database-url or DATABASE_URL)")
	}
	db, err := postgres.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewSubmissionRepo(db.Pool), db.Close, nil
}

func newSubmissionsCmd(open submissionStore) *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "Inspect the audit trail of rerank submissions",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")

	withRepo := func(cmd *cobra.Command, fn func(repository.SubmissionRepository) error) error {
		repo, closeFn, err := open(cmd.Context(), databaseURL)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(repo)
	}

	var (
		rankerID string
		status   string
		limit    int
		offset   int
		asJSON   bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return withRepo(cmd, func(repo repository.SubmissionRepository) error {
				subs, total, err := repo.List(cmd.Context(), rankerID, status, limit, offset)
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"total":       total,
						"submissions": submissionViews(subs),
					})
				}
				return printSubmissions(cmd.OutOrStdout(), subs, total)
			})
		},
	}
	list.Flags().StringVar(&rankerID, "ranker", "", "only submissions sent to this ranker")
	list.Flags().StringVar(&status, "status", "", "only submissions with this status (pending, ranked, failed)")
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows to print")
	list.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	list.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid submission id %q: %w", args[0], err)
			}
			return withRepo(cmd, func(repo repository.SubmissionRepository) error {
				sub, err := repo.GetByID(cmd.Context(), id)
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("submission %s not found", id)
				}
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(submissionViews([]*repository.Submission{sub})[0])
			})
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

type submissionView struct {
	ID            string     `json:"id"`
	RankerID      string     `json:"ranker_id"`
	Query         string     `json:"query"`
	AnswerPath    string     `json:"answer_path"`
	DocumentCount int        `json:"document_count"`
	Status        string     `json:"status"`
	Stage         string     `json:"stage,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func submissionViews(subs []*repository.Submission) []submissionView {
	views := make([]submissionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, submissionView{
			ID:            s.ID.String(),
			RankerID:      s.RankerID,
			Query:         s.Query,
			AnswerPath:    s.AnswerPath,
			DocumentCount: s.DocumentCount,
			Status:        s.Status,
			Stage:         s.Stage,
			ErrorMessage:  s.ErrorMessage,
			CreatedAt:     s.CreatedAt,
			CompletedAt:   s.CompletedAt,
		})
	}
	return views
}

func printSubmissions(w io.Writer, subs []*repository.Submission, total int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRANKER\tSTATUS\tDOCS\tCREATED\tQUERY")
	for _, s := range subs {
		status := s.Status
		if s.Stage != "" {
			status += " (" + s.Stage + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.RankerID, status, s.DocumentCount, s.CreatedAt.UTC().Format(time.RFC3339), s.Query)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d submissions\n", len(subs), total)
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/germanattanasio/answer-retrieval/internal/merge"
	"github.com/germanattanasio/answer-retrieval/internal/ranker"
	"github.com/germanattanasio/answer-retrieval/internal/repository"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/upstream"
)

// Stage is a step of a rerank request.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageScoring    Stage = "scoring"
	StageMerging    Stage = "merging"
	StagePersisting Stage = "persisting"
	StageSubmitting Stage = "submitting"
	StageReordering Stage = "reordering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// ConfidenceField is the field the ranker confidence is attached under.
const ConfidenceField = "confidence"

// StageError wraps the error that made a rerank fail in Stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("rerank failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RerankCoordinator fetches candidates with their base features, adds the
// custom features, submits the result to a ranker and returns the display
// records in ranked order.
type RerankCoordinator struct {
	search      Searcher
	features    FeatureScorer
	ranker      ranker.Ranker
	cfg         Config
	logger      *slog.Logger
	observer    RerankObserver
	submissions repository.SubmissionRepository
}

// NewRerankCoordinator creates a new RerankCoordinator
func NewRerankCoordinator(search Searcher, features FeatureScorer, rk ranker.Ranker, cfg Config, opts ...Option) *RerankCoordinator {
	return newRerankCoordinator(search, features, rk, cfg.withDefaults(), buildOptions(opts))
}

func newRerankCoordinator(search Searcher, features FeatureScorer, rk ranker.Ranker, cfg Config, o options) *RerankCoordinator {
	return &RerankCoordinator{
		search:      search,
		features:    features,
		ranker:      rk,
		cfg:         cfg,
		logger:      o.logger,
		observer:    o.observer,
		submissions: o.submissions,
	}
}

// rerankRun carries the state of one Rerank call.
type rerankRun struct {
	stage      Stage
	rankerID   string
	query      string
	answerPath string
	documents  int
	submission *repository.Submission
}

// Rerank runs the full rerank flow for params. ranker_id and q are required.
// search_rows candidates are ranked; every ranked answer is returned unless
// rows asks for fewer.
func (c *RerankCoordinator) Rerank(ctx context.Context, params url.Values) (resp *upstream.Response, err error) {
	run := &rerankRun{stage: StageFetching}
	start := time.Now()

	defer func() {
		failed := run.stage
		if err != nil {
			err = &StageError{Stage: failed, Err: err}
			run.stage = StageFailed
			c.logger.Error("rerank failed",
				"stage", string(failed),
				"ranker_id", run.rankerID,
				"error", err,
			)
		} else {
			c.logger.Debug("rerank completed",
				"ranker_id", run.rankerID,
				"documents", run.documents,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
		c.finishSubmission(run, failed, err)
		if c.observer != nil {
			if err != nil {
				c.observer.ObserveRerank(string(failed), err)
			} else {
				c.observer.ObserveRerank("", nil)
			}
		}
	}()

	if run.rankerID, err = param(params, "ranker_id", ""); err != nil {
		return nil, err
	}
	if run.query, err = param(params, "q", ""); err != nil {
		return nil, err
	}
	searchRows, err := param(params, "search_rows", strconv.Itoa(c.cfg.DefaultSearchRows))
	if err != nil {
		return nil, err
	}
	limit := 0
	if rows, ok := optional(params, "rows"); ok && rows != "" {
		if limit, err = strconv.Atoi(rows); err != nil {
			return nil, fmt.Errorf("%w: rows must be an integer", ErrMissingParameter)
		}
	}
	fl, err := param(params, "fl", c.cfg.DefaultFL)
	if err != nil {
		return nil, err
	}
	plan := planFields(fl, c.features.RequiredFields())

	fcParams := url.Values{
		"q":              {run.query},
		"rows":           {searchRows},
		"fl":             {plan.fetchList()},
		"generateHeader": {"true"},
		"returnRSInput":  {"true"},
	}
	fetched, err := c.search.FCSelect(ctx, fcParams)
	if err != nil {
		return nil, err
	}
	if fetched.RSInput == nil {
		return nil, fmt.Errorf("fcselect response has no RSInput")
	}
	docs := fetched.Response.Docs
	run.documents = len(docs)

	c.advance(run, StageScoring)
	vectors, err := c.features.ScoreBatch(ctx, toQuery(fcParams), prepareDocuments(docs, plan.scoring))
	if err != nil {
		return nil, err
	}

	c.advance(run, StageMerging)
	headerLine, _, _ := strings.Cut(*fetched.RSInput, "\n")
	header, _, err := merge.AugmentHeader(headerLine, c.features.Headers())
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	rows := make([][]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID()
		if ids[i] == "" {
			return nil, &merge.AlignmentError{Msg: fmt.Sprintf("document %d has no id", i)}
		}
		fv, _ := doc.String(merge.FeatureVectorField)
		rows[i] = merge.FeatureRow(fv, vectors[i])
		if len(rows[i]) != len(header) {
			return nil, &merge.AlignmentError{Msg: fmt.Sprintf(
				"document %q has %d feature values, header has %d columns", ids[i], len(rows[i]), len(header))}
		}
	}

	c.advance(run, StagePersisting)
	run.answerPath, err = ranker.WriteAnswerFile(c.cfg.AnswerDir, header, ids, rows)
	if err != nil {
		return nil, err
	}
	c.startSubmission(ctx, run)

	c.advance(run, StageSubmitting)
	answers, err := c.submit(ctx, run)
	if err != nil {
		return nil, err
	}

	c.advance(run, StageReordering)
	if limit > 0 && len(answers) > limit {
		answers = answers[:limit]
	}
	resp, err = c.reorder(ctx, answers, fl)
	if err != nil {
		return nil, err
	}

	c.advance(run, StageDone)
	return resp, nil
}

func (c *RerankCoordinator) advance(run *rerankRun, next Stage) {
	c.logger.Debug("rerank stage", "from", string(run.stage), "to", string(next), "ranker_id", run.rankerID)
	run.stage = next
}

func (c *RerankCoordinator) submit(ctx context.Context, run *rerankRun) ([]ranker.Answer, error) {
	f, err := os.Open(run.answerPath)
	if err != nil {
		return nil, fmt.Errorf("opening answer file: %w", err)
	}
	defer f.Close()
	return c.ranker.Rank(ctx, run.rankerID, filepath.Base(run.answerPath), f)
}

// reorder selects the display records of the ranked answers and returns them
// in ranked order with the ranker confidence attached.
func (c *RerankCoordinator) reorder(ctx context.Context, answers []ranker.Answer, fl string) (*upstream.Response, error) {
	index := make(map[string]int, len(answers))
	terms := make([]string, len(answers))
	for i, a := range answers {
		if _, dup := index[a.AnswerID]; dup {
			return nil, &merge.AlignmentError{Msg: fmt.Sprintf("ranker returned answer %q twice", a.AnswerID)}
		}
		index[a.AnswerID] = i
		terms[i] = "id:" + a.AnswerID
	}
	if len(answers) == 0 {
		return &upstream.Response{Response: upstream.ResultSet{Docs: []scorer.Document{}}}, nil
	}

	fields := splitFields(fl)
	if !contains(fields, "id") {
		fields = append(fields, "id")
	}
	selected, err := c.search.Select(ctx, url.Values{
		"q":    {strings.Join(terms, " ")},
		"fl":   {strings.Join(fields, ",")},
		"rows": {strconv.Itoa(len(answers))},
	})
	if err != nil {
		return nil, err
	}

	ordered := make([]scorer.Document, len(answers))
	for _, doc := range selected.Response.Docs {
		id := doc.ID()
		i, ok := index[id]
		if !ok {
			return nil, &merge.AlignmentError{Msg: fmt.Sprintf("select returned unranked document %q", id)}
		}
		if ordered[i] != nil {
			return nil, &merge.AlignmentError{Msg: fmt.Sprintf("select returned document %q twice", id)}
		}
		out := make(scorer.Document, len(doc)+1)
		for k, v := range doc {
			out[k] = v
		}
		out[ConfidenceField] = answers[i].Confidence
		ordered[i] = out
	}
	for i, doc := range ordered {
		if doc == nil {
			return nil, &merge.AlignmentError{Msg: fmt.Sprintf("select did not return ranked document %q", answers[i].AnswerID)}
		}
	}

	selected.Response.Docs = ordered
	selected.Response.NumFound = int64(len(ordered))
	selected.Response.Start = 0
	return selected, nil
}

func (c *RerankCoordinator) startSubmission(ctx context.Context, run *rerankRun) {
	if c.submissions == nil {
		return
	}
	sub := &repository.Submission{
		ID:            uuid.New(),
		RankerID:      run.rankerID,
		Query:         run.query,
		AnswerPath:    run.answerPath,
		DocumentCount: run.documents,
		Status:        repository.SubmissionPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.submissions.Create(ctx, sub); err != nil {
		c.logger.Warn("failed to record rerank submission", "error", err)
		return
	}
	run.submission = sub
}

func (c *RerankCoordinator) finishSubmission(run *rerankRun, failed Stage, err error) {
	if c.submissions == nil || run.submission == nil {
		return
	}
	sub := run.submission
	now := time.Now().UTC()
	sub.CompletedAt = &now
	sub.Status = repository.SubmissionRanked
	if err != nil {
		sub.Status = repository.SubmissionFailed
		sub.Stage = string(failed)
		sub.ErrorMessage = errors.Unwrap(err).Error()
	}
	// The request context may already be cancelled; the audit update should
	// still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if uerr := c.submissions.Update(ctx, sub); uerr != nil {
		c.logger.Warn("failed to update rerank submission", "submission_id", sub.ID, "error", uerr)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/studylog/internal/align"
	"github.com/runnerr0/studylog/internal/compute"
	"github.com/runnerr0/studylog/internal/unique"
)

// resultJSON is the JSON output structure for compute commands.
type resultJSON struct {
	Entity        string            `json:"entity"`
	RunID         string            `json:"run_id"`
	ComputeIndex  int64             `json:"compute_index"`
	UpstreamIndex int64             `json:"upstream_index"`
	Rows          int64             `json:"rows"`
	StartedAt     string            `json:"started_at"`
	FinishedAt    string            `json:"finished_at"`
	Discarded     int               `json:"discarded,omitempty"`
	Dropped       int               `json:"dropped_visits,omitempty"`
	Unclassified  int               `json:"unclassified,omitempty"`
	Unmatched     []align.Unmatched `json:"unmatched,omitempty"`
}

func printResult(globals *GlobalFlags, res *compute.Result) error {
	run := res.Run
	if globals != nil && globals.JSON {
		return printJSON(resultJSON{
			Entity:        string(run.Entity),
			RunID:         run.ID,
			ComputeIndex:  run.ComputeIndex,
			UpstreamIndex: run.UpstreamIndex,
			Rows:          run.RowsWritten,
			StartedAt:     run.StartedAt.Format(time.RFC3339),
			FinishedAt:    run.FinishedAt.Format(time.RFC3339),
			Discarded:     res.Discarded,
			Dropped:       res.Dropped,
			Unclassified:  res.Unclassified,
			Unmatched:     res.Unmatched,
		})
	}

	fmt.Printf("Computed %s generation %d", run.Entity, run.ComputeIndex)
	if run.UpstreamIndex > 0 {
		fmt.Printf(" from generation %d", run.UpstreamIndex)
	}
	fmt.Printf(": %s rows\n", formatNumber(run.RowsWritten))

	if res.Discarded > 0 {
		fmt.Printf("  Discarded periods:  %d\n", res.Discarded)
	}
	if res.Dropped > 0 {
		fmt.Printf("  Visits outside tasks: %d\n", res.Dropped)
	}
	if res.Unclassified > 0 {
		fmt.Printf("  Unclassified URLs:  %d\n", res.Unclassified)
	}
	if len(res.Unmatched) > 0 {
		fmt.Printf("  Unmatched ratings:  %d\n", len(res.Unmatched))
		for _, u := range res.Unmatched {
			fmt.Printf("    user %d, event %d\n", u.UserID, u.EventID)
		}
	}
	return nil
}

// Execute implements the go-flags Commander interface for TaskPeriodsCommand.
func (c *TaskPeriodsCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *TaskPeriodsCommand) executeWithSession(sess *session) error {
	corr, err := sess.corrections(c.Corrections)
	if err != nil {
		return err
	}
	res, err := sess.runner().TaskPeriods(context.Background(), corr)
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

// Execute implements the go-flags Commander interface for VisitsCommand.
func (c *VisitsCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *VisitsCommand) executeWithSession(sess *session) error {
	res, err := sess.runner().Visits(context.Background(), c.TaskComputeIndex)
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

// Execute implements the go-flags Commander interface for RatingsCommand.
func (c *RatingsCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *RatingsCommand) executeWithSession(sess *session) error {
	corr, err := sess.corrections(c.Corrections)
	if err != nil {
		return err
	}
	basisName := c.RatingTime
	if basisName == "" {
		basisName = sess.cfg.Study.RatingTime
	}
	basis, err := align.ParseTimeBasis(basisName)
	if err != nil {
		return err
	}

	res, err := sess.runner().Ratings(context.Background(), compute.RatingOptions{
		TaskComputeIndex: c.TaskComputeIndex,
		Labels:           corr.HandLabels(),
		Basis:            basis,
	})
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

// Execute implements the go-flags Commander interface for GraphCommand.
func (c *GraphCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *GraphCommand) executeWithSession(sess *session) error {
	classifier, err := sess.classifier(c.PageTypes)
	if err != nil {
		return err
	}
	res, err := sess.runner().Graph(context.Background(), compute.GraphOptions{
		Classifier:        classifier,
		VisitComputeIndex: c.VisitComputeIndex,
		ConcernIndex:      c.ConcernIndex,
	})
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

// Execute implements the go-flags Commander interface for NgramsCommand.
func (c *NgramsCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *NgramsCommand) executeWithSession(sess *session) error {
	classifier, err := sess.classifier(c.PageTypes)
	if err != nil {
		return err
	}
	minLength, maxLength := c.MinLength, c.MaxLength
	if minLength == 0 {
		minLength = sess.cfg.Ngrams.MinLength
	}
	if maxLength == 0 {
		maxLength = sess.cfg.Ngrams.MaxLength
	}

	res, err := sess.runner().Ngrams(context.Background(), compute.NgramOptions{
		Classifier:        classifier,
		VisitComputeIndex: c.VisitComputeIndex,
		MinLength:         minLength,
		MaxLength:         maxLength,
	})
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

// Execute implements the go-flags Commander interface for UniqueURLsCommand.
func (c *UniqueURLsCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *UniqueURLsCommand) executeWithSession(sess *session) error {
	exclude := c.ExcludeUser
	if len(exclude) == 0 {
		for _, id := range sess.cfg.Study.ExcludedUsers {
			exclude = append(exclude, int64(id))
		}
	}
	sess.logger.Debug("excluding participants", "users", exclude)

	res, err := sess.runner().UniqueURLs(context.Background(), c.VisitComputeIndex, exclude)
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

// Execute implements the go-flags Commander interface for UniqueCuesCommand.
func (c *UniqueCuesCommand) Execute(args []string) error {
	if c.Cues == "" {
		return fmt.Errorf("--cues is required for unique-cues command")
	}
	return withSession(c.globals, c.executeWithSession)
}

func (c *UniqueCuesCommand) executeWithSession(sess *session) error {
	cues, err := unique.LoadCues(c.Cues)
	if err != nil {
		return err
	}
	res, err := sess.runner().UniqueCues(context.Background(), cues)
	if err != nil {
		return err
	}
	return printResult(c.globals, res)
}

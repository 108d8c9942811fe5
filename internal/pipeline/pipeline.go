package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"turnpp/internal/archive"
	"turnpp/internal/config"
	"turnpp/internal/domain"
	"turnpp/internal/integrations/jira"
	"turnpp/internal/naming"
	"turnpp/internal/pairing"
	"turnpp/internal/quality"
	"turnpp/internal/results"
	"turnpp/internal/retention"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// TicketSource is the remote issue tracker.
type TicketSource interface {
	Ping(ctx context.Context) error
	Search(ctx context.Context, q domain.TicketQuery) ([]domain.Ticket, error)
	AddComment(ctx context.Context, key, body string) error
	AddLabel(ctx context.Context, key, label string) error
}

// Ledger persists run bookkeeping. Optional.
type Ledger interface {
	StartRun(runDate string, startedAt time.Time) (string, error)
	RecordOutcome(o domain.TicketOutcome) error
	FinishRun(s domain.RunSummary, finishedAt time.Time) error
}

// Notifier receives the run summary text. Optional.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Settings are the search criteria and paths a run needs.
type Settings struct {
	AppName        string
	Projects       []string
	IssueType      string
	ParentStatuses []string
	ChildStatuses  []string
	ChildLabel     string
	Text           string
	StartDateField string
	EndDateField   string
	ProcessedLabel string
	Mention        string
	StorageRoot    string
	FileExtension  string
	RequiredTags   []string
	ResultsPath    string
	LogPath        string
	RetentionDays  int
}

func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		AppName:        cfg.AppName,
		Projects:       cfg.JiraProjects,
		IssueType:      cfg.JiraIssueType,
		ParentStatuses: cfg.JiraParentStatuses,
		ChildStatuses:  cfg.JiraChildStatuses,
		ChildLabel:     cfg.JiraChildLabel,
		Text:           cfg.JiraText,
		StartDateField: cfg.StartDateField,
		EndDateField:   cfg.EndDateField,
		ProcessedLabel: cfg.ProcessedLabel,
		Mention:        cfg.CommentMention,
		StorageRoot:    cfg.StorageRoot,
		FileExtension:  cfg.FileExtension,
		RequiredTags:   cfg.RequiredTags,
		ResultsPath:    cfg.ResultsPath,
		LogPath:        cfg.LogPath,
		RetentionDays:  cfg.LogRetentionDays,
	}
}

// StageError ties a failure to the stage and ticket it happened in.
type StageError struct {
	Stage  string
	Ticket string
	Err    error
}

func (e *StageError) Error() string {
	if e.Ticket == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Ticket, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Runner drives one post-processing run: parents, their children, and for
// each child the pairing, checks, archive and ticket updates. Tickets are
// handled strictly one after another.
type Runner struct {
	Settings Settings
	Source   TicketSource
	Checker  quality.FileChecker
	Names    *naming.Normalizer
	Ledger   Ledger
	Notifier Notifier
	Log      *zap.SugaredLogger
}

// run holds the state owned by a single invocation of Run.
type run struct {
	*Runner
	ctx     context.Context
	time    time.Time
	summary domain.RunSummary
	results domain.RunResults
}

// Run processes every eligible ticket. runTime stamps every output of the
// run (results file name, ledger date). Failures are logged and counted;
// none stop the loop except a failed connectivity check or parent search.
func (r *Runner) Run(ctx context.Context, runTime time.Time) domain.RunSummary {
	if r.Log == nil {
		r.Log = zap.NewNop().Sugar()
	}
	rn := &run{
		Runner:  r,
		ctx:     ctx,
		time:    runTime,
		summary: domain.RunSummary{RunDate: runTime.Format("20060102")},
		results: domain.RunResults{},
	}
	rn.startLedger()
	rn.process()
	rn.sweepLogs()
	rn.finish()
	return rn.summary
}

func (rn *run) process() {
	if err := rn.Source.Ping(rn.ctx); err != nil {
		rn.abort(&StageError{Stage: "connect", Err: err})
		return
	}

	parents, err := rn.Source.Search(rn.ctx, rn.parentQuery())
	if err != nil {
		rn.abort(&StageError{Stage: "parent search", Err: err})
		return
	}
	if len(parents) == 0 {
		rn.Log.Warnw("no parent tickets match the search criteria")
		return
	}
	rn.summary.Parents = len(parents)
	rn.Log.Infow("parent tickets found", "count", len(parents))

	for _, parent := range parents {
		if err := rn.ctx.Err(); err != nil {
			rn.fail(&StageError{Stage: "run", Ticket: parent.Key, Err: err})
			break
		}
		rn.processParent(parent)
	}

	path := results.Path(rn.Settings.ResultsPath, rn.Settings.AppName, rn.time)
	if err := results.Write(path, rn.results); err != nil {
		rn.fail(&StageError{Stage: "results", Err: err})
	} else {
		rn.Log.Infow("run results written", "file", path, "tickets", len(rn.results))
	}
}

func (rn *run) processParent(parent domain.Ticket) {
	log := rn.Log.With("parent", parent.Key)

	name, err := rn.Names.CustomerName(parent.Summary)
	if err != nil {
		rn.fail(&StageError{Stage: "customer name", Ticket: parent.Key, Err: err})
		return
	}
	pc := domain.ParentContext{Ticket: parent, CustomerName: name}
	log.Infow("customer name derived", "customer", name)

	children, err := rn.Source.Search(rn.ctx, rn.childQuery(pc))
	if err != nil {
		rn.fail(&StageError{Stage: "child search", Ticket: parent.Key, Err: err})
		return
	}
	if len(children) == 0 {
		log.Warnw("no child tickets match the search criteria")
		return
	}
	rn.summary.Children += len(children)
	log.Infow("child tickets found", "count", len(children))

	for _, child := range children {
		rn.processChild(pc, child)
	}
}

func (rn *run) processChild(pc domain.ParentContext, child domain.Ticket) {
	log := rn.Log.With("parent", pc.Ticket.Key, "ticket", child.Key)

	if child.HasLabel(rn.Settings.ProcessedLabel) {
		log.Infow("ticket already processed")
		return
	}

	cc, err := rn.childContext(pc, child)
	if err != nil {
		rn.outcome(pc, child, domain.OutcomeSkipped, "", rn.fail(&StageError{Stage: "child context", Ticket: child.Key, Err: err}))
		return
	}

	files, err := pairing.Resolve(cc.Dir, rn.Settings.FileExtension)
	if err != nil {
		rn.outcome(pc, child, domain.OutcomePairingFailed, "", rn.fail(&StageError{Stage: "pairing", Ticket: child.Key, Err: err}))
		return
	}
	log.Infow("files resolved", "dir", cc.Dir, "count", len(files))

	result, err := quality.Aggregate(rn.Checker, files, rn.Settings.RequiredTags)
	if err != nil {
		rn.summary.Failed++
		rn.outcome(pc, child, domain.OutcomeCheckFailed, "", rn.fail(&StageError{Stage: "quality", Ticket: child.Key, Err: err}))
		log.Errorw("files failed the data checks, no archive created")
		return
	}
	rn.summary.Passed++
	rn.results[child.Key] = result

	if err := rn.Source.AddComment(rn.ctx, child.Key, jira.QualityComment(rn.Settings.Mention, result)); err != nil {
		rn.fail(&StageError{Stage: "quality comment", Ticket: child.Key, Err: err})
	}

	path, err := archive.Create(cc.Dir, cc.ArchiveBaseName, files)
	if err != nil {
		rn.outcome(pc, child, domain.OutcomeArchiveFailed, "", rn.fail(&StageError{Stage: "archive", Ticket: child.Key, Err: err}))
		return
	}
	rn.summary.Archived++
	if fi, err := os.Stat(path); err == nil {
		log.Infow("archive created", "file", path, "size", humanize.Bytes(uint64(fi.Size())))
	}

	if err := rn.Source.AddComment(rn.ctx, child.Key, jira.RowCountComment(rn.Settings.Mention, cc.ArchiveBaseName+".zip", result)); err != nil {
		rn.fail(&StageError{Stage: "row count comment", Ticket: child.Key, Err: err})
	}
	if err := rn.Source.AddLabel(rn.ctx, child.Key, rn.Settings.ProcessedLabel); err != nil {
		rn.fail(&StageError{Stage: "mark processed", Ticket: child.Key, Err: err})
	} else {
		rn.summary.Marked++
	}
	rn.outcome(pc, child, domain.OutcomeArchived, path, nil)
}

func (rn *run) childContext(pc domain.ParentContext, child domain.Ticket) (domain.ChildContext, error) {
	start, err := time.Parse(dateLayout, child.Field(rn.Settings.StartDateField))
	if err != nil {
		return domain.ChildContext{}, errors.Wrapf(err, "start date field %s", rn.Settings.StartDateField)
	}
	end, err := time.Parse(dateLayout, child.Field(rn.Settings.EndDateField))
	if err != nil {
		return domain.ChildContext{}, errors.Wrapf(err, "end date field %s", rn.Settings.EndDateField)
	}
	return domain.ChildContext{
		Parent:          pc,
		Ticket:          child,
		StartDate:       start,
		EndDate:         end,
		Dir:             pairing.ChildDir(rn.Settings.StorageRoot, pc.Ticket.Key, child.Key),
		ArchiveBaseName: pc.CustomerName + "_" + start.Format(dateLayout) + "_" + end.Format(dateLayout),
	}, nil
}

func (rn *run) parentQuery() domain.TicketQuery {
	return domain.TicketQuery{
		Projects:  rn.Settings.Projects,
		IssueType: rn.Settings.IssueType,
		Statuses:  rn.Settings.ParentStatuses,
		Text:      rn.Settings.Text,
	}
}

func (rn *run) childQuery(pc domain.ParentContext) domain.TicketQuery {
	q := domain.TicketQuery{
		ParentKey:     pc.Ticket.Key,
		Statuses:      rn.Settings.ChildStatuses,
		ExcludeLabels: []string{rn.Settings.ProcessedLabel},
	}
	if rn.Settings.ChildLabel != "" {
		q.Labels = []string{rn.Settings.ChildLabel}
	}
	return q
}

func (rn *run) sweepLogs() {
	if rn.Settings.LogPath == "" || rn.Settings.RetentionDays < 1 {
		return
	}
	rep, err := retention.Sweep(rn.Settings.LogPath, rn.Settings.RetentionDays, rn.time, rn.Log)
	if err != nil {
		rn.fail(&StageError{Stage: "retention", Err: err})
		return
	}
	for _, ferr := range rep.Failures {
		rn.summary.Errors = append(rn.summary.Errors, ferr.Error())
	}
}

func (rn *run) abort(err *StageError) {
	rn.summary.Aborted = true
	rn.fail(err)
}

// fail logs err, adds it to the summary and returns it.
func (rn *run) fail(err *StageError) error {
	rn.summary.Errors = append(rn.summary.Errors, err.Error())
	rn.Log.Errorw(err.Stage+" failed", "ticket", err.Ticket, "error", err.Err)
	return err
}

func (rn *run) startLedger() {
	if rn.Ledger == nil {
		return
	}
	id, err := rn.Ledger.StartRun(rn.summary.RunDate, rn.time)
	if err != nil {
		rn.Log.Errorw("ledger start failed", "error", err)
		return
	}
	rn.summary.RunID = id
}

func (rn *run) outcome(pc domain.ParentContext, child domain.Ticket, outcome, archivePath string, err error) {
	if rn.Ledger == nil || rn.summary.RunID == "" {
		return
	}
	o := domain.TicketOutcome{
		RunID:       rn.summary.RunID,
		ParentKey:   pc.Ticket.Key,
		TicketKey:   child.Key,
		Outcome:     outcome,
		ArchivePath: archivePath,
		RecordedAt:  time.Now(),
	}
	if err != nil {
		o.Detail = err.Error()
	}
	if lerr := rn.Ledger.RecordOutcome(o); lerr != nil {
		rn.Log.Errorw("ledger outcome failed", "ticket", child.Key, "error", lerr)
	}
}

func (rn *run) finish() {
	s := rn.summary
	rn.Log.Infow("run complete",
		"parents", s.Parents, "children", s.Children, "passed", s.Passed, "failed", s.Failed,
		"archived", s.Archived, "marked", s.Marked, "errors", len(s.Errors), "aborted", s.Aborted)

	if rn.Ledger != nil && s.RunID != "" {
		if err := rn.Ledger.FinishRun(s, time.Now()); err != nil {
			rn.Log.Errorw("ledger finish failed", "error", err)
		}
	}
	if rn.Notifier != nil {
		if err := rn.Notifier.Notify(rn.ctx, FormatSummary(s)); err != nil {
			rn.Log.Errorw("run summary post failed", "error", err)
		}
	}
}

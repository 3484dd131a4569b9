package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blast-job-service/internal/dataset"
	"blast-job-service/internal/entity"
	"blast-job-service/internal/reconciler"
	"blast-job-service/internal/workspace"
)

var ErrJobNotFound = errors.New("job not found")

const fastaWidth = 60

// Ports (implementations: dataset.Resolver, builder.Builder, scheduler.*,
// postgresql.JobRepository).
type DatasetResolver interface {
	Resolve(ctx context.Context, name string) (entity.Dataset, error)
	List() ([]string, error)
}

type ScriptBuilder interface {
	ValidateMode(mode entity.SearchMode) error
	Build(job entity.Job, paths workspace.Paths, ds entity.Dataset) ([]byte, error)
}

type Submitter interface {
	Submit(ctx context.Context, job entity.Job, scriptPath string) error
}

type Journal interface {
	Record(ctx context.Context, job entity.Job, state entity.JobState, errText string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

type BlastService struct {
	ws        *workspace.Manager
	resolver  DatasetResolver
	builder   ScriptBuilder
	submitter Submitter
	results   *reconciler.Reconciler
	journal   Journal
	log       zerolog.Logger
}

// NewBlastService wires the lifecycle. journal may be nil.
func NewBlastService(
	ws *workspace.Manager,
	resolver DatasetResolver,
	builder ScriptBuilder,
	submitter Submitter,
	journal Journal,
	log zerolog.Logger,
) *BlastService {
	return &BlastService{
		ws:        ws,
		resolver:  resolver,
		builder:   builder,
		submitter: submitter,
		results:   reconciler.New(ws),
		journal:   journal,
		log:       log.With().Str("component", "service").Logger(),
	}
}

type SubmitRequest struct {
	Mode         string
	Database     string
	Sequence     string
	OutputFormat string
}

// Submit validates the request, writes the job's input and script, and hands
// the script to the scheduler. It returns once the scheduler accepted or
// rejected the job; on any failure the job's files are removed.
func (s *BlastService) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	fasta, err := NormalizeSequence(req.Sequence)
	if err != nil {
		return uuid.Nil, err
	}
	mode := entity.SearchMode(strings.TrimSpace(req.Mode))
	if err := s.builder.ValidateMode(mode); err != nil {
		return uuid.Nil, err
	}
	format, err := entity.ParseOutputFormat(req.OutputFormat)
	if err != nil {
		return uuid.Nil, err
	}
	dbName, err := dataset.NormalizeName(req.Database)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := s.ws.AllocateJobID()
	if err != nil {
		return uuid.Nil, err
	}
	paths := s.ws.PathsFor(id)
	job := entity.Job{
		ID:         id,
		Mode:       mode,
		Database:   dbName,
		Format:     format,
		InputPath:  paths.Input,
		ScriptPath: paths.Script,
		OutputPath: paths.Output,
		CreatedAt:  time.Now().UTC(),
	}
	log := s.log.With().Str("job_id", id.String()).Str("mode", string(mode)).Str("database", dbName).Logger()

	fail := func(err error) (uuid.UUID, error) {
		if rmErr := s.ws.Remove(id); rmErr != nil {
			log.Error().Err(rmErr).Msg("cleanup job files")
		}
		s.transition(ctx, &job, entity.StateFailed, err, log)
		return uuid.Nil, err
	}

	if err := s.ws.WriteFile(ctx, paths.Input, fasta, 0o644); err != nil {
		return fail(err)
	}
	s.transition(ctx, &job, entity.StateCreated, nil, log)

	s.transition(ctx, &job, entity.StateStaging, nil, log)
	ds, err := s.resolver.Resolve(ctx, dbName)
	if err != nil {
		return fail(err)
	}

	script, err := s.builder.Build(job, paths, ds)
	if err != nil {
		return fail(err)
	}
	if err := s.ws.WriteFile(ctx, paths.Script, script, 0o755); err != nil {
		return fail(err)
	}

	s.transition(ctx, &job, entity.StateSubmitted, nil, log)
	if err := s.submitter.Submit(ctx, job, paths.Script); err != nil {
		return fail(err)
	}

	s.transition(ctx, &job, entity.StatePending, nil, log)
	return id, nil
}

// Poll reports whether the job's output exists yet and returns it if so.
func (s *BlastService) Poll(_ context.Context, token string) (entity.PollResult, error) {
	return s.results.Poll(token)
}

// JobView is a job's current state, enriched from the journal when one is
// configured.
type JobView struct {
	ID        string
	State     entity.JobState
	Mode      entity.SearchMode
	Database  string
	CreatedAt *time.Time
}

func (s *BlastService) Describe(ctx context.Context, token string) (JobView, error) {
	status, err := s.results.Status(token)
	if err != nil {
		return JobView{}, err
	}
	if status == entity.PollNotFound {
		return JobView{}, ErrJobNotFound
	}
	view := JobView{ID: token, State: status.State()}

	if s.journal != nil {
		id, _ := uuid.Parse(token)
		if j, err := s.journal.GetByID(ctx, id); err == nil {
			view.Mode = j.Mode
			view.Database = j.Database
			created := j.CreatedAt
			view.CreatedAt = &created
		}
	}
	return view, nil
}

func (s *BlastService) Databases() ([]string, error) {
	return s.resolver.List()
}

func (s *BlastService) transition(ctx context.Context, job *entity.Job, state entity.JobState, cause error, log zerolog.Logger) {
	job.State = state
	ev := log.Info()
	errText := ""
	if cause != nil {
		errText = cause.Error()
		ev = log.Warn().Err(cause)
	}
	ev.Str("state", string(state)).Msg("job state")

	if s.journal == nil {
		return
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), *job, state, errText); err != nil {
		log.Error().Err(err).Str("state", string(state)).Msg("journal record")
	}
}

// NormalizeSequence validates a raw or FASTA query and returns it re-encoded
// as FASTA. A header is added when missing.
func NormalizeSequence(raw string) ([]byte, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if raw == "" {
		return nil, fmt.Errorf("%w: no sequence provided", entity.ErrInvalidInput)
	}
	if !strings.HasPrefix(raw, ">") {
		raw = ">query\n" + raw
	}

	var buf bytes.Buffer
	r := fasta.NewReader(strings.NewReader(raw), linear.NewSeq("", nil, alphabet.Protein))
	w := fasta.NewWriter(&buf, fastaWidth)
	records := 0
	for {
		s, err := r.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
		}
		if s != nil {
			rec, ok := s.(*linear.Seq)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected record %T", entity.ErrInvalidInput, s)
			}
			residues, cerr := residuesOf(rec)
			if cerr != nil {
				return nil, cerr
			}
			rec.Seq = residues
			if _, werr := w.Write(rec); werr != nil {
				return nil, werr
			}
			records++
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	if records == 0 {
		return nil, fmt.Errorf("%w: sequence has no records", entity.ErrInvalidInput)
	}
	return buf.Bytes(), nil
}

// residuesOf drops blanks from a record and rejects anything that is not a
// residue letter, a gap or a stop.
func residuesOf(rec *linear.Seq) (alphabet.Letters, error) {
	out := make(alphabet.Letters, 0, len(rec.Seq))
	for _, l := range rec.Seq {
		switch c := byte(l); {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '*', c == '-':
			out = append(out, l)
		case c == ' ' || c == '\t':
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %s", entity.ErrInvalidInput, c, rec.Name())
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no residues", entity.ErrInvalidInput, rec.Name())
	}
	return out, nil
}

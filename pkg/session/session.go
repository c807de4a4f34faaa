package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jnfrati/replq/internal/evaluator"
	"github.com/jnfrati/replq/internal/input"
	"github.com/jnfrati/replq/internal/logger"
	"github.com/jnfrati/replq/internal/models"
	"github.com/jnfrati/replq/internal/queue"
	"github.com/jnfrati/replq/internal/storage"
)

// Session pipes chunks from a Source through the hand-off queue into a
// single sequential evaluator loop. It never closes the queue on its own:
// closing comes from outside, either end-of-input (the source's chunk
// channel closing) or an explicit Close call.
type Session struct {
	id string

	queue     *queue.Queue[[]byte]
	source    input.Source
	evaluator evaluator.Evaluator

	history storage.Storage[models.Evaluation]

	cronManager *cron.Cron

	out io.Writer

	failFast bool
}

func NewSession(
	manifest *models.SessionManifestV1,
	source input.Source,
	ev evaluator.Evaluator,
	history storage.Storage[models.Evaluation],
) (*Session, error) {
	s := &Session{
		id:        uuid.NewString(),
		queue:     queue.New[[]byte](),
		source:    source,
		evaluator: ev,
		history:   history,
		cronManager: cron.New(
			cron.WithParser(
				cron.NewParser(
					cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
				),
			),
		),
	}

	if manifest != nil {
		s.failFast = manifest.FailFast

		for _, snippet := range manifest.Scheduled {
			code := snippet.Code
			if _, err := s.cronManager.AddFunc(snippet.Cron, func() {
				if err := s.Submit(code); err != nil {
					logger.Global.Warn().
						Str("session.id", s.id).
						Err(err).
						Msg("dropping scheduled snippet")
				}
			}); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *Session) Id() string {
	return s.id
}

// SetOutput directs evaluator output to w. Without it, output only lands
// in the evaluation history.
func (s *Session) SetOutput(w io.Writer) {
	s.out = w
}

// Submit pushes one chunk of code onto the session's queue. Fails with
// queue.ErrQueueClosed once the session is shutting down.
func (s *Session) Submit(code string) error {
	return s.queue.Push([]byte(code))
}

// Close signals that no further chunks will arrive. Already-queued chunks
// still get evaluated. Idempotent.
func (s *Session) Close() {
	s.queue.Close()
}

// Stats reports the number of queued chunks and whether the session has
// been closed.
func (s *Session) Stats() (size int, closed bool) {
	return s.queue.Size(), s.queue.Closed()
}

// History lists past evaluations, oldest first.
func (s *Session) History(ctx context.Context, limit, skip int) ([]models.Evaluation, error) {
	return s.history.List(ctx, limit, skip)
}

// Run drives the session: one loop feeding source chunks into the queue,
// one loop consuming the queue's lazy view and evaluating each chunk in
// order. Run returns once the termination sentinel has been observed and
// the source paused, or when an evaluation fails in fail-fast mode.
func (s *Session) Run(ctx context.Context) error {
	s.cronManager.Start()
	defer s.cronManager.Stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.produce(ctx)
	})

	eg.Go(func() error {
		return s.consume(ctx)
	})

	return eg.Wait()
}

func (s *Session) produce(ctx context.Context) error {
	for {
		select {
		case chunk, ok := <-s.source.Chunks():
			if !ok {
				// End of input closes the queue; buffered chunks still
				// drain before the consumer sees termination.
				s.queue.Close()
				return nil
			}
			if err := s.queue.Push(chunk); err != nil {
				if errors.Is(err, queue.ErrQueueClosed) {
					logger.Global.Debug().
						Str("session.id", s.id).
						Msg("input after close, stopping producer")
					return nil
				}
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) consume(ctx context.Context) error {
	defer s.source.Pause()

	var failure error

	for chunk := range s.queue.All(ctx) {
		code := string(chunk)

		evaluation := models.Evaluation{
			SessionId: s.id,
			Code:      code,
			StartedAt: time.Now(),
			Status:    models.EvaluationStatus_SUCCEEDED,
		}

		out, err := s.evaluator.Evaluate(ctx, code)

		evaluation.FinishedAt = time.Now()
		evaluation.Output = string(out)
		if err != nil {
			evaluation.Status = models.EvaluationStatus_FAILED
			evaluation.Error = err.Error()
		}

		if id, serr := s.history.Set(ctx, &evaluation); serr == nil {
			evaluation.Id = id
		}

		if err != nil {
			logger.Global.Error().
				Str("session.id", s.id).
				Str("code", code).
				Err(err).
				Msg("evaluation failed")

			if s.failFast {
				failure = err
				break
			}
			continue
		}

		if s.out != nil && len(out) > 0 {
			if _, werr := s.out.Write(out); werr != nil {
				logger.Global.Warn().Err(werr).Msg("couldn't write evaluation output")
			}
		}

		logger.Global.Debug().
			Str("session.id", s.id).
			Int("output.bytes", len(out)).
			Msg("evaluated chunk")
	}

	return failure
}

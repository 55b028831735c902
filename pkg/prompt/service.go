package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calprompt/calprompt/internal/event_bus"
	"github.com/calprompt/calprompt/internal/rest"
	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/calprompt/calprompt/pkg/intent"
	"github.com/calprompt/calprompt/pkg/operation"
	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
)

type Request struct {
	Prompt   string `json:"prompt"`
	TimeZone string `json:"timeZone"`
}

// Service runs the prompt pipeline: extract, resolve, fetch, merge, write. It keeps no state
// between requests.
type Service struct {
	extractor  *intent.Extractor
	dispatcher *operation.Dispatcher
	stores     calendar.StoreFactory
	clock      utils.Clock
	eventBus   *event_bus.EventBus
}

func NewService(
	extractor *intent.Extractor,
	dispatcher *operation.Dispatcher,
	stores calendar.StoreFactory,
	clock utils.Clock,
	eventBus *event_bus.EventBus,
) *Service {
	return &Service{
		extractor:  extractor,
		dispatcher: dispatcher,
		stores:     stores,
		clock:      clock,
		eventBus:   eventBus,
	}
}

// Handle turns one prompt into exactly one envelope. The credential is checked before the engine
// or the store is called.
func (s *Service) Handle(ctx context.Context, cred credential.Credential, req Request) (operation.Envelope, error) {
	started := s.clock.Now()
	var kind intent.Kind
	envelope, err := s.handle(ctx, cred, req, &kind)
	s.report(ctx, kind, envelope, err, s.clock.Now().Sub(started))
	return envelope, err
}

func (s *Service) handle(ctx context.Context, cred credential.Credential, req Request, kind *intent.Kind) (operation.Envelope, error) {
	store, err := s.open(ctx, cred, req.TimeZone, true)
	if err != nil {
		return operation.Envelope{}, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return operation.Envelope{}, intent.ErrEmptyPrompt
	}

	intentCtx, err := intent.NewContext(s.clock.Now(), req.TimeZone)
	if err != nil {
		return operation.Envelope{}, err
	}
	in, err := s.extractor.Extract(ctx, req.Prompt, intentCtx)
	if err != nil {
		return operation.Envelope{}, fmt.Errorf("failed to extract intent: %w", err)
	}
	*kind = in.Kind()
	log.Debugf("prompt resolved to %s intent", in.Kind())

	return s.dispatcher.Dispatch(ctx, store, in, req.TimeZone)
}

// ListEvents returns the next upcoming events without going through the engine.
func (s *Service) ListEvents(ctx context.Context, cred credential.Credential, maxResults int) (operation.Envelope, error) {
	store, err := s.open(ctx, cred, "", false)
	if err != nil {
		return operation.Envelope{}, err
	}
	return s.dispatcher.Dispatch(ctx, store, intent.List{MaxResults: maxResults}, "")
}

// Commit creates an event supplied by the client, normalizing its times to timeZone first.
func (s *Service) Commit(ctx context.Context, cred credential.Credential, event calendar.Event, timeZone string) (operation.Envelope, error) {
	store, err := s.open(ctx, cred, timeZone, true)
	if err != nil {
		return operation.Envelope{}, err
	}
	if strings.TrimSpace(event.Summary) == "" {
		return operation.Envelope{}, fmt.Errorf("%w: summary is required", rest.ErrInvalidRequest)
	}
	if event.Start, err = calendar.NormalizeTimeSpec(event.Start, timeZone); err != nil {
		return operation.Envelope{}, err
	}
	if event.End, err = calendar.NormalizeTimeSpec(event.End, timeZone); err != nil {
		return operation.Envelope{}, err
	}
	return s.dispatcher.Dispatch(ctx, store, intent.Create{Event: event}, timeZone)
}

// open checks the credential, then the zone when one is required, then builds the store.
func (s *Service) open(ctx context.Context, cred credential.Credential, timeZone string, zoneRequired bool) (calendar.Store, error) {
	if err := cred.Check(s.clock.Now()); err != nil {
		return nil, err
	}
	if zoneRequired {
		if _, err := timezone.LoadZone(timeZone); err != nil {
			return nil, err
		}
	}
	store, err := s.stores(ctx, cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", calendar.ErrStoreUnavailable, err)
	}
	return store, nil
}

// report publishes the outcome of a prompt for audit logging and metrics.
func (s *Service) report(ctx context.Context, kind intent.Kind, envelope operation.Envelope, err error, took time.Duration) {
	if s.eventBus == nil {
		return
	}
	handled := event_bus.PromptHandled{
		Intent:   string(kind),
		Envelope: string(envelope.Type),
		Duration: took,
	}
	if err != nil {
		handled.Envelope = ""
		handled.Error = failureClass(err)
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.PromptHandledType, handled)); err != nil {
		log.Errorf("failed to publish %s: %v", event_bus.PromptHandledType, err)
	}
}

// failureClass is a low-cardinality label for err.
func failureClass(err error) string {
	var invalidOutput *intent.InvalidStructuredOutputError
	var malformed *timezone.MalformedTimeError
	switch {
	case errors.Is(err, credential.ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &invalidOutput):
		return "invalid_output"
	case errors.As(err, &malformed), errors.Is(err, timezone.ErrUnknownZone):
		return "invalid_time"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, calendar.ErrStoreUnavailable):
		return "store"
	case errors.Is(err, engine.ErrEngineUnavailable):
		return "engine"
	}
	return "other"
}

package app

import (
	"fmt"

	"github.com/calprompt/calprompt/internal/config"
	"github.com/calprompt/calprompt/internal/event_bus"
	"github.com/calprompt/calprompt/internal/metrics"
	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/caldav"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/calprompt/calprompt/pkg/google"
	"github.com/calprompt/calprompt/pkg/intent"
	"github.com/calprompt/calprompt/pkg/operation"
	"github.com/calprompt/calprompt/pkg/prompt"
	"github.com/calprompt/calprompt/pkg/resolver"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Collaborators are the external systems the pipeline talks to. They are built by the caller so
// tests can swap in stubs.
type Collaborators struct {
	Engine      engine.Engine
	Stores      calendar.StoreFactory
	Credentials credential.Provider
	Clock       utils.Clock
}

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Metrics  *metrics.Metrics

	CredentialProvider credential.Provider
	Stores             calendar.StoreFactory
	Engine             engine.Engine

	Extractor  *intent.Extractor
	Resolver   *resolver.Resolver
	Dispatcher *operation.Dispatcher

	PromptService *prompt.Service
	PromptHandler *prompt.Handler

	// PromptLimiter is nil when rate limiting is disabled.
	PromptLimiter *rate.Limiter
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(cfg config.Application, c Collaborators) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = c.Clock
	if deps.Clock == nil {
		deps.Clock = utils.SystemClock{}
	}
	deps.EventBus = event_bus.NewEventBus()
	deps.Metrics = metrics.New()
	deps.Metrics.Subscribe(deps.EventBus)
	subscribeAuditLog(deps.EventBus)

	deps.CredentialProvider = c.Credentials
	deps.Stores = c.Stores
	deps.Engine = c.Engine

	deps.Extractor = intent.NewExtractor(deps.Engine)
	deps.Resolver = resolver.NewResolver(deps.Clock)
	deps.Dispatcher = operation.NewDispatcher(deps.Resolver, deps.EventBus, cfg.Resolver.SearchWindowDays)

	deps.PromptService = prompt.NewService(deps.Extractor, deps.Dispatcher, deps.Stores, deps.Clock, deps.EventBus)
	deps.PromptHandler = prompt.NewHandler(deps.PromptService)

	if cfg.Server.RateLimit > 0 {
		burst := cfg.Server.RateBurst
		if burst <= 0 {
			burst = 1
		}
		deps.PromptLimiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), burst)
	}

	return deps
}

// BuildCollaborators creates the production engine, calendar store factory and credential
// provider from configuration. db is only needed for the postgres credential source.
func BuildCollaborators(cfg config.Application, db *pgxpool.Pool) (Collaborators, error) {
	clock := utils.SystemClock{}

	llm, err := engine.NewOpenAIEngine(cfg.Engine)
	if err != nil {
		return Collaborators{}, err
	}

	var stores calendar.StoreFactory
	switch cfg.Calendar.Backend {
	case "", "google":
		stores = google.NewStoreFactory(cfg.Calendar, clock)
	case "caldav":
		stores = caldav.NewStoreFactory(cfg.Calendar, clock, nil)
	default:
		return Collaborators{}, fmt.Errorf("unknown calendar backend %q", cfg.Calendar.Backend)
	}

	var credentials credential.Provider
	switch cfg.Credentials.Source {
	case "", "header":
		credentials = credential.NewHeaderProvider()
	case "postgres":
		if db == nil {
			return Collaborators{}, fmt.Errorf("credential source postgres needs a database")
		}
		credentials = credential.NewPostgresProvider(credential.NewRepository(db))
	default:
		return Collaborators{}, fmt.Errorf("unknown credential source %q", cfg.Credentials.Source)
	}

	log.Infof("Using %s calendar backend, %s credentials, %s engine model %s",
		orDefault(cfg.Calendar.Backend, "google"), orDefault(cfg.Credentials.Source, "header"), cfg.Engine.Provider, cfg.Engine.Model)
	return Collaborators{Engine: llm, Stores: stores, Credentials: credentials, Clock: clock}, nil
}

// subscribeAuditLog writes every applied mutation to the log.
func subscribeAuditLog(bus *event_bus.EventBus) {
	for _, eventType := range []event_bus.EventType{
		event_bus.CalendarEventCreatedType,
		event_bus.CalendarEventUpdatedType,
		event_bus.CalendarEventDeletedType,
	} {
		event_bus.SubscribeTyped(bus, eventType, func(e event_bus.EventT[event_bus.CalendarEventChanged]) error {
			log.WithFields(log.Fields{
				"event":   e.Type,
				"eventId": e.Data.EventID,
				"summary": e.Data.Summary,
			}).Info("calendar changed")
			return nil
		})
	}
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

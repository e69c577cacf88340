package crmsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crmsync/adapters/gocommand"
	gojob "github.com/goliatone/go-crmsync/adapters/gojob"
	"github.com/goliatone/go-crmsync/auth"
	"github.com/goliatone/go-crmsync/cache"
	"github.com/goliatone/go-crmsync/contacts"
	"github.com/goliatone/go-crmsync/core"
	"github.com/goliatone/go-crmsync/gateway"
	"github.com/goliatone/go-crmsync/normalize"
	"github.com/goliatone/go-crmsync/ratelimit"
	memstore "github.com/goliatone/go-crmsync/store/memory"
	sqlstore "github.com/goliatone/go-crmsync/store/sql"
	"github.com/goliatone/go-crmsync/webhooks"
	"github.com/goliatone/go-job/queue"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"golang.org/x/sync/errgroup"
)

// CredentialBackend is a credential set that can also issue and revoke keys.
type CredentialBackend interface {
	core.CredentialStore
	core.CredentialIssuer
}

type appBuilder struct {
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	persistenceClient any
	tagCache          repositorycache.CacheService
	credentials       CredentialBackend
	enqueuer          core.JobEnqueuer
	dequeuer          core.JobDequeuer
	jobHook           core.JobWorkerHook
	httpClient        *http.Client
	commandRegistry   *gocmd.Registry
	now               func() time.Time
}

type Option func(*appBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *appBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *appBuilder) {
		b.loggerProvider = provider
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *appBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *appBuilder) {
		b.optionsResolver = resolver
	}
}

// WithPersistenceClient switches every store to the bun backed
// implementations. client is a *bun.DB or anything exposing DB() *bun.DB.
func WithPersistenceClient(client any) Option {
	return func(b *appBuilder) {
		b.persistenceClient = client
	}
}

// WithTagCache puts a go-repository-cache read cache in front of tag lookups
// when the sql stores are in use.
func WithTagCache(service repositorycache.CacheService) Option {
	return func(b *appBuilder) {
		b.tagCache = service
	}
}

func WithCredentialStore(store CredentialBackend) Option {
	return func(b *appBuilder) {
		b.credentials = store
	}
}

// WithJobQueue routes webhook events through the given queue when
// webhook.async is enabled.
func WithJobQueue(enqueuer core.JobEnqueuer, dequeuer core.JobDequeuer) Option {
	return func(b *appBuilder) {
		b.enqueuer = enqueuer
		b.dequeuer = dequeuer
	}
}

// WithGoJobQueue adapts a go-job queue backend for async webhook delivery.
func WithGoJobQueue(enqueuer queue.Enqueuer, dequeuer queue.Dequeuer, policy gojob.NackPolicy) Option {
	return func(b *appBuilder) {
		if enqueuer != nil {
			b.enqueuer = gojob.NewEnqueuerAdapter(enqueuer)
		}
		if dequeuer != nil {
			b.dequeuer = gojob.NewDequeuerAdapter(dequeuer, policy)
		}
	}
}

func WithJobWorkerHook(hook core.JobWorkerHook) Option {
	return func(b *appBuilder) {
		b.jobHook = hook
	}
}

// WithCommandRegistry mounts the contact and webhook handlers on the
// go-command dispatcher so they can be driven in-process.
func WithCommandRegistry(registry *gocmd.Registry) Option {
	return func(b *appBuilder) {
		b.commandRegistry = registry
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(b *appBuilder) {
		b.httpClient = client
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *appBuilder) {
		b.now = now
	}
}

// App is the assembled service: stores, contact service, webhook pipeline
// and the HTTP gateway, built from one resolved configuration.
type App struct {
	config core.Config
	logger core.Logger

	contacts   *contacts.Service
	dispatcher *webhooks.Dispatcher
	deliveries core.DeliveryLog
	issuer     *auth.KeyIssuer
	gateway    *gateway.Gateway
	handlers   gateway.Handlers
	api        *gateway.API
	bus        *gocommand.Bus
	sweeper    *webhooks.RetentionSweeper
	worker     *webhooks.DeliveryWorker
	factory    *sqlstore.RepositoryFactory
}

type storeSet struct {
	contacts    core.ContactStore
	tags        core.TagStore
	notes       core.NoteStore
	activities  core.ActivityStore
	credentials CredentialBackend
	windows     ratelimit.WindowStore
	responses   cache.Cache
	deliveries  core.DeliveryLog
}

// New resolves configuration (defaults, then the config provider, then cfg
// as runtime overrides) and wires every component.
func New(cfg core.Config, opts ...Option) (*App, error) {
	builder := appBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	logger := core.ResolveLogger("crmsync", builder.loggerProvider, builder.logger)

	resolved, err := core.LoadConfig(context.Background(), builder.configProvider, builder.optionsResolver, cfg)
	if err != nil {
		return nil, fmt.Errorf("crmsync: resolve config: %w", err)
	}

	app := &App{config: resolved, logger: logger}
	stores, err := app.buildStores(builder)
	if err != nil {
		return nil, err
	}
	app.deliveries = stores.deliveries

	app.dispatcher = webhooks.NewDispatcher(resolved, stores.deliveries, logger)
	app.dispatcher.Now = builder.now
	if builder.httpClient != nil {
		app.dispatcher.Client = builder.httpClient
	}

	sink := app.buildSink(builder)
	resolver := contacts.NewResolver(contacts.ResolverDependencies{
		Contacts: stores.contacts,
		Tags:     stores.tags,
		Phones:   normalize.NewPhoneNormalizer(resolved.Phone),
		Events:   sink,
		Logger:   logger,
	})
	app.contacts = contacts.NewService(contacts.ServiceDependencies{
		Resolver:   resolver,
		Contacts:   stores.contacts,
		Notes:      stores.notes,
		Activities: stores.activities,
		Events:     sink,
		Logger:     logger,
	})

	app.issuer = auth.NewKeyIssuer(stores.credentials)
	app.issuer.Now = builder.now
	limiter := ratelimit.NewFixedWindowLimiter(stores.windows, resolved.RateLimit)
	limiter.Now = builder.now
	app.gateway = gateway.New(
		auth.NewKeyValidator(stores.credentials),
		limiter,
		stores.responses,
		resolved.Cache.TTL,
		logger,
	)
	app.handlers = gateway.NewHandlers(app.contacts, app.dispatcher, stores.deliveries)
	app.api = gateway.NewAPI(app.gateway, app.handlers, resolved, logger)
	if builder.commandRegistry != nil {
		app.bus = gocommand.NewBus(builder.commandRegistry)
		if err := app.bus.Mount(app.handlers); err != nil {
			return nil, fmt.Errorf("crmsync: mount command handlers: %w", err)
		}
	}
	app.sweeper = webhooks.NewRetentionSweeper(stores.deliveries, resolved.Retention, logger)

	core.LogWithLevel(context.Background(), logger, "info", "crmsync assembled", map[string]any{
		"service":     resolved.ServiceName,
		"persistence": app.factory != nil,
		"async":       app.worker != nil,
		"command_bus": app.bus != nil,
		"base_path":   app.api.BasePath(),
	})
	return app, nil
}

func Setup(cfg core.Config, opts ...Option) (*App, error) {
	return New(cfg, opts...)
}

func (a *App) buildStores(builder appBuilder) (storeSet, error) {
	var set storeSet
	if builder.persistenceClient != nil {
		factory, err := sqlstore.NewRepositoryFactory(builder.persistenceClient)
		if err != nil {
			return set, fmt.Errorf("crmsync: build sql stores: %w", err)
		}
		a.factory = factory
		set = storeSet{
			contacts:    factory.ContactStore(),
			tags:        factory.TagStore(),
			notes:       factory.NoteStore(),
			activities:  factory.ActivityStore(),
			credentials: factory.CredentialStore(),
			windows:     factory.RateWindowStore(),
			responses:   factory.ResponseCacheStore(),
			deliveries:  factory.DeliveryLogStore(),
		}
		if builder.tagCache != nil {
			cached, err := factory.CachedTagStore(builder.tagCache)
			if err != nil {
				return set, fmt.Errorf("crmsync: build tag cache: %w", err)
			}
			set.tags = cached
		}
	} else {
		stores := memstore.NewStores(builder.now)
		log := webhooks.NewMemoryDeliveryLog()
		log.Now = builder.now
		responses, err := cache.New(a.config.Cache.TTL, a.config.Cache.MaxEntries)
		if err != nil {
			return set, fmt.Errorf("crmsync: build response cache: %w", err)
		}
		set = storeSet{
			contacts:    stores.Contacts,
			tags:        stores.Tags,
			notes:       stores.Notes,
			activities:  stores.Activities,
			credentials: memstore.NewCredentialStore(),
			windows:     ratelimit.NewMemoryWindowStore(),
			deliveries:  log,
		}
		if responses != nil {
			set.responses = responses
		}
	}
	if builder.credentials != nil {
		set.credentials = builder.credentials
	}
	return set, nil
}

func (a *App) buildSink(builder appBuilder) core.EventSink {
	if !a.config.Webhook.Async {
		return webhooks.SyncSink{Dispatcher: a.dispatcher}
	}
	enqueuer, dequeuer := builder.enqueuer, builder.dequeuer
	if adapter, ok := enqueuer.(*gojob.EnqueuerAdapter); ok && adapter.Logger == nil {
		adapter.Logger = a.logger
	}
	if enqueuer == nil || dequeuer == nil {
		memory := webhooks.NewMemoryQueue(a.config.Webhook.QueueSize)
		enqueuer, dequeuer = memory, memory
	}
	hook := builder.jobHook
	if hook == nil {
		hook = gojob.NewLogHook(a.logger)
	}
	a.worker = &webhooks.DeliveryWorker{
		Queue:      dequeuer,
		Dispatcher: a.dispatcher,
		Hook:       hook,
		Logger:     a.logger,
	}
	return webhooks.QueueSink{
		Enqueuer: enqueuer,
		SiteURL:  a.config.API.SiteURL,
		Logger:   a.logger,
		Now:      builder.now,
	}
}

func (a *App) Config() core.Config {
	if a == nil {
		return core.Config{}
	}
	return a.config
}

func (a *App) Contacts() *contacts.Service {
	if a == nil {
		return nil
	}
	return a.contacts
}

func (a *App) Dispatcher() *webhooks.Dispatcher {
	if a == nil {
		return nil
	}
	return a.dispatcher
}

func (a *App) DeliveryLog() core.DeliveryLog {
	if a == nil {
		return nil
	}
	return a.deliveries
}

func (a *App) Keys() *auth.KeyIssuer {
	if a == nil {
		return nil
	}
	return a.issuer
}

func (a *App) Gateway() *gateway.Gateway {
	if a == nil {
		return nil
	}
	return a.gateway
}

// Worker is nil unless webhook.async is enabled.
func (a *App) Worker() *webhooks.DeliveryWorker {
	if a == nil {
		return nil
	}
	return a.worker
}

func (a *App) Handlers() gateway.Handlers {
	if a == nil {
		return gateway.Handlers{}
	}
	return a.handlers
}

// Close unsubscribes handlers mounted through WithCommandRegistry.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.bus.Close()
}

func (a *App) RepositoryFactory() *sqlstore.RepositoryFactory {
	if a == nil {
		return nil
	}
	return a.factory
}

func (a *App) Handler() http.Handler {
	if a == nil || a.api == nil {
		return http.NotFoundHandler()
	}
	return a.api.Handler()
}

func (a *App) BasePath() string {
	if a == nil || a.api == nil {
		return ""
	}
	return a.api.BasePath()
}

// Run drives the background jobs (retention sweeps and, in async mode, the
// webhook worker) until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("crmsync: app is nil")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.sweeper.Run(ctx)
	})
	if a.worker != nil {
		group.Go(func() error {
			return a.worker.Run(ctx)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sremani/Artifortress-sub001/internal/adapters/postgres"
	"github.com/sremani/Artifortress-sub001/internal/auth"
	httpin "github.com/sremani/Artifortress-sub001/internal/http/in"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/platform/mobjectstore"
	"github.com/sremani/Artifortress-sub001/internal/platform/mpostgres"
	"github.com/sremani/Artifortress-sub001/internal/services/admin"
	"github.com/sremani/Artifortress-sub001/internal/services/lifecycle"
	"github.com/sremani/Artifortress-sub001/internal/services/ops"
	"github.com/sremani/Artifortress-sub001/internal/services/outbox"
	"github.com/sremani/Artifortress-sub001/internal/services/policy"
	"github.com/sremani/Artifortress-sub001/internal/services/publish"
	"github.com/sremani/Artifortress-sub001/internal/services/upload"
)

// Service bundles every wired component a cmd entrypoint needs.
type Service struct {
	Config Config
	Logger mlog.Logger

	Conn  *mpostgres.Connection
	Store *postgres.Store
	Objs  *mobjectstore.Client

	AMQPConn *amqp.Connection
	Notifier *outbox.Notifier

	Resolver     *auth.Resolver
	SAMLResolver *auth.SAMLResolver

	Admin     *admin.Service
	Ops       *ops.Service
	Upload    *upload.Service
	Publish   *publish.Service
	Policy    *policy.Service
	Lifecycle *lifecycle.Service
	Outbox    *outbox.Service
}

// Build wires the full dependency graph from cfg, the way
// components/crm/internal/bootstrap/config.go's InitServersWithOptions wires
// midaz's CRM service — minus the lib-commons pieces this module's
// dependency surface doesn't carry (see DESIGN.md).
func Build(ctx context.Context, cfg Config) (*Service, error) {
	logger, err := mlog.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	conn := &mpostgres.Connection{
		ConnectionString: cfg.PostgresConnectionString,
		MigrationsPath:   cfg.MigrationsPath,
		Logger:           logger,
	}

	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	store := postgres.New(conn, logger)

	objs, err := mobjectstore.New(ctx, mobjectstore.Config{
		Endpoint:       cfg.ObjectStoreEndpoint,
		AccessKey:      cfg.ObjectStoreAccessKey,
		SecretKey:      cfg.ObjectStoreSecretKey,
		Bucket:         cfg.ObjectStoreBucket,
		Region:         cfg.ObjectStoreRegion,
		PresignPartTTL: cfg.ObjectStorePartTTL,
		UsePathStyle:   cfg.ObjectStoreUsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing object store client: %w", err)
	}

	var (
		amqpConn *amqp.Connection
		notifier *outbox.Notifier
	)

	if cfg.AMQPURL != "" {
		amqpConn, err = amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Errorf("amqp dial failed, continuing without outbox notify: %v", err)
		} else {
			notifier, err = outbox.NewNotifier(amqpConn, cfg.AMQPExchange, logger)
			if err != nil {
				logger.Errorf("outbox notifier init failed, continuing without it: %v", err)
			}
		}
	}

	resolver, samlResolver, err := buildAuthResolvers(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		Config:       cfg,
		Logger:       logger,
		Conn:         conn,
		Store:        store,
		Objs:         objs,
		AMQPConn:     amqpConn,
		Notifier:     notifier,
		Resolver:     resolver,
		SAMLResolver: samlResolver,
		Admin:        admin.NewService(store, nil, logger),
		Ops:          ops.NewService(store, objs, logger),
		Upload:       upload.NewService(store, objs, logger, cfg.UploadSessionTTL),
		Publish:      publish.NewService(store, logger),
		Policy:       policy.NewService(store, nil, logger, cfg.PolicyTimeoutMS),
		Lifecycle:    lifecycle.NewService(store, objs, store, logger),
		Outbox: outbox.NewService(store, notifier, logger, outbox.Config{
			ProducerInterval: cfg.OutboxProducerPeriod,
			ConsumerInterval: cfg.OutboxConsumerPeriod,
			BatchSize:        cfg.OutboxBatchSize,
		}),
	}, nil
}

func buildAuthResolvers(cfg Config, store *postgres.Store, logger mlog.Logger) (*auth.Resolver, *auth.SAMLResolver, error) {
	var bootstrapResolver *auth.BootstrapResolver
	if cfg.BootstrapToken != "" {
		bootstrapResolver = auth.NewBootstrapResolver(cfg.BootstrapToken, cfg.BootstrapTenantID)
	}

	patResolver := auth.NewPATResolver(store)

	var oidcResolver *auth.OIDCResolver
	if cfg.OIDCIssuer != "" || cfg.OIDCHS256Secret != "" {
		var redisClient *redis.Client
		if cfg.RedisAddress != "" {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		}

		oidcResolver = auth.NewOIDCResolver(auth.OIDCConfig{
			Issuer:           cfg.OIDCIssuer,
			Audience:         cfg.OIDCAudience,
			HS256Secret:      cfg.OIDCHS256Secret,
			RemoteJWKSURI:    cfg.OIDCJWKSURI,
			RemoteRefreshTTL: cfg.OIDCJWKSRefreshTTL,
		}, redisClient)
	}

	resolver := auth.NewResolver(bootstrapResolver, patResolver, oidcResolver)

	var samlResolver *auth.SAMLResolver

	if cfg.SAMLEnabled {
		cert, err := os.ReadFile(cfg.SAMLIdPCertPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading SAML IdP certificate: %w", err)
		}

		samlResolver, err = auth.NewSAMLResolver(auth.SAMLConfig{
			IdPIssuer:       cfg.SAMLIdPIssuer,
			SPAudience:      cfg.SAMLSPAudience,
			IdPCertificates: []string{string(cert)},
			IssuedPATTTL:    cfg.SAMLIssuedPATTTL,
		}, store)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing SAML resolver: %w", err)
		}
	}

	logger.Infof("auth resolvers wired: bootstrap=%v pat=true oidc=%v saml=%v",
		bootstrapResolver != nil, oidcResolver != nil, samlResolver != nil)

	return resolver, samlResolver, nil
}

// HTTPApp builds the Fiber app for cmd/server.
func (s *Service) HTTPApp() *fiber.App {
	return httpin.NewApp(httpin.Dependencies{
		Logger:     s.Logger,
		Resolver:   s.Resolver,
		SAML:       s.SAMLResolver,
		SAMLACSURL: s.Config.SAMLACSURL,
		Repos:      s.Admin,
		Admin:      s.Admin,
		Ops:        s.Ops,
		Upload:     s.Upload,
		Publish:    s.Publish,
		Policy:     s.Policy,
		Lifecycle:  s.Lifecycle,
	})
}

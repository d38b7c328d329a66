package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sremani/Artifortress-sub001/internal/auth"
	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/services/admin"
	"github.com/sremani/Artifortress-sub001/internal/services/lifecycle"
	"github.com/sremani/Artifortress-sub001/internal/services/ops"
	"github.com/sremani/Artifortress-sub001/internal/services/policy"
	"github.com/sremani/Artifortress-sub001/internal/services/publish"
	"github.com/sremani/Artifortress-sub001/internal/services/upload"
)

// Dependencies wires every service this package's handlers delegate to.
type Dependencies struct {
	Logger    mlog.Logger
	Resolver  *auth.Resolver
	SAML      *auth.SAMLResolver
	SAMLACSURL string
	Repos     RepoResolver
	Admin     *admin.Service
	Ops       *ops.Service
	Upload    *upload.Service
	Publish   *publish.Service
	Policy    *policy.Service
	Lifecycle *lifecycle.Service
}

// NewApp builds the Fiber app and registers every route in spec.md §6's
// routing table, grounded on components/crm/internal/adapters/http/in's
// route-registration idiom.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return WithError(c, err)
		},
	})

	app.Use(WithRecover(deps.Logger))
	app.Use(WithCorrelationID())
	app.Use(WithCORS())
	app.Use(WithHTTPLogging(deps.Logger))

	health := NewHealthHandler(deps.Ops)
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)

	authHandler := NewAuthHandler(deps.SAML, deps.SAMLACSURL)
	app.Get("/v1/auth/saml/metadata", authHandler.SAMLMetadata)
	app.Post("/v1/auth/saml/acs", authHandler.SAMLACS)

	authed := app.Group("/v1", Authenticate(deps.Resolver))
	authed.Get("/auth/whoami", authHandler.Whoami)

	adminHandler := NewAdminHandler(deps.Admin, deps.Ops)
	adminGroup := authed.Group("/", RequireAdmin())
	adminGroup.Post("auth/pats", adminHandler.IssuePAT)
	adminGroup.Post("auth/pats/revoke", adminHandler.RevokePAT)
	adminGroup.Post("repos", adminHandler.CreateRepo)
	adminGroup.Get("repos", adminHandler.ListRepos)
	adminGroup.Get("repos/:key", adminHandler.GetRepo)
	adminGroup.Patch("repos/:key", adminHandler.UpdateRepo)
	adminGroup.Delete("repos/:key", adminHandler.DeleteRepo)
	adminGroup.Get("repos/:key/bindings", adminHandler.ListBindings)
	adminGroup.Put("repos/:key/bindings/:subject", adminHandler.SetBinding)
	adminGroup.Delete("repos/:key/bindings/:subject", adminHandler.DeleteBinding)
	adminGroup.Get("admin/ops/summary", adminHandler.OpsSummary)
	adminGroup.Get("admin/audit", adminHandler.Audit)

	lifecycleHandler := NewLifecycleHandler(deps.Lifecycle)
	adminGroup.Post("admin/gc/runs", lifecycleHandler.RunGC)
	adminGroup.Get("admin/reconcile/blobs", lifecycleHandler.ReconcileBlobs)

	uploadHandler := NewUploadHandler(deps.Repos, deps.Upload)
	repoWrite := authed.Group("repos/:key", RequireRole(domain.RoleWrite))
	repoWrite.Post("uploads", uploadHandler.Create)
	repoWrite.Post("uploads/:id/parts", uploadHandler.PresignPart)
	repoWrite.Post("uploads/:id/complete", uploadHandler.Complete)
	repoWrite.Post("uploads/:id/abort", uploadHandler.Abort)
	repoWrite.Post("uploads/:id/commit", uploadHandler.Commit)

	repoRead := authed.Group("repos/:key", RequireRole(domain.RoleRead))
	repoRead.Get("blobs/:digest", uploadHandler.Download)

	publishHandler := NewPublishHandler(deps.Repos, deps.Publish)
	repoWrite.Post("packages/versions", publishHandler.CreateDraft)
	repoWrite.Put("packages/versions/:version/entries", publishHandler.UpsertEntries)
	repoWrite.Put("packages/versions/:version/manifest", publishHandler.UpsertManifest)
	repoRead.Get("packages/versions/:version/manifest", publishHandler.GetManifest)
	repoWrite.Post("packages/versions/:version/publish", publishHandler.Publish)
	repoWrite.Post("packages/versions/:version/tombstone", lifecycleHandler.Tombstone)

	policyHandler := NewPolicyHandler(deps.Repos, deps.Policy)
	repoWrite.Post("policy/evaluations", policyHandler.Evaluate)
	repoRead.Get("quarantine", policyHandler.ListQuarantine)

	repoPromote := authed.Group("repos/:key", RequireRole(domain.RolePromote))
	repoPromote.Post("quarantine/:id/release", policyHandler.Release)
	repoPromote.Post("quarantine/:id/reject", policyHandler.Reject)

	return app
}

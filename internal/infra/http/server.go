package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"keryx/internal/config"
	"keryx/internal/domain"
	"keryx/internal/infra/cachemem"
	"keryx/internal/infra/crypto"
	"keryx/internal/infra/db"
	"keryx/internal/infra/kelmem"
	"keryx/internal/infra/keys/soft"
	"keryx/internal/infra/policyopa"
	"keryx/internal/infra/ratelimit"
	"keryx/internal/infra/witness"
	"keryx/internal/infra/witness/filedir"
	"keryx/internal/infra/witness/httplog"
	"keryx/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	events    *usecase.KeyEventService
	verifier  *usecase.ChainVerifier
	rotations *usecase.RotationValidator
	decision  *usecase.DecisionEngineV0
	audit     *usecase.AuditEmitter

	crypto       usecase.CryptoService
	identities   usecase.IdentityRepository
	identityKeys IdentityKeyStore
	prerotator   *soft.PreRotator
	records      usecase.RotationRecordRepository
	ceremonies   usecase.CeremonyRepository
	receipts     WitnessReceiptStore
	witness      WitnessPublisher
	policy       usecase.PolicyEngine

	live   map[string]*usecase.Ceremony
	liveMu sync.Mutex

	reportSigner httplog.Signer
	adminAPIKey  string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, live: map[string]*usecase.Ceremony{}}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Events       *usecase.KeyEventService
	Verifier     *usecase.ChainVerifier
	Rotations    *usecase.RotationValidator
	Decision     *usecase.DecisionEngineV0
	Audit        *usecase.AuditEmitter
	Crypto       usecase.CryptoService
	Identities   usecase.IdentityRepository
	IdentityKeys IdentityKeyStore
	Records      usecase.RotationRecordRepository
	Ceremonies   usecase.CeremonyRepository
	Receipts     WitnessReceiptStore
	Witness      WitnessPublisher
	Policy       usecase.PolicyEngine
	AdminAPIKey  string
	RateLimiter  domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:          cfg,
		r:            r,
		events:       deps.Events,
		verifier:     deps.Verifier,
		rotations:    deps.Rotations,
		decision:     deps.Decision,
		audit:        deps.Audit,
		crypto:       deps.Crypto,
		identities:   deps.Identities,
		identityKeys: deps.IdentityKeys,
		records:      deps.Records,
		ceremonies:   deps.Ceremonies,
		receipts:     deps.Receipts,
		witness:      deps.Witness,
		policy:       deps.Policy,
		adminAPIKey:  deps.AdminAPIKey,
		live:         map[string]*usecase.Ceremony{},
	}
	if s.crypto == nil {
		s.crypto = crypto.NewService()
	}
	if s.verifier == nil {
		s.verifier = usecase.NewChainVerifier(s.crypto)
	}
	if s.rotations == nil {
		s.rotations = usecase.NewRotationValidator(s.crypto)
	}
	if s.decision == nil {
		s.decision = &usecase.DecisionEngineV0{}
	}
	if s.events == nil {
		log := kelmem.New(eventDigest(s.crypto))
		s.events = usecase.NewKeyEventService(log, s.verifier, s.audit, nil)
		if s.records == nil {
			s.records = log.Records()
		}
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey
	s.reportSigner = loadWitnessSigner(s.cfg)

	cryptoSvc := crypto.NewService()
	s.crypto = cryptoSvc
	s.verifier = usecase.NewChainVerifier(cryptoSvc)
	s.rotations = usecase.NewRotationValidator(cryptoSvc)
	s.decision = &usecase.DecisionEngineV0{}
	s.prerotator = soft.NewPreRotator(soft.NewManagerFromConfig(s.cfg))

	var (
		eventRepo    usecase.KeyEventRepository
		recordRepo   usecase.RotationRecordRepository
		attemptRepo  domain.WitnessAttemptRepository
		receiptRepo  domain.WitnessReceiptRepository
		auditRepo    usecase.AuditEventRepository
		identityRepo usecase.IdentityRepository
		ceremonyRepo usecase.CeremonyRepository
	)
	if s.store != nil && s.store.DB != nil {
		eventRepo = db.NewKeyEventRepository(s.store.DB, cryptoSvc.EventDigest)
		recordRepo = db.NewRotationRecordRepository(s.store.DB)
		identityRepo = db.NewIdentityRepository(s.store.DB)
		s.identityKeys = db.NewIdentityKeyRepository(s.store.DB)
		ceremonyRepo = db.NewCeremonyRepository(s.store.DB)
		attemptRepo = db.NewWitnessAttemptRepository(s.store.DB)
		receipts := db.NewWitnessReceiptRepository(s.store.DB)
		receiptRepo = receipts
		s.receipts = receipts
		auditRepo = db.NewAuditEventRepository(s.store.DB)
	} else {
		log := kelmem.New(cryptoSvc.EventDigest)
		eventRepo = log
		recordRepo = log.Records()
	}

	if auditRepo != nil {
		s.audit = usecase.NewAuditEmitter(auditRepo, nil)
	}

	s.events = usecase.NewKeyEventService(eventRepo, s.verifier, s.audit, nil)
	s.events.Cache = cachemem.New()
	s.events.CacheTTL = s.cfg.VerifyCacheTTL()

	s.records = recordRepo
	s.identities = identityRepo
	s.ceremonies = ceremonyRepo

	if providers := buildWitnessProviders(s.cfg); len(providers.clients) > 0 {
		svc, err := witness.NewService(providers.clients, providers.ids, s.cfg.WitnessTimeout(), attemptRepo, receiptRepo)
		if err == nil {
			s.witness = svc
		}
	}

	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err == nil {
			s.policy = engine
		}
	}

	s.initRateLimit(nil)
}

type witnessProviderSet struct {
	clients []witness.Provider
	ids     []string
}

func buildWitnessProviders(cfg config.Config) witnessProviderSet {
	var set witnessProviderSet
	for _, id := range splitProviderIDs(cfg.WitnessProviders) {
		switch id {
		case "file":
			provider, err := filedir.NewProvider(cfg.WitnessDir)
			if err != nil {
				continue
			}
			set.clients = append(set.clients, provider)
			set.ids = append(set.ids, provider.ProviderName())
		case "httplog":
			signer := loadWitnessSigner(cfg)
			if signer == nil || cfg.WitnessLogURL == "" {
				continue
			}
			client, err := httplog.NewClient(cfg.WitnessLogURL, signer, nil)
			if err != nil {
				continue
			}
			set.clients = append(set.clients, client)
			set.ids = append(set.ids, client.ProviderName())
		}
	}
	return set
}

func splitProviderIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func eventDigest(svc usecase.CryptoService) kelmem.DigestFunc {
	return func(event domain.KeyEvent) ([]byte, error) {
		return svc.EventDigest(event)
	}
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/identities", s.handleAdminCreateIdentity)
		v1.GET("/identities/:identity_id/keys", s.handleListIdentityKeys)
		v1.POST("/identities/:identity_id/keys", s.handleAdminGenerateKey)
		v1.POST("/identities/:identity_id/keys/:kid_action", s.handleAdminKeyAction)
		v1.GET("/identities/:identity_id/events", s.handleListEvents)
		v1.POST("/identities/:identity_id/events", s.handleAppendEvent)
		v1.GET("/identities/:identity_id/verify", s.handleVerifyLog)
		v1.POST("/identities/:identity_id/duplicity", s.handleCompareObservations)
		v1.GET("/identities/:identity_id/records", s.handleListRecords)
		v1.POST("/identities/:identity_id/records", s.handleAppendRecord)
		v1.GET("/identities/:identity_id/witness", s.handleListWitnessReceipts)
		v1.GET("/identities/:identity_id/trust", s.handleTrustDecision)

		v1.POST("/ceremonies", s.handleCreateCeremony)
		v1.GET("/ceremonies/:ceremony_id", s.handleGetCeremony)
		v1.POST("/ceremonies/:ceremony_id/attestations", s.handleAddAttestation)
		v1.POST("/ceremonies/:ceremony_id/publish", s.handlePublishCeremony)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

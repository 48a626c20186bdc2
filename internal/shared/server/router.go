package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"clara-backend/internal/analysis"
	"clara-backend/internal/docproc"
	"clara-backend/internal/jobs"
	"clara-backend/internal/llm"
	"clara-backend/internal/llm/anthropic"
	"clara-backend/internal/llm/openai"
	"clara-backend/internal/pubmed"
	"clara-backend/internal/shared/config"
	"clara-backend/internal/shared/server/middleware"
	"clara-backend/internal/shared/server/respond"
	"clara-backend/internal/shared/storage/db"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var runsRepo jobs.Repo
	if sqlDB != nil {
		runsRepo = &jobs.PGRepo{DB: sqlDB}
	} else {
		runsRepo = jobs.NewMemoryRepo()
	}

	clients := make(map[llm.Provider]llm.Client)
	if cfg.OpenAIAPIKey != "" {
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.MaxContentChars)
		if err != nil {
			log.Printf("openai client unavailable: %v", err)
		} else {
			clients[llm.ProviderOpenAI] = client
		}
	}
	if cfg.AnthropicAPIKey != "" {
		client, err := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.MaxContentChars)
		if err != nil {
			log.Printf("anthropic client unavailable: %v", err)
		} else {
			clients[llm.ProviderAnthropic] = client
		}
	}

	pubmedClient := pubmed.NewClient(cfg.NCBIEmail, cfg.NCBIAPIKey)
	processor := docproc.NewProcessor(docproc.Config{
		Pdftoppm:  cfg.Pdftoppm,
		Tesseract: cfg.Tesseract,
		DPI:       cfg.OCRDPI,
	})

	orc := &analysis.Orchestrator{
		PubMed:  pubmedClient,
		Docs:    processor,
		Clients: clients,
		DefaultModels: map[llm.Provider]string{
			llm.ProviderOpenAI:    cfg.OpenAIModel,
			llm.ProviderAnthropic: cfg.AnthropicModel,
		},
		MaxResults: cfg.MaxPubMedResults,
		Runs:       runsRepo,
	}

	defaultProvider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		defaultProvider = llm.ProviderOpenAI
	}
	handler := analysis.NewHandler(orc, pubmedClient, runsRepo, cfg.UploadDir, defaultProvider)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	handler.RegisterRoutes(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

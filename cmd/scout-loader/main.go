// Catalog loader: reads a JSON company file, embeds descriptions in
// batches, indexes documents into the search index and seeds the
// vocabulary from observed attribute values.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/config"
	"github.com/lattice-vc/scout/internal/db/postgres"
	dbRedis "github.com/lattice-vc/scout/internal/db/redis"
	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
	logpkg "github.com/lattice-vc/scout/internal/logger"
	catalogrepo "github.com/lattice-vc/scout/internal/repository/catalog"
	companyrepo "github.com/lattice-vc/scout/internal/repository/company"
	vocabrepo "github.com/lattice-vc/scout/internal/repository/vocab"
	openaiTransport "github.com/lattice-vc/scout/internal/transport/openai"
)

type companyJSON struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	City           string   `json:"city"`
	WebsiteURL     string   `json:"website_url"`
	Location       string   `json:"location"`
	FundingStage   string   `json:"funding_stage"`
	Industries     []string `json:"industries"`
	TargetMarkets  []string `json:"target_markets"`
	BusinessModels []string `json:"business_models"`
	RevenueModels  []string `json:"revenue_models"`
	EmployeeCount  *int     `json:"employee_count"`
	FundingAmount  *int64   `json:"funding_amount"`
	StageOrder     *int     `json:"stage_order"`
}

func main() {
	var (
		filePath  = flag.String("file", "", "path to the JSON company file (required)")
		batchSize = flag.Int("batch", 32, "companies per embedding batch")
		seedVocab = flag.Bool("seed-vocab", true, "seed vocabulary from observed attribute values")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: scout-loader -file companies.json [-batch 32]")
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *filePath, *batchSize, *seedVocab); err != nil {
		logger.Fatal("Load failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger, filePath string, batchSize int, seedVocab bool) error {
	ctx := context.Background()

	companies, err := readCompanies(filePath)
	if err != nil {
		return err
	}
	logger.Info("Read company file", zap.String("file", filePath), zap.Int("companies", len(companies)))

	pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connect to record store: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create index store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("search index not ready: %w", err)
	}

	catalog := catalogrepo.NewRepository(store, store,
		cfg.Embedding.Dimensions, cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct, logger)
	if err := catalog.EnsureIndex(ctx); err != nil {
		return err
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	start := time.Now()
	indexed := 0
	for offset := 0; offset < len(companies); offset += batchSize {
		end := offset + batchSize
		if end > len(companies) {
			end = len(companies)
		}
		batch := companies[offset:end]

		texts := make([]string, len(batch))
		docs := make([]domain.Company, len(batch))
		for i, c := range batch {
			texts[i] = c.Description
			docs[i] = toDomain(c)
		}

		embRes, err := embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at offset %d: %w", offset, err)
		}
		if err := catalog.UpsertBatch(ctx, docs, embRes.Embeddings); err != nil {
			return fmt.Errorf("index batch at offset %d: %w", offset, err)
		}
		indexed += len(batch)
		logger.Info("Indexed batch",
			zap.Int("indexed", indexed), zap.Int("total", len(companies)),
			zap.Int("tokens", embRes.TotalTokens))
	}

	if err := storeRecords(ctx, pool, companies); err != nil {
		return err
	}

	if seedVocab {
		if err := seedVocabulary(ctx, pool, logger, companies); err != nil {
			return err
		}
	}

	logger.Info("Load complete",
		zap.Int("companies", indexed),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func readCompanies(path string) ([]companyJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open company file: %w", err)
	}
	defer f.Close()

	var companies []companyJSON
	if err := json.NewDecoder(f).Decode(&companies); err != nil {
		return nil, fmt.Errorf("decode company file: %w", err)
	}
	return companies, nil
}

func toDomain(c companyJSON) domain.Company {
	return domain.Company{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		City:           c.City,
		WebsiteURL:     c.WebsiteURL,
		Location:       c.Location,
		FundingStage:   c.FundingStage,
		Industries:     c.Industries,
		TargetMarkets:  c.TargetMarkets,
		BusinessModels: c.BusinessModels,
		RevenueModels:  c.RevenueModels,
		EmployeeCount:  c.EmployeeCount,
		FundingAmount:  c.FundingAmount,
		StageOrder:     c.StageOrder,
	}
}

// storeRecords writes the supplemental display fields the search index
// does not carry.
func storeRecords(ctx context.Context, pool postgres.Pool, companies []companyJSON) error {
	repo := companyrepo.NewRepository(pool)
	for _, c := range companies {
		rec := companyrepo.Record{ID: c.ID, WebsiteURL: c.WebsiteURL, City: c.City}
		if err := repo.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// seedVocabulary inserts every observed text-attribute value as a canonical
// vocabulary entry. Inserts are idempotent, re-running the loader is safe.
func seedVocabulary(ctx context.Context, pool postgres.Pool, logger *zap.Logger, companies []companyJSON) error {
	repo := vocabrepo.NewRepository(pool)

	seen := make(map[segment.Segment]map[string]bool)
	add := func(seg segment.Segment, values ...string) error {
		if seen[seg] == nil {
			seen[seg] = make(map[string]bool)
		}
		for _, v := range values {
			if v == "" || seen[seg][v] {
				continue
			}
			seen[seg][v] = true
			if err := repo.AddCanonical(ctx, seg, v); err != nil {
				return err
			}
		}
		return nil
	}

	for _, c := range companies {
		if err := add(segment.Location, c.Location); err != nil {
			return err
		}
		if err := add(segment.FundingStage, c.FundingStage); err != nil {
			return err
		}
		if err := add(segment.Industries, c.Industries...); err != nil {
			return err
		}
		if err := add(segment.TargetMarkets, c.TargetMarkets...); err != nil {
			return err
		}
		if err := add(segment.BusinessModels, c.BusinessModels...); err != nil {
			return err
		}
		if err := add(segment.RevenueModels, c.RevenueModels...); err != nil {
			return err
		}
	}

	total := 0
	for _, vals := range seen {
		total += len(vals)
	}
	logger.Info("Seeded vocabulary", zap.Int("values", total))
	return nil
}

package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/db"
	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/repository/search"
)

// Repository maintains the company search index: schema creation and
// document writes. Reads go through the search repository.
type Repository struct {
	hashes  db.HashStore
	indexes db.IndexManager
	logger  *zap.Logger

	vectorDim   int
	hnswM       int
	hnswEF      int
}

func NewRepository(hashes db.HashStore, indexes db.IndexManager, vectorDim, hnswM, hnswEF int, logger *zap.Logger) *Repository {
	return &Repository{
		hashes:    hashes,
		indexes:   indexes,
		logger:    logger,
		vectorDim: vectorDim,
		hnswM:     hnswM,
		hnswEF:    hnswEF,
	}
}

// EnsureIndex creates the company FT index if it does not exist yet.
// Text segments become TAG fields, numeric segments NUMERIC, plus a TEXT
// description field and the HNSW vector field.
func (r *Repository) EnsureIndex(ctx context.Context) error {
	exists, err := r.indexes.IndexExists(ctx, domain.CatalogIndex)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     domain.CatalogIndex,
		Prefixes: []string{domain.KeyPrefix},
	}
	for _, seg := range segment.All() {
		kind, _ := segment.KindOf(seg)
		switch kind {
		case segment.Numeric:
			def.Fields = append(def.Fields, db.IndexField{
				Name: string(seg),
				Type: db.IndexFieldNumeric,
			})
		default:
			def.Fields = append(def.Fields, db.IndexField{
				Name:         string(seg),
				Type:         db.IndexFieldTag,
				TagSeparator: search.TagSeparator,
			})
		}
	}
	def.Fields = append(def.Fields,
		db.IndexField{Name: "description", Type: db.IndexFieldText},
		db.IndexField{
			Name:              "vector",
			Type:              db.IndexFieldVector,
			VectorDim:         r.vectorDim,
			VectorDistance:    db.DistanceCosine,
			VectorM:           r.hnswM,
			VectorEFConstruct: r.hnswEF,
		},
	)

	if err := r.indexes.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", domain.CatalogIndex, err)
	}
	r.logger.Info("created company index",
		zap.String("index", domain.CatalogIndex),
		zap.Int("dimensions", r.vectorDim))
	return nil
}

// Upsert writes a company document with its embedding into the index.
func (r *Repository) Upsert(ctx context.Context, c *domain.Company, vector []float32) error {
	if len(vector) != r.vectorDim {
		return fmt.Errorf("company %s: vector has %d dimensions, index expects %d", c.ID, len(vector), r.vectorDim)
	}
	return r.hashes.HSet(ctx, domain.KeyPrefix+c.ID, buildFields(c, vector))
}

// UpsertBatch writes company documents in one pipelined round trip.
func (r *Repository) UpsertBatch(ctx context.Context, companies []domain.Company, vectors [][]float32) error {
	if len(companies) != len(vectors) {
		return fmt.Errorf("got %d companies but %d vectors", len(companies), len(vectors))
	}
	items := make([]db.HashSetItem, 0, len(companies))
	for i := range companies {
		if len(vectors[i]) != r.vectorDim {
			return fmt.Errorf("company %s: vector has %d dimensions, index expects %d", companies[i].ID, len(vectors[i]), r.vectorDim)
		}
		items = append(items, db.HashSetItem{
			Key:    domain.KeyPrefix + companies[i].ID,
			Fields: buildFields(&companies[i], vectors[i]),
		})
	}
	return r.hashes.HSetMulti(ctx, items)
}

// Delete removes a company document from the index.
func (r *Repository) Delete(ctx context.Context, companyID string) error {
	return r.hashes.Del(ctx, domain.KeyPrefix+companyID)
}

func buildFields(c *domain.Company, vector []float32) map[string]string {
	fields := map[string]string{
		"name":        c.Name,
		"description": c.Description,
		"vector":      string(db.EncodeVector(vector)),
	}
	setTag := func(seg segment.Segment, values []string) {
		if len(values) > 0 {
			fields[string(seg)] = strings.Join(values, search.TagSeparator)
		}
	}
	if c.Location != "" {
		fields[string(segment.Location)] = c.Location
	}
	if c.FundingStage != "" {
		fields[string(segment.FundingStage)] = c.FundingStage
	}
	setTag(segment.Industries, c.Industries)
	setTag(segment.TargetMarkets, c.TargetMarkets)
	setTag(segment.BusinessModels, c.BusinessModels)
	setTag(segment.RevenueModels, c.RevenueModels)
	if c.EmployeeCount != nil {
		fields[string(segment.EmployeeCount)] = strconv.Itoa(*c.EmployeeCount)
	}
	if c.FundingAmount != nil {
		fields[string(segment.FundingAmount)] = strconv.FormatInt(*c.FundingAmount, 10)
	}
	if c.StageOrder != nil {
		fields[string(segment.StageOrder)] = strconv.Itoa(*c.StageOrder)
	}
	return fields
}

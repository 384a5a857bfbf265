package result

// Ranked is a single ranked search hit. Ephemeral, produced per request.
type Ranked struct {
	companyID   string
	rank        int
	score       float64
	tags        map[string][]string
	numerics    map[string]float64
	name        string
	description string
}

// New creates a ranked result.
func New(
	companyID string, rank int, score float64,
	name, description string,
	tags map[string][]string, numerics map[string]float64,
) Ranked {
	return Ranked{
		companyID: companyID, rank: rank, score: score,
		name: name, description: description,
		tags: tags, numerics: numerics,
	}
}

// CompanyID returns the company identifier.
func (r *Ranked) CompanyID() string { return r.companyID }

// Rank returns the 1-based position in the result set.
func (r *Ranked) Rank() int { return r.rank }

// Score returns the similarity score (0 for filters-only searches).
func (r *Ranked) Score() float64 { return r.score }

// Name returns the company name from the index.
func (r *Ranked) Name() string { return r.name }

// Description returns the indexed company description.
func (r *Ranked) Description() string { return r.description }

// Tags returns the text-segment attributes stored in the index.
func (r *Ranked) Tags() map[string][]string { return r.tags }

// Numerics returns the numeric-segment attributes stored in the index.
func (r *Ranked) Numerics() map[string]float64 { return r.numerics }

// WithRank returns a copy with the rank set.
func (r Ranked) WithRank(rank int) Ranked {
	r.rank = rank
	return r
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/samber/lo"
)

const uniqueViolation = "23505"

// numericPrec is the mantissa precision used when reading NUMERIC columns.
const numericPrec = 128

type PlanetRepo struct {
	pool *pgxpool.Pool
}

var _ domain.PlanetRepository = (*PlanetRepo)(nil)

func NewPlanetRepo(pool *pgxpool.Pool) *PlanetRepo {
	return &PlanetRepo{pool: pool}
}

// Create stores the planet and its satellites in one transaction and returns
// the stored copy with generated ids.
func (r *PlanetRepo) Create(ctx context.Context, planet *domain.Planet) (*domain.Planet, error) {
	if planet.MeanRadius == nil || planet.Mass == nil {
		return nil, errors.New("planet mean radius and mass are required")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored := *planet
	err = tx.QueryRow(ctx, `
		INSERT INTO planets (name, type, mean_radius, mass)
		VALUES ($1, $2, $3::numeric, $4::numeric)
		RETURNING id`,
		planet.Name, planet.Type, planet.MeanRadius.Text('g', -1), planet.Mass.Text('g', -1),
	).Scan(&stored.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrPlanetExists
		}
		return nil, fmt.Errorf("failed to insert planet: %w", err)
	}

	stored.Satellites = make([]domain.Satellite, 0, len(planet.Satellites))
	for _, s := range planet.Satellites {
		err := tx.QueryRow(ctx, `
			INSERT INTO satellites (planet_id, name, first_spacecraft_landing_date)
			VALUES ($1, $2, $3)
			RETURNING id`,
			stored.ID, s.Name, dateOnly(s.FirstSpacecraftLandingDate),
		).Scan(&s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert satellite %q: %w", s.Name, err)
		}
		s.FirstSpacecraftLandingDate = dateOnly(s.FirstSpacecraftLandingDate)
		stored.Satellites = append(stored.Satellites, s)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit planet: %w", err)
	}
	return &stored, nil
}

func (r *PlanetRepo) GetByID(ctx context.Context, id int64) (*domain.Planet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, mean_radius::text, mass::text
		FROM planets WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get planet: %w", err)
	}
	planet, err := pgx.CollectExactlyOneRow(rows, scanPlanet)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlanetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get planet: %w", err)
	}

	satellites, err := r.satellitesOf(ctx, []int64{planet.ID})
	if err != nil {
		return nil, err
	}
	planet.Satellites = satellites[planet.ID]
	return &planet, nil
}

func (r *PlanetRepo) List(ctx context.Context) ([]domain.Planet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, mean_radius::text, mass::text
		FROM planets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list planets: %w", err)
	}
	planets, err := pgx.CollectRows(rows, scanPlanet)
	if err != nil {
		return nil, fmt.Errorf("failed to list planets: %w", err)
	}

	ids := lo.Map(planets, func(p domain.Planet, _ int) int64 { return p.ID })
	satellites, err := r.satellitesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range planets {
		planets[i].Satellites = satellites[planets[i].ID]
	}
	return planets, nil
}

func (r *PlanetRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM planets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete planet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlanetNotFound
	}
	return nil
}

type satelliteRow struct {
	planetID  int64
	satellite domain.Satellite
}

func (r *PlanetRepo) satellitesOf(ctx context.Context, planetIDs []int64) (map[int64][]domain.Satellite, error) {
	if len(planetIDs) == 0 {
		return map[int64][]domain.Satellite{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT planet_id, id, name, first_spacecraft_landing_date
		FROM satellites WHERE planet_id = ANY($1) ORDER BY id`, planetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load satellites: %w", err)
	}
	sats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (satelliteRow, error) {
		var sr satelliteRow
		err := row.Scan(&sr.planetID, &sr.satellite.ID, &sr.satellite.Name, &sr.satellite.FirstSpacecraftLandingDate)
		return sr, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load satellites: %w", err)
	}

	grouped := lo.GroupBy(sats, func(sr satelliteRow) int64 { return sr.planetID })
	return lo.MapValues(grouped, func(rows []satelliteRow, _ int64) []domain.Satellite {
		return lo.Map(rows, func(sr satelliteRow, _ int) domain.Satellite { return sr.satellite })
	}), nil
}

func scanPlanet(row pgx.CollectableRow) (domain.Planet, error) {
	var (
		p          domain.Planet
		meanRadius string
		mass       string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &meanRadius, &mass); err != nil {
		return domain.Planet{}, err
	}

	var err error
	if p.MeanRadius, err = parseNumeric(meanRadius); err != nil {
		return domain.Planet{}, fmt.Errorf("planet %d mean_radius: %w", p.ID, err)
	}
	if p.Mass, err = parseNumeric(mass); err != nil {
		return domain.Planet{}, fmt.Errorf("planet %d mass: %w", p.ID, err)
	}
	return p, nil
}

func parseNumeric(s string) (*big.Float, error) {
	f, _, err := big.ParseFloat(s, 10, numericPrec, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric %q: %w", s, err)
	}
	return f, nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

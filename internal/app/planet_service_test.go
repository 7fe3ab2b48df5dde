package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/planetpulse/internal/convert"
	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockPlanetRepo struct {
	createFn  func(ctx context.Context, planet *domain.Planet) (*domain.Planet, error)
	getByIDFn func(ctx context.Context, id int64) (*domain.Planet, error)
	listFn    func(ctx context.Context) ([]domain.Planet, error)
	deleteFn  func(ctx context.Context, id int64) error
}

func (m *mockPlanetRepo) Create(ctx context.Context, planet *domain.Planet) (*domain.Planet, error) {
	if m.createFn != nil {
		return m.createFn(ctx, planet)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockPlanetRepo) GetByID(ctx context.Context, id int64) (*domain.Planet, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockPlanetRepo) List(ctx context.Context) ([]domain.Planet, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockPlanetRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return fmt.Errorf("not implemented")
}

type mockPlanetCache struct {
	getPlanetFn  func(ctx context.Context, id int64) (*domain.Planet, error)
	invalidateFn func(ctx context.Context, id int64) error
	invalidated  []int64
}

func (m *mockPlanetCache) GetPlanet(ctx context.Context, id int64) (*domain.Planet, error) {
	if m.getPlanetFn != nil {
		return m.getPlanetFn(ctx, id)
	}
	return nil, domain.ErrPlanetNotFound
}

func (m *mockPlanetCache) Invalidate(ctx context.Context, id int64) error {
	m.invalidated = append(m.invalidated, id)
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, id)
	}
	return nil
}

type mockPublisher struct {
	publishFn func(ctx context.Context, planet *domain.Planet) error
	published []*domain.Planet
}

func (m *mockPublisher) PublishPlanetCreated(ctx context.Context, planet *domain.Planet) error {
	m.published = append(m.published, planet)
	if m.publishFn != nil {
		return m.publishFn(ctx, planet)
	}
	return nil
}

type mapAssets map[string][]byte

func (m mapAssets) Get(name string) ([]byte, bool) {
	data, ok := m[name]
	return data, ok
}

func marsAssets() mapAssets {
	return mapAssets{"mars.jpg": []byte("img")}
}

func storeWithID(_ context.Context, p *domain.Planet) (*domain.Planet, error) {
	out := *p
	out.ID = 4
	return &out, nil
}

func validRequest() CreatePlanetRequest {
	return CreatePlanetRequest{
		Name:       "Mars",
		Type:       domain.PlanetTypeTerrestrial,
		MeanRadius: "3389.5",
		Mass:       "6.42e23",
		Satellites: []CreateSatelliteRequest{
			{Name: "Phobos", FirstSpacecraftLandingDate: "1976-07-20"},
			{Name: "Deimos"},
		},
	}
}

func marsPlanet() *domain.Planet {
	return &domain.Planet{
		ID:         4,
		Name:       "Mars",
		Type:       domain.PlanetTypeTerrestrial,
		MeanRadius: big.NewFloat(3389.5),
		Mass:       big.NewFloat(6.42e23),
	}
}

// --- Tests ---

func TestCreatePlanet_StoresAndAnnounces(t *testing.T) {
	repo := &mockPlanetRepo{createFn: storeWithID}
	pub := &mockPublisher{}
	svc := NewPlanetService(repo, &mockPlanetCache{}, pub, marsAssets())

	planet, err := svc.CreatePlanet(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(4), planet.ID)
	assert.Equal(t, "Mars", planet.Name)
	mass, _ := planet.Mass.Float64()
	assert.InEpsilon(t, 6.42e23, mass, 1e-12)
	require.Len(t, planet.Satellites, 2)
	require.NotNil(t, planet.Satellites[0].FirstSpacecraftLandingDate)
	assert.Equal(t, "1976-07-20", planet.Satellites[0].FirstSpacecraftLandingDate.Format("2006-01-02"))
	assert.Nil(t, planet.Satellites[1].FirstSpacecraftLandingDate)

	require.Len(t, pub.published, 1)
	assert.Equal(t, int64(4), pub.published[0].ID)
}

func TestCreatePlanet_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreatePlanetRequest)
		want   string
	}{
		{"missing name", func(r *CreatePlanetRequest) { r.Name = "" }, "name"},
		{"unknown type", func(r *CreatePlanetRequest) { r.Type = "MOON" }, "type"},
		{"non-numeric mass", func(r *CreatePlanetRequest) { r.Mass = "heavy" }, "mass"},
		{"negative radius", func(r *CreatePlanetRequest) { r.MeanRadius = "-1" }, "mean_radius"},
		{"bad landing date", func(r *CreatePlanetRequest) { r.Satellites[0].FirstSpacecraftLandingDate = "20/07/1976" }, "first_spacecraft_landing_date"},
		{"unnamed satellite", func(r *CreatePlanetRequest) { r.Satellites[1].Name = "" }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPlanetRepo{createFn: func(context.Context, *domain.Planet) (*domain.Planet, error) {
				t.Fatal("repository must not be called for invalid input")
				return nil, nil
			}}
			svc := NewPlanetService(repo, &mockPlanetCache{}, &mockPublisher{}, mapAssets{})

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.CreatePlanet(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrInvalidPlanet)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCreatePlanet_RejectsPlanetWithoutImage(t *testing.T) {
	repo := &mockPlanetRepo{createFn: func(context.Context, *domain.Planet) (*domain.Planet, error) {
		t.Fatal("repository must not be called for a planet without an image")
		return nil, nil
	}}
	pub := &mockPublisher{}
	svc := NewPlanetService(repo, &mockPlanetCache{}, pub, marsAssets())

	req := validRequest()
	req.Name = "Ceres"
	req.Type = domain.PlanetTypeDwarf

	_, err := svc.CreatePlanet(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidPlanet)
	assert.Contains(t, err.Error(), "ceres.jpg")
	assert.Empty(t, pub.published)
}

func TestCreatePlanet_DuplicateName(t *testing.T) {
	repo := &mockPlanetRepo{createFn: func(context.Context, *domain.Planet) (*domain.Planet, error) {
		return nil, domain.ErrPlanetExists
	}}
	pub := &mockPublisher{}
	svc := NewPlanetService(repo, &mockPlanetCache{}, pub, marsAssets())

	_, err := svc.CreatePlanet(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrPlanetExists)
	assert.Empty(t, pub.published)
}

func TestCreatePlanet_AnnounceFailureReturnsStoredPlanet(t *testing.T) {
	repo := &mockPlanetRepo{createFn: storeWithID}
	pub := &mockPublisher{publishFn: func(context.Context, *domain.Planet) error {
		return errors.New("redis down")
	}}
	svc := NewPlanetService(repo, &mockPlanetCache{}, pub, marsAssets())

	planet, err := svc.CreatePlanet(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrAnnounceFailed)
	require.NotNil(t, planet)
	assert.Equal(t, int64(4), planet.ID)
}

func TestDeletePlanet_InvalidatesCache(t *testing.T) {
	repo := &mockPlanetRepo{deleteFn: func(context.Context, int64) error { return nil }}
	cache := &mockPlanetCache{}
	svc := NewPlanetService(repo, cache, &mockPublisher{}, mapAssets{})

	require.NoError(t, svc.DeletePlanet(context.Background(), 4))
	assert.Equal(t, []int64{4}, cache.invalidated)
}

func TestDeletePlanet_InvalidationFailureIsNotFatal(t *testing.T) {
	repo := &mockPlanetRepo{deleteFn: func(context.Context, int64) error { return nil }}
	cache := &mockPlanetCache{invalidateFn: func(context.Context, int64) error { return errors.New("redis down") }}
	svc := NewPlanetService(repo, cache, &mockPublisher{}, mapAssets{})

	assert.NoError(t, svc.DeletePlanet(context.Background(), 4))
}

func TestDeletePlanet_NotFound(t *testing.T) {
	repo := &mockPlanetRepo{deleteFn: func(context.Context, int64) error { return domain.ErrPlanetNotFound }}
	cache := &mockPlanetCache{}
	svc := NewPlanetService(repo, cache, &mockPublisher{}, mapAssets{})

	require.ErrorIs(t, svc.DeletePlanet(context.Background(), 4), domain.ErrPlanetNotFound)
	assert.Empty(t, cache.invalidated)
}

func TestGetPlanetWire(t *testing.T) {
	cache := &mockPlanetCache{getPlanetFn: func(context.Context, int64) (*domain.Planet, error) { return marsPlanet(), nil }}
	svc := NewPlanetService(&mockPlanetRepo{}, cache, &mockPublisher{}, mapAssets{"mars.jpg": []byte("img")})

	wire, err := svc.GetPlanetWire(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), wire.ID)
	assert.Equal(t, convert.PlanetTypeTerrestrial, wire.Type)
	assert.Equal(t, []byte("img"), wire.Image)
}

func TestGetPlanetWire_ConversionErrorIsRequestScoped(t *testing.T) {
	cache := &mockPlanetCache{getPlanetFn: func(context.Context, int64) (*domain.Planet, error) {
		p := marsPlanet()
		p.Type = "MOON"
		return p, nil
	}}
	svc := NewPlanetService(&mockPlanetRepo{}, cache, &mockPublisher{}, mapAssets{"mars.jpg": []byte("img")})

	_, err := svc.GetPlanetWire(context.Background(), 4)
	assert.ErrorIs(t, err, convert.ErrUnknownPlanetType)
}

func TestGetPlanetWire_NotFound(t *testing.T) {
	svc := NewPlanetService(&mockPlanetRepo{}, &mockPlanetCache{}, &mockPublisher{}, mapAssets{})

	_, err := svc.GetPlanetWire(context.Background(), 4)
	assert.ErrorIs(t, err, domain.ErrPlanetNotFound)
}

func TestListPlanetsWire(t *testing.T) {
	repo := &mockPlanetRepo{listFn: func(context.Context) ([]domain.Planet, error) {
		return []domain.Planet{*marsPlanet()}, nil
	}}
	svc := NewPlanetService(repo, &mockPlanetCache{}, &mockPublisher{}, mapAssets{"mars.jpg": []byte("img")})

	wires, err := svc.ListPlanetsWire(context.Background())
	require.NoError(t, err)
	require.Len(t, wires, 1)
	assert.Equal(t, "Mars", wires[0].Name)
}

func TestListPlanetsWire_SkipsUnconvertibleRecords(t *testing.T) {
	ceres := domain.Planet{
		ID:         9,
		Name:       "Ceres",
		Type:       domain.PlanetTypeDwarf,
		MeanRadius: big.NewFloat(469.7),
		Mass:       big.NewFloat(9.39e20),
	}
	repo := &mockPlanetRepo{listFn: func(context.Context) ([]domain.Planet, error) {
		return []domain.Planet{*marsPlanet(), ceres}, nil
	}}
	svc := NewPlanetService(repo, &mockPlanetCache{}, &mockPublisher{}, marsAssets())

	wires, err := svc.ListPlanetsWire(context.Background())
	require.NoError(t, err)
	require.Len(t, wires, 1)
	assert.Equal(t, "Mars", wires[0].Name)
}

func TestListPlanetsWire_RepositoryError(t *testing.T) {
	repo := &mockPlanetRepo{listFn: func(context.Context) ([]domain.Planet, error) {
		return nil, errors.New("connection reset")
	}}
	svc := NewPlanetService(repo, &mockPlanetCache{}, &mockPublisher{}, marsAssets())

	_, err := svc.ListPlanetsWire(context.Background())
	assert.EqualError(t, err, "connection reset")
}

func TestGetPlanetWire_SharedLoadSurvivesCallerCancel(t *testing.T) {
	started := make(chan context.Context, 1)
	release := make(chan struct{})
	var loads atomic.Int32
	cache := &mockPlanetCache{getPlanetFn: func(ctx context.Context, _ int64) (*domain.Planet, error) {
		loads.Add(1)
		select {
		case started <- ctx:
		default:
		}
		select {
		case <-release:
			return marsPlanet(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	svc := NewPlanetService(&mockPlanetRepo{}, cache, &mockPublisher{}, marsAssets())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.GetPlanetWire(ctxA, 4)
		errA <- err
	}()
	loadCtx := <-started

	type result struct {
		wire *convert.Planet
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		wire, err := svc.GetPlanetWire(context.Background(), 4)
		resB <- result{wire, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)
	assert.NoError(t, loadCtx.Err())

	close(release)
	res := <-resB
	require.NoError(t, res.err)
	assert.Equal(t, "Mars", res.wire.Name)
	assert.Equal(t, int32(1), loads.Load())
}

func TestGetPlanetImage(t *testing.T) {
	cache := &mockPlanetCache{getPlanetFn: func(context.Context, int64) (*domain.Planet, error) { return marsPlanet(), nil }}

	svc := NewPlanetService(&mockPlanetRepo{}, cache, &mockPublisher{}, mapAssets{"mars.jpg": []byte("img")})
	data, err := svc.GetPlanetImage(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	svc = NewPlanetService(&mockPlanetRepo{}, cache, &mockPublisher{}, mapAssets{})
	_, err = svc.GetPlanetImage(context.Background(), 4)
	assert.ErrorIs(t, err, convert.ErrAssetNotFound)
}

package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/observability"
)

type fakeRepo struct {
	prices      []Record
	predictions map[string]Prediction
	addErr      error
	saved       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{predictions: make(map[string]Prediction)}
}

func predictionKey(crop string, year int) string {
	return fmt.Sprintf("%s@%d", crop, year)
}

func (f *fakeRepo) AddPrices(_ context.Context, records []Record) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.prices = append(f.prices, records...)
	return nil
}

func (f *fakeRepo) PriceHistory(_ context.Context, crop string) ([]Record, error) {
	var out []Record
	for _, r := range f.prices {
		if r.CropName == crop {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (f *fakeRepo) Crops(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, r := range f.prices {
		if !seen[r.CropName] {
			seen[r.CropName] = true
			out = append(out, r.CropName)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRepo) GetPrediction(_ context.Context, crop string, year int) (*Prediction, error) {
	p, ok := f.predictions[predictionKey(crop, year)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeRepo) SavePrediction(_ context.Context, p Prediction) error {
	f.saved++
	f.predictions[predictionKey(p.CropName, p.PredictionYear)] = p
	return nil
}

func (f *fakeRepo) DeletePredictions(_ context.Context, crop string) error {
	for k, p := range f.predictions {
		if p.CropName == crop {
			delete(f.predictions, k)
		}
	}
	return nil
}

func (f *fakeRepo) ClearPrices(context.Context) error {
	f.prices = nil
	f.predictions = make(map[string]Prediction)
	return nil
}

type recordingPublisher struct {
	published []Prediction
}

func (r *recordingPublisher) PublishPrediction(_ context.Context, p Prediction) error {
	r.published = append(r.published, p)
	return nil
}

func newTestService(repo Repository, pub Publisher) (*Service, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewService(repo, pub, m, zap.NewNop()), m
}

func TestService_ImportUSDA(t *testing.T) {
	repo := newFakeRepo()
	svc, m := newTestService(repo, nil)

	veg := strings.NewReader("Vegetable,Form,RetailPrice,RetailPriceUnit\nCarrots,Fresh,0.95,per pound\nBeets,Canned,n/a,per pound\n")
	fruit := strings.NewReader("Fruit,Form,RetailPrice,RetailPriceUnit\n\"Apples, Fuji\",Fresh,1.4,per pound\n")

	res := svc.ImportUSDA(context.Background(), veg, fruit, 2022)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	assert.Empty(t, res.Error)
	assert.Len(t, res.Skipped, 1)

	require.Len(t, repo.prices, 2)
	assert.Equal(t, "carrots", repo.prices[0].CropName)
	assert.Equal(t, CategoryVegetable, repo.prices[0].Category)
	assert.Equal(t, "apples", repo.prices[1].CropName)
	assert.Equal(t, CategoryFruit, repo.prices[1].Category)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsImported.WithLabelValues(SourceUSDA)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues(SourceUSDA)))
}

func TestService_ImportUSDA_NothingValid(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, nil)

	res := svc.ImportUSDA(context.Background(), strings.NewReader("header\n"), strings.NewReader(""), 2022)

	assert.Equal(t, ImportResult{Success: false, Count: 0, Error: "no valid data found in CSV files"}, res)
	assert.Empty(t, repo.prices)
}

func TestService_ImportStoreFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.addErr = errors.New("disk full")
	svc, _ := newTestService(repo, nil)

	res := svc.ImportCSV(context.Background(), strings.NewReader("year,item,price\n2020,corn,0.5\n"))

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Count)
	assert.Contains(t, res.Error, "disk full")
}

func TestService_PredictCachesUntilHistoryChanges(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc, m := newTestService(repo, pub)
	ctx := context.Background()

	res := svc.ImportCSV(ctx, strings.NewReader("year,item,price\n2020,Corn,1.00\n2021,Corn,1.10\n2022,Corn,1.20\n"))
	require.True(t, res.Success)

	first, err := svc.Predict(ctx, " CORN ", 1)
	require.NoError(t, err)
	assert.Equal(t, 2023, first.PredictionYear)
	assert.Equal(t, 1.30, first.PredictedPricePerPound)

	second, err := svc.Predict(ctx, "corn", 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.saved)
	assert.Len(t, pub.published, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PricePredictions.WithLabelValues("cached")))

	res = svc.ImportCSV(ctx, strings.NewReader("year,item,price\n2022,corn,1.50\n"))
	require.True(t, res.Success)

	third, err := svc.Predict(ctx, "corn", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, third.HistoricalDataPoints)
	assert.Equal(t, 2, repo.saved)
}

func TestService_PredictStampsCreatedAt(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, nil)
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	svc.SetClock(clockwork.NewFakeClockAt(at))
	ctx := context.Background()

	res := svc.ImportCSV(ctx, strings.NewReader("year,item,price\n2020,peas,2.00\n2021,peas,2.10\n"))
	require.True(t, res.Success)

	fresh, err := svc.Predict(ctx, "peas", 1)
	require.NoError(t, err)
	assert.True(t, fresh.CreatedAt.Equal(at))

	cached, err := svc.Predict(ctx, "peas", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saved)
	assert.Equal(t, *fresh, *cached)
}

func TestService_PredictHorizonBounds(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, nil)

	_, err := svc.Predict(context.Background(), "corn", MaxYearsAhead+1)
	assert.ErrorIs(t, err, ErrInvalidHorizon)
	assert.Zero(t, repo.saved)
}

func TestService_PredictInsufficient(t *testing.T) {
	repo := newFakeRepo()
	svc, m := newTestService(repo, nil)

	p, err := svc.Predict(context.Background(), "corn", 1)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PricePredictions.WithLabelValues("insufficient")))

	_, err = svc.Predict(context.Background(), "corn", 0)
	assert.ErrorIs(t, err, ErrInvalidHorizon)
}

func TestService_RefreshPredictions(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	svc.ImportCSV(ctx, strings.NewReader("year,item,price\n2020,corn,1\n2021,corn,2\n2021,kale,3\n2019,peas,1\n2020,peas,1.1\n"))

	n, err := svc.RefreshPredictions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.predictions, 2)
}

package fixture

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampling cadence of the synthetic products, mirroring CHIRPS daily,
// MOD11A2 8-day and MOD13 16-day composites.
const (
	precipitationStep = 1
	temperatureStep   = 8
	ndviStep          = 16
)

// GenerateOptions controls the synthetic archive.
type GenerateOptions struct {
	Period domain.Period
	Grid   domain.Grid
	Seed   uint64
	// DroughtYear, when set, gets less rain and hotter land surface.
	DroughtYear int
	// CloudFraction is the share of temperature pixels masked per composite.
	CloudFraction float64
}

// Generate builds a deterministic archive of precipitation, temperature and
// NDVI observations. Temperature is sampled on a grid twice as fine as the
// analysis grid and stored as MODIS digital numbers.
func Generate(opts GenerateOptions) *Archive {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	amount := distuv.Gamma{Alpha: 0.8, Beta: 0.1, Src: rng}
	noise := distuv.Normal{Mu: 0, Sigma: 1.5, Src: rng}

	fine := opts.Grid
	fine.CellSize /= 2
	fine.Width *= 2
	fine.Height *= 2

	a := &Archive{GeneratedAt: opts.Period.End.End()}
	start, end := opts.Period.Start.Start(), opts.Period.End.End()

	for day, t := 0, start; t.Before(end); day, t = day+1, t.AddDate(0, 0, 1) {
		dry := t.Year() == opts.DroughtYear

		if day%precipitationStep == 0 {
			r := domain.NewRaster(opts.Grid)
			for i := range r.Data {
				p := wetDayProbability(t.Month())
				if dry {
					p *= 0.3
				}
				if rng.Float64() >= p {
					r.Data[i] = 0
					continue
				}
				col := float64(i%opts.Grid.Width) / float64(max(opts.Grid.Width, 1))
				r.Data[i] = round2(amount.Rand() * (0.6 + 0.8*col))
			}
			a.Records = append(a.Records, record(domain.BandPrecipitation, t, r))
		}

		if day%temperatureStep == 0 {
			r := domain.NewRaster(fine)
			for i := range r.Data {
				if rng.Float64() < opts.CloudFraction {
					continue
				}
				kelvin := 300 + 3*seasonal(t.Month()) + noise.Rand()
				if dry {
					kelvin += 2
				}
				r.Data[i] = math.Round(kelvin / 0.02)
			}
			a.Records = append(a.Records, record(domain.BandTemperature, t, r))
		}

		if day%ndviStep == 0 {
			r := domain.NewRaster(opts.Grid)
			for i := range r.Data {
				v := 0.45 - 0.15*seasonal(t.Month()) + 0.05*noise.Rand()/noise.Sigma
				if dry {
					v -= 0.1
				}
				r.Data[i] = round2(math.Max(-1, math.Min(1, v)))
			}
			a.Records = append(a.Records, record(domain.BandNDVI, t, r))
		}
	}
	return a
}

func record(band string, t time.Time, r *domain.Raster) Record {
	return Record{Band: band, Time: t, Grid: r.Grid, Data: Values(r.Data)}
}

// wetDayProbability follows the bimodal East African rainy seasons
// (March to May, September to November).
func wetDayProbability(m time.Month) float64 {
	switch m {
	case time.March, time.April, time.May, time.September, time.October, time.November:
		return 0.45
	case time.June, time.August, time.December:
		return 0.2
	default:
		return 0.1
	}
}

// seasonal is +1 in the hot dry season and -1 in the rains.
func seasonal(m time.Month) float64 {
	return math.Cos(2 * math.Pi * float64(m-time.February) / 12)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population counts at window end
	AgentCount    int `csv:"agents"`
	PreyCount     int `csv:"prey"`
	PredCount     int `csv:"pred"`
	ResourceCount int `csv:"resources"`

	// Events during window
	Births        int     `csv:"births"`
	DeathsStarved int     `csv:"deaths_starved"`
	DeathsOldAge  int     `csv:"deaths_old_age"`
	DeathsKilled  int     `csv:"deaths_killed"`
	Kills         int     `csv:"kills"`
	EnergyEaten   float64 `csv:"energy_eaten"`

	// Agent energy distribution (sampled at window end)
	EnergyMean float64 `csv:"energy_mean"`
	EnergyStd  float64 `csv:"energy_std"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	// Evolution tracking
	MaxGeneration int32   `csv:"max_generation"`
	AvgFitness    float64 `csv:"avg_fitness"`
	AvgSpeed      float64 `csv:"avg_speed"`
	AvgSense      float64 `csv:"avg_sense"`

	TotalEnergy float64 `csv:"total_energy"`
}

// Distribution summarizes a sample of values.
type Distribution struct {
	Mean, Std, P10, P50, P90 float64
}

// ComputeDistribution calculates mean, standard deviation and percentiles.
// The input slice is sorted in place.
func ComputeDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	d := Distribution{
		Mean: stat.Mean(values, nil),
	}
	if len(values) > 1 {
		d.Std = stat.StdDev(values, nil)
	}
	sort.Float64s(values)
	d.P10 = stat.Quantile(0.10, stat.Empirical, values, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, values, nil)
	d.P90 = stat.Quantile(0.90, stat.Empirical, values, nil)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.AgentCount),
		slog.Int("prey", s.PreyCount),
		slog.Int("pred", s.PredCount),
		slog.Int("resources", s.ResourceCount),
		slog.Int("births", s.Births),
		slog.Int("deaths_starved", s.DeathsStarved),
		slog.Int("deaths_old_age", s.DeathsOldAge),
		slog.Int("deaths_killed", s.DeathsKilled),
		slog.Int("kills", s.Kills),
		slog.Float64("energy_eaten", s.EnergyEaten),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_std", s.EnergyStd),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Int("max_generation", int(s.MaxGeneration)),
		slog.Float64("avg_fitness", s.AvgFitness),
		slog.Float64("avg_speed", s.AvgSpeed),
		slog.Float64("avg_sense", s.AvgSense),
		slog.Float64("total_energy", s.TotalEnergy),
	)
}

package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// SpeciesMode declares how a species population is represented during
// simulation. Dynamic species are reclassified between continuous and
// discrete at runtime; the other two pin the representation for the run.
type SpeciesMode string

const (
	ModeContinuous SpeciesMode = "continuous"
	ModeDiscrete   SpeciesMode = "discrete"
	ModeDynamic    SpeciesMode = "dynamic"
)

type Species struct {
	ID                int         `json:"id"`
	Name              string      `json:"name"`
	InitialPopulation float64     `json:"initial_population"`
	Mode              SpeciesMode `json:"mode,omitempty"`

	// SwitchTol is the coefficient-of-variation threshold below which a
	// dynamic species is treated as continuous. Ignored when SwitchMin is set.
	SwitchTol float64 `json:"switch_tol,omitempty"`
	// SwitchMin, when positive, replaces the tolerance test: the species is
	// continuous whenever its projected population exceeds this floor.
	SwitchMin float64 `json:"switch_min,omitempty"`
}

// PropensityFunc evaluates a reaction's instantaneous firing rate from the
// current population vector, indexed by species ID.
type PropensityFunc func(populations []float64) float64

type Reaction struct {
	Name      string         `json:"name"`
	Reactants map[string]int `json:"reactants,omitempty"`
	Products  map[string]int `json:"products,omitempty"`
	Rate      float64        `json:"rate,omitempty"`

	// Propensity overrides the mass-action form derived from Rate.
	Propensity PropensityFunc `json:"-"`
}

type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	ModelName    string  `json:"model_name"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Seed         int64   `json:"seed"`
	Trajectories int     `json:"trajectories"`
	Timesteps    int     `json:"timesteps"`
	EndTime      float64 `json:"end_time"`
	TauTol       float64 `json:"tau_tol"`
	Workers      int     `json:"workers"`
	Interrupted  bool    `json:"interrupted,omitempty"`
}

// TrajectoryRecord is one realized sample path on the output time grid.
// Points is indexed [timestep][species]; discrete species carry integral
// values, continuous species real ones, per the final partition in Modes.
type TrajectoryRecord struct {
	VersionedRecord
	Index   int           `json:"index"`
	Seed    int64         `json:"seed"`
	Species []string      `json:"species"`
	Times   []float64     `json:"times"`
	Points  [][]float64   `json:"points"`
	Modes   []SpeciesMode `json:"modes"`
	Partial bool          `json:"partial,omitempty"`
}

type SpeciesSeriesStats struct {
	Name   string    `json:"name"`
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"std_dev"`
}

type EnsembleSummary struct {
	VersionedRecord
	RunID        string               `json:"run_id"`
	Trajectories int                  `json:"trajectories"`
	Times        []float64            `json:"times"`
	Species      []SpeciesSeriesStats `json:"species"`
}

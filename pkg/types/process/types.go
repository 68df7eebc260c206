// Package process defines the normalized, serialization-friendly description
// of an optimization case: global economics, utilities, one UnitRecord per
// unit and optional uncertainty and sensitivity definitions. It is the input
// boundary of ProcSynth; spreadsheet or CSV ingestion produces these records.
package process

// UnitClass names a unit variant.
type UnitClass string

const (
	ClassSource               UnitClass = "source"
	ClassProductPool          UnitClass = "product_pool"
	ClassDistributor          UnitClass = "distributor"
	ClassPhysicalProcess      UnitClass = "physical_process"
	ClassStoichReactor        UnitClass = "stoich_reactor"
	ClassYieldReactor         UnitClass = "yield_reactor"
	ClassHeatGenerator        UnitClass = "heat_generator"
	ClassElectricityGenerator UnitClass = "electricity_generator"
	ClassCHP                  UnitClass = "chp"
)

// Reference flow types for demands and capital cost.
const (
	RefInlet  = "inlet"
	RefOutlet = "outlet"
)

// EconomicRecord is the capital cost tuple of a unit.
type EconomicRecord struct {
	ReferenceCost       float64  `json:"reference_cost" yaml:"reference_cost"`
	ReferenceFlow       float64  `json:"reference_flow" yaml:"reference_flow"`
	Exponent            float64  `json:"exponent" yaml:"exponent"`
	ReferenceYear       int      `json:"reference_year" yaml:"reference_year"`
	DirectCostFactor    float64  `json:"direct_cost_factor" yaml:"direct_cost_factor"`
	IndirectCostFactor  float64  `json:"indirect_cost_factor" yaml:"indirect_cost_factor"`
	OMFactor            float64  `json:"om_factor" yaml:"om_factor"`
	ReferenceFlowType   string   `json:"reference_flow_type" yaml:"reference_flow_type"`
	ReferenceComponents []string `json:"reference_components" yaml:"reference_components"`
}

// HeatDemandRecord is a specific heat duty (per unit of reference flow)
// between two temperatures. Positive rates heat, negative rates cool.
type HeatDemandRecord struct {
	Rate                float64  `json:"rate" yaml:"rate"`
	InletTemperature    float64  `json:"inlet_temperature" yaml:"inlet_temperature"`
	OutletTemperature   float64  `json:"outlet_temperature" yaml:"outlet_temperature"`
	ReferenceFlowType   string   `json:"reference_flow_type" yaml:"reference_flow_type"`
	ReferenceComponents []string `json:"reference_components" yaml:"reference_components"`
}

// DemandRecord is a specific electricity or chilling demand.
type DemandRecord struct {
	Rate                float64  `json:"rate" yaml:"rate"`
	ReferenceFlowType   string   `json:"reference_flow_type" yaml:"reference_flow_type"`
	ReferenceComponents []string `json:"reference_components" yaml:"reference_components"`
}

// SplitRecord is the split fraction of one component towards one downstream
// unit.
type SplitRecord struct {
	Target    int     `json:"target" yaml:"target"`
	Component string  `json:"component" yaml:"component"`
	Fraction  float64 `json:"fraction" yaml:"fraction"`
}

// StoichRecord is gamma(component, reaction), mass based.
type StoichRecord struct {
	Component   string  `json:"component" yaml:"component"`
	Reaction    string  `json:"reaction" yaml:"reaction"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// ConversionRecord is theta(reaction, limiting reactant).
type ConversionRecord struct {
	Reaction string  `json:"reaction" yaml:"reaction"`
	Reactant string  `json:"reactant" yaml:"reactant"`
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

// UnitRecord is one row of the unit table. Fields that do not apply to a
// class are ignored for it.
type UnitRecord struct {
	ID            int       `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Class         UnitClass `json:"class" yaml:"class"`
	Lifetime      int       `json:"lifetime" yaml:"lifetime"`
	BigM          float64   `json:"big_m" yaml:"big_m"`
	FullLoadHours float64   `json:"full_load_hours" yaml:"full_load_hours"`
	Group         string    `json:"group" yaml:"group"`
	WasteCategory string    `json:"waste_category" yaml:"waste_category"`

	Economics   *EconomicRecord    `json:"economics" yaml:"economics"`
	Heat        []HeatDemandRecord `json:"heat" yaml:"heat"`
	Electricity *DemandRecord      `json:"electricity" yaml:"electricity"`
	Chilling    *DemandRecord      `json:"chilling" yaml:"chilling"`

	Splits   []SplitRecord `json:"splits" yaml:"splits"`
	Upstream []int         `json:"upstream" yaml:"upstream"`

	Stoichiometry []StoichRecord     `json:"stoichiometry" yaml:"stoichiometry"`
	Conversions   []ConversionRecord `json:"conversions" yaml:"conversions"`
	Yields        map[string]float64 `json:"yields" yaml:"yields"`
	Inerts        []string           `json:"inerts" yaml:"inerts"`

	// sources
	Composition map[string]float64 `json:"composition" yaml:"composition"`
	Cost        float64            `json:"cost" yaml:"cost"`
	LowerLimit  float64            `json:"lower_limit" yaml:"lower_limit"`
	UpperLimit  float64            `json:"upper_limit" yaml:"upper_limit"`

	// sources carry burdens, product pools carry credits
	GWP float64 `json:"gwp" yaml:"gwp"`
	FWD float64 `json:"fwd" yaml:"fwd"`

	// product pools
	Price         float64 `json:"price" yaml:"price"`
	MinProduction float64 `json:"min_production" yaml:"min_production"`
	MaxProduction float64 `json:"max_production" yaml:"max_production"`
	MainProduct   bool    `json:"main_product" yaml:"main_product"`
	ProductLoad   float64 `json:"product_load" yaml:"product_load"`

	// distributors
	Targets    []int           `json:"targets" yaml:"targets"`
	Resolution int             `json:"resolution" yaml:"resolution"`
	Fixed      map[int]float64 `json:"fixed" yaml:"fixed"`

	// generators
	ThermalEfficiency    float64 `json:"thermal_efficiency" yaml:"thermal_efficiency"`
	ElectricalEfficiency float64 `json:"electrical_efficiency" yaml:"electrical_efficiency"`
}

// UtilityRecord is a hot utility level.
type UtilityRecord struct {
	Name        string  `json:"name" yaml:"name"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Cost        float64 `json:"cost" yaml:"cost"`
	GWP         float64 `json:"gwp" yaml:"gwp"`
	FWD         float64 `json:"fwd" yaml:"fwd"`
}

// WasteRecord prices and rates one waste disposal category.
type WasteRecord struct {
	Name string  `json:"name" yaml:"name"`
	Cost float64 `json:"cost" yaml:"cost"`
	GWP  float64 `json:"gwp" yaml:"gwp"`
	FWD  float64 `json:"fwd" yaml:"fwd"`
}

// EconomicsRecord holds case-wide economic constants. Energy prices are per
// unit of energy rate and hour.
type EconomicsRecord struct {
	InterestRate         float64         `json:"interest_rate" yaml:"interest_rate"`
	OperatingHours       float64         `json:"operating_hours" yaml:"operating_hours"`
	CostIndexYear        int             `json:"cost_index_year" yaml:"cost_index_year"`
	CostIndex            map[int]float64 `json:"cost_index" yaml:"cost_index"`
	ElectricityPrice     float64         `json:"electricity_price" yaml:"electricity_price"`
	ElectricitySellPrice float64         `json:"electricity_sell_price" yaml:"electricity_sell_price"`
	ChillingPrice        float64         `json:"chilling_price" yaml:"chilling_price"`
	CoolingPrice         float64         `json:"cooling_price" yaml:"cooling_price"`
	HENSpecificCost      float64         `json:"hen_specific_cost" yaml:"hen_specific_cost"`
	HENLifetime          int             `json:"hen_lifetime" yaml:"hen_lifetime"`
}

// EnvironmentRecord holds utility emission and freshwater factors.
type EnvironmentRecord struct {
	ElectricityGWP float64 `json:"electricity_gwp" yaml:"electricity_gwp"`
	ElectricityFWD float64 `json:"electricity_fwd" yaml:"electricity_fwd"`
	ChillingGWP    float64 `json:"chilling_gwp" yaml:"chilling_gwp"`
	ChillingFWD    float64 `json:"chilling_fwd" yaml:"chilling_fwd"`
	CoolingGWP     float64 `json:"cooling_gwp" yaml:"cooling_gwp"`
	CoolingFWD     float64 `json:"cooling_fwd" yaml:"cooling_fwd"`
}

// HeatPumpRecord configures the optional heat pump.
type HeatPumpRecord struct {
	COP               float64 `json:"cop" yaml:"cop"`
	InletTemperature  float64 `json:"inlet_temperature" yaml:"inlet_temperature"`
	OutletTemperature float64 `json:"outlet_temperature" yaml:"outlet_temperature"`
	SpecificCost      float64 `json:"specific_cost" yaml:"specific_cost"`
	Lifetime          int     `json:"lifetime" yaml:"lifetime"`
	MaxCapacity       float64 `json:"max_capacity" yaml:"max_capacity"`
}

// ForcedRecord requires at least one successor when Unit is selected.
type ForcedRecord struct {
	Unit       int   `json:"unit" yaml:"unit"`
	Successors []int `json:"successors" yaml:"successors"`
}

// UncertainParameterRecord declares one uncertain parameter. Levels are
// relative deviations (-0.1 = -10%). Probabilities, when given, weight the
// levels and must match them in length.
type UncertainParameterRecord struct {
	Key           string    `json:"key" yaml:"key"`
	Levels        []float64 `json:"levels" yaml:"levels"`
	Probabilities []float64 `json:"probabilities" yaml:"probabilities"`
	// Distribution enables Monte Carlo sampling: "uniform" (Low..High) or
	// "normal" (Mean, StdDev), both relative.
	Distribution string  `json:"distribution" yaml:"distribution"`
	Low          float64 `json:"low" yaml:"low"`
	High         float64 `json:"high" yaml:"high"`
	Mean         float64 `json:"mean" yaml:"mean"`
	StdDev       float64 `json:"std_dev" yaml:"std_dev"`
}

// UncertaintyRecord describes how scenarios are generated.
type UncertaintyRecord struct {
	// Method is "factorial" (default), "matrix" or "montecarlo".
	Method     string                     `json:"method" yaml:"method"`
	Parameters []UncertainParameterRecord `json:"parameters" yaml:"parameters"`
	// Matrix rows are scenarios, columns follow Parameters.
	Matrix        [][]float64 `json:"matrix" yaml:"matrix"`
	Probabilities []float64   `json:"probabilities" yaml:"probabilities"`
	Samples       int         `json:"samples" yaml:"samples"`
	Seed          uint64      `json:"seed" yaml:"seed"`
}

// SensitivityRecord sweeps one parameter over [Low, High] relative
// deviations in Steps points. Cross sensitivity uses two of them.
type SensitivityRecord struct {
	Key   string  `json:"key" yaml:"key"`
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
	Steps int     `json:"steps" yaml:"steps"`
}

// MultiObjectiveRecord configures an epsilon-constraint Pareto sweep.
type MultiObjectiveRecord struct {
	Primary   string `json:"primary" yaml:"primary"`
	Secondary string `json:"secondary" yaml:"secondary"`
	Points    int    `json:"points" yaml:"points"`
}

// CaseRecord is a full optimization case.
type CaseRecord struct {
	Name       string   `json:"name" yaml:"name"`
	Objective  string   `json:"objective" yaml:"objective"`
	Mode       string   `json:"mode" yaml:"mode"`
	Components []string `json:"components" yaml:"components"`
	Reactions  []string `json:"reactions" yaml:"reactions"`

	Economics     EconomicsRecord    `json:"economics" yaml:"economics"`
	Environment   EnvironmentRecord  `json:"environment" yaml:"environment"`
	Utilities     []UtilityRecord    `json:"utilities" yaml:"utilities"`
	Waste         []WasteRecord      `json:"waste" yaml:"waste"`
	HeatingValues map[string]float64 `json:"heating_values" yaml:"heating_values"`
	HeatPump      *HeatPumpRecord    `json:"heat_pump" yaml:"heat_pump"`

	Forced    []ForcedRecord `json:"forced" yaml:"forced"`
	Exclusive [][]int        `json:"exclusive" yaml:"exclusive"`

	Units []UnitRecord `json:"units" yaml:"units"`

	Uncertainty       *UncertaintyRecord    `json:"uncertainty" yaml:"uncertainty"`
	Sensitivity       []SensitivityRecord   `json:"sensitivity" yaml:"sensitivity"`
	MultiObjective    *MultiObjectiveRecord `json:"multi_objective" yaml:"multi_objective"`
	CapexDetail       string                `json:"capex_detail" yaml:"capex_detail"`
	DefaultBigM       float64               `json:"default_big_m" yaml:"default_big_m"`
	DefaultResolution int                   `json:"default_resolution" yaml:"default_resolution"`
}

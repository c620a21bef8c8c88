package competition

// Criterion identifies a scoring criterion a competition can be configured with
type Criterion string

const (
	CriterionSavedSO2Emissions  Criterion = "saved_so2_emissions"
	CriterionSavedNOxEmissions  Criterion = "saved_nox_emissions"
	CriterionSavedCO2Emissions  Criterion = "saved_co2_emissions"
	CriterionSavedCOEmissions   Criterion = "saved_co_emissions"
	CriterionSavedPM10Emissions Criterion = "saved_pm10_emissions"

	// Known to the catalogue but not scorable yet
	CriterionConsumedCalories              Criterion = "consumed_calories"
	CriterionBikeUsageFrequency            Criterion = "bike_usage_frequency"
	CriterionPublicTransportUsageFrequency Criterion = "public_transport_usage_frequency"
	CriterionBikeDistance                  Criterion = "bike_distance"
	CriterionSustainableMeansDistance      Criterion = "sustainable_means_distance"
)

var knownCriteria = map[Criterion]struct{}{
	CriterionSavedSO2Emissions:             {},
	CriterionSavedNOxEmissions:             {},
	CriterionSavedCO2Emissions:             {},
	CriterionSavedCOEmissions:              {},
	CriterionSavedPM10Emissions:            {},
	CriterionConsumedCalories:              {},
	CriterionBikeUsageFrequency:            {},
	CriterionPublicTransportUsageFrequency: {},
	CriterionBikeDistance:                  {},
	CriterionSustainableMeansDistance:      {},
}

// Known reports whether c belongs to the enumerated criteria set
func (c Criterion) Known() bool {
	_, ok := knownCriteria[c]
	return ok
}

// Supported reports whether the scorer knows how to compute c
func (c Criterion) Supported() bool {
	_, ok := savedMetrics[c]
	return ok
}

// Metric names a per-segment saved quantity produced by the emission pipeline
type Metric string

const (
	MetricSO2Saved  Metric = "so2_saved"
	MetricNOxSaved  Metric = "nox_saved"
	MetricCO2Saved  Metric = "co2_saved"
	MetricCOSaved   Metric = "co_saved"
	MetricPM10Saved Metric = "pm10_saved"
)

var savedMetrics = map[Criterion]Metric{
	CriterionSavedSO2Emissions:  MetricSO2Saved,
	CriterionSavedNOxEmissions:  MetricNOxSaved,
	CriterionSavedCO2Emissions:  MetricCO2Saved,
	CriterionSavedCOEmissions:   MetricCOSaved,
	CriterionSavedPM10Emissions: MetricPM10Saved,
}

// SavedMetric returns the segment metric summed by c
func (c Criterion) SavedMetric() (Metric, bool) {
	m, ok := savedMetrics[c]
	return m, ok
}

// AgeGroup is the age bracket recorded on a user's profile
type AgeGroup string

const (
	AgeYoungerThanNineteen       AgeGroup = "younger_than_19"
	AgeBetweenNineteenAndThirty  AgeGroup = "19_to_30"
	AgeBetweenThirtyAndSixtyFive AgeGroup = "30_to_65"
	AgeOlderThanSixtyFive        AgeGroup = "older_than_65"
)

// Known reports whether g is one of the enumerated age groups
func (g AgeGroup) Known() bool {
	switch g {
	case AgeYoungerThanNineteen, AgeBetweenNineteenAndThirty,
		AgeBetweenThirtyAndSixtyFive, AgeOlderThanSixtyFive:
		return true
	}
	return false
}

// RegistrationStatus is the moderation state of a competition participant
type RegistrationStatus string

const (
	StatusApproved          RegistrationStatus = "approved"
	StatusRejected          RegistrationStatus = "rejected"
	StatusPendingModeration RegistrationStatus = "pending_moderation"
)

// Known reports whether s is a valid registration status
func (s RegistrationStatus) Known() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusPendingModeration:
		return true
	}
	return false
}

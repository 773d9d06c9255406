package models

import "time"

// Exposure is one published diagnosis key. ExposureKey is the base64 form
// of the key data and is unique.
type Exposure struct {
	ExposureKey       string
	TransmissionRisk  int32
	IntervalNumber    int32
	IntervalCount     int32
	Region            string
	Traveler          bool
	HealthAuthorityID string
	ReportType        string
	// DaysSinceOnset is nil when the publish carried no symptom onset.
	DaysSinceOnset *int32
	// PublishedAt moves forward when a revision replaces the key.
	PublishedAt time.Time
	Revised     bool
}

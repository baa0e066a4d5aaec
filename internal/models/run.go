package models

import "time"

// Run records the outcome of one pipeline execution.
type Run struct {
	ID               string    `json:"id"`
	RunDate          string    `json:"run_date"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	ItemsFetched     int       `json:"items_fetched"`
	ArticlesIngested int       `json:"articles_ingested"`
	FeatureMethod    string    `json:"feature_method"`
	Clusters         int       `json:"clusters"`
	StoriesPublished int       `json:"stories_published"`
	FailedSources    []string  `json:"failed_sources"`
}

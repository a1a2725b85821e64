package models

// Requests for the status HTTP endpoints.

type ResultsRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required,alphanum,max=32"`
	Limit      int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
	From       string `query:"from" json:"from"`
	To         string `query:"to" json:"to"`
}

type HedgeRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required,alphanum,max=32"`
}

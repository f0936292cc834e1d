package models

// Requests for the report HTTP endpoints.

type RunRequest struct {
	ID string `param:"id" json:"id" validate:"required,max=64"`
}

type TrialsRequest struct {
	ID      string `param:"id" json:"id" validate:"required,max=64"`
	Variant string `query:"variant" json:"variant" validate:"omitempty,oneof=simple lstm gru rnn"`
	Limit   int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

// TrialRow is one trial tagged with its variant and rank. Rank is 0 for
// failed trials.
type TrialRow struct {
	Variant Variant `json:"variant"`
	Rank    int     `json:"rank"`
	TrialResult
}

// TrialRows flattens the trials of r, optionally restricted to one variant.
// Within a variant ranked trials come first, then failed ones by index.
func TrialRows(r *RunReport, only Variant) []TrialRow {
	var out []TrialRow
	for _, vr := range r.Variants {
		if only != "" && vr.Variant != only {
			continue
		}
		for i, t := range vr.Ranked {
			out = append(out, TrialRow{Variant: vr.Variant, Rank: i + 1, TrialResult: t})
		}
		for _, t := range vr.Trials {
			if !t.OK() {
				out = append(out, TrialRow{Variant: vr.Variant, TrialResult: t})
			}
		}
	}
	return out
}

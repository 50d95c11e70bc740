package legacy

import (
	"github.com/rs/zerolog"
)

// SkipReason says why a legacy document produced no record.
type SkipReason string

const (
	ReasonMalformedID     SkipReason = "malformed_id"
	ReasonBadTimestamp    SkipReason = "bad_timestamp"
	ReasonUnknownFormType SkipReason = "unknown_form_type"
	ReasonMissingName     SkipReason = "missing_name"
)

type Skip struct {
	ID     string     `json:"id"`
	Reason SkipReason `json:"reason"`
}

// Report accounts for every input document of a reconstruction: Parsed
// contributed to the output, Skipped was dropped as unusable, Ignored is a
// valid form of a kind the reconstruction does not read.
type Report struct {
	Parsed  int                `json:"parsed"`
	Skipped int                `json:"skipped"`
	Ignored int                `json:"ignored"`
	Reasons map[SkipReason]int `json:"reasons"`
	Skips   []Skip             `json:"skips"`
}

func newReport() Report {
	return Report{Reasons: make(map[SkipReason]int)}
}

func (r *Report) skip(id string, reason SkipReason) {
	r.Skipped++
	r.Reasons[reason]++
	r.Skips = append(r.Skips, Skip{ID: id, Reason: reason})
}

// Total is the number of documents examined.
func (r Report) Total() int {
	return r.Parsed + r.Skipped + r.Ignored
}

// Log writes a one-line summary, with a debug line per skipped document.
func (r Report) Log(logger *zerolog.Logger, entity string) {
	if logger == nil {
		return
	}
	ev := logger.Info()
	if r.Skipped > 0 {
		ev = logger.Warn()
	}
	dict := zerolog.Dict()
	for reason, n := range r.Reasons {
		dict = dict.Int(string(reason), n)
	}
	ev.Str("entity", entity).
		Int("total", r.Total()).
		Int("parsed", r.Parsed).
		Int("skipped", r.Skipped).
		Int("ignored", r.Ignored).
		Dict("reasons", dict).
		Msg("legacy reconstruction finished")

	for _, s := range r.Skips {
		logger.Debug().Str("entity", entity).Str("doc_id", s.ID).Str("reason", string(s.Reason)).Msg("legacy document skipped")
	}
}

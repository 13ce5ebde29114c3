package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// Sample is one engine counter published as a labeled member of a family.
// Label is empty for single-sample families.
type Sample struct {
	ID         goIdentity.MetricID
	Label      string
	LabelValue string
}

// Family groups counters that describe outcomes of the same operation.
type Family struct {
	Name    string
	Help    string
	Samples []Sample
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// by sets label on every sample.
func by(label string, samples ...Sample) []Sample {
	for i := range samples {
		samples[i].Label = label
	}
	return samples
}

// CounterFamilies covers every engine counter exactly once.
var CounterFamilies = []Family{
	{
		Name: "goidentity_logins_total",
		Help: "Login attempts by result.",
		Samples: by("result",
			Sample{ID: goIdentity.MetricLoginSuccess, LabelValue: "success"},
			Sample{ID: goIdentity.MetricLoginFailure, LabelValue: "failure"},
			Sample{ID: goIdentity.MetricLoginRateLimited, LabelValue: "rate_limited"},
		),
	},
	{
		Name: "goidentity_refreshes_total",
		Help: "Refresh rotations by result.",
		Samples: by("result",
			Sample{ID: goIdentity.MetricRefreshSuccess, LabelValue: "success"},
			Sample{ID: goIdentity.MetricRefreshFailure, LabelValue: "failure"},
			Sample{ID: goIdentity.MetricRefreshRateLimited, LabelValue: "rate_limited"},
		),
	},
	{
		Name: "goidentity_sessions_created_total",
		Help: "Session creations by result.",
		Samples: by("result",
			Sample{ID: goIdentity.MetricSessionCreated, LabelValue: "success"},
			Sample{ID: goIdentity.MetricSessionCreateFailure, LabelValue: "failure"},
		),
	},
	{
		Name: "goidentity_logouts_total",
		Help: "Logouts by scope.",
		Samples: by("scope",
			Sample{ID: goIdentity.MetricLogout, LabelValue: "session"},
			Sample{ID: goIdentity.MetricLogoutAll, LabelValue: "all"},
		),
	},
	{
		Name: "goidentity_registrations_total",
		Help: "Registrations by stage.",
		Samples: by("stage",
			Sample{ID: goIdentity.MetricRegistrationRequested, LabelValue: "requested"},
			Sample{ID: goIdentity.MetricRegistrationConfirmed, LabelValue: "confirmed"},
		),
	},
	{
		Name: "goidentity_confirmations_total",
		Help: "Confirmation token outcomes.",
		Samples: by("outcome",
			Sample{ID: goIdentity.MetricConfirmationIssued, LabelValue: "issued"},
			Sample{ID: goIdentity.MetricConfirmationResent, LabelValue: "resent"},
			Sample{ID: goIdentity.MetricConfirmationThrottled, LabelValue: "throttled"},
			Sample{ID: goIdentity.MetricConfirmationRedeemed, LabelValue: "redeemed"},
			Sample{ID: goIdentity.MetricConfirmationInvalid, LabelValue: "invalid"},
			Sample{ID: goIdentity.MetricConfirmationRateLimited, LabelValue: "rate_limited"},
		),
	},
	{
		Name: "goidentity_account_changes_total",
		Help: "Applied account changes by kind.",
		Samples: by("change",
			Sample{ID: goIdentity.MetricEmailChanged, LabelValue: "email"},
			Sample{ID: goIdentity.MetricPasswordChanged, LabelValue: "password"},
			Sample{ID: goIdentity.MetricPasswordReset, LabelValue: "password_reset"},
			Sample{ID: goIdentity.MetricUsernameChanged, LabelValue: "username"},
			Sample{ID: goIdentity.MetricRoleChanged, LabelValue: "role"},
		),
	},
	{
		Name:    "goidentity_password_reset_requests_total",
		Help:    "Issued password reset tokens.",
		Samples: []Sample{{ID: goIdentity.MetricPasswordResetRequested}},
	},
	{
		Name:    "goidentity_notification_failures_total",
		Help:    "Confirmation links that could not be delivered.",
		Samples: []Sample{{ID: goIdentity.MetricNotificationFailure}},
	},
	{
		Name:    "goidentity_backend_failures_total",
		Help:    "Cache or store failures.",
		Samples: []Sample{{ID: goIdentity.MetricBackendFailure}},
	},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricBearerLatency, Name: "goidentity_bearer_latency_seconds", Help: "Bearer verification latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// CumulativeBuckets turns raw per-bucket counts into running totals. Raw
// slices shorter than the bucket count are zero-padded.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

package audit

import "github.com/prometheus/client_golang/prometheus"

func ActivityFailures() prometheus.Counter { return activityFailures }

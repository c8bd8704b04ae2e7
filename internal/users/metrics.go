package users

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegistrationsTotal tracks registration attempts by result.
var RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dexarb_user_registrations_total",
	Help: "Total number of user registration attempts",
}, []string{"result"})
